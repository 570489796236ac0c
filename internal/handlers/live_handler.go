package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/olahol/melody"

	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/service"
)

const (
	identityKey = "identity"
	streamKey   = "stream"
	laggingKey  = "lagging"

	backlogTimeout     = 5 * time.Second
	closeRetryInterval = 50 * time.Millisecond
)

// LiveHandler streams family events to websocket clients
type LiveHandler struct {
	chatService *service.ChatService
	m           *melody.Melody
}

// NewLiveHandler creates a live handler and wires its melody callbacks
func NewLiveHandler(chatService *service.ChatService) *LiveHandler {
	m := melody.New()
	m.Config.MaxMessageSize = 4096
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	h := &LiveHandler{chatService: chatService, m: m}

	m.HandleConnect(h.onConnect)
	m.HandleDisconnect(h.onDisconnect)
	m.HandleError(h.onError)
	// Clients only listen; anything they send is discarded.
	m.HandleMessage(func(*melody.Session, []byte) {})

	return h
}

// Serve upgrades the request. It must run inside RequireFamily.
func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())
	if err := h.m.HandleRequestWithKeys(w, r, map[string]interface{}{identityKey: identity}); err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
	}
}

// Close disconnects every client
func (h *LiveHandler) Close() error {
	return h.m.Close()
}

// liveStream is one client's feed: the message backlog followed by live family
// events, minus any message.created already delivered in the backlog.
type liveStream struct {
	sub     *realtime.Subscription
	backlog []models.MessageWithSender
	seen    map[string]struct{}
}

// openLiveStream subscribes before reading the backlog so nothing published in
// between is lost. The overlap is removed by next.
func openLiveStream(ctx context.Context, chat *service.ChatService, identity *models.Identity) (*liveStream, error) {
	sub, err := chat.Subscribe(identity)
	if err != nil {
		return nil, err
	}

	stream := &liveStream{sub: sub}
	if err := stream.loadBacklog(ctx, chat, identity); err != nil {
		stream.close()
		return nil, err
	}
	return stream, nil
}

func (ls *liveStream) loadBacklog(ctx context.Context, chat *service.ChatService, identity *models.Identity) error {
	backlog, err := chat.ListRecentMessages(ctx, identity, 0)
	if err != nil {
		return err
	}

	ls.backlog = backlog
	ls.seen = make(map[string]struct{}, len(backlog))
	for _, msg := range backlog {
		ls.seen[msg.ID] = struct{}{}
	}
	return nil
}

// next blocks for the next event to deliver. It reports false once the
// subscription has ended.
func (ls *liveStream) next() (realtime.Event, bool) {
	for event := range ls.sub.C {
		if event.Type == realtime.EventMessageCreated {
			if msg, ok := event.Payload.(*models.MessageWithSender); ok {
				if _, dup := ls.seen[msg.ID]; dup {
					delete(ls.seen, msg.ID)
					continue
				}
			}
		}
		return event, true
	}
	return realtime.Event{}, false
}

func (ls *liveStream) close() {
	ls.sub.Close()
}

func (h *LiveHandler) onConnect(s *melody.Session) {
	value, _ := s.Get(identityKey)
	identity, _ := value.(*models.Identity)

	ctx, cancel := context.WithTimeout(context.Background(), backlogTimeout)
	defer cancel()

	stream, err := openLiveStream(ctx, h.chatService, identity)
	if err != nil {
		log.Printf("Error opening live stream: %v", err)
		s.Close()
		return
	}
	s.Set(streamKey, stream)

	if err := writeEvent(s, realtime.NewEvent(realtime.EventMessagesBacklog, stream.backlog)); err != nil {
		log.Printf("Error writing message backlog: %v", err)
		return
	}

	log.Printf("Member %s connected to family %s", identity.Member.ID, stream.sub.FamilyID())
	go h.forward(s, stream)
}

// forward pumps the stream into the socket. A client that falls behind, either
// on the hub or in melody's outbound buffer, is disconnected so that it
// reconnects and receives a fresh backlog.
func (h *LiveHandler) forward(s *melody.Session, stream *liveStream) {
	for {
		event, ok := stream.next()
		if !ok {
			break
		}
		if err := writeEvent(s, event); err != nil {
			break
		}
		if isLagging(s) {
			log.Printf("Disconnecting lagging websocket for family %s", stream.sub.FamilyID())
			break
		}
	}

	stream.close()
	closeSession(s)
}

// onError records a full outbound buffer instead of logging it: melody drops the
// frame and Write still succeeds, so forward has to check the flag.
func (h *LiveHandler) onError(s *melody.Session, err error) {
	if errors.Is(err, melody.ErrMessageBufferFull) {
		s.Set(laggingKey, true)
		return
	}
	log.Printf("WebSocket error: %v", err)
}

func isLagging(s *melody.Session) bool {
	value, _ := s.Get(laggingKey)
	lagging, _ := value.(bool)
	return lagging
}

// closeSession queues a close frame, retrying while the outbound buffer is full.
// A peer that never drains is cut off by melody's write deadline.
func closeSession(s *melody.Session) {
	for !s.IsClosed() {
		s.Set(laggingKey, false)
		if err := s.Close(); err != nil || !isLagging(s) {
			return
		}
		time.Sleep(closeRetryInterval)
	}
}

func (h *LiveHandler) onDisconnect(s *melody.Session) {
	if value, ok := s.Get(streamKey); ok {
		if stream, ok := value.(*liveStream); ok {
			stream.close()
		}
	}
	if value, ok := s.Get(identityKey); ok {
		if identity, ok := value.(*models.Identity); ok && identity.Member != nil {
			log.Printf("Member %s disconnected", identity.Member.ID)
		}
	}
}

func writeEvent(s *melody.Session, event realtime.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Write(data)
}
