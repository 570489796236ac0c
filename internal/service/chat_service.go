package service

import (
	"context"
	"strings"

	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/validation"
)

// DefaultChatHistoryLimit is how many messages a new connection receives as backlog
const DefaultChatHistoryLimit = 100

// ChatService handles the family chat and pings
type ChatService struct {
	messageRepo  *repository.MessageRepository
	hub          *realtime.Hub
	historyLimit int
}

// NewChatService creates a new chat service
func NewChatService(messageRepo *repository.MessageRepository, hub *realtime.Hub, historyLimit int) *ChatService {
	if historyLimit <= 0 {
		historyLimit = DefaultChatHistoryLimit
	}
	return &ChatService{
		messageRepo:  messageRepo,
		hub:          hub,
		historyLimit: historyLimit,
	}
}

// HistoryLimit is the number of messages returned as backlog
func (s *ChatService) HistoryLimit() int {
	return s.historyLimit
}

// ListRecentMessages returns the latest messages in the caller's family, oldest first.
// A limit of 0 uses the configured history limit.
func (s *ChatService) ListRecentMessages(ctx context.Context, identity *models.Identity, limit int) ([]models.MessageWithSender, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.messageRepo.ListRecent(ctx, familyID, limit)
}

// SendText posts a text message. Blank content is ignored and returns nil, nil.
func (s *ChatService) SendText(ctx context.Context, identity *models.Identity, content string) (*models.MessageWithSender, error) {
	if _, err := identity.FamilyID(); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	if err := validation.ValidateRequired("content", content, validation.MaxMessageLength); err != nil {
		return nil, err
	}

	return s.send(ctx, identity, &models.Message{
		Type:    models.MessageTypeText,
		Content: &content,
	})
}

// SendPing posts one of the fixed quick-status signals. The message content is the ping's label.
func (s *ChatService) SendPing(ctx context.Context, identity *models.Identity, pingType models.PingType) (*models.MessageWithSender, error) {
	if _, err := identity.FamilyID(); err != nil {
		return nil, err
	}

	ping, ok := models.LookupPing(pingType)
	if !ok {
		return nil, ErrUnknownPingType
	}

	label := ping.Label
	pt := ping.Type
	return s.send(ctx, identity, &models.Message{
		Type:     models.MessageTypePing,
		Content:  &label,
		PingType: &pt,
	})
}

func (s *ChatService) send(ctx context.Context, identity *models.Identity, msg *models.Message) (*models.MessageWithSender, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	msg.FamilyID = familyID
	msg.SenderID = identity.Member.ID
	if err := s.messageRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	sent := &models.MessageWithSender{Message: *msg, Sender: identity.Member.Summary()}
	s.hub.Publish(familyID, realtime.NewEvent(realtime.EventMessageCreated, sent))
	return sent, nil
}

// ListPings returns the family's latest pings, newest first
func (s *ChatService) ListPings(ctx context.Context, identity *models.Identity, limit int) ([]models.MessageWithSender, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.messageRepo.ListPings(ctx, familyID, limit)
}

// Subscribe registers for live events in the caller's family. The caller must Close the subscription.
func (s *ChatService) Subscribe(identity *models.Identity) (*realtime.Subscription, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(familyID), nil
}
