package handlers

import (
	"net/http"
	"strconv"

	"familysync/internal/models"
	"familysync/internal/service"
)

// ChatHandler handles family messages and pings
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type sendPingRequest struct {
	PingType models.PingType `json:"ping_type"`
}

type messagesResponse struct {
	Messages []models.MessageWithSender `json:"messages"`
	Days     []models.MessageDay        `json:"days"`
}

type pingsResponse struct {
	Available []models.Ping              `json:"available"`
	Recent    []models.MessageWithSender `json:"recent"`
}

// limitParam reads an optional positive limit query parameter. Anything else means 0.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ListMessages returns recent history oldest first, also grouped by family-local day
func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	identity := GetIdentityFromContext(r.Context())

	messages, err := h.chatService.ListRecentMessages(r.Context(), identity, limitParam(r))
	if err != nil {
		respondServiceError(w, err, "Error listing messages")
		return
	}

	respondJSON(w, http.StatusOK, messagesResponse{
		Messages: messages,
		Days:     models.GroupMessagesByDay(messages, identity.Family.Location()),
	})
}

// SendMessage posts a text message. Blank content is accepted and dropped.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	msg, err := h.chatService.SendText(r.Context(), GetIdentityFromContext(r.Context()), req.Content)
	if err != nil {
		respondServiceError(w, err, "Error sending message")
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// SendPing posts one of the fixed presence pings
func (h *ChatHandler) SendPing(w http.ResponseWriter, r *http.Request) {
	var req sendPingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	msg, err := h.chatService.SendPing(r.Context(), GetIdentityFromContext(r.Context()), req.PingType)
	if err != nil {
		respondServiceError(w, err, "Error sending ping")
		return
	}

	respondJSON(w, http.StatusCreated, msg)
}

// ListPings returns the ping vocabulary and the family's latest pings
func (h *ChatHandler) ListPings(w http.ResponseWriter, r *http.Request) {
	recent, err := h.chatService.ListPings(r.Context(), GetIdentityFromContext(r.Context()), limitParam(r))
	if err != nil {
		respondServiceError(w, err, "Error listing pings")
		return
	}

	respondJSON(w, http.StatusOK, pingsResponse{
		Available: models.Pings,
		Recent:    recent,
	})
}
