package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ramevans/Medical-Platform/internal/metrics"
	"github.com/ramevans/Medical-Platform/internal/models"
)

// defaultChatPageSize is how many messages a latest-page query returns when
// the caller does not say.
const defaultChatPageSize = 10

// AttachmentRequest represents one attachment in a send-message request.
type AttachmentRequest struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

// SendMessageRequest represents the send-message request body.
type SendMessageRequest struct {
	SenderID     int64               `json:"sender_id"`
	Text         string              `json:"text"`
	Attachments  []AttachmentRequest `json:"attachments"`
	RecipientIDs []int64             `json:"recipient_ids"`
}

// QueryMessagesRequest represents the time-range query request body.
type QueryMessagesRequest struct {
	UserIDs []int64 `json:"user_ids"`
	Since   *string `json:"since"`
	Until   *string `json:"until"`
}

// MessageListResponse represents a message query response.
type MessageListResponse struct {
	Messages []models.Message `json:"messages"`
	Count    int              `json:"count"`
}

// ChatListResponse represents the conversation membership response.
type ChatListResponse struct {
	Chats [][]int64 `json:"chats"`
}

// SendMessage handles logging a new chat message.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var errs []string
	if len(req.RecipientIDs) == 0 {
		errs = append(errs, "Must specify at least one or more recipients.")
	}
	if len(req.RecipientIDs) == 1 && req.RecipientIDs[0] == req.SenderID {
		errs = append(errs, "You can't send messages to yourself.")
	}
	if req.SenderID == 0 {
		errs = append(errs, "Missing required field: sender_id")
	}

	attachments := make([]models.MessageAttachment, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachment, err := models.NewMessageAttachment(models.AttachmentKind(a.Kind), a.URL)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		attachments = append(attachments, attachment)
	}

	var msg *models.Message
	if errs == nil {
		var err error
		msg, err = models.NewMessage(req.SenderID, req.Text, attachments)
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	if err := h.chat.LogMessage(r.Context(), req.RecipientIDs, msg); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to log message")
		return
	}

	metrics.MessagesLogged.Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// QueryMessages handles a time-range query over a conversation's log.
func (h *Handler) QueryMessages(w http.ResponseWriter, r *http.Request) {
	var req QueryMessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var errs []string
	if len(req.UserIDs) == 0 {
		errs = append(errs, "User ids are required")
	} else if len(req.UserIDs) < 2 {
		errs = append(errs, "All chats are between two or more recipients.")
	}

	since, err := parseTimestamp(req.Since)
	if err != nil {
		errs = append(errs, "Invalid since timestamp: "+err.Error())
	}
	until, err := parseTimestamp(req.Until)
	if err != nil {
		errs = append(errs, "Invalid until timestamp: "+err.Error())
	}

	if errs != nil {
		h.ErrorList(w, http.StatusUnprocessableEntity, errs)
		return
	}

	messages, err := h.chat.QueryTimeRange(r.Context(), req.UserIDs, since, until)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to query messages")
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages, Count: len(messages)})
}

// LatestMessages handles fetching the most recent page of a conversation,
// returned oldest first. Query params: user_ids (comma separated, required),
// until (RFC 3339, optional), limit (optional, default 10).
func (h *Handler) LatestMessages(w http.ResponseWriter, r *http.Request) {
	userIDs, err := parseIDList(r.URL.Query().Get("user_ids"))
	if err != nil || len(userIDs) == 0 {
		h.Error(w, http.StatusBadRequest, "user_ids must be a comma-separated list of ids")
		return
	}

	var until *time.Time
	if raw := r.URL.Query().Get("until"); raw != "" {
		until, err = parseTimestamp(&raw)
		if err != nil {
			h.Error(w, http.StatusBadRequest, "invalid until timestamp")
			return
		}
	}

	limit := defaultChatPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			h.Error(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
	}

	messages, err := h.chat.QueryLatestMessages(r.Context(), userIDs, until, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to query messages")
		return
	}

	h.JSON(w, http.StatusOK, MessageListResponse{Messages: messages, Count: len(messages)})
}

// ListConversations handles membership queries: every conversation that
// includes all of the given users. Query param: user_ids (comma separated).
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userIDs, err := parseIDList(r.URL.Query().Get("user_ids"))
	if err != nil || len(userIDs) == 0 {
		h.Error(w, http.StatusBadRequest, "user_ids must be a comma-separated list of ids")
		return
	}

	chats, err := h.chat.GetUserChats(r.Context(), userIDs)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to query conversations")
		return
	}
	if chats == nil {
		chats = [][]int64{}
	}

	h.JSON(w, http.StatusOK, ChatListResponse{Chats: chats})
}

// parseTimestamp parses an optional RFC 3339 timestamp.
func parseTimestamp(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
