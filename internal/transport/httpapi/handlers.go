package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sandevgo/eqchat/internal/core"
	"github.com/sandevgo/eqchat/internal/service/agent"
	"github.com/sandevgo/eqchat/pkg/log"
)

const (
	defaultPageSize = 20
	defaultListLim  = 50
)

type chatRequest struct {
	UserID   core.FlexID `json:"user_id"`
	Username string      `json:"username"`
	Message  string      `json:"message"`
	ThreadID string      `json:"thread_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrValidation, "malformed request body"))
		return
	}

	res, err := s.agent.Chat(r.Context(), agent.ChatInput{
		UserID:   req.UserID.String(),
		Username: req.Username,
		Message:  req.Message,
		ThreadID: req.ThreadID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID := core.NormalizeUserID(r.PathValue("user_id"))

	opts := core.PageOptions{
		PageSize:    defaultPageSize,
		Cursor:      r.URL.Query().Get("cursor"),
		NewestFirst: r.URL.Query().Get("order") != "asc",
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: page_size must be an integer", core.ErrValidation))
			return
		}
		opts.PageSize = n
	}

	page, err := s.store.Page(r.Context(), userID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type appendRequest struct {
	UserID   core.FlexID `json:"user_id"`
	Username string      `json:"username"`
	Role     string      `json:"role"`
	Content  string      `json:"content"`
}

func (r appendRequest) identity() string {
	userID := core.NormalizeUserID(r.UserID.String())
	if userID == "" {
		userID = core.NormalizeUserID(r.Username)
	}
	return userID
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var req appendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrValidation, "malformed request body"))
		return
	}
	userID := req.identity()
	if userID == "" {
		writeError(w, r, fmt.Errorf("%w: user_id or username is required", core.ErrValidation))
		return
	}
	role := req.Role
	if role == "" {
		role = core.RoleUser
	}

	messageID, err := s.store.Append(r.Context(), userID, role, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message_id": messageID})
}

func (s *Server) handleLongTermMemory(w http.ResponseWriter, r *http.Request) {
	userID := core.NormalizeUserID(r.PathValue("user_id"))
	limit := queryLimit(r, defaultListLim)

	facts, err := s.memory.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "facts": facts})
}

func (s *Server) handleSearchResults(w http.ResponseWriter, r *http.Request) {
	userID := core.NormalizeUserID(r.PathValue("user_id"))
	limit := queryLimit(r, 0)

	logs, err := s.toolLogs.ListRecent(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "searches": logs})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	userID := core.NormalizeUserID(r.PathValue("user_id"))

	messages, err := s.store.DeleteAll(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	facts, err := s.memory.DeleteAll(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":          userID,
		"deleted_messages": messages,
		"deleted_facts":    facts,
	})
}

type publishEventRequest struct {
	UserID        core.FlexID `json:"user_id"`
	Username      string      `json:"username"`
	Role          string      `json:"role"`
	Content       string      `json:"content"`
	CorrelationID string      `json:"correlation_id"`
}

// handlePublishChatEvent is the event entry path: instead of writing to the
// store directly, it publishes a message.created event and lets the ingestion
// worker persist it. Returns 202 with the generated message_id.
func (s *Server) handlePublishChatEvent(w http.ResponseWriter, r *http.Request) {
	if s.producer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event channel disabled"})
		return
	}

	var req publishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, fmt.Errorf("%w: %s", core.ErrValidation, "malformed request body"))
		return
	}
	userID := core.NormalizeUserID(req.UserID.String())
	if userID == "" {
		userID = core.NormalizeUserID(req.Username)
	}
	if userID == "" {
		writeError(w, r, fmt.Errorf("%w: user_id or username is required", core.ErrValidation))
		return
	}
	role := req.Role
	if role == "" {
		role = core.RoleUser
	}
	if !core.ValidRole(role) {
		writeError(w, r, fmt.Errorf("%w: invalid role %q", core.ErrValidation, role))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, r, fmt.Errorf("%w: content is required", core.ErrValidation))
		return
	}
	if utf8.RuneCountInString(req.Content) > core.MaxContentLength {
		writeError(w, r, fmt.Errorf("%w: content exceeds %d characters", core.ErrValidation, core.MaxContentLength))
		return
	}

	msg := core.Message{
		UserID:        userID,
		MessageID:     fmt.Sprintf("%s_%s", userID, uuid.NewString()),
		Role:          role,
		Content:       req.Content,
		CorrelationID: req.CorrelationID,
		CreatedAt:     time.Now().UTC(),
	}

	payload, err := core.NewMessageCreatedEvent(msg).Encode()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.producer.Publish(r.Context(), core.TopicChatMessages, userID, payload); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message_id": msg.MessageID,
		"status":     "queued",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes. Internal detail is
// logged but never echoed back for 5xx responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromCtx(r.Context())

	switch {
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, core.ErrUpstream):
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream error"})
	case errors.Is(err, core.ErrDelivery):
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("event delivery failure")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "event delivery failed"})
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
