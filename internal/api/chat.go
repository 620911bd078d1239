package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/amnofal/amar-ai/internal/chat"
	"github.com/amnofal/amar-ai/internal/domain"
	"github.com/amnofal/amar-ai/internal/identity"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.SendMessage)
		r.Get("/sessions", h.ListSessions)
		r.Post("/sessions", h.NewSession)
		r.Get("/sessions/{id}", h.GetSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Get("/me", h.GetMe)
		r.Post("/me/login", h.Login)
		r.Post("/me/theme", h.ToggleTheme)
		r.Post("/me/image-size", h.CycleImageSize)
	})
}

// sendMessageRequest is the body of POST /api/chat.
type sendMessageRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Image     string `json:"image"` // base64 data URI
}

// SendMessage submits one turn for the calling device.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Send(r.Context(), userID, chat.SendRequest{
		SessionID: req.SessionID,
		Text:      req.Text,
		Image:     req.Image,
	})
	switch {
	case errors.Is(err, chat.ErrEmptyTurn):
		Error(w, http.StatusBadRequest, "message is empty")
		return
	case errors.Is(err, chat.ErrLoginRequired):
		// The quota gate: nothing was sent and nothing was counted; the
		// client opens its login prompt on this code.
		Error(w, http.StatusForbidden, "login_required")
		return
	case errors.Is(err, chat.ErrBusy):
		Error(w, http.StatusTooManyRequests, "a message is already in flight")
		return
	case err != nil:
		slog.Error("Failed to send message", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	JSON(w, http.StatusOK, result)
}

// ListSessions returns the device's persisted sessions, newest first.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.svc.Sessions(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list sessions", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*domain.ChatSession{}
	}
	JSON(w, http.StatusOK, sessions)
}

// NewSession mints a fresh session id. Nothing is persisted until the first
// message is appended under it.
func (h *Handler) NewSession(w http.ResponseWriter, r *http.Request) {
	if identity.UserIDFromContext(r.Context()) == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"id": h.svc.NewSessionID()})
}

// GetSession returns a single session with its messages.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.svc.SessionByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("Failed to load session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, session)
}

// DeleteSession removes a session. The client mints a fresh unsaved id when
// it deletes the active one.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.svc.DeleteSession(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		slog.Error("Failed to delete session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted", "next_session_id": h.svc.NewSessionID()})
}
