// Package api provides HTTP handlers for the Amar AI API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/amnofal/amar-ai/internal/chat"
	"github.com/amnofal/amar-ai/internal/config"
	"github.com/amnofal/amar-ai/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxChatBodySize bounds the chat request body. Attached images travel as
// base64 data URIs, so this is well above the text-only routes' needs.
const maxChatBodySize = 12 << 20 // 12MB

// maxBodySize bounds every other request body.
const maxBodySize = 1 << 20 // 1MB

// Handler serves the chat API.
type Handler struct {
	repo store.Repository
	svc  *chat.Service
	cfg  *config.Config
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository, svc *chat.Service, cfg *config.Config) *Handler {
	return &Handler{repo: repo, svc: svc, cfg: cfg}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo store.Repository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
