// Package v1 provides the public HTTP handlers of the chat gateway.
package v1

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
	"github.com/spaceboy202105/chatbot-test/internal/metrics"
	"github.com/spaceboy202105/chatbot-test/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, collector *metrics.Collector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: svc,
		metrics: collector,
		logger:  logger,
	}
}

// RegisterRoutes registers the API routes on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/chat", h.Chat)
	g.POST("/chat/stream", h.ChatStream)

	g.POST("/conversations", h.CreateConversation)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id", h.GetConversation)
	g.PATCH("/conversations/:id", h.UpdateConversation)
	g.PUT("/conversations/:id", h.UpdateConversation)
	g.DELETE("/conversations/:id", h.DeleteConversation)
	g.POST("/conversations/:id/messages", h.PostMessage)

	g.GET("/models", h.ListModels)
	g.GET("/models/provider/:provider", h.ListModelsByProvider)
	g.GET("/models/:model_id", h.GetModel)

	g.GET("/system-prompt", h.GetSystemPrompt)
	g.GET("/health", h.Health)
}

// Health reports the gateway status and the registered adapters.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	health := h.service.Health(c.Request().Context())
	status := http.StatusOK
	if health.Status != service.StatusOK {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, health)
}

// statusFor maps an error code onto its HTTP status.
func statusFor(code string) int {
	switch code {
	case "not_found":
		return http.StatusNotFound
	case "unsupported_model", "no_model_specified", "policy_violation", "invalid_request":
		return http.StatusBadRequest
	case "adapter_failure":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err.
func (h *Handler) respondError(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request().Context(), h.logger).Error("request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(status, domain.ErrorResponse{Error: err.Error(), Code: code})
}

// badRequest reports invalid client input.
func (h *Handler) badRequest(c echo.Context, message string) error {
	return h.respondError(c, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, message))
}
