package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// ListModels returns the model catalog.
// GET /models
func (h *Handler) ListModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"models": h.service.ListModels(),
	})
}

// ListModelsByProvider returns the catalog entries of one provider.
// GET /models/provider/:provider
func (h *Handler) ListModelsByProvider(c echo.Context) error {
	provider := c.Param("provider")
	return c.JSON(http.StatusOK, map[string]interface{}{
		"provider": provider,
		"models":   h.service.ListModelsByProvider(provider),
	})
}

// GetModel returns one catalog entry.
// GET /models/:model_id
func (h *Handler) GetModel(c echo.Context) error {
	info, err := h.service.GetModel(c.Param("model_id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// GetSystemPrompt returns the configured default system prompt.
// GET /system-prompt
func (h *Handler) GetSystemPrompt(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.SystemPromptResponse{SystemPrompt: h.service.DefaultSystemPrompt()})
}
