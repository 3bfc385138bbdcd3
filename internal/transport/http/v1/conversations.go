package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// CreateConversation creates an empty conversation.
// POST /conversations
func (h *Handler) CreateConversation(c echo.Context) error {
	var req domain.CreateConversationRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	conv, err := h.service.CreateConversation(c.Request().Context(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusCreated, conv)
}

// ListConversations returns a page of summaries, most recent first.
// GET /conversations?limit&offset
func (h *Handler) ListConversations(c echo.Context) error {
	limit := defaultListLimit
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val < 1 || val > maxListLimit {
			return h.badRequest(c, "limit must be between 1 and 1000")
		}
		limit = val
	}
	offset := 0
	if o := c.QueryParam("offset"); o != "" {
		val, err := strconv.Atoi(o)
		if err != nil || val < 0 {
			return h.badRequest(c, "offset must not be negative")
		}
		offset = val
	}

	items, err := h.service.ListConversations(c.Request().Context(), limit, offset)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, domain.ConversationList{
		Conversations: items,
		Limit:         limit,
		Offset:        offset,
	})
}

// GetConversation returns one conversation with its messages.
// GET /conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	conv, err := h.service.GetConversation(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// UpdateConversation applies a partial update.
// PATCH|PUT /conversations/:id
func (h *Handler) UpdateConversation(c echo.Context) error {
	var patch domain.ConversationPatch
	if err := c.Bind(&patch); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	conv, err := h.service.UpdateConversation(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation.
// DELETE /conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	if err := h.service.DeleteConversation(c.Request().Context(), c.Param("id")); err != nil {
		return h.respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
