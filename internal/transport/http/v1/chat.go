package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
	"github.com/spaceboy202105/chatbot-test/internal/logging"
)

// Chat runs one chat cycle. With "stream": true the reply is relayed as
// server-sent events.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	if req.Stream {
		return h.streamChat(c, req)
	}
	return h.blockingChat(c, req)
}

// ChatStream relays one chat cycle as server-sent events.
// POST /chat/stream
func (h *Handler) ChatStream(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	return h.streamChat(c, req)
}

// PostMessage runs one chat cycle in an existing conversation.
// POST /conversations/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, "invalid request body")
	}
	req.ConversationID = c.Param("id")
	if req.Stream {
		return h.streamChat(c, req)
	}
	return h.blockingChat(c, req)
}

func (h *Handler) blockingChat(c echo.Context, req domain.ChatRequest) error {
	result, err := h.service.Chat(c.Request().Context(), req)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// streamChat emits one content event per fragment and a single done event
// once the assistant message is committed. Failures before the first event
// are plain JSON errors; later ones end the stream with an error event.
func (h *Handler) streamChat(c echo.Context, req domain.ChatRequest) error {
	ctx := c.Request().Context()
	sse := newSSEWriter(c)

	result, err := h.service.ChatStream(ctx, req, func(fragment string) error {
		return sse.Event(domain.StreamEventContent, fragment)
	})
	if err != nil {
		if errors.Is(err, domain.ErrStreamAborted) {
			logging.FromContext(ctx, h.logger).Info("client abandoned stream", "error", err)
			return nil
		}
		if !sse.started {
			return h.respondError(c, err)
		}
		return sse.JSONEvent(domain.StreamEventError, domain.ErrorEventData{
			Code:    domain.ErrorCode(err),
			Message: err.Error(),
		})
	}

	return sse.JSONEvent(domain.StreamEventDone, domain.DoneEventData{ConversationID: result.ConversationID})
}
