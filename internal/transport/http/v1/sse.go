package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// sseWriter writes server-sent events. Headers go out with the first
// event, so a failure before it can still become a JSON error response.
type sseWriter struct {
	c       echo.Context
	started bool
}

func newSSEWriter(c echo.Context) *sseWriter {
	return &sseWriter{c: c}
}

func (w *sseWriter) start() {
	header := w.c.Response().Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.c.Response().WriteHeader(http.StatusOK)
	w.started = true
}

// Event writes one event. Multi-line data is split across data lines.
func (w *sseWriter) Event(event domain.StreamEventType, data string) error {
	if !w.started {
		w.start()
	}

	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(string(event))
	b.WriteByte('\n')
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w.c.Response(), b.String()); err != nil {
		return err
	}
	w.c.Response().Flush()
	return nil
}

// JSONEvent writes one event with a JSON payload.
func (w *sseWriter) JSONEvent(event domain.StreamEventType, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.Event(event, string(data))
}
