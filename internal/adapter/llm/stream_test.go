package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func TestFragmentsOfIsSingleUse(t *testing.T) {
	seq := FragmentsOf("a", "b")
	got, err := collect(seq)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = collect(seq)
	assert.ErrorIs(t, err, domain.ErrStreamConsumed)
}

func TestStreamBlocking(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		seq := streamBlocking(context.Background(), func(context.Context) (string, error) { return "done", nil })
		got, err := collect(seq)
		require.NoError(t, err)
		assert.Equal(t, []string{"done"}, got)
	})

	t.Run("empty reply yields nothing", func(t *testing.T) {
		seq := streamBlocking(context.Background(), func(context.Context) (string, error) { return "", nil })
		got, err := collect(seq)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("failure", func(t *testing.T) {
		boom := errors.New("boom")
		seq := streamBlocking(context.Background(), func(context.Context) (string, error) { return "", boom })
		_, err := collect(seq)
		assert.ErrorIs(t, err, boom)
	})
}

func TestSSEScanner(t *testing.T) {
	input := ": comment\n" +
		"event: message\n" +
		"data: first\n\n" +
		"data: multi\n" +
		"data: line\n\n" +
		"data: [DONE]\n\n" +
		"data: ignored\n\n"
	s := newSSEScanner(strings.NewReader(input))

	data, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", data)

	data, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, "multi\nline", data)

	_, err = s.Next()
	assert.ErrorIs(t, err, errStreamDone)
}

func TestSSEScannerEOF(t *testing.T) {
	s := newSSEScanner(strings.NewReader("data: tail"))
	data, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "tail", data)

	_, err = s.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestProviderErrorMessage(t *testing.T) {
	assert.Equal(t, "bad key (type: auth)", providerErrorMessage([]byte(`{"error":{"message":"bad key","type":"auth"}}`)))
	assert.Equal(t, "flat", providerErrorMessage([]byte(`{"error":"flat"}`)))
	assert.Equal(t, "oops (code: E1)", providerErrorMessage([]byte(`{"message":"oops","code":"E1"}`)))
	assert.Equal(t, "empty error response", providerErrorMessage(nil))
	assert.Len(t, providerErrorMessage([]byte(strings.Repeat("x", 2000))), maxErrorBodyLen+3)
}
