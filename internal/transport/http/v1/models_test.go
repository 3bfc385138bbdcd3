package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func TestModelsEndpoints(t *testing.T) {
	e := newTestServer(t, nil)

	rec := do(e, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[struct {
		Models []domain.ModelInfo `json:"models"`
	}](t, rec)
	require.Len(t, all.Models, 1)
	assert.Equal(t, "acme-large", all.Models[0].ID)

	rec = do(e, http.MethodGet, "/api/models/acme-large", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Acme Large", decode[domain.ModelInfo](t, rec).DisplayName)

	rec = do(e, http.MethodGet, "/api/models/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/api/models/provider/acme", "")
	require.Equal(t, http.StatusOK, rec.Code)
	byProvider := decode[struct {
		Provider string             `json:"provider"`
		Models   []domain.ModelInfo `json:"models"`
	}](t, rec)
	assert.Equal(t, "acme", byProvider.Provider)
	assert.Len(t, byProvider.Models, 1)

	rec = do(e, http.MethodGet, "/api/models/provider/other", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"provider":"other","models":[]}`, rec.Body.String())
}

func TestSystemPrompt(t *testing.T) {
	e := newTestServer(t, nil)

	rec := do(e, http.MethodGet, "/api/system-prompt", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testPrompt, decode[domain.SystemPromptResponse](t, rec).SystemPrompt)
}
