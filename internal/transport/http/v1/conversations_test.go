package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func TestConversationLifecycle(t *testing.T) {
	e := newTestServer(t, nil)

	rec := do(e, http.MethodPost, "/api/conversations", `{"title":"Plans","metadata":{"tier":"pro"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	conv := decode[domain.Conversation](t, rec)
	assert.Equal(t, "Plans", conv.Title)
	assert.Equal(t, testPrompt, conv.SystemPrompt)
	assert.Empty(t, conv.Messages)

	rec = do(e, http.MethodPatch, "/api/conversations/"+conv.ID, `{"title":"Trips","model":"acme-large"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[domain.Conversation](t, rec)
	assert.Equal(t, "Trips", updated.Title)
	assert.Equal(t, "acme-large", updated.Model)
	assert.Equal(t, testPrompt, updated.SystemPrompt)

	rec = do(e, http.MethodPut, "/api/conversations/"+conv.ID, `{"system_prompt":"Be brief."}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Be brief.", decode[domain.Conversation](t, rec).SystemPrompt)

	rec = do(e, http.MethodDelete, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(e, http.MethodGet, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(e, http.MethodDelete, "/api/conversations/"+conv.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateConversationUnknownModel(t *testing.T) {
	e := newTestServer(t, nil)

	rec := do(e, http.MethodPost, "/api/conversations", `{"model":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_model", decode[domain.ErrorResponse](t, rec).Code)
}

func TestUpdateConversationUnknownModel(t *testing.T) {
	e := newTestServer(t, nil)
	rec := do(e, http.MethodPost, "/api/conversations", `{}`)
	conv := decode[domain.Conversation](t, rec)

	rec = do(e, http.MethodPatch, "/api/conversations/"+conv.ID, `{"model":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversationsPaging(t *testing.T) {
	e := newTestServer(t, nil)
	var ids []string
	for i := 0; i < 3; i++ {
		rec := do(e, http.MethodPost, "/api/conversations", `{}`)
		ids = append(ids, decode[domain.Conversation](t, rec).ID)
	}

	rec := do(e, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[domain.ConversationList](t, rec)
	assert.Equal(t, 100, list.Limit)
	assert.Equal(t, 0, list.Offset)
	require.Len(t, list.Conversations, 3)
	assert.Equal(t, ids[2], list.Conversations[0].ID)

	rec = do(e, http.MethodGet, "/api/conversations?limit=1&offset=1", "")
	list = decode[domain.ConversationList](t, rec)
	require.Len(t, list.Conversations, 1)
	assert.Equal(t, ids[1], list.Conversations[0].ID)

	rec = do(e, http.MethodGet, "/api/conversations?offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"conversations":[],"limit":100,"offset":10}`, rec.Body.String())
}

func TestListConversationsRejectsBadParams(t *testing.T) {
	e := newTestServer(t, nil)

	for _, query := range []string{"limit=0", "limit=1001", "limit=abc", "offset=-1", "offset=x"} {
		rec := do(e, http.MethodGet, "/api/conversations?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Equal(t, "invalid_request", decode[domain.ErrorResponse](t, rec).Code, query)
	}
}
