package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

func TestRegistryResolveByProviderFamily(t *testing.T) {
	reg := NewRegistry()
	acme := NewMockAdapter("acme", 0)
	require.NoError(t, reg.Register("acme", acme))
	reg.Seal()

	got, err := reg.Resolve("acme-large-v2")
	require.NoError(t, err)
	assert.Same(t, acme, got)

	got, err = reg.Resolve("acme")
	require.NoError(t, err)
	assert.Same(t, acme, got)

	_, err = reg.Resolve("unknown-x")
	assert.ErrorIs(t, err, domain.ErrUnsupportedModel)

	_, err = reg.Resolve("acmeish-1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedModel)

	_, err = reg.Resolve("")
	assert.ErrorIs(t, err, domain.ErrNoModelSpecified)
}

func TestRegistryResolvePrefersCatalogAndLongestKey(t *testing.T) {
	reg := NewRegistry()
	openai := NewMockAdapter("openai", 0)
	special := NewMockAdapter("special", 0)
	require.NoError(t, reg.Register("openai", openai))
	require.NoError(t, reg.Register("gpt", openai))
	require.NoError(t, reg.Register("gpt-4o", special))
	require.NoError(t, reg.AddModel(domain.ModelInfo{ID: "gpt-4o-mini", Provider: "openai"}))

	got, err := reg.Resolve("gpt-4o-mini")
	require.NoError(t, err)
	assert.Same(t, openai, got, "catalog ids win over prefixes")

	got, err = reg.Resolve("gpt-4o-2024")
	require.NoError(t, err)
	assert.Same(t, special, got)

	got, err = reg.Resolve("gpt-3.5-turbo")
	require.NoError(t, err)
	assert.Same(t, openai, got)
}

func TestRegistryCatalogOrdering(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("openai", NewMockAdapter("openai", 0)))
	require.NoError(t, reg.Register("google", NewMockAdapter("google", 0)))

	models := []domain.ModelInfo{
		{ID: "gpt-3.5-turbo", Provider: "openai"},
		{ID: "gemini-pro", Provider: "google"},
		{ID: "gpt-4", Provider: "openai"},
	}
	for _, m := range models {
		require.NoError(t, reg.AddModel(m))
	}
	reg.Seal()

	assert.Equal(t, models, reg.ListModels())
	assert.Equal(t, []domain.ModelInfo{models[0], models[2]}, reg.ListByProvider("openai"))
	assert.Empty(t, reg.ListByProvider("anthropic"))

	m, err := reg.GetModel("gemini-pro")
	require.NoError(t, err)
	assert.Equal(t, "google", m.Provider)
	_, err = reg.GetModel("nope")
	assert.ErrorIs(t, err, domain.ErrUnsupportedModel)

	// Returned slices are copies.
	list := reg.ListModels()
	list[0].ID = "changed"
	assert.Equal(t, "gpt-3.5-turbo", reg.ListModels()[0].ID)
}

func TestRegistryRegistrationErrors(t *testing.T) {
	reg := NewRegistry()
	mock := NewMockAdapter("mock", 0)

	assert.Error(t, reg.Register("", mock))
	assert.Error(t, reg.Register("mock", nil))
	require.NoError(t, reg.Register("mock", mock))
	assert.Error(t, reg.Register("mock", mock))
	assert.Error(t, reg.AddModel(domain.ModelInfo{ID: "x", Provider: "unregistered"}))
	require.NoError(t, reg.AddModel(domain.ModelInfo{ID: "mock-1", Provider: "mock"}))
	assert.Error(t, reg.AddModel(domain.ModelInfo{ID: "mock-1", Provider: "mock"}))

	reg.Seal()
	assert.ErrorIs(t, reg.Register("other", mock), ErrRegistrySealed)
	assert.ErrorIs(t, reg.AddModel(domain.ModelInfo{ID: "mock-2", Provider: "mock"}), ErrRegistrySealed)
}

func TestRegistryDescribeDeduplicatesAliases(t *testing.T) {
	reg := NewRegistry()
	openai := NewMockAdapter("openai", 0)
	require.NoError(t, reg.Register("openai", openai))
	require.NoError(t, reg.Register("gpt", openai))
	require.NoError(t, reg.Register("qwen", NewMockAdapter("qwen", 0)))

	infos := reg.Describe()
	require.Len(t, infos, 2)
	assert.Equal(t, "openai", infos[0].Provider)
	assert.Equal(t, "qwen", infos[1].Provider)
}
