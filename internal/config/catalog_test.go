package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	data := []byte(`
models:
  - id: acme-large-v2
    name: Acme Large
    provider: acme
    description: test model
  - id: acme-small
    provider: acme
`)
	models, err := ParseCatalog(data)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "Acme Large", models[0].DisplayName)
	assert.Equal(t, "acme-small", models[1].DisplayName)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "models: []", "empty"},
		{"missing provider", "models:\n  - id: x\n", "required"},
		{"duplicate", "models:\n  - {id: x, provider: p}\n  - {id: x, provider: p}\n", "duplicate"},
		{"invalid yaml", "models: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestFromEnvLoadsCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - {id: mock-echo, provider: mock}\n"), 0o600))
	t.Setenv("MODEL_CATALOG_PATH", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.Len(t, cfg.Catalog, 1)
	assert.Equal(t, "mock-echo", cfg.Catalog[0].ID)
}

func TestDefaultCatalogIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range DefaultCatalog() {
		assert.False(t, seen[m.ID], m.ID)
		seen[m.ID] = true
	}
}
