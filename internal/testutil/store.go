// Package testutil holds fixtures shared by the gateway's tests.
package testutil

import (
	"testing"

	"github.com/spaceboy202105/chatbot-test/internal/repository"
)

// NewTestSQLiteStore opens an in-memory SQLite store closed at test cleanup.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
