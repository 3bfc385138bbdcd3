package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// SQLiteStore implements ConversationStore using SQLite. Timestamps are
// stored as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			system_prompt TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC, id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateConversation inserts a new conversation and any initial messages.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("conversation id is required")
	}
	metadata, err := marshalMetadata(conv.Metadata)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, title, system_prompt, model, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conv.ID, conv.Title, conv.SystemPrompt, conv.Model, metadata, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		for _, msg := range conv.Messages {
			if err := insertMessage(ctx, tx, conv.ID, msg); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetConversation retrieves a conversation and its messages.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var metadata sql.NullString
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, system_prompt, model, metadata, created_at, updated_at FROM conversations WHERE id = ?`,
		id).Scan(&conv.ID, &conv.Title, &conv.SystemPrompt, &conv.Model, &metadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.CreatedAt = fromNanos(createdAt)
	conv.UpdatedAt = fromNanos(updatedAt)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM messages WHERE conversation_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var ts int64
		if err := rows.Scan(&msg.Role, &msg.Content, &ts); err != nil {
			return nil, err
		}
		msg.CreatedAt = fromNanos(ts)
		conv.Messages = append(conv.Messages, msg)
	}
	return &conv, rows.Err()
}

// ListConversations returns summaries ordered by updated_at descending.
func (s *SQLiteStore) ListConversations(ctx context.Context, limit, offset int) ([]domain.ConversationSummary, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id ASC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	items := []domain.ConversationSummary{}
	for rows.Next() {
		var item domain.ConversationSummary
		var createdAt, updatedAt int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Model, &createdAt, &updatedAt, &item.MessageCount); err != nil {
			return nil, err
		}
		item.CreatedAt = fromNanos(createdAt)
		item.UpdatedAt = fromNanos(updatedAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateConversation applies patch and refreshes updated_at.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch, updatedAt time.Time) (*domain.Conversation, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET
			title = COALESCE(?, title),
			system_prompt = COALESCE(?, system_prompt),
			model = COALESCE(?, model),
			updated_at = ?
		WHERE id = ?`,
		nullable(patch.Title), nullable(patch.SystemPrompt), nullable(patch.Model), updatedAt.UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if err := requireAffected(res, id); err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, id)
}

// AppendMessage inserts msg and touches the conversation in one transaction.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, msg.CreatedAt.UnixNano(), id)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		if err := requireAffected(res, id); err != nil {
			return err
		}
		return insertMessage(ctx, tx, id, msg)
	})
}

// DeleteConversation removes the conversation and its messages.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete conversation: %w", err)
		}
		return requireAffected(res, id)
	})
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertMessage(ctx context.Context, tx *sql.Tx, id string, msg domain.Message) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		id, string(msg.Role), msg.Content, msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// nullable maps an absent patch field to NULL so COALESCE keeps the column.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
