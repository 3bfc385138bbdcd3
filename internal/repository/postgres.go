package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spaceboy202105/chatbot-test/internal/domain"
)

// Querier abstracts the pgx query methods needed by PostgresStore.
// *pgxpool.Pool and pgxmock pools both satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// postgresSchema creates the tables PostgresStore needs.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations (updated_at DESC, id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, seq)`,
}

// PostgresStore implements ConversationStore on PostgreSQL via pgx.
type PostgresStore struct {
	db    Querier
	close func()
}

// NewPostgresStore wraps an existing pgx executor.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore connects a pool to dsn and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	store := &PostgresStore{db: pool, close: pool.Close}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the conversation tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return nil
}

// Close closes the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

// CreateConversation inserts a new conversation. Initial messages are appended in order.
func (s *PostgresStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	if conv == nil || conv.ID == "" {
		return fmt.Errorf("conversation id is required")
	}
	var metadata []byte
	if len(conv.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(conv.Metadata); err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	if _, err := s.db.Exec(ctx,
		`INSERT INTO conversations (id, title, system_prompt, model, metadata, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		conv.ID, conv.Title, conv.SystemPrompt, conv.Model, metadata, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	for _, msg := range conv.Messages {
		if err := s.AppendMessage(ctx, conv.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

// GetConversation retrieves a conversation and its messages.
func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	var metadata []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, title, system_prompt, model, metadata, created_at, updated_at FROM conversations WHERE id = $1`,
		id).Scan(&conv.ID, &conv.Title, &conv.SystemPrompt, &conv.Model, &metadata, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	conv.UpdatedAt = conv.UpdatedAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &conv.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	rows, err := s.db.Query(ctx,
		`SELECT role, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	conv.Messages = []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var role string
		if err := rows.Scan(&role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		msg.CreatedAt = msg.CreatedAt.UTC()
		conv.Messages = append(conv.Messages, msg)
	}
	return &conv, rows.Err()
}

// ListConversations returns summaries ordered by updated_at descending.
func (s *PostgresStore) ListConversations(ctx context.Context, limit, offset int) ([]domain.ConversationSummary, error) {
	if offset < 0 {
		offset = 0
	}
	var limitArg any
	if limit >= 0 {
		limitArg = limit
	}
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.title, c.model, c.created_at, c.updated_at,
			(SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.id ASC
		LIMIT $1 OFFSET $2`, limitArg, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	items := []domain.ConversationSummary{}
	for rows.Next() {
		var item domain.ConversationSummary
		var count int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Model, &item.CreatedAt, &item.UpdatedAt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		item.UpdatedAt = item.UpdatedAt.UTC()
		item.MessageCount = int(count)
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateConversation applies patch and refreshes updated_at.
func (s *PostgresStore) UpdateConversation(ctx context.Context, id string, patch domain.ConversationPatch, updatedAt time.Time) (*domain.Conversation, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE conversations SET
			title = COALESCE($2, title),
			system_prompt = COALESCE($3, system_prompt),
			model = COALESCE($4, model),
			updated_at = $5
		WHERE id = $1`,
		id, nullable(patch.Title), nullable(patch.SystemPrompt), nullable(patch.Model), updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return s.GetConversation(ctx, id)
}

// AppendMessage touches the conversation and inserts msg in one statement.
func (s *PostgresStore) AppendMessage(ctx context.Context, id string, msg domain.Message) error {
	tag, err := s.db.Exec(ctx,
		`WITH touched AS (
			UPDATE conversations SET updated_at = $4 WHERE id = $1 RETURNING id
		)
		INSERT INTO messages (conversation_id, role, content, created_at)
		SELECT id, $2, $3, $4 FROM touched`,
		id, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DeleteConversation removes the conversation; messages cascade.
func (s *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("conversation %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
