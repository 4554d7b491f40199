package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messageColumns = `id, conversation_id, role, content, sources, metadata, created_at`

// MessageRepository appends to and reads conversation logs. Messages are
// never updated; seq preserves insertion order when timestamps collide.
type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	var sources []byte
	if len(m.Sources) > 0 {
		encoded, err := json.Marshal(m.Sources)
		if err != nil {
			return fmt.Errorf("encode sources: %w", err)
		}
		sources = encoded
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.ConversationID, m.Role, m.Content, sources, []byte(m.Metadata.OrEmpty()), m.CreatedAt,
	)
	return err
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListRecent returns the newest limit messages, oldest first.
func (r *MessageRepository) ListRecent(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		return []*domain.Message{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+` FROM (
			 SELECT `+messageColumns+`, seq
			 FROM messages
			 WHERE conversation_id = $1
			 ORDER BY seq DESC
			 LIMIT $2
		 ) recent
		 ORDER BY seq ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]*domain.Message, error) {
	messages := make([]*domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		var sources, metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &sources, &metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("decode sources of message %s: %w", m.ID, err)
			}
		}
		m.Metadata = domain.Metadata(metadata)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
