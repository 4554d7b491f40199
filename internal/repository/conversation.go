package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationColumns = `id, session_id, title, metadata, created_at, updated_at`

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

// GetOrCreate returns the conversation bound to conv.SessionID, inserting conv
// when none exists. Concurrent callers with the same session all observe the
// same row.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, conv *domain.Conversation) (*domain.Conversation, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (`+conversationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (session_id) DO NOTHING`,
		conv.ID, conv.SessionID, nullableString(conv.Title), []byte(conv.Metadata.OrEmpty()), conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r.GetBySessionID(ctx, conv.SessionID)
}

func (r *ConversationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE session_id = $1`, sessionID)
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return r.getOne(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
}

// Touch bumps updated_at after a new exchange.
func (r *ConversationRepository) Touch(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE conversations SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) getOne(ctx context.Context, sql string, arg string) (*domain.Conversation, error) {
	var c domain.Conversation
	var title *string
	var metadata []byte
	err := r.db.QueryRow(ctx, sql, arg).Scan(&c.ID, &c.SessionID, &title, &metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	c.Title = stringOrEmpty(title)
	c.Metadata = domain.Metadata(metadata)
	return &c, nil
}
