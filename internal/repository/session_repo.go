package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashquiz-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Get(ctx context.Context, key models.SessionKey) (*models.SessionState, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		`SELECT state_json FROM quiz_sessions WHERE user_id = $1 AND set_id = $2 AND quiz_type = $3`,
		key.UserID, key.SetID, string(key.QuizType),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st := &models.SessionState{}
	if err := json.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("decode session %s/%s: %w", key.SetID, key.QuizType, err)
	}
	if st.QuizType == "" {
		st.QuizType = key.QuizType
	}
	return st, nil
}

// Save overwrites the whole stored state for key.
func (r *SessionRepo) Save(ctx context.Context, key models.SessionKey, st *models.SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session %s/%s: %w", key.SetID, key.QuizType, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_sessions (user_id, set_id, quiz_type, state_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, set_id, quiz_type) DO UPDATE
		SET state_json = EXCLUDED.state_json,
			updated_at = NOW()
	`, key.UserID, key.SetID, string(key.QuizType), raw)
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, key models.SessionKey) error {
	_, err := r.pool.Exec(ctx,
		"DELETE FROM quiz_sessions WHERE user_id = $1 AND set_id = $2 AND quiz_type = $3",
		key.UserID, key.SetID, string(key.QuizType),
	)
	return err
}
