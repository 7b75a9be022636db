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

type SetRepo struct {
	pool *pgxpool.Pool
}

func NewSetRepo(pool *pgxpool.Pool) *SetRepo {
	return &SetRepo{pool: pool}
}

// GetByID returns the set only if it belongs to userID.
func (r *SetRepo) GetByID(ctx context.Context, userID, setID string) (*models.Set, error) {
	s := &models.Set{}
	var content []byte
	query := `SELECT id, user_id, title, type, content_json, created_at, updated_at
		FROM study_sets WHERE id = $1 AND user_id = $2`

	err := r.pool.QueryRow(ctx, query, setID, userID).Scan(
		&s.ID, &s.UserID, &s.Title, &s.Type, &content, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var c models.SetContent
	if len(content) > 0 {
		if err := json.Unmarshal(content, &c); err != nil {
			return nil, fmt.Errorf("decode set %s content: %w", setID, err)
		}
	}
	s.ApplyContent(c)
	return s, nil
}

func (r *SetRepo) ListByUser(ctx context.Context, userID string) ([]*models.Set, error) {
	query := `SELECT id, user_id, title, type, created_at, updated_at
		FROM study_sets WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []*models.Set
	for rows.Next() {
		s := &models.Set{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Type, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sets = append(sets, s)
	}
	return sets, rows.Err()
}

// Upsert inserts the set or replaces its title, type and content.
func (r *SetRepo) Upsert(ctx context.Context, s *models.Set) error {
	content, err := json.Marshal(s.Content())
	if err != nil {
		return fmt.Errorf("encode set %s content: %w", s.ID, err)
	}

	query := `INSERT INTO study_sets (id, user_id, title, type, content_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
			type = EXCLUDED.type,
			content_json = EXCLUDED.content_json,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query, s.ID, s.UserID, s.Title, string(s.Type), content).
		Scan(&s.CreatedAt, &s.UpdatedAt)
}
