package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashquiz-backend/internal/models"
)

type ProgressRepo struct {
	pool *pgxpool.Pool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

const progressColumns = `user_id, total_study_seconds, items_studied, sessions_completed,
	current_streak, longest_streak, average_score, last_study_date, updated_at`

func scanProgress(row pgx.Row) (*models.StudyProgress, error) {
	p := &models.StudyProgress{}
	err := row.Scan(&p.UserID, &p.TotalStudySeconds, &p.ItemsStudied, &p.SessionsCompleted,
		&p.CurrentStreak, &p.LongestStreak, &p.AverageScore, &p.LastStudyDate, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) Get(ctx context.Context, userID string) (*models.StudyProgress, error) {
	p, err := scanProgress(r.pool.QueryRow(ctx,
		"SELECT "+progressColumns+" FROM study_progress WHERE user_id = $1", userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.StudyProgress{UserID: userID}, nil
	}
	return p, err
}

// Update applies fn to the user's progress row under a row lock and writes
// the result back in the same transaction.
func (r *ProgressRepo) Update(ctx context.Context, userID string, fn func(p *models.StudyProgress) error) (*models.StudyProgress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin progress tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"INSERT INTO study_progress (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID); err != nil {
		return nil, fmt.Errorf("ensure progress row: %w", err)
	}

	p, err := scanProgress(tx.QueryRow(ctx,
		"SELECT "+progressColumns+" FROM study_progress WHERE user_id = $1 FOR UPDATE", userID))
	if err != nil {
		return nil, fmt.Errorf("lock progress row: %w", err)
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE study_progress
		SET total_study_seconds = $2,
			items_studied = $3,
			sessions_completed = $4,
			current_streak = $5,
			longest_streak = $6,
			average_score = $7,
			last_study_date = $8,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`, userID, p.TotalStudySeconds, p.ItemsStudied, p.SessionsCompleted,
		p.CurrentStreak, p.LongestStreak, p.AverageScore, p.LastStudyDate,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("write progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit progress: %w", err)
	}
	return p, nil
}

// ResetLapsedStreaks zeroes the current streak of every user whose last
// finished quiz is older than before and returns the updated rows.
func (r *ProgressRepo) ResetLapsedStreaks(ctx context.Context, before time.Time) ([]*models.StudyProgress, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE study_progress
		SET current_streak = 0, updated_at = NOW()
		WHERE current_streak > 0
		  AND last_study_date < $1
		RETURNING `+progressColumns, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.StudyProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
