package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"flashquiz-backend/internal/models"
)

type HistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

// Create appends entry and sets its ID. History rows are never updated.
func (r *HistoryRepo) Create(ctx context.Context, userID string, e *models.StudyHistoryEntry) error {
	e.ID = uuid.New().String()
	correctBytes, _ := json.Marshal(e.CorrectItems)
	incorrectBytes, _ := json.Marshal(e.IncorrectItems)
	if e.CorrectItems == nil {
		correctBytes = []byte("[]")
	}
	if e.IncorrectItems == nil {
		incorrectBytes = []byte("[]")
	}

	query := `INSERT INTO study_history (id, user_id, set_id, title, type, score, study_date,
			study_duration, items_studied, total_items, correct_items_json, incorrect_items_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, userID, e.SetID, e.Title, string(e.Type), e.Score, e.Date,
		e.StudyDuration, e.ItemsStudied, e.TotalItems, correctBytes, incorrectBytes,
	)
	return err
}

func (r *HistoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.StudyHistoryEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM study_history WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, set_id, title, type, score, study_date, study_duration, items_studied, total_items,
			correct_items_json, incorrect_items_json
		FROM study_history WHERE user_id = $1
		ORDER BY study_date DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []*models.StudyHistoryEntry{}
	for rows.Next() {
		e := &models.StudyHistoryEntry{}
		var correct, incorrect []byte
		err := rows.Scan(&e.ID, &e.SetID, &e.Title, &e.Type, &e.Score, &e.Date, &e.StudyDuration,
			&e.ItemsStudied, &e.TotalItems, &correct, &incorrect)
		if err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal(correct, &e.CorrectItems)
		_ = json.Unmarshal(incorrect, &e.IncorrectItems)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
