package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

type progressStore interface {
	Get(ctx context.Context, userID string) (*models.StudyProgress, error)
	Update(ctx context.Context, userID string, fn func(p *models.StudyProgress) error) (*models.StudyProgress, error)
}

type notifier interface {
	Notify(ctx context.Context, userID string, msg models.WSMessage) error
}

// ProgressService folds finished quizzes into the per-user totals and
// streaks.
type ProgressService struct {
	repo   progressStore
	notify notifier
	log    *logger.Logger
}

func NewProgressService(repo progressStore, notify notifier, log *logger.Logger) *ProgressService {
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressService{repo: repo, notify: notify, log: log}
}

func (s *ProgressService) Get(ctx context.Context, userID string) (*models.StudyProgress, error) {
	return s.repo.Get(ctx, userID)
}

// Handle applies ev and tells the user's clients about the new totals.
func (s *ProgressService) Handle(ctx context.Context, ev models.FinishEvent) (*models.StudyProgress, error) {
	updated, err := s.repo.Update(ctx, ev.UserID, func(p *models.StudyProgress) error {
		ApplyFinish(p, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update progress for %s: %w", ev.HistoryID, err)
	}

	if s.notify == nil {
		return updated, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.notify.Notify(gctx, ev.UserID, models.WSMessage{
			Type:    models.WSTypeProgressUpdated,
			Payload: updated,
		})
	})
	g.Go(func() error {
		return s.notify.Notify(gctx, ev.UserID, models.WSMessage{
			Type: models.WSTypeStudyFinished,
			Payload: models.StudyFinished{
				SetID:     ev.SetID,
				QuizType:  ev.QuizType,
				HistoryID: ev.HistoryID,
				Score:     ev.Score,
			},
		})
	})
	if err := g.Wait(); err != nil {
		s.log.Warn("failed to publish progress update", "user_id", ev.UserID, "error", err)
	}
	return updated, nil
}

// ApplyFinish adds one finished quiz to p. Streaks count consecutive UTC
// calendar days with at least one finished quiz.
func ApplyFinish(p *models.StudyProgress, ev models.FinishEvent) {
	finished := ev.FinishedAt.UTC()
	if finished.IsZero() {
		finished = time.Now().UTC()
	}
	day := truncateDay(finished)

	prevSessions := p.SessionsCompleted
	p.TotalStudySeconds += max(ev.StudyDuration, 0)
	p.ItemsStudied += max(ev.ItemsStudied, 0)
	p.SessionsCompleted++
	avg := (p.AverageScore*float64(prevSessions) + float64(ev.Score)) / float64(p.SessionsCompleted)
	p.AverageScore = math.Round(avg*100) / 100

	switch {
	case p.LastStudyDate == nil:
		p.CurrentStreak = 1
	default:
		last := truncateDay(p.LastStudyDate.UTC())
		gap := int(day.Sub(last).Hours() / 24)
		switch {
		case gap <= 0:
			// same day, or an event older than the last one
			if p.CurrentStreak == 0 {
				p.CurrentStreak = 1
			}
		case gap == 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
		}
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	if p.LastStudyDate == nil || finished.After(*p.LastStudyDate) {
		p.LastStudyDate = &finished
	}
}

// StreakLapsed reports whether a streak last extended on last is broken as of
// now.
func StreakLapsed(last *time.Time, now time.Time) bool {
	if last == nil {
		return false
	}
	gap := truncateDay(now.UTC()).Sub(truncateDay(last.UTC())).Hours() / 24
	return gap > 1
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
