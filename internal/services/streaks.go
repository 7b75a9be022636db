package services

import (
	"context"
	"time"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

const streakPollInterval = 1 * time.Hour

type streakStore interface {
	ResetLapsedStreaks(ctx context.Context, before time.Time) ([]*models.StudyProgress, error)
}

// StreakScheduler periodically breaks the streaks of users who skipped a
// whole calendar day, so stored progress matches what StreakLapsed reports.
type StreakScheduler struct {
	repo     streakStore
	notify   notifier
	log      *logger.Logger
	stopChan chan struct{}
}

func NewStreakScheduler(repo streakStore, notify notifier, log *logger.Logger) *StreakScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &StreakScheduler{
		repo:     repo,
		notify:   notify,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

func (s *StreakScheduler) Start() {
	if s.repo == nil {
		return
	}
	go s.loop()
	s.log.Info("streak scheduler started")
}

func (s *StreakScheduler) Stop() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}
}

func (s *StreakScheduler) loop() {
	// Run on startup as well as by interval.
	s.RunOnce(context.Background(), time.Now().UTC())

	ticker := time.NewTicker(streakPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunOnce(context.Background(), time.Now().UTC())
		}
	}
}

// RunOnce resets lapsed streaks as of now and returns how many were reset.
func (s *StreakScheduler) RunOnce(ctx context.Context, now time.Time) int {
	reset, err := s.repo.ResetLapsedStreaks(ctx, lapsedCutoff(now))
	if err != nil {
		s.log.Error("streak reset failed", "error", err)
		return 0
	}
	for _, p := range reset {
		if s.notify == nil {
			break
		}
		if err := s.notify.Notify(ctx, p.UserID, models.WSMessage{Type: models.WSTypeProgressUpdated, Payload: p}); err != nil {
			s.log.Warn("failed to publish streak reset", "user_id", p.UserID, "error", err)
		}
	}
	if len(reset) > 0 {
		s.log.Info("reset lapsed streaks", "count", len(reset))
	}
	return len(reset)
}

// lapsedCutoff is the start of yesterday (UTC). A last study date before it
// means a full day was skipped.
func lapsedCutoff(now time.Time) time.Time {
	return truncateDay(now.UTC()).AddDate(0, 0, -1)
}
