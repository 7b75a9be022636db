package services

import (
	"context"
	"errors"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
	"flashquiz-backend/internal/repository"
)

type setReader interface {
	GetByID(ctx context.Context, userID, setID string) (*models.Set, error)
}

type sessionStore interface {
	Get(ctx context.Context, key models.SessionKey) (*models.SessionState, error)
	Save(ctx context.Context, key models.SessionKey, st *models.SessionState) error
	Delete(ctx context.Context, key models.SessionKey) error
}

type sessionCache interface {
	Get(ctx context.Context, key models.SessionKey) (*models.SessionState, error)
	Set(ctx context.Context, key models.SessionKey, st *models.SessionState) error
	Delete(ctx context.Context, key models.SessionKey) error
}

type historyWriter interface {
	Create(ctx context.Context, userID string, e *models.StudyHistoryEntry) error
}

type imageResolver interface {
	PublicURL(key string) string
}

// QuizStore is the persistence behind the quiz engines: sets and history in
// Postgres, session snapshots in Postgres with a Redis read-through cache.
type QuizStore struct {
	sets     setReader
	sessions sessionStore
	cache    sessionCache
	history  historyWriter
	images   imageResolver
	log      *logger.Logger
}

func NewQuizStore(sets setReader, sessions sessionStore, cache sessionCache, history historyWriter, images imageResolver, log *logger.Logger) *QuizStore {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizStore{
		sets:     sets,
		sessions: sessions,
		cache:    cache,
		history:  history,
		images:   images,
		log:      log,
	}
}

func (s *QuizStore) GetSetByID(ctx context.Context, userID, setID string) (*models.Set, error) {
	set, err := s.sets.GetByID(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	if s.images != nil {
		resolveImages(set, s.images.PublicURL)
	}
	return set, nil
}

func resolveImages(set *models.Set, resolve func(string) string) {
	for i := range set.Cards {
		set.Cards[i].Image = resolve(set.Cards[i].Image)
	}
	for i := range set.QAItems {
		set.QAItems[i].Image = resolve(set.QAItems[i].Image)
	}
	for i := range set.Questions {
		set.Questions[i].Image = resolve(set.Questions[i].Image)
	}
	for i := range set.Categories {
		set.Categories[i].Image = resolve(set.Categories[i].Image)
	}
}

// GetSessionState returns nil without an error when nothing is stored.
func (s *QuizStore) GetSessionState(ctx context.Context, userID, setID string, qt models.QuizType) (*models.SessionState, error) {
	key := models.SessionKey{UserID: userID, SetID: setID, QuizType: qt}

	if s.cache != nil {
		st, err := s.cache.Get(ctx, key)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("session cache read failed", "user_id", userID, "set_id", setID, "error", err)
		}
	}

	st, err := s.sessions.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, st); err != nil {
			s.log.Warn("session cache fill failed", "user_id", userID, "error", err)
		}
	}
	return st, nil
}

func (s *QuizStore) SaveSessionState(ctx context.Context, userID, setID string, qt models.QuizType, st *models.SessionState) error {
	key := models.SessionKey{UserID: userID, SetID: setID, QuizType: qt}
	if err := s.sessions.Save(ctx, key, st); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, st); err != nil {
			// a stale cache entry would shadow the write
			_ = s.cache.Delete(ctx, key)
			s.log.Warn("session cache write failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (s *QuizStore) ClearSessionState(ctx context.Context, userID, setID string, qt models.QuizType) error {
	key := models.SessionKey{UserID: userID, SetID: setID, QuizType: qt}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("session cache delete failed", "user_id", userID, "error", err)
		}
	}
	return s.sessions.Delete(ctx, key)
}

func (s *QuizStore) SaveStudyHistory(ctx context.Context, userID string, entry *models.StudyHistoryEntry) (string, error) {
	if err := s.history.Create(ctx, userID, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}
