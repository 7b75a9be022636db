package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flashquiz-backend/internal/identity"
	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

const (
	defaultIdleTTL    = 30 * time.Minute
	evictPollInterval = time.Minute
)

type OpenOptions struct {
	// Fresh discards any stored session and starts over.
	Fresh bool
}

type OrchestratorConfig struct {
	Gateway       Gateway
	Saver         Saver
	Notifier      Notifier
	Sink          FinishSink
	Clock         Clock
	Shuffler      *Shuffler
	Logger        *logger.Logger
	FeedbackClear time.Duration
	IdleTTL       time.Duration
}

type liveSession struct {
	engine   Engine
	lastUsed time.Time
}

// Orchestrator owns the live engines, one per (user, set, quiz type), and
// decides whether an opened quiz resumes or starts fresh.
type Orchestrator struct {
	cfg OrchestratorConfig
	log *logger.Logger

	mu         sync.Mutex
	sessions   map[models.SessionKey]*liveSession
	identities map[string]*identity.Provider

	stopChan chan struct{}
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Saver == nil {
		cfg.Saver = NewDirectSaver(cfg.Gateway, cfg.Logger)
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	return &Orchestrator{
		cfg:        cfg,
		log:        cfg.Logger,
		sessions:   make(map[models.SessionKey]*liveSession),
		identities: make(map[string]*identity.Provider),
		stopChan:   make(chan struct{}),
	}
}

// ShouldResume reports whether a stored state can be picked up again as
// quizType.
func ShouldResume(st *models.SessionState, quizType models.QuizType) bool {
	if st == nil || len(st.Items) == 0 || st.Checkpointed() {
		return false
	}
	return st.QuizType == "" || st.QuizType == quizType
}

func (o *Orchestrator) provider(uid string) *identity.Provider {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.identities[uid]
	if !ok {
		p = identity.NewProvider()
		o.identities[uid] = p
	}
	return p
}

// Login signs uid in. Engines of that user that ran while signed out write
// their current state again.
func (o *Orchestrator) Login(uid string) {
	o.provider(uid).Login(uid)
}

// Logout signs uid out. Live engines keep running but nothing they do is
// saved until the next Login.
func (o *Orchestrator) Logout(uid string) {
	o.provider(uid).Logout()
}

func (o *Orchestrator) Open(ctx context.Context, key models.SessionKey, opts OpenOptions) (Engine, error) {
	if !key.QuizType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, key.QuizType)
	}
	prov := o.provider(key.UserID)
	prov.Login(key.UserID)

	var prev *models.SessionState
	if !opts.Fresh {
		st, err := o.cfg.Gateway.GetSessionState(ctx, key.UserID, key.SetID, key.QuizType)
		if err != nil {
			return nil, &LoadError{SetID: key.SetID, Err: err}
		}
		if ShouldResume(st, key.QuizType) {
			prev = st
		} else if st != nil {
			o.clearStored(ctx, key)
		}
	} else {
		o.Close(key)
		o.clearStored(ctx, key)
	}

	eng, err := New(key.QuizType, Deps{
		Gateway:       o.cfg.Gateway,
		Identity:      prov,
		Saver:         o.cfg.Saver,
		Notifier:      o.cfg.Notifier,
		Clock:         o.cfg.Clock,
		Shuffler:      o.cfg.Shuffler,
		Logger:        o.log.With("set_id", key.SetID),
		FeedbackClear: o.cfg.FeedbackClear,
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Start(ctx, key.SetID, prev); err != nil {
		eng.Close()
		return nil, err
	}

	o.mu.Lock()
	old := o.sessions[key]
	o.sessions[key] = &liveSession{engine: eng, lastUsed: o.cfg.Clock.Now()}
	o.mu.Unlock()
	if old != nil {
		old.engine.Close()
	}

	o.log.Info("quiz opened", "user_id", key.UserID, "set_id", key.SetID, "quiz_type", string(key.QuizType), "resumed", prev != nil)
	return eng, nil
}

func (o *Orchestrator) clearStored(ctx context.Context, key models.SessionKey) {
	o.cfg.Saver.Forget(key)
	if err := o.cfg.Gateway.ClearSessionState(ctx, key.UserID, key.SetID, key.QuizType); err != nil {
		werr := &StorageWriteError{Op: "clear session state", Key: key, Err: err}
		o.log.Warn("failed to clear stale session", "user_id", key.UserID, "error", werr)
	}
}

// Engine returns the live engine for key.
func (o *Orchestrator) Engine(key models.SessionKey) (Engine, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[key]
	if !ok {
		return nil, ErrNoSession
	}
	s.lastUsed = o.cfg.Clock.Now()
	return s.engine, nil
}

// Finish completes the quiz and hands a persisted result to the sink, which
// owns progress bookkeeping and the study_finished event.
func (o *Orchestrator) Finish(ctx context.Context, key models.SessionKey) (*Summary, error) {
	eng, err := o.Engine(key)
	if err != nil {
		return nil, err
	}
	sum, err := eng.Finish(ctx)
	if err != nil {
		return nil, err
	}
	if !sum.Persisted {
		return sum, nil
	}

	ev := models.FinishEvent{
		UserID:        key.UserID,
		SetID:         key.SetID,
		QuizType:      key.QuizType,
		HistoryID:     sum.HistoryID,
		Score:         sum.Score,
		StudyDuration: sum.StudyDuration,
		ItemsStudied:  sum.ItemsStudied,
		TotalItems:    sum.TotalItems,
		FinishedAt:    sum.Entry.Date,
	}
	if o.cfg.Sink != nil {
		if err := o.cfg.Sink.OnFinish(ctx, ev); err != nil {
			o.log.Error("failed to enqueue finish event", "user_id", key.UserID, "history_id", sum.HistoryID, "error", err)
		}
	}
	return sum, nil
}

// Clear closes the live engine, if any, and deletes the stored session.
func (o *Orchestrator) Clear(ctx context.Context, key models.SessionKey) error {
	o.Close(key)
	o.cfg.Saver.Forget(key)
	if err := o.cfg.Gateway.ClearSessionState(ctx, key.UserID, key.SetID, key.QuizType); err != nil {
		return &StorageWriteError{Op: "clear session state", Key: key, Err: err}
	}
	return nil
}

// Close drops the live engine for key. Its stored state is left alone.
func (o *Orchestrator) Close(key models.SessionKey) {
	o.mu.Lock()
	s, ok := o.sessions[key]
	delete(o.sessions, key)
	o.mu.Unlock()
	if ok {
		s.engine.Close()
	}
}

// Live reports how many engines are currently held.
func (o *Orchestrator) Live() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// EvictIdle closes engines untouched for longer than the idle TTL and
// returns how many were dropped.
func (o *Orchestrator) EvictIdle() int {
	cutoff := o.cfg.Clock.Now().Add(-o.cfg.IdleTTL)

	o.mu.Lock()
	var stale []Engine
	for key, s := range o.sessions {
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, s.engine)
			delete(o.sessions, key)
		}
	}
	o.mu.Unlock()

	for _, eng := range stale {
		eng.Close()
	}
	return len(stale)
}

func (o *Orchestrator) Start() {
	go o.loop()
	o.log.Info("quiz session eviction started", "idle_ttl", o.cfg.IdleTTL.String())
}

func (o *Orchestrator) Stop() {
	select {
	case <-o.stopChan:
		return
	default:
		close(o.stopChan)
	}

	o.mu.Lock()
	sessions := o.sessions
	o.sessions = make(map[models.SessionKey]*liveSession)
	o.mu.Unlock()
	for _, s := range sessions {
		s.engine.Close()
	}
}

func (o *Orchestrator) loop() {
	ticker := time.NewTicker(evictPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopChan:
			return
		case <-ticker.C:
			if n := o.EvictIdle(); n > 0 {
				o.log.Debug("evicted idle quiz sessions", "count", n)
			}
		}
	}
}
