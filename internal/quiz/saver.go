package quiz

import (
	"context"
	"slices"
	"sync"
	"time"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

// Saver mirrors session snapshots to the gateway. Save never blocks on I/O
// and never fails the calling transition.
type Saver interface {
	Save(key models.SessionKey, state *models.SessionState)
	// Forget drops anything not yet written for key and returns once no
	// write for it is in flight. Callers deleting the stored state call it
	// first so a late snapshot cannot bring the session back.
	Forget(key models.SessionKey)
}

const saveTimeout = 10 * time.Second

func writeState(gw Gateway, log *logger.Logger, key models.SessionKey, state *models.SessionState) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := gw.SaveSessionState(ctx, key.UserID, key.SetID, key.QuizType, state); err != nil {
		werr := &StorageWriteError{Op: "save session state", Key: key, Err: err}
		log.Warn("session state write failed", "user_id", key.UserID, "set_id", key.SetID, "error", werr)
	}
}

// DirectSaver writes synchronously on the caller's goroutine.
type DirectSaver struct {
	gw  Gateway
	log *logger.Logger
}

func NewDirectSaver(gw Gateway, log *logger.Logger) *DirectSaver {
	return &DirectSaver{gw: gw, log: log}
}

func (s *DirectSaver) Save(key models.SessionKey, state *models.SessionState) {
	writeState(s.gw, s.log, key, state)
}

func (s *DirectSaver) Forget(models.SessionKey) {}

// AsyncSaver writes from a single background goroutine. Snapshots queued for
// the same key collapse to the newest, so the last write always carries the
// latest state even when intermediate ones are skipped.
type AsyncSaver struct {
	gw  Gateway
	log *logger.Logger

	mu      sync.Mutex
	pending  map[models.SessionKey]*models.SessionState
	order    []models.SessionKey
	inflight *models.SessionKey
	idle     *sync.Cond

	wake     chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewAsyncSaver(gw Gateway, log *logger.Logger) *AsyncSaver {
	s := &AsyncSaver{
		gw:       gw,
		log:      log,
		pending:  make(map[models.SessionKey]*models.SessionState),
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

func (s *AsyncSaver) Start() {
	go s.loop()
}

// Stop drains everything queued so far and waits for the writes.
func (s *AsyncSaver) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *AsyncSaver) Save(key models.SessionKey, state *models.SessionState) {
	s.mu.Lock()
	if _, queued := s.pending[key]; !queued {
		s.order = append(s.order, key)
	}
	s.pending[key] = state
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *AsyncSaver) Forget(key models.SessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, queued := s.pending[key]; queued {
		delete(s.pending, key)
		s.order = slices.DeleteFunc(s.order, func(k models.SessionKey) bool { return k == key })
	}
	for s.inflight != nil && *s.inflight == key {
		s.idle.Wait()
	}
}

func (s *AsyncSaver) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.stopChan:
			s.drain()
			return
		case <-s.wake:
			s.drain()
		}
	}
}

func (s *AsyncSaver) drain() {
	for {
		s.mu.Lock()
		if len(s.order) == 0 {
			s.mu.Unlock()
			return
		}
		key := s.order[0]
		s.order = s.order[1:]
		state := s.pending[key]
		delete(s.pending, key)
		s.inflight = &key
		s.mu.Unlock()

		writeState(s.gw, s.log, key, state)

		s.mu.Lock()
		s.inflight = nil
		s.idle.Broadcast()
		s.mu.Unlock()
	}
}
