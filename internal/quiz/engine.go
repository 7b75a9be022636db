package quiz

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"flashquiz-backend/internal/identity"
	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/models"
)

type Phase int

const (
	PhaseLoading Phase = iota
	PhaseActive
	PhaseReviewing
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseActive:
		return "active"
	case PhaseReviewing:
		return "reviewing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "loading":
		*p = PhaseLoading
	case "active":
		*p = PhaseActive
	case "reviewing":
		*p = PhaseReviewing
	case "finished":
		*p = PhaseFinished
	default:
		return fmt.Errorf("unknown phase %q", text)
	}
	return nil
}

// Input carries one user answer. Which fields matter depends on the quiz
// type: Known for flashcards, Text for QA, Selected for multiple-choice and
// ItemID/CategoryID for a classification drop.
type Input struct {
	Text       string `json:"answer,omitempty"`
	Selected   []int  `json:"selected,omitempty"`
	Known      *bool  `json:"known,omitempty"`
	ItemID     string `json:"itemId,omitempty"`
	CategoryID string `json:"categoryId,omitempty"`
}

type Summary struct {
	Score         int                       `json:"score"`
	StudyDuration int                       `json:"studyDuration"`
	ItemsStudied  int                       `json:"itemsStudied"`
	TotalItems    int                       `json:"totalItems"`
	HistoryID     string                    `json:"historyId,omitempty"`
	Persisted     bool                      `json:"persisted"`
	Entry         *models.StudyHistoryEntry `json:"entry"`
}

// Engine is the state machine behind one quiz screen.
type Engine interface {
	Type() models.QuizType
	Phase() Phase
	Start(ctx context.Context, setID string, prev *models.SessionState) error
	Answer(ctx context.Context, in Input) (bool, error)
	Advance(ctx context.Context) error
	Shuffle(ctx context.Context) error
	Restart(ctx context.Context) error
	Finish(ctx context.Context) (*Summary, error)
	Snapshot() *models.SessionState
	View() View
	Close()
}

type Deps struct {
	Gateway       Gateway
	Identity      Identity
	Saver         Saver
	Notifier      Notifier
	Clock         Clock
	Shuffler      *Shuffler
	Logger        *logger.Logger
	FeedbackClear time.Duration
}

// New returns an engine in PhaseLoading for quizType.
func New(quizType models.QuizType, deps Deps) (Engine, error) {
	switch quizType {
	case models.QuizTypeFlashcard, models.QuizTypeQA, models.QuizTypeMultipleChoice:
		return NewSession(quizType, deps), nil
	case models.QuizTypeClassification:
		return NewClassifier(deps), nil
	}
	return nil, fmt.Errorf("unknown quiz type %q", quizType)
}

// core is the bookkeeping every engine shares: set, items, results, studied
// set, timing and persistence.
type core struct {
	mu   sync.Mutex
	deps Deps
	log  *logger.Logger

	quizType models.QuizType
	phase    Phase
	setID    string
	set      *models.Set

	items       []models.QuizItem
	results     []*bool
	studied     []string
	studiedSet  map[string]struct{}
	prevStudied int
	startTime   time.Time

	finalScore int
	finishedAt time.Time

	unsubscribe func()
	snapshot    func() *models.SessionState
}

func (c *core) init(quizType models.QuizType, deps Deps) {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Identity == nil {
		deps.Identity = identity.NewProvider()
	}
	if deps.Saver == nil {
		deps.Saver = NewDirectSaver(deps.Gateway, deps.Logger)
	}
	c.deps = deps
	c.quizType = quizType
	c.phase = PhaseLoading
	c.log = deps.Logger.With("quiz_type", string(quizType))
	c.studiedSet = make(map[string]struct{})
}

func (c *core) Type() models.QuizType { return c.quizType }

func (c *core) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *core) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (c *core) Snapshot() *models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *core) userID() (string, bool) {
	u := c.deps.Identity.CurrentUser()
	if u == nil || u.UID == "" {
		return "", false
	}
	return u.UID, true
}

func (c *core) loadSet(ctx context.Context, setID string) (*models.Set, error) {
	uid, ok := c.userID()
	if !ok {
		return nil, &LoadError{SetID: setID, Err: ErrNotAuthenticated}
	}
	set, err := c.deps.Gateway.GetSetByID(ctx, uid, setID)
	if err != nil {
		return nil, &LoadError{SetID: setID, Err: err}
	}
	return set, nil
}

// watchIdentityLocked re-mirrors the current state when a user signs in, so
// transitions made while signed out are not lost.
func (c *core) watchIdentityLocked() {
	if c.unsubscribe != nil {
		return
	}
	c.unsubscribe = c.deps.Identity.Subscribe(func(u *identity.User) {
		if u == nil {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.phase == PhaseLoading {
			return
		}
		c.persistLocked()
	})
}

func (c *core) resetProgressLocked(items []models.QuizItem) {
	c.items = items
	c.results = make([]*bool, len(items))
	c.studied = nil
	c.studiedSet = make(map[string]struct{})
	c.prevStudied = 0
	c.startTime = c.deps.Clock.Now()
	c.finalScore = 0
	c.finishedAt = time.Time{}
}

func (c *core) hydrateProgressLocked(prev *models.SessionState) {
	c.items = slices.Clone(prev.Items)
	c.results = slices.Clone(prev.Results)
	c.studied = nil
	c.studiedSet = make(map[string]struct{})
	for _, id := range prev.StudiedItems {
		c.markStudiedLocked(id)
	}
	c.prevStudied = len(c.studied)
	c.startTime = prev.StartTime
	if c.startTime.IsZero() {
		c.startTime = c.deps.Clock.Now()
	}
	c.finalScore = 0
	c.finishedAt = time.Time{}
}

func (c *core) markStudiedLocked(id string) {
	if _, ok := c.studiedSet[id]; ok {
		return
	}
	c.studiedSet[id] = struct{}{}
	c.studied = append(c.studied, id)
}

func (c *core) answeredCountLocked() int {
	n := 0
	for _, r := range c.results {
		if r != nil {
			n++
		}
	}
	return n
}

func (c *core) baseSnapshotLocked() *models.SessionState {
	st := &models.SessionState{
		QuizType:     c.quizType,
		Items:        slices.Clone(c.items),
		Results:      slices.Clone(c.results),
		StudiedItems: slices.Clone(c.studied),
		StartTime:    c.startTime,
	}
	if c.phase == PhaseFinished {
		score := c.finalScore
		date := c.finishedAt
		st.IsFinished = true
		st.Score = &score
		st.CompletedItems = c.answeredCountLocked()
		st.LastStudyDate = &date
	}
	return st
}

// persistLocked hands the current snapshot to the saver. Without a signed-in
// user the write is skipped.
func (c *core) persistLocked() {
	uid, ok := c.userID()
	if !ok {
		c.log.Debug("skipping session save", "set_id", c.setID, "error", ErrNotAuthenticated)
		return
	}
	key := models.SessionKey{UserID: uid, SetID: c.setID, QuizType: c.quizType}
	c.deps.Saver.Save(key, c.snapshot())
}

func (c *core) notify(msg models.WSMessage) {
	if c.deps.Notifier == nil {
		return
	}
	uid, ok := c.userID()
	if !ok {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.deps.Notifier.Notify(ctx, uid, msg); err != nil {
			c.log.Warn("failed to publish quiz event", "type", msg.Type, "error", err)
		}
	}()
}

// completeLocked moves the engine to PhaseFinished and records the history
// entry plus the finished checkpoint.
func (c *core) completeLocked(ctx context.Context, score int, correct, incorrect []models.ItemOutcome) *Summary {
	now := c.deps.Clock.Now()
	duration := int(now.Sub(c.startTime).Seconds())
	if duration < 0 {
		duration = 0
	}
	delta := len(c.studied) - c.prevStudied
	if delta < 0 {
		delta = 0
	}
	if correct == nil {
		correct = []models.ItemOutcome{}
	}
	if incorrect == nil {
		incorrect = []models.ItemOutcome{}
	}

	title := ""
	if c.set != nil {
		title = c.set.Title
	}
	entry := &models.StudyHistoryEntry{
		SetID:          c.setID,
		Title:          title,
		Type:           c.quizType,
		Score:          score,
		Date:           now,
		StudyDuration:  duration,
		ItemsStudied:   delta,
		CorrectItems:   correct,
		IncorrectItems: incorrect,
		TotalItems:     len(c.items),
	}
	sum := &Summary{
		Score:         score,
		StudyDuration: duration,
		ItemsStudied:  delta,
		TotalItems:    len(c.items),
		Entry:         entry,
	}

	c.phase = PhaseFinished
	c.finalScore = score
	c.finishedAt = now

	uid, ok := c.userID()
	if !ok {
		c.log.Warn("quiz finished without a signed-in user, result not saved", "set_id", c.setID, "score", score)
		return sum
	}

	id, err := c.deps.Gateway.SaveStudyHistory(ctx, uid, entry)
	if err != nil {
		werr := &StorageWriteError{
			Op:  "save study history",
			Key: models.SessionKey{UserID: uid, SetID: c.setID, QuizType: c.quizType},
			Err: err,
		}
		c.log.Error("study history write failed", "user_id", uid, "set_id", c.setID, "error", werr)
	} else {
		entry.ID = id
		sum.HistoryID = id
		sum.Persisted = true
	}

	c.persistLocked()
	return sum
}

func outcome(item models.QuizItem) models.ItemOutcome {
	return models.ItemOutcome{ItemID: item.ID, Content: item.Content}
}

func cloneStringSlices(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func cloneIntSlices(m map[string][]int) map[string][]int {
	out := make(map[string][]int, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}
