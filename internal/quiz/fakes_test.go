package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"flashquiz-backend/internal/identity"
	"flashquiz-backend/internal/models"
)

// ─── Fakes shared by the quiz tests ───

type fakeGateway struct {
	mu sync.Mutex

	sets    map[string]*models.Set
	states  map[models.SessionKey]*models.SessionState
	history []*models.StudyHistoryEntry

	getSetErr   error
	getStateErr error
	saveHistErr error

	saves  int
	clears int
}

func newFakeGateway(sets ...*models.Set) *fakeGateway {
	g := &fakeGateway{
		sets:   make(map[string]*models.Set),
		states: make(map[models.SessionKey]*models.SessionState),
	}
	for _, s := range sets {
		g.sets[s.ID] = s
	}
	return g
}

func (g *fakeGateway) GetSetByID(ctx context.Context, userID, setID string) (*models.Set, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getSetErr != nil {
		return nil, g.getSetErr
	}
	s, ok := g.sets[setID]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (g *fakeGateway) GetSessionState(ctx context.Context, userID, setID string, qt models.QuizType) (*models.SessionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getStateErr != nil {
		return nil, g.getStateErr
	}
	return g.states[models.SessionKey{UserID: userID, SetID: setID, QuizType: qt}], nil
}

func (g *fakeGateway) SaveSessionState(ctx context.Context, userID, setID string, qt models.QuizType, st *models.SessionState) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.saves++
	g.states[models.SessionKey{UserID: userID, SetID: setID, QuizType: qt}] = st
	return nil
}

func (g *fakeGateway) ClearSessionState(ctx context.Context, userID, setID string, qt models.QuizType) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clears++
	delete(g.states, models.SessionKey{UserID: userID, SetID: setID, QuizType: qt})
	return nil
}

func (g *fakeGateway) SaveStudyHistory(ctx context.Context, userID string, entry *models.StudyHistoryEntry) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveHistErr != nil {
		return "", g.saveHistErr
	}
	g.history = append(g.history, entry)
	return fmt.Sprintf("hist-%d", len(g.history)), nil
}

func (g *fakeGateway) state(key models.SessionKey) *models.SessionState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[key]
}

func (g *fakeGateway) historyLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.history)
}

// fakeClock fires due timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(target) {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()

		next.fn()
	}
}

type fakeSink struct {
	mu     sync.Mutex
	events []models.FinishEvent
}

func (s *fakeSink) OnFinish(ctx context.Context, ev models.FinishEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type fakeNotifier struct {
	msgs chan models.WSMessage
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{msgs: make(chan models.WSMessage, 32)}
}

func (n *fakeNotifier) Notify(ctx context.Context, userID string, msg models.WSMessage) error {
	n.msgs <- msg
	return nil
}

// ─── Fixtures ───

func qaSet() *models.Set {
	return &models.Set{
		ID:    "set-qa",
		Title: "Capitals",
		Type:  models.QuizTypeQA,
		QAItems: []models.QAItem{
			{Question: "Capital of France?", Answer: "Paris"},
			{Question: "Capital of Italy?", Answer: "Rome"},
			{Question: "Capital of Spain?", Answer: "Madrid"},
		},
	}
}

func flashcardSet() *models.Set {
	return &models.Set{
		ID:    "set-cards",
		Title: "Verbs",
		Type:  models.QuizTypeFlashcard,
		Cards: []models.Card{
			{Front: "ser", Back: "to be"},
			{Front: "tener", Back: "to have"},
		},
	}
}

func mcSet() *models.Set {
	return &models.Set{
		ID:    "set-mc",
		Title: "Geography",
		Type:  models.QuizTypeMultipleChoice,
		Questions: []models.Question{
			{
				Question: "Capital of France?",
				Choices: []models.Choice{
					{Text: "Paris", IsCorrect: true},
					{Text: "London"},
					{Text: "Berlin"},
				},
			},
		},
	}
}

func classificationSet() *models.Set {
	return &models.Set{
		ID:    "set-sort",
		Title: "Produce",
		Type:  models.QuizTypeClassification,
		Categories: []models.Category{
			{Name: "Fruit", Items: []string{"apple", "banana"}, Image: "https://cdn.example.com/fruit.png"},
			{Name: "Vegetable", Items: []string{"carrot"}},
		},
	}
}

func newTestDeps(gw Gateway, uid string) Deps {
	var ident *identity.Provider
	if uid == "" {
		ident = identity.NewProvider()
	} else {
		ident = identity.LoggedIn(uid)
	}
	return Deps{
		Gateway:  gw,
		Identity: ident,
		Clock:    newFakeClock(),
		Shuffler: NewShuffler(42),
	}
}

func choiceIndex(item models.QuizItem, text string) int {
	for i, c := range item.Choices {
		if c.Text == text {
			return i
		}
	}
	return -1
}
