package quiz

import (
	"context"

	"flashquiz-backend/internal/models"
)

// Session is the sequential engine used by flashcard, QA and
// multiple-choice quizzes. The learner walks items one at a time.
type Session struct {
	core
	strategy strategy

	currentIndex int
	isLastItem   bool
	flipped      bool

	// QA review of incorrect items
	reviewQueue []int
	reviewPos   int

	selections map[string][]int
}

func NewSession(quizType models.QuizType, deps Deps) *Session {
	s := &Session{strategy: strategies[quizType]}
	s.init(quizType, deps)
	s.selections = make(map[string][]int)
	s.snapshot = s.snapshotLocked
	return s
}

func (s *Session) Start(ctx context.Context, setID string, prev *models.SessionState) error {
	set, err := s.loadSet(ctx, setID)
	if err != nil {
		return err
	}
	m, err := ToQuizItems(set, s.quizType, s.deps.Shuffler)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setID = setID
	s.set = set
	if s.resumable(prev, len(m.Items)) {
		s.hydrateLocked(prev)
	} else {
		if prev != nil {
			s.log.Info("discarding stale session state", "set_id", setID)
		}
		s.freshLocked(m.Items)
	}
	s.watchIdentityLocked()
	s.persistLocked()
	return nil
}

func (s *Session) resumable(prev *models.SessionState, itemCount int) bool {
	if prev == nil {
		return false
	}
	if prev.QuizType != "" && prev.QuizType != s.quizType {
		return false
	}
	return len(prev.Items) == itemCount && len(prev.Results) == len(prev.Items)
}

func (s *Session) freshLocked(items []models.QuizItem) {
	s.resetProgressLocked(shuffleWith(s.deps.Shuffler, items))
	s.phase = PhaseActive
	s.currentIndex = 0
	s.isLastItem = false
	s.flipped = false
	s.reviewQueue = nil
	s.reviewPos = 0
	s.selections = make(map[string][]int)
}

// hydrateLocked restores prev verbatim, including its shuffled order.
func (s *Session) hydrateLocked(prev *models.SessionState) {
	s.hydrateProgressLocked(prev)
	s.phase = PhaseActive
	s.currentIndex = prev.CurrentIndex
	if s.currentIndex >= len(s.items) {
		s.currentIndex = len(s.items) - 1
	}
	if s.currentIndex < 0 {
		s.currentIndex = 0
	}
	s.isLastItem = prev.IsLastItem
	s.flipped = false
	s.reviewQueue = nil
	s.reviewPos = 0
	s.selections = make(map[string][]int)

	switch {
	case prev.Flashcard != nil:
		s.flipped = prev.Flashcard.IsFlipped
	case prev.QA != nil && prev.QA.IsReviewing && len(prev.QA.ReviewQueue) > 0:
		s.phase = PhaseReviewing
		s.reviewQueue = append([]int(nil), prev.QA.ReviewQueue...)
		s.reviewPos = min(max(prev.QA.ReviewPosition, 0), len(s.reviewQueue)-1)
	case prev.MultipleChoice != nil:
		s.selections = cloneIntSlices(prev.MultipleChoice.Selections)
	}
}

func (s *Session) interactiveLocked() bool {
	return s.phase == PhaseActive || s.phase == PhaseReviewing
}

// Answer grades in against the current item and records the outcome.
func (s *Session) Answer(ctx context.Context, in Input) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactiveLocked() {
		return false, ErrNotActive
	}
	item := &s.items[s.currentIndex]
	if item.Answered && !s.strategy.reanswerable() {
		return false, ErrAlreadyAnswered
	}
	correct, err := s.strategy.grade(item, in)
	if err != nil {
		return false, err
	}

	s.results[s.currentIndex] = &correct
	item.Answered = true
	if s.quizType == models.QuizTypeMultipleChoice {
		s.selections[item.ID] = uniqueSorted(in.Selected)
	}
	s.markStudiedLocked(item.ID)
	s.persistLocked()
	return correct, nil
}

// MarkCompleted records a flashcard self-report.
func (s *Session) MarkCompleted(ctx context.Context, known bool) error {
	if s.quizType != models.QuizTypeFlashcard {
		return ErrUnsupported
	}
	_, err := s.Answer(ctx, Input{Known: &known})
	return err
}

// Flip turns the current flashcard over. It is view state only and is not
// written on its own.
func (s *Session) Flip(ctx context.Context) error {
	if s.quizType != models.QuizTypeFlashcard {
		return ErrUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.interactiveLocked() {
		return ErrNotActive
	}
	s.flipped = !s.flipped
	return nil
}

func (s *Session) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactiveLocked() {
		return ErrNotActive
	}
	s.flipped = false
	if s.phase == PhaseReviewing {
		if s.reviewPos < len(s.reviewQueue)-1 {
			s.reviewPos++
			s.currentIndex = s.reviewQueue[s.reviewPos]
		} else {
			s.isLastItem = true
		}
	} else if s.currentIndex < len(s.items)-1 {
		s.currentIndex++
	} else {
		s.isLastItem = true
	}
	s.persistLocked()
	return nil
}

// Review re-queues the incorrectly answered QA items for another attempt.
func (s *Session) Review(ctx context.Context) error {
	if s.quizType != models.QuizTypeQA {
		return ErrUnsupported
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactiveLocked() {
		return ErrNotActive
	}
	var queue []int
	for i, r := range s.results {
		if r != nil && !*r {
			queue = append(queue, i)
		}
	}
	if len(queue) == 0 {
		return ErrNothingToReview
	}
	for _, idx := range queue {
		s.items[idx].Answered = false
	}
	s.phase = PhaseReviewing
	s.reviewQueue = queue
	s.reviewPos = 0
	s.currentIndex = queue[0]
	s.isLastItem = false
	s.persistLocked()
	return nil
}

// Shuffle reorders every item and clears results. The studied set is kept.
func (s *Session) Shuffle(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactiveLocked() {
		return ErrNotActive
	}
	s.items = s.strategy.reshuffle(s.items, s.deps.Shuffler)
	for i := range s.items {
		s.items[i].Answered = false
	}
	s.results = make([]*bool, len(s.items))
	s.phase = PhaseActive
	s.currentIndex = 0
	s.isLastItem = false
	s.flipped = false
	s.reviewQueue = nil
	s.reviewPos = 0
	s.selections = make(map[string][]int)
	s.persistLocked()
	return nil
}

// Restart rebuilds the quiz from the set as if it was opened for the first
// time.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseLoading || s.set == nil {
		return ErrNotActive
	}
	m, err := ToQuizItems(s.set, s.quizType, s.deps.Shuffler)
	if err != nil {
		return err
	}
	s.freshLocked(m.Items)
	s.persistLocked()
	return nil
}

// Finish scores the quiz from results and records it.
func (s *Session) Finish(ctx context.Context) (*Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.interactiveLocked() {
		return nil, ErrNotActive
	}
	var correct, incorrect []models.ItemOutcome
	for i, r := range s.results {
		if r == nil {
			continue
		}
		if *r {
			correct = append(correct, outcome(s.items[i]))
		} else {
			incorrect = append(incorrect, outcome(s.items[i]))
		}
	}
	s.isLastItem = true
	s.flipped = false
	return s.completeLocked(ctx, scoreResults(s.results), correct, incorrect), nil
}

func (s *Session) snapshotLocked() *models.SessionState {
	st := s.baseSnapshotLocked()
	st.CurrentIndex = s.currentIndex
	st.IsLastItem = s.isLastItem
	if s.phase == PhaseFinished {
		st.CurrentIndex = len(s.items)
	}

	switch s.quizType {
	case models.QuizTypeFlashcard:
		st.Flashcard = &models.FlashcardData{IsFlipped: s.flipped}
	case models.QuizTypeQA:
		st.QA = &models.QAData{
			IsReviewing:    s.phase == PhaseReviewing,
			ReviewQueue:    append([]int(nil), s.reviewQueue...),
			ReviewPosition: s.reviewPos,
		}
	case models.QuizTypeMultipleChoice:
		st.MultipleChoice = &models.MultipleChoiceData{Selections: cloneIntSlices(s.selections)}
	}
	return st
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.baseViewLocked()
	v.CurrentIndex = s.currentIndex
	v.IsLastItem = s.isLastItem
	v.IsFlipped = s.flipped
	v.IsReviewing = s.phase == PhaseReviewing
	if s.phase == PhaseReviewing {
		v.Remaining = len(s.reviewQueue) - s.reviewPos
	} else if len(s.items) > 0 {
		v.Remaining = len(s.items) - s.currentIndex
	}

	if s.interactiveLocked() && s.currentIndex < len(s.items) {
		item := s.items[s.currentIndex]
		revealed := item.Answered
		if s.quizType == models.QuizTypeFlashcard {
			revealed = s.flipped || item.Answered
		}
		cur := redact(item, revealed)
		v.CurrentItem = &cur
	}
	return v
}
