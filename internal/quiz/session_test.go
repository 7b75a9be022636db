package quiz

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"flashquiz-backend/internal/identity"
	"flashquiz-backend/internal/models"
)

func currentItem(t *testing.T, e Engine) models.QuizItem {
	t.Helper()
	st := e.Snapshot()
	if st.CurrentIndex >= len(st.Items) {
		t.Fatalf("no current item at index %d", st.CurrentIndex)
	}
	return st.Items[st.CurrentIndex]
}

func startSession(t *testing.T, qt models.QuizType, gw *fakeGateway, setID string) (*Session, Deps) {
	t.Helper()
	deps := newTestDeps(gw, "u1")
	s := NewSession(qt, deps)
	if err := s.Start(context.Background(), setID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s, deps
}

func TestQAEndToEndScoring(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(qaSet())
	s, deps := startSession(t, models.QuizTypeQA, gw, "set-qa")

	if s.Phase() != PhaseActive {
		t.Fatalf("expected active, got %s", s.Phase())
	}

	for i := 0; i < 3; i++ {
		item := currentItem(t, s)
		answer := item.Answer
		if i == 2 {
			answer = "wrong"
		}
		if _, err := s.Answer(ctx, Input{Text: answer}); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
		if err := s.Advance(ctx); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if !s.View().IsLastItem {
		t.Fatalf("expected last item flag after walking past the end")
	}

	deps.Clock.(*fakeClock).Advance(90 * time.Second)
	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	if sum.Score != 67 {
		t.Errorf("expected score 67, got %d", sum.Score)
	}
	if sum.ItemsStudied != 3 || sum.TotalItems != 3 {
		t.Errorf("expected 3 studied of 3, got %d of %d", sum.ItemsStudied, sum.TotalItems)
	}
	if sum.StudyDuration != 90 {
		t.Errorf("expected 90s, got %d", sum.StudyDuration)
	}
	if !sum.Persisted || sum.HistoryID != "hist-1" || gw.historyLen() != 1 {
		t.Fatalf("expected one persisted history entry, got %+v", sum)
	}
	if len(sum.Entry.CorrectItems) != 2 || len(sum.Entry.IncorrectItems) != 1 {
		t.Errorf("unexpected outcomes: %+v", sum.Entry)
	}

	key := models.SessionKey{UserID: "u1", SetID: "set-qa", QuizType: models.QuizTypeQA}
	st := gw.state(key)
	if st == nil || !st.IsFinished || st.CurrentIndex != 3 || st.Score == nil || *st.Score != 67 {
		t.Fatalf("expected finished checkpoint, got %+v", st)
	}
	if s.Phase() != PhaseFinished {
		t.Fatalf("expected finished phase, got %s", s.Phase())
	}
	if _, err := s.Answer(ctx, Input{Text: "x"}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive after finish, got %v", err)
	}
}

func TestQAAnswerIsCaseAndSpaceInsensitive(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact", "Paris", true},
		{"lower with spaces", "  paris ", true},
		{"upper", "PARIS", true},
		{"different", "Lyon", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			set := &models.Set{ID: "one", Type: models.QuizTypeQA, QAItems: []models.QAItem{{Question: "Capital of France?", Answer: "Paris"}}}
			s, _ := startSession(t, models.QuizTypeQA, newFakeGateway(set), "one")
			got, err := s.Answer(context.Background(), Input{Text: tc.input})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestQARejectsSecondAnswer(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t, models.QuizTypeQA, newFakeGateway(qaSet()), "set-qa")
	if _, err := s.Answer(ctx, Input{Text: "nope"}); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if _, err := s.Answer(ctx, Input{Text: currentItem(t, s).Answer}); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestQAReviewRequeuesIncorrectItems(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t, models.QuizTypeQA, newFakeGateway(qaSet()), "set-qa")

	if err := s.Review(ctx); !errors.Is(err, ErrNothingToReview) {
		t.Fatalf("expected ErrNothingToReview before any mistakes, got %v", err)
	}

	wrongID := currentItem(t, s).ID
	s.Answer(ctx, Input{Text: "wrong"})
	s.Advance(ctx)
	s.Answer(ctx, Input{Text: currentItem(t, s).Answer})

	if err := s.Review(ctx); err != nil {
		t.Fatalf("review: %v", err)
	}
	if s.Phase() != PhaseReviewing {
		t.Fatalf("expected reviewing, got %s", s.Phase())
	}
	item := currentItem(t, s)
	if item.ID != wrongID {
		t.Fatalf("expected review to start at %s, got %s", wrongID, item.ID)
	}
	ok, err := s.Answer(ctx, Input{Text: item.Answer})
	if err != nil || !ok {
		t.Fatalf("expected correct re-answer, got %v %v", ok, err)
	}
	st := s.Snapshot()
	if st.QA == nil || !st.QA.IsReviewing || len(st.QA.ReviewQueue) != 1 {
		t.Fatalf("unexpected review payload: %+v", st.QA)
	}
}

func TestMultipleChoiceExactSetScoring(t *testing.T) {
	tests := []struct {
		name   string
		pick   []string
		want   bool
		hasErr bool
	}{
		{"correct only", []string{"Paris"}, true, false},
		{"correct plus wrong", []string{"Paris", "London"}, false, false},
		{"wrong only", []string{"Berlin"}, false, false},
		{"nothing selected", nil, false, false},
		{"duplicate correct", []string{"Paris", "Paris"}, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := startSession(t, models.QuizTypeMultipleChoice, newFakeGateway(mcSet()), "set-mc")
			item := currentItem(t, s)
			var selected []int
			for _, text := range tc.pick {
				selected = append(selected, choiceIndex(item, text))
			}
			got, err := s.Answer(context.Background(), Input{Selected: selected})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestMultipleChoiceOutOfRangeSelection(t *testing.T) {
	s, _ := startSession(t, models.QuizTypeMultipleChoice, newFakeGateway(mcSet()), "set-mc")
	if _, err := s.Answer(context.Background(), Input{Selected: []int{7}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if st := s.Snapshot(); st.Results[0] != nil {
		t.Fatalf("rejected input must not record a result")
	}
}

func TestMultipleChoiceViewHidesCorrectness(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t, models.QuizTypeMultipleChoice, newFakeGateway(mcSet()), "set-mc")

	for _, c := range s.View().CurrentItem.Choices {
		if c.IsCorrect {
			t.Fatalf("unanswered view leaks the correct choice")
		}
	}
	item := currentItem(t, s)
	s.Answer(ctx, Input{Selected: []int{choiceIndex(item, "Berlin")}})

	revealed := false
	for _, c := range s.View().CurrentItem.Choices {
		revealed = revealed || c.IsCorrect
	}
	if !revealed {
		t.Fatalf("answered view should show the correct choice")
	}
	if sel := s.Snapshot().MultipleChoice.Selections[item.ID]; len(sel) != 1 {
		t.Fatalf("expected stored selection, got %v", sel)
	}
}

func TestFlashcardSelfReportAndFlip(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t, models.QuizTypeFlashcard, newFakeGateway(flashcardSet()), "set-cards")

	if s.View().CurrentItem.Back != "" {
		t.Fatalf("back must be hidden before flipping")
	}
	if err := s.Flip(ctx); err != nil {
		t.Fatalf("flip: %v", err)
	}
	if s.View().CurrentItem.Back == "" {
		t.Fatalf("back should be visible after flipping")
	}

	if err := s.MarkCompleted(ctx, false); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := s.MarkCompleted(ctx, true); err != nil {
		t.Fatalf("flashcards may be re-marked: %v", err)
	}
	if r := s.Snapshot().Results[0]; r == nil || !*r {
		t.Fatalf("expected the latest self-report to stand, got %v", r)
	}
	if _, err := s.Answer(ctx, Input{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without a known flag, got %v", err)
	}
	if err := s.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if s.View().IsFlipped {
		t.Fatalf("advancing should turn the card back")
	}
}

func TestTypeSpecificOperationsAreRejected(t *testing.T) {
	ctx := context.Background()
	qa, _ := startSession(t, models.QuizTypeQA, newFakeGateway(qaSet()), "set-qa")
	if err := qa.Flip(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for flip on QA, got %v", err)
	}
	if err := qa.MarkCompleted(ctx, true); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for mark on QA, got %v", err)
	}
	fc, _ := startSession(t, models.QuizTypeFlashcard, newFakeGateway(flashcardSet()), "set-cards")
	if err := fc.Review(ctx); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for review on flashcards, got %v", err)
	}
}

func TestShuffleResetsResultsButKeepsStudied(t *testing.T) {
	ctx := context.Background()
	s, _ := startSession(t, models.QuizTypeQA, newFakeGateway(qaSet()), "set-qa")

	s.Answer(ctx, Input{Text: currentItem(t, s).Answer})
	s.Advance(ctx)
	s.Answer(ctx, Input{Text: "wrong"})

	if err := s.Shuffle(ctx); err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	st := s.Snapshot()
	if len(st.StudiedItems) != 2 {
		t.Fatalf("expected studied items kept, got %v", st.StudiedItems)
	}
	for i, r := range st.Results {
		if r != nil {
			t.Fatalf("result %d should be cleared after shuffle", i)
		}
	}
	if st.CurrentIndex != 0 || len(st.Items) != 3 {
		t.Fatalf("unexpected state after shuffle: %+v", st)
	}
}

func TestResumeRestoresExactState(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(qaSet())
	first, _ := startSession(t, models.QuizTypeQA, gw, "set-qa")

	first.Answer(ctx, Input{Text: currentItem(t, first).Answer})
	first.Advance(ctx)
	first.Answer(ctx, Input{Text: "wrong"})
	saved := first.Snapshot()

	second := NewSession(models.QuizTypeQA, newTestDeps(gw, "u1"))
	if err := second.Start(ctx, "set-qa", saved); err != nil {
		t.Fatalf("resume: %v", err)
	}
	got := second.Snapshot()

	if got.CurrentIndex != saved.CurrentIndex {
		t.Fatalf("index %d, want %d", got.CurrentIndex, saved.CurrentIndex)
	}
	for i := range saved.Items {
		if got.Items[i].ID != saved.Items[i].ID {
			t.Fatalf("item order changed on resume at %d", i)
		}
	}
	if !slices.Equal(got.StudiedItems, saved.StudiedItems) {
		t.Fatalf("studied %v, want %v", got.StudiedItems, saved.StudiedItems)
	}

	sumFirst, _ := first.Finish(ctx)
	sumSecond, _ := second.Finish(ctx)
	if sumFirst.Score != sumSecond.Score {
		t.Fatalf("resumed score %d differs from original %d", sumSecond.Score, sumFirst.Score)
	}
	if sumSecond.ItemsStudied != 0 {
		t.Fatalf("resumed session studied nothing new, got delta %d", sumSecond.ItemsStudied)
	}
}

func TestStaleStateStartsFresh(t *testing.T) {
	gw := newFakeGateway(qaSet())
	stale := &models.SessionState{
		QuizType: models.QuizTypeQA,
		Items:    []models.QuizItem{{ID: "qa-0"}},
		Results:  []*bool{nil},
	}
	s := NewSession(models.QuizTypeQA, newTestDeps(gw, "u1"))
	if err := s.Start(context.Background(), "set-qa", stale); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := len(s.Snapshot().Items); n != 3 {
		t.Fatalf("expected a fresh 3-item quiz, got %d items", n)
	}
}

func TestLoadErrorKeepsLoading(t *testing.T) {
	gw := newFakeGateway(qaSet())
	gw.getSetErr = errors.New("connection refused")
	s := NewSession(models.QuizTypeQA, newTestDeps(gw, "u1"))

	err := s.Start(context.Background(), "set-qa", nil)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.SetID != "set-qa" {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if s.Phase() != PhaseLoading {
		t.Fatalf("expected loading, got %s", s.Phase())
	}
	if _, err := s.Answer(context.Background(), Input{Text: "x"}); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive while loading, got %v", err)
	}
}

func TestInvalidSetForType(t *testing.T) {
	s := NewSession(models.QuizTypeMultipleChoice, newTestDeps(newFakeGateway(flashcardSet()), "u1"))
	err := s.Start(context.Background(), "set-cards", nil)
	var invalid *InvalidSetError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidSetError, got %v", err)
	}
}

func TestFinishWithoutIdentityIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(qaSet())
	deps := newTestDeps(gw, "u1")
	s := NewSession(models.QuizTypeQA, deps)
	if err := s.Start(ctx, "set-qa", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Answer(ctx, Input{Text: currentItem(t, s).Answer})

	deps.Identity.(*identity.Provider).Logout()
	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Persisted || sum.HistoryID != "" {
		t.Fatalf("expected an unsaved summary, got %+v", sum)
	}
	if gw.historyLen() != 0 {
		t.Fatalf("no history may be written without a user")
	}
	if sum.Score != 33 {
		t.Fatalf("score is still computed, expected 33 got %d", sum.Score)
	}
}

func TestHistoryWriteFailureStillFinishes(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(qaSet())
	gw.saveHistErr = errors.New("insert failed")
	s, _ := startSession(t, models.QuizTypeQA, gw, "set-qa")

	sum, err := s.Finish(ctx)
	if err != nil {
		t.Fatalf("finish must not fail on a history write error: %v", err)
	}
	if sum.Persisted || s.Phase() != PhaseFinished {
		t.Fatalf("expected finished but unpersisted, got %+v / %s", sum, s.Phase())
	}
}

func TestLoginFlushesLatestState(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(qaSet())
	deps := newTestDeps(gw, "u1")
	s := NewSession(models.QuizTypeQA, deps)
	if err := s.Start(ctx, "set-qa", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	prov := deps.Identity.(*identity.Provider)
	prov.Logout()
	s.Answer(ctx, Input{Text: "wrong"})

	key := models.SessionKey{UserID: "u1", SetID: "set-qa", QuizType: models.QuizTypeQA}
	if st := gw.state(key); st.Results[st.CurrentIndex] != nil {
		t.Fatalf("signed-out answer should not be saved yet")
	}

	prov.Login("u1")
	st := gw.state(key)
	if st.Results[st.CurrentIndex] == nil {
		t.Fatalf("login should write the answer made while signed out")
	}
}
