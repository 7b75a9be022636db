package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashquiz-backend/internal/models"
)

func startClassifier(t *testing.T, gw *fakeGateway) (*Classifier, *fakeClock) {
	t.Helper()
	deps := newTestDeps(gw, "u1")
	c := NewClassifier(deps)
	if err := c.Start(context.Background(), "set-sort", nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c, deps.Clock.(*fakeClock)
}

func TestClassifierPlacement(t *testing.T) {
	ctx := context.Background()
	c, clock := startClassifier(t, newFakeGateway(classificationSet()))

	ok, err := c.DragEnd(ctx, "Fruit-0", "Fruit")
	if err != nil || !ok {
		t.Fatalf("expected correct placement, got %v %v", ok, err)
	}
	if color, _ := c.Feedback("Fruit"); color != FeedbackGreen {
		t.Fatalf("expected green feedback, got %q", color)
	}

	ok, err = c.DragEnd(ctx, "Vegetable-0", "Fruit")
	if err != nil || ok {
		t.Fatalf("expected incorrect placement, got %v %v", ok, err)
	}
	if color, _ := c.Feedback("Fruit"); color != FeedbackRed {
		t.Fatalf("expected red feedback, got %q", color)
	}

	clock.Advance(DefaultFeedbackClear)
	if _, shown := c.Feedback("Fruit"); shown {
		t.Fatalf("feedback should clear after the window")
	}

	v := c.View()
	if v.Remaining != 1 || len(v.Unclassified) != 1 || v.Unclassified[0].ID != "Fruit-1" {
		t.Fatalf("expected only Fruit-1 left, got %+v", v.Unclassified)
	}
	if v.Unclassified[0].CorrectCategory != "" {
		t.Fatalf("unplaced items must not expose their category")
	}
	if len(v.ClassifiedItems["Fruit"]) != 2 || len(v.CorrectAnswers["Fruit"]) != 1 || len(v.IncorrectAnswers["Fruit"]) != 1 {
		t.Fatalf("unexpected placement maps: %+v", v)
	}

	st := c.Snapshot()
	var placed int
	for i, it := range st.Items {
		if it.IsClassified {
			placed++
			if st.Results[i] == nil {
				t.Fatalf("placed item %s has no result", it.ID)
			}
		}
	}
	if placed != 2 || len(st.StudiedItems) != 2 {
		t.Fatalf("expected 2 placed and studied, got %d / %v", placed, st.StudiedItems)
	}
}

func TestClassifierIgnoresInvalidDrops(t *testing.T) {
	ctx := context.Background()
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))

	tests := []struct {
		name   string
		item   string
		target string
	}{
		{"no target", "Fruit-0", ""},
		{"onto itself", "Fruit-0", "Fruit-0"},
		{"onto another item", "Fruit-0", "Vegetable-0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := c.DragEnd(ctx, tc.item, tc.target)
			if err != nil || ok {
				t.Fatalf("expected ignored drop, got %v %v", ok, err)
			}
		})
	}
	if n := len(c.View().Unclassified); n != 3 {
		t.Fatalf("ignored drops must not place anything, %d left", n)
	}

	if _, err := c.DragEnd(ctx, "ghost", "Fruit"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown item, got %v", err)
	}

	c.DragEnd(ctx, "Fruit-0", "Vegetable")
	ok, err := c.DragEnd(ctx, "Fruit-0", "Fruit")
	if err != nil || ok {
		t.Fatalf("a placed item cannot be moved, got %v %v", ok, err)
	}
	if got := c.View().IncorrectAnswers["Vegetable"]; len(got) != 1 {
		t.Fatalf("first placement should stand, got %v", got)
	}
}

func TestClassifierFeedbackTimersAreIndependent(t *testing.T) {
	ctx := context.Background()
	c, clock := startClassifier(t, newFakeGateway(classificationSet()))

	c.DragEnd(ctx, "Fruit-0", "Fruit")
	clock.Advance(300 * time.Millisecond)
	c.DragEnd(ctx, "Vegetable-0", "Vegetable")
	clock.Advance(200 * time.Millisecond)

	if _, shown := c.Feedback("Fruit"); shown {
		t.Fatalf("Fruit feedback should be gone at 500ms")
	}
	if color, shown := c.Feedback("Vegetable"); !shown || color != FeedbackGreen {
		t.Fatalf("Vegetable feedback should still show, got %q %v", color, shown)
	}
}

func TestClassifierCompletesWhenAllPlaced(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(classificationSet())
	c, _ := startClassifier(t, gw)

	c.DragEnd(ctx, "Fruit-0", "Fruit")
	c.DragEnd(ctx, "Fruit-1", "Vegetable")
	c.DragEnd(ctx, "Vegetable-0", "Vegetable")

	v := c.View()
	if !v.IsFinished || !v.ShowResults || v.Remaining != 0 {
		t.Fatalf("expected board complete, got %+v", v)
	}

	sum, err := c.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Score != 67 || sum.ItemsStudied != 3 || !sum.Persisted {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(sum.Entry.IncorrectItems) != 1 {
		t.Fatalf("expected one incorrect outcome, got %+v", sum.Entry.IncorrectItems)
	}
	miss := sum.Entry.IncorrectItems[0]
	if miss.ItemID != "Fruit-1" || miss.Category != "Vegetable" || miss.CorrectCategory != "Fruit" {
		t.Fatalf("unexpected incorrect outcome: %+v", miss)
	}

	st := gw.state(models.SessionKey{UserID: "u1", SetID: "set-sort", QuizType: models.QuizTypeClassification})
	if st == nil || !st.IsFinished || st.Classification == nil || !st.Classification.ShowResults {
		t.Fatalf("expected finished classification checkpoint, got %+v", st)
	}
}

func TestClassifierScoresOnlyPlacedItems(t *testing.T) {
	ctx := context.Background()
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))
	c.DragEnd(ctx, "Fruit-0", "Fruit")

	sum, err := c.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if sum.Score != 100 {
		t.Fatalf("expected 100 over one placed item, got %d", sum.Score)
	}
}

func TestClassifierShuffleKeepsPlacements(t *testing.T) {
	ctx := context.Background()
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))
	c.DragEnd(ctx, "Fruit-0", "Vegetable")

	before := c.Snapshot()
	if err := c.Shuffle(ctx); err != nil {
		t.Fatalf("shuffle: %v", err)
	}
	after := c.Snapshot()

	for i, it := range before.Items {
		if it.IsClassified && after.Items[i].ID != it.ID {
			t.Fatalf("placed item moved during shuffle")
		}
	}
	if len(after.Classification.IncorrectAnswers["Vegetable"]) != 1 {
		t.Fatalf("placements lost: %+v", after.Classification)
	}
	if len(after.StudiedItems) != 1 {
		t.Fatalf("studied lost: %v", after.StudiedItems)
	}
}

func TestClassifierRestartClearsBoard(t *testing.T) {
	ctx := context.Background()
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))
	c.DragEnd(ctx, "Fruit-0", "Fruit")

	if err := c.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	v := c.View()
	if len(v.Unclassified) != 3 || len(v.ClassifiedItems) != 0 || len(v.Feedback) != 0 {
		t.Fatalf("expected a clean board, got %+v", v)
	}
}

func TestClassifierResume(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(classificationSet())
	first, _ := startClassifier(t, gw)
	first.DragEnd(ctx, "Vegetable-0", "Vegetable")
	saved := first.Snapshot()

	second := NewClassifier(newTestDeps(gw, "u1"))
	if err := second.Start(ctx, "set-sort", saved); err != nil {
		t.Fatalf("resume: %v", err)
	}
	v := second.View()
	if len(v.Unclassified) != 2 || len(v.CorrectAnswers["Vegetable"]) != 1 {
		t.Fatalf("resume lost placements: %+v", v)
	}
	for i, cat := range saved.Classification.Categories {
		if v.Categories[i].Key != cat.Key {
			t.Fatalf("category order changed on resume")
		}
	}
}

func TestClassifierRejectsAdvance(t *testing.T) {
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))
	if err := c.Advance(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestClassifierDragTracking(t *testing.T) {
	ctx := context.Background()
	c, _ := startClassifier(t, newFakeGateway(classificationSet()))

	if err := c.DragStart(ctx, "Fruit-1"); err != nil {
		t.Fatalf("drag start: %v", err)
	}
	c.DragOver(ctx, "Fruit")
	v := c.View()
	if v.ActiveDragID != "Fruit-1" || v.HoveredCategoryID != "Fruit" {
		t.Fatalf("unexpected drag state: %+v", v)
	}

	c.Answer(ctx, Input{ItemID: "Fruit-1", CategoryID: "Fruit"})
	v = c.View()
	if v.ActiveDragID != "" || v.HoveredCategoryID != "" {
		t.Fatalf("drop should clear drag state")
	}
	if err := c.DragStart(ctx, "Fruit-1"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("placed items cannot be dragged, got %v", err)
	}
}

func TestClassifierNotifiesFeedback(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(classificationSet())
	deps := newTestDeps(gw, "u1")
	notifier := newFakeNotifier()
	deps.Notifier = notifier
	c := NewClassifier(deps)
	if err := c.Start(ctx, "set-sort", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	c.DragEnd(ctx, "Fruit-0", "Fruit")
	select {
	case msg := <-notifier.msgs:
		upd, ok := msg.Payload.(models.FeedbackUpdate)
		if msg.Type != models.WSTypeFeedback || !ok || upd.Color != "green" || upd.CategoryID != "Fruit" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no feedback message published")
	}

	deps.Clock.(*fakeClock).Advance(DefaultFeedbackClear)
	select {
	case msg := <-notifier.msgs:
		if msg.Type != models.WSTypeFeedbackCleared {
			t.Fatalf("expected feedback_cleared, got %s", msg.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no clear message published")
	}
}
