package quiz

import (
	"context"
	"slices"

	"flashquiz-backend/internal/models"
)

// Classifier is the drag-and-drop engine: items are dropped onto category
// slots in any order and the quiz completes when nothing is left to place.
type Classifier struct {
	core

	categories            []models.CategoryView
	correctClassification map[string][]string
	categoryImages        map[string]string
	classified            map[string][]string
	correct               map[string][]string
	incorrect             map[string][]string

	currentItemIndex  int
	activeDragID      string
	hoveredCategoryID string
	isFinished        bool
	showResults       bool

	feedback *FeedbackArena
}

func NewClassifier(deps Deps) *Classifier {
	c := &Classifier{}
	c.init(models.QuizTypeClassification, deps)
	c.snapshot = c.snapshotLocked
	c.feedback = NewFeedbackArena(c.deps.Clock, deps.FeedbackClear, c.feedbackCleared)
	c.resetBoardLocked(&Material{})
	return c
}

func (c *Classifier) Start(ctx context.Context, setID string, prev *models.SessionState) error {
	set, err := c.loadSet(ctx, setID)
	if err != nil {
		return err
	}
	m, err := ToQuizItems(set, models.QuizTypeClassification, c.deps.Shuffler)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.setID = setID
	c.set = set
	if c.resumable(prev, m) {
		c.hydrateLocked(prev, m)
	} else {
		if prev != nil {
			c.log.Info("discarding stale session state", "set_id", setID)
		}
		c.freshLocked(m)
	}
	c.watchIdentityLocked()
	c.persistLocked()
	return nil
}

func (c *Classifier) resumable(prev *models.SessionState, m *Material) bool {
	if prev == nil {
		return false
	}
	if prev.QuizType != "" && prev.QuizType != models.QuizTypeClassification {
		return false
	}
	if len(prev.Items) != len(m.Items) || len(prev.Results) != len(prev.Items) {
		return false
	}
	known := make(map[string]struct{}, len(m.Items))
	for _, it := range m.Items {
		known[it.ID] = struct{}{}
	}
	for _, it := range prev.Items {
		if _, ok := known[it.ID]; !ok {
			return false
		}
	}
	return true
}

func (c *Classifier) resetBoardLocked(m *Material) {
	c.categories = slices.Clone(m.Categories)
	c.correctClassification = m.CorrectClassification
	if c.correctClassification == nil {
		c.correctClassification = make(map[string][]string)
	}
	c.categoryImages = cloneStrings(m.CategoryImages)
	c.classified = make(map[string][]string)
	c.correct = make(map[string][]string)
	c.incorrect = make(map[string][]string)
	c.currentItemIndex = 0
	c.activeDragID = ""
	c.hoveredCategoryID = ""
	c.isFinished = false
	c.showResults = false
	c.feedback.Reset()
}

func (c *Classifier) freshLocked(m *Material) {
	c.resetBoardLocked(m)
	c.categories = shuffleWith(c.deps.Shuffler, c.categories)
	c.resetProgressLocked(shuffleWith(c.deps.Shuffler, m.Items))
	c.phase = PhaseActive
}

func (c *Classifier) hydrateLocked(prev *models.SessionState, m *Material) {
	c.resetBoardLocked(m)
	c.hydrateProgressLocked(prev)
	c.phase = PhaseActive

	data := prev.Classification
	if data != nil && len(data.Categories) == len(m.Categories) {
		c.categories = slices.Clone(data.Categories)
	}
	if data != nil && data.ClassifiedItems != nil {
		c.classified = cloneStringSlices(data.ClassifiedItems)
		c.correct = cloneStringSlices(data.CorrectAnswers)
		c.incorrect = cloneStringSlices(data.IncorrectAnswers)
	} else {
		c.rebuildPlacementsLocked()
	}
	if data != nil {
		c.showResults = data.ShowResults
	}

	unc := c.unclassifiedLocked()
	c.currentItemIndex = prev.CurrentIndex
	if c.currentItemIndex < 0 || c.currentItemIndex >= len(unc) {
		c.currentItemIndex = 0
	}
	c.isFinished = prev.IsFinished || len(unc) == 0
}

// rebuildPlacementsLocked derives the placement maps from the items when an
// older record did not carry them.
func (c *Classifier) rebuildPlacementsLocked() {
	for i, it := range c.items {
		if !it.IsClassified || it.Category == nil {
			continue
		}
		cat := *it.Category
		c.classified[cat] = append(c.classified[cat], it.ID)
		if r := c.results[i]; r != nil && *r {
			c.correct[cat] = append(c.correct[cat], it.ID)
		} else {
			c.incorrect[cat] = append(c.incorrect[cat], it.ID)
		}
	}
}

func (c *Classifier) unclassifiedLocked() []models.QuizItem {
	var out []models.QuizItem
	for _, it := range c.items {
		if !it.IsClassified {
			out = append(out, it)
		}
	}
	return out
}

func (c *Classifier) indexOfLocked(itemID string) int {
	for i, it := range c.items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

func (c *Classifier) hasCategoryLocked(key string) bool {
	for _, cat := range c.categories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

func (c *Classifier) DragStart(ctx context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return ErrNotActive
	}
	idx := c.indexOfLocked(itemID)
	if idx < 0 || c.items[idx].IsClassified {
		return ErrInvalidInput
	}
	c.activeDragID = itemID
	return nil
}

// DragOver only tracks the hovered slot for highlighting. An empty id
// clears it.
func (c *Classifier) DragOver(ctx context.Context, categoryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return ErrNotActive
	}
	c.hoveredCategoryID = categoryID
	return nil
}

// DragEnd places itemID on targetCategoryID. Drops with no target, onto the
// item itself, onto anything that is not a category slot, or of an item
// already placed are ignored and report false.
func (c *Classifier) DragEnd(ctx context.Context, itemID, targetCategoryID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return false, ErrNotActive
	}
	c.activeDragID = ""
	c.hoveredCategoryID = ""

	if targetCategoryID == "" || targetCategoryID == itemID || !c.hasCategoryLocked(targetCategoryID) {
		return false, nil
	}
	idx := c.indexOfLocked(itemID)
	if idx < 0 {
		return false, ErrInvalidInput
	}
	item := &c.items[idx]
	if item.IsClassified {
		return false, nil
	}

	target := targetCategoryID
	item.Category = &target
	item.IsClassified = true
	item.Answered = true
	c.classified[target] = append(c.classified[target], itemID)

	correct := slices.Contains(c.correctClassification[target], item.Content)
	color := FeedbackRed
	if correct {
		c.correct[target] = append(c.correct[target], itemID)
		color = FeedbackGreen
	} else {
		c.incorrect[target] = append(c.incorrect[target], itemID)
	}
	c.feedback.Set(target, color)

	unc := c.unclassifiedLocked()
	if c.currentItemIndex >= len(unc) {
		c.currentItemIndex = 0
	}
	c.markStudiedLocked(itemID)
	c.results[idx] = &correct
	if len(unc) == 0 {
		c.isFinished = true
		c.showResults = true
	}

	c.notify(models.WSMessage{
		Type: models.WSTypeFeedback,
		Payload: models.FeedbackUpdate{
			SetID:      c.setID,
			CategoryID: target,
			ItemID:     itemID,
			Color:      string(color),
		},
	})
	c.persistLocked()
	return correct, nil
}

func (c *Classifier) feedbackCleared(key string) {
	c.mu.Lock()
	setID := c.setID
	c.mu.Unlock()

	c.notify(models.WSMessage{
		Type:    models.WSTypeFeedbackCleared,
		Payload: models.FeedbackUpdate{SetID: setID, CategoryID: key},
	})
}

// Answer is a drop of in.ItemID onto in.CategoryID.
func (c *Classifier) Answer(ctx context.Context, in Input) (bool, error) {
	return c.DragEnd(ctx, in.ItemID, in.CategoryID)
}

func (c *Classifier) Advance(ctx context.Context) error {
	return ErrUnsupported
}

// Shuffle reorders what is left to place and the category slots. Placements
// are kept.
func (c *Classifier) Shuffle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return ErrNotActive
	}
	var positions []int
	var remaining []models.QuizItem
	for i, it := range c.items {
		if !it.IsClassified {
			positions = append(positions, i)
			remaining = append(remaining, it)
		}
	}
	remaining = shuffleWith(c.deps.Shuffler, remaining)
	for k, pos := range positions {
		c.items[pos] = remaining[k]
	}
	c.categories = shuffleWith(c.deps.Shuffler, c.categories)
	c.currentItemIndex = 0
	c.persistLocked()
	return nil
}

// Restart discards every placement and pending feedback and starts over
// from the set.
func (c *Classifier) Restart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseLoading || c.set == nil {
		return ErrNotActive
	}
	m, err := ToQuizItems(c.set, models.QuizTypeClassification, c.deps.Shuffler)
	if err != nil {
		return err
	}
	c.freshLocked(m)
	c.persistLocked()
	return nil
}

// Finish scores over placed items only.
func (c *Classifier) Finish(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseActive {
		return nil, ErrNotActive
	}

	byID := make(map[string]models.QuizItem, len(c.items))
	for _, it := range c.items {
		byID[it.ID] = it
	}
	var correct, incorrect []models.ItemOutcome
	placed, correctPlaced := 0, 0
	for _, cat := range c.categories {
		for _, id := range c.correct[cat.Key] {
			o := outcome(byID[id])
			o.Category = cat.Key
			correct = append(correct, o)
		}
		for _, id := range c.incorrect[cat.Key] {
			o := outcome(byID[id])
			o.Category = cat.Key
			o.CorrectCategory = byID[id].CorrectCategory
			incorrect = append(incorrect, o)
		}
		placed += len(c.classified[cat.Key])
		correctPlaced += len(c.correct[cat.Key])
	}

	c.feedback.Reset()
	c.activeDragID = ""
	c.hoveredCategoryID = ""
	c.isFinished = true
	c.showResults = true
	return c.completeLocked(ctx, percent(correctPlaced, placed), correct, incorrect), nil
}

// Close cancels pending feedback timers and stops watching identity.
func (c *Classifier) Close() {
	c.feedback.Reset()
	c.core.Close()
}

// Feedback returns the color currently shown on a category slot.
func (c *Classifier) Feedback(categoryID string) (FeedbackColor, bool) {
	return c.feedback.Get(categoryID)
}

func (c *Classifier) snapshotLocked() *models.SessionState {
	st := c.baseSnapshotLocked()
	st.CurrentIndex = c.currentItemIndex
	st.IsFinished = st.IsFinished || c.isFinished
	if c.phase == PhaseFinished {
		st.CurrentIndex = len(c.items)
	}
	st.Classification = &models.ClassificationData{
		Categories:            slices.Clone(c.categories),
		ClassifiedItems:       cloneStringSlices(c.classified),
		CorrectAnswers:        cloneStringSlices(c.correct),
		IncorrectAnswers:      cloneStringSlices(c.incorrect),
		CategoryImages:        cloneStrings(c.categoryImages),
		CorrectClassification: cloneStringSlices(c.correctClassification),
		ShowResults:           c.showResults,
	}
	return st
}

func (c *Classifier) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.baseViewLocked()
	v.CurrentIndex = c.currentItemIndex
	v.Categories = slices.Clone(c.categories)
	unc := c.unclassifiedLocked()
	v.Remaining = len(unc)
	v.Unclassified = make([]models.QuizItem, len(unc))
	for i, it := range unc {
		v.Unclassified[i] = redact(it, false)
	}
	if c.phase == PhaseActive && c.currentItemIndex < len(unc) {
		cur := v.Unclassified[c.currentItemIndex]
		v.CurrentItem = &cur
	}
	v.ClassifiedItems = cloneStringSlices(c.classified)
	v.CorrectAnswers = cloneStringSlices(c.correct)
	v.IncorrectAnswers = cloneStringSlices(c.incorrect)
	v.Feedback = c.feedback.Snapshot()
	v.ActiveDragID = c.activeDragID
	v.HoveredCategoryID = c.hoveredCategoryID
	v.IsFinished = c.isFinished
	v.ShowResults = c.showResults
	v.IsLastItem = c.isFinished
	return v
}
