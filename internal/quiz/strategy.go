package quiz

import (
	"flashquiz-backend/internal/models"
)

// strategy is the per-type part of the sequential engine: how an answer is
// graded and how items are reshuffled.
type strategy interface {
	grade(item *models.QuizItem, in Input) (bool, error)
	reshuffle(items []models.QuizItem, s *Shuffler) []models.QuizItem
	// reanswerable reports whether an item may be answered again in the
	// same pass.
	reanswerable() bool
}

var strategies = map[models.QuizType]strategy{
	models.QuizTypeFlashcard:      flashcardStrategy{},
	models.QuizTypeQA:             qaStrategy{},
	models.QuizTypeMultipleChoice: multipleChoiceStrategy{},
}

// Flashcards are graded by the learner's own "known / not yet" report.
type flashcardStrategy struct{}

func (flashcardStrategy) grade(_ *models.QuizItem, in Input) (bool, error) {
	if in.Known == nil {
		return false, ErrInvalidInput
	}
	return *in.Known, nil
}

func (flashcardStrategy) reshuffle(items []models.QuizItem, s *Shuffler) []models.QuizItem {
	return shuffleWith(s, items)
}

func (flashcardStrategy) reanswerable() bool { return true }

type qaStrategy struct{}

func (qaStrategy) grade(item *models.QuizItem, in Input) (bool, error) {
	return normalizeAnswer(in.Text) == normalizeAnswer(item.Answer), nil
}

func (qaStrategy) reshuffle(items []models.QuizItem, s *Shuffler) []models.QuizItem {
	return shuffleWith(s, items)
}

func (qaStrategy) reanswerable() bool { return false }

// Multiple-choice has no partial credit: the selected set must equal the
// correct set exactly.
type multipleChoiceStrategy struct{}

func (multipleChoiceStrategy) grade(item *models.QuizItem, in Input) (bool, error) {
	for _, idx := range in.Selected {
		if idx < 0 || idx >= len(item.Choices) {
			return false, ErrInvalidInput
		}
	}
	return setEqual(toSet(in.Selected), correctChoices(item.Choices)), nil
}

func (multipleChoiceStrategy) reshuffle(items []models.QuizItem, s *Shuffler) []models.QuizItem {
	out := shuffleWith(s, items)
	for i := range out {
		out[i].Choices = shuffleWith(s, out[i].Choices)
	}
	return out
}

func (multipleChoiceStrategy) reanswerable() bool { return false }
