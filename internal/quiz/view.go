package quiz

import (
	"slices"

	"flashquiz-backend/internal/models"
)

// View is what a client renders. Answers stay hidden until the learner has
// committed to one.
type View struct {
	QuizType     models.QuizType  `json:"quizType"`
	Phase        Phase            `json:"phase"`
	SetID        string           `json:"setId"`
	Title        string           `json:"title"`
	CurrentIndex int              `json:"currentIndex"`
	Total        int              `json:"total"`
	Answered     int              `json:"answered"`
	Results      []*bool          `json:"results"`
	StudiedCount int              `json:"studiedCount"`
	CurrentItem  *models.QuizItem `json:"currentItem,omitempty"`
	IsLastItem   bool             `json:"isLastItem"`
	IsFlipped    bool             `json:"isFlipped,omitempty"`
	IsReviewing  bool             `json:"isReviewing,omitempty"`
	Remaining    int              `json:"remaining,omitempty"`

	Categories        []models.CategoryView    `json:"categories,omitempty"`
	Unclassified      []models.QuizItem        `json:"unclassified,omitempty"`
	ClassifiedItems   map[string][]string      `json:"classifiedItems,omitempty"`
	CorrectAnswers    map[string][]string      `json:"correctAnswers,omitempty"`
	IncorrectAnswers  map[string][]string      `json:"incorrectAnswers,omitempty"`
	Feedback          map[string]FeedbackColor `json:"feedback,omitempty"`
	ActiveDragID      string                   `json:"activeDragId,omitempty"`
	HoveredCategoryID string                   `json:"hoveredCategoryId,omitempty"`
	IsFinished        bool                     `json:"isFinished,omitempty"`
	ShowResults       bool                     `json:"showResults,omitempty"`
}

func (c *core) baseViewLocked() View {
	v := View{
		QuizType:     c.quizType,
		Phase:        c.phase,
		SetID:        c.setID,
		Total:        len(c.items),
		Answered:     c.answeredCountLocked(),
		Results:      slices.Clone(c.results),
		StudiedCount: len(c.studied),
	}
	if c.set != nil {
		v.Title = c.set.Title
	}
	return v
}

// redact hides whatever would give the answer away on an unanswered item.
func redact(item models.QuizItem, revealed bool) models.QuizItem {
	if revealed {
		return item
	}
	item.Back = ""
	item.Answer = ""
	item.CorrectCategory = ""
	if len(item.Choices) > 0 {
		choices := make([]models.Choice, len(item.Choices))
		for i, c := range item.Choices {
			choices[i] = models.Choice{Text: c.Text}
		}
		item.Choices = choices
	}
	return item
}
