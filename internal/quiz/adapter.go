package quiz

import (
	"fmt"

	"flashquiz-backend/internal/models"
)

// CategoryKey is the identity of a classification category: its name, else
// its id, else its position. Drop targets, answer keys, images and feedback
// are all keyed by it.
func CategoryKey(c models.Category, index int) string {
	if c.Name != "" {
		return c.Name
	}
	if c.ID != "" {
		return c.ID
	}
	return fmt.Sprintf("category-%d", index)
}

// Material is what an engine needs to run a fresh quiz over a set.
type Material struct {
	Items []models.QuizItem

	// classification only
	Categories            []models.CategoryView
	CorrectClassification map[string][]string
	CategoryImages        map[string]string
}

// SourceType is the set's declared type, or the type inferred from whichever
// collection is populated when the declaration is missing.
func SourceType(set *models.Set) (models.QuizType, error) {
	if set.Type != "" {
		if !set.Type.Valid() {
			return "", &InvalidSetError{SetID: set.ID, SetType: set.Type, Reason: "unknown set type"}
		}
		return set.Type, nil
	}
	switch {
	case len(set.Cards) > 0:
		return models.QuizTypeFlashcard, nil
	case len(set.QAItems) > 0:
		return models.QuizTypeQA, nil
	case len(set.Questions) > 0:
		return models.QuizTypeMultipleChoice, nil
	case len(set.Categories) > 0:
		return models.QuizTypeClassification, nil
	}
	return "", &InvalidSetError{SetID: set.ID, Reason: "set has no recognizable items"}
}

// ToQuizItems normalizes set into the items quizType operates on.
// Flashcard and QA sets stand in for each other.
func ToQuizItems(set *models.Set, quizType models.QuizType, s *Shuffler) (*Material, error) {
	src, err := SourceType(set)
	if err != nil {
		return nil, err
	}

	invalid := func(reason string) error {
		return &InvalidSetError{SetID: set.ID, SetType: src, Requested: quizType, Reason: reason}
	}

	var m *Material
	switch quizType {
	case models.QuizTypeFlashcard:
		switch src {
		case models.QuizTypeFlashcard:
			m = flashcardMaterial(set.Cards)
		case models.QuizTypeQA:
			m = flashcardMaterial(qaToCards(set.QAItems))
		default:
			return nil, invalid("no flashcard mapping")
		}
	case models.QuizTypeQA:
		switch src {
		case models.QuizTypeQA:
			m = qaMaterial(set.QAItems)
		case models.QuizTypeFlashcard:
			m = qaMaterial(cardsToQA(set.Cards))
		default:
			return nil, invalid("no question/answer mapping")
		}
	case models.QuizTypeMultipleChoice:
		if src != models.QuizTypeMultipleChoice {
			return nil, invalid("multiple-choice needs questions with choices")
		}
		m = multipleChoiceMaterial(set.Questions, s)
	case models.QuizTypeClassification:
		if src != models.QuizTypeClassification {
			return nil, invalid("classification needs categories")
		}
		var dup string
		m, dup = classificationMaterial(set.Categories)
		if dup != "" {
			return nil, invalid(fmt.Sprintf("duplicate category key %q", dup))
		}
	default:
		return nil, invalid("unknown quiz type")
	}

	if len(m.Items) == 0 {
		return nil, invalid("set has no items")
	}
	return m, nil
}

func cardsToQA(cards []models.Card) []models.QAItem {
	out := make([]models.QAItem, len(cards))
	for i, c := range cards {
		out[i] = models.QAItem{Question: c.Front, Answer: c.Back, Image: c.Image}
	}
	return out
}

func qaToCards(items []models.QAItem) []models.Card {
	out := make([]models.Card, len(items))
	for i, q := range items {
		out[i] = models.Card{Front: q.Question, Back: q.Answer, Image: q.Image}
	}
	return out
}

func flashcardMaterial(cards []models.Card) *Material {
	items := make([]models.QuizItem, len(cards))
	for i, c := range cards {
		items[i] = models.QuizItem{
			ID:      fmt.Sprintf("card-%d", i),
			Content: c.Front,
			Front:   c.Front,
			Back:    c.Back,
			Image:   c.Image,
		}
	}
	return &Material{Items: items}
}

func qaMaterial(qa []models.QAItem) *Material {
	items := make([]models.QuizItem, len(qa))
	for i, q := range qa {
		items[i] = models.QuizItem{
			ID:       fmt.Sprintf("qa-%d", i),
			Content:  q.Question,
			Question: q.Question,
			Answer:   q.Answer,
			Image:    q.Image,
		}
	}
	return &Material{Items: items}
}

func multipleChoiceMaterial(questions []models.Question, s *Shuffler) *Material {
	items := make([]models.QuizItem, len(questions))
	for i, q := range questions {
		items[i] = models.QuizItem{
			ID:       fmt.Sprintf("question-%d", i),
			Content:  q.Question,
			Question: q.Question,
			Choices:  shuffleWith(s, q.Choices),
			Image:    q.Image,
		}
	}
	return &Material{Items: items}
}

// classificationMaterial builds the board. The second result names the first
// category key seen twice; item ids derive from the key, so such a set cannot
// be played.
func classificationMaterial(categories []models.Category) (*Material, string) {
	m := &Material{
		Categories:            make([]models.CategoryView, 0, len(categories)),
		CorrectClassification: make(map[string][]string, len(categories)),
		CategoryImages:        make(map[string]string),
	}
	seen := make(map[string]struct{}, len(categories))
	for ci, c := range categories {
		key := CategoryKey(c, ci)
		if _, ok := seen[key]; ok {
			return nil, key
		}
		seen[key] = struct{}{}
		name := c.Name
		if name == "" {
			name = key
		}
		m.Categories = append(m.Categories, models.CategoryView{Key: key, Name: name, Image: c.Image})
		if c.Image != "" {
			m.CategoryImages[key] = c.Image
		}
		m.CorrectClassification[key] = append(m.CorrectClassification[key], c.Items...)
		for ii, content := range c.Items {
			m.Items = append(m.Items, models.QuizItem{
				ID:              fmt.Sprintf("%s-%d", key, ii),
				Content:         content,
				CorrectCategory: key,
			})
		}
	}
	return m, ""
}
