package models

import (
	"encoding/json"
	"time"
)

// QuizItem is the normalized unit an engine iterates over. Which fields are
// populated depends on the quiz type that produced it.
type QuizItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`

	Front    string   `json:"front,omitempty"`
	Back     string   `json:"back,omitempty"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Choices  []Choice `json:"choices,omitempty"`

	Category        *string `json:"category,omitempty"`
	CorrectCategory string  `json:"correctCategory,omitempty"`
	IsClassified    bool    `json:"isClassified,omitempty"`

	Answered bool   `json:"answered,omitempty"`
	Image    string `json:"image,omitempty"`
}

// CategoryView is a category as shown on the classification board.
// Key is the drop-target id.
type CategoryView struct {
	Key   string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

type FlashcardData struct {
	IsFlipped bool `json:"isFlipped"`
}

type QAData struct {
	IsReviewing    bool  `json:"isReviewing"`
	ReviewQueue    []int `json:"reviewQueue,omitempty"`
	ReviewPosition int   `json:"reviewPosition"`
}

type MultipleChoiceData struct {
	// Selections holds the submitted choice indexes per item id.
	Selections map[string][]int `json:"selections,omitempty"`
}

type ClassificationData struct {
	Categories            []CategoryView      `json:"categories"`
	ClassifiedItems       map[string][]string `json:"classifiedItems"`
	CorrectAnswers        map[string][]string `json:"correctAnswers"`
	IncorrectAnswers      map[string][]string `json:"incorrectAnswers"`
	CategoryImages        map[string]string   `json:"categoryImages,omitempty"`
	CorrectClassification map[string][]string `json:"correctClassification,omitempty"`
	ShowResults           bool                `json:"showResults"`
}

// SessionState is the resumable state of one quiz, keyed by
// (userId, setId, quizType). Exactly one of the per-type payloads is set.
type SessionState struct {
	QuizType       QuizType
	CurrentIndex   int
	Items          []QuizItem
	Results        []*bool
	StudiedItems   []string
	CompletedItems int
	LastStudyDate  *time.Time

	StartTime  time.Time
	IsLastItem bool
	IsFinished bool
	Score      *int

	Flashcard      *FlashcardData
	QA             *QAData
	MultipleChoice *MultipleChoiceData
	Classification *ClassificationData
}

// Checkpointed reports whether the state is the record written by finish.
// A classification board that merely ran out of items is flagged finished
// too, but carries no score until finish runs.
func (s *SessionState) Checkpointed() bool {
	return s.IsFinished && (s.Score != nil || s.LastStudyDate != nil)
}

type sessionStateWire struct {
	QuizType          QuizType       `json:"quizType,omitempty"`
	CurrentIndex      int            `json:"currentIndex"`
	ShuffledCards     []QuizItem     `json:"shuffledCards,omitempty"`
	ShuffledQuestions []QuizItem     `json:"shuffledQuestions,omitempty"`
	ShuffledItems     []QuizItem     `json:"shuffledItems,omitempty"`
	Results           []*bool        `json:"results"`
	StudiedItems      []string       `json:"studiedItems"`
	CompletedItems    int            `json:"completedItems,omitempty"`
	LastStudyDate     *time.Time     `json:"lastStudyDate,omitempty"`
	AdditionalData    additionalData `json:"additionalData"`
}

type additionalData struct {
	StartTime  time.Time `json:"startTime"`
	IsLastItem bool      `json:"isLastItem,omitempty"`
	IsFinished bool      `json:"isFinished"`
	Score      *int      `json:"score,omitempty"`

	*FlashcardData
	*QAData
	*MultipleChoiceData
	*ClassificationData
}

func (s SessionState) MarshalJSON() ([]byte, error) {
	w := sessionStateWire{
		QuizType:       s.QuizType,
		CurrentIndex:   s.CurrentIndex,
		Results:        s.Results,
		StudiedItems:   s.StudiedItems,
		CompletedItems: s.CompletedItems,
		LastStudyDate:  s.LastStudyDate,
		AdditionalData: additionalData{
			StartTime:  s.StartTime,
			IsLastItem: s.IsLastItem,
			IsFinished: s.IsFinished,
			Score:      s.Score,
		},
	}
	if w.Results == nil {
		w.Results = []*bool{}
	}
	if w.StudiedItems == nil {
		w.StudiedItems = []string{}
	}

	switch s.QuizType {
	case QuizTypeFlashcard:
		w.ShuffledCards = s.Items
		w.AdditionalData.FlashcardData = s.Flashcard
	case QuizTypeQA:
		w.ShuffledQuestions = s.Items
		w.AdditionalData.QAData = s.QA
	case QuizTypeMultipleChoice:
		w.ShuffledQuestions = s.Items
		w.AdditionalData.MultipleChoiceData = s.MultipleChoice
	default:
		w.ShuffledItems = s.Items
		w.AdditionalData.ClassificationData = s.Classification
	}
	return json.Marshal(w)
}

func (s *SessionState) UnmarshalJSON(data []byte) error {
	var w sessionStateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = SessionState{
		QuizType:       w.QuizType,
		CurrentIndex:   w.CurrentIndex,
		Results:        w.Results,
		StudiedItems:   w.StudiedItems,
		CompletedItems: w.CompletedItems,
		LastStudyDate:  w.LastStudyDate,
		StartTime:      w.AdditionalData.StartTime,
		IsLastItem:     w.AdditionalData.IsLastItem,
		IsFinished:     w.AdditionalData.IsFinished,
		Score:          w.AdditionalData.Score,
	}

	// Older records carry no quizType; the item key tells them apart.
	if s.QuizType == "" {
		switch {
		case len(w.ShuffledCards) > 0:
			s.QuizType = QuizTypeFlashcard
		case len(w.ShuffledItems) > 0 || w.AdditionalData.ClassificationData != nil:
			s.QuizType = QuizTypeClassification
		case w.AdditionalData.MultipleChoiceData != nil:
			s.QuizType = QuizTypeMultipleChoice
		case len(w.ShuffledQuestions) > 0:
			s.QuizType = QuizTypeQA
		}
	}

	switch s.QuizType {
	case QuizTypeFlashcard:
		s.Items = firstNonEmpty(w.ShuffledCards, w.ShuffledQuestions, w.ShuffledItems)
		s.Flashcard = w.AdditionalData.FlashcardData
		if s.Flashcard == nil {
			s.Flashcard = &FlashcardData{}
		}
	case QuizTypeQA:
		s.Items = firstNonEmpty(w.ShuffledQuestions, w.ShuffledCards, w.ShuffledItems)
		s.QA = w.AdditionalData.QAData
		if s.QA == nil {
			s.QA = &QAData{}
		}
	case QuizTypeMultipleChoice:
		s.Items = firstNonEmpty(w.ShuffledQuestions, w.ShuffledItems, w.ShuffledCards)
		s.MultipleChoice = w.AdditionalData.MultipleChoiceData
		if s.MultipleChoice == nil {
			s.MultipleChoice = &MultipleChoiceData{}
		}
	default:
		s.Items = firstNonEmpty(w.ShuffledItems, w.ShuffledQuestions, w.ShuffledCards)
		s.Classification = w.AdditionalData.ClassificationData
	}
	return nil
}

func firstNonEmpty(lists ...[]QuizItem) []QuizItem {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// SessionKey identifies one resumable quiz.
type SessionKey struct {
	UserID   string
	SetID    string
	QuizType QuizType
}
