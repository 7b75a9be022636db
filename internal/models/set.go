package models

import (
	"fmt"
	"time"
)

type QuizType string

const (
	QuizTypeFlashcard      QuizType = "flashcard"
	QuizTypeQA             QuizType = "qa"
	QuizTypeMultipleChoice QuizType = "multiple-choice"
	QuizTypeClassification QuizType = "classification"
)

func (t QuizType) Valid() bool {
	switch t {
	case QuizTypeFlashcard, QuizTypeQA, QuizTypeMultipleChoice, QuizTypeClassification:
		return true
	}
	return false
}

func ParseQuizType(s string) (QuizType, error) {
	t := QuizType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown quiz type %q", s)
	}
	return t, nil
}

// Set is a study set as stored by the set editor. Only one of the item
// collections is populated, matching Type.
type Set struct {
	ID         string     `json:"id" yaml:"id"`
	UserID     string     `json:"userId" yaml:"userId"`
	Title      string     `json:"title" yaml:"title"`
	Type       QuizType   `json:"type" yaml:"type"`
	Cards      []Card     `json:"cards,omitempty" yaml:"cards,omitempty"`
	QAItems    []QAItem   `json:"qaItems,omitempty" yaml:"qaItems,omitempty"`
	Questions  []Question `json:"questions,omitempty" yaml:"questions,omitempty"`
	Categories []Category `json:"categories,omitempty" yaml:"categories,omitempty"`
	CreatedAt  time.Time  `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time  `json:"updatedAt" yaml:"-"`
}

type Card struct {
	Front string `json:"front" yaml:"front"`
	Back  string `json:"back" yaml:"back"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

type QAItem struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
	Image    string `json:"image,omitempty" yaml:"image,omitempty"`
}

type Question struct {
	Question string   `json:"question" yaml:"question"`
	Choices  []Choice `json:"choices" yaml:"choices"`
	Image    string   `json:"image,omitempty" yaml:"image,omitempty"`
}

type Choice struct {
	Text      string `json:"text" yaml:"text"`
	IsCorrect bool   `json:"isCorrect" yaml:"isCorrect"`
}

type Category struct {
	ID    string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Items []string `json:"items" yaml:"items"`
	Image string   `json:"image,omitempty" yaml:"image,omitempty"`
}

// SetContent is the JSONB document persisted alongside a set's columns.
type SetContent struct {
	Cards      []Card     `json:"cards,omitempty"`
	QAItems    []QAItem   `json:"qaItems,omitempty"`
	Questions  []Question `json:"questions,omitempty"`
	Categories []Category `json:"categories,omitempty"`
}

func (s *Set) Content() SetContent {
	return SetContent{
		Cards:      s.Cards,
		QAItems:    s.QAItems,
		Questions:  s.Questions,
		Categories: s.Categories,
	}
}

func (s *Set) ApplyContent(c SetContent) {
	s.Cards = c.Cards
	s.QAItems = c.QAItems
	s.Questions = c.Questions
	s.Categories = c.Categories
}
