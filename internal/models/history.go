package models

import "time"

type ItemOutcome struct {
	ItemID          string `json:"itemId"`
	Content         string `json:"content"`
	Category        string `json:"category,omitempty"`
	CorrectCategory string `json:"correctCategory,omitempty"`
}

// StudyHistoryEntry is written once per finished quiz and never updated.
type StudyHistoryEntry struct {
	ID             string        `json:"id,omitempty"`
	SetID          string        `json:"setId"`
	Title          string        `json:"title"`
	Type           QuizType      `json:"type"`
	Score          int           `json:"score"`
	Date           time.Time     `json:"date"`
	StudyDuration  int           `json:"studyDuration"`
	ItemsStudied   int           `json:"itemsStudied"`
	CorrectItems   []ItemOutcome `json:"correctItems"`
	IncorrectItems []ItemOutcome `json:"incorrectItems"`
	TotalItems     int           `json:"totalItems"`
}

type StudyProgress struct {
	UserID            string     `json:"userId"`
	TotalStudySeconds int        `json:"totalStudySeconds"`
	ItemsStudied      int        `json:"itemsStudied"`
	SessionsCompleted int        `json:"sessionsCompleted"`
	CurrentStreak     int        `json:"currentStreak"`
	LongestStreak     int        `json:"longestStreak"`
	AverageScore      float64    `json:"averageScore"`
	LastStudyDate     *time.Time `json:"lastStudyDate,omitempty"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// FinishEvent is emitted after a finished quiz was persisted.
type FinishEvent struct {
	UserID        string    `json:"userId"`
	SetID         string    `json:"setId"`
	QuizType      QuizType  `json:"quizType"`
	HistoryID     string    `json:"historyId"`
	Score         int       `json:"score"`
	StudyDuration int       `json:"studyDuration"`
	ItemsStudied  int       `json:"itemsStudied"`
	TotalItems    int       `json:"totalItems"`
	FinishedAt    time.Time `json:"finishedAt"`
}
