package models

// WebSocket message types
const (
	WSTypeFeedback        = "feedback"
	WSTypeFeedbackCleared = "feedback_cleared"
	WSTypeStudyFinished   = "study_finished"
	WSTypeProgressUpdated = "progress_updated"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type FeedbackUpdate struct {
	SetID      string `json:"setId"`
	CategoryID string `json:"categoryId"`
	ItemID     string `json:"itemId,omitempty"`
	Color      string `json:"color,omitempty"`
}

type StudyFinished struct {
	SetID     string   `json:"setId"`
	QuizType  QuizType `json:"quizType"`
	HistoryID string   `json:"historyId"`
	Score     int      `json:"score"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
