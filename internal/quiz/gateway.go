package quiz

import (
	"context"

	"flashquiz-backend/internal/identity"
	"flashquiz-backend/internal/models"
)

// Gateway is the store the engines read sets from and mirror sessions to.
// SaveSessionState always overwrites the whole state.
type Gateway interface {
	GetSetByID(ctx context.Context, userID, setID string) (*models.Set, error)
	GetSessionState(ctx context.Context, userID, setID string, quizType models.QuizType) (*models.SessionState, error)
	SaveSessionState(ctx context.Context, userID, setID string, quizType models.QuizType, state *models.SessionState) error
	ClearSessionState(ctx context.Context, userID, setID string, quizType models.QuizType) error
	SaveStudyHistory(ctx context.Context, userID string, entry *models.StudyHistoryEntry) (string, error)
}

type Identity interface {
	CurrentUser() *identity.User
	Subscribe(fn func(*identity.User)) (unsubscribe func())
}

// Notifier pushes transient events (placement feedback) to the user's
// connected clients.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg models.WSMessage) error
}

// FinishSink receives persisted finish events for progress bookkeeping.
type FinishSink interface {
	OnFinish(ctx context.Context, ev models.FinishEvent) error
}
