package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flashquiz-backend/internal/logger"
	"flashquiz-backend/internal/middleware"
	"flashquiz-backend/internal/models"
	"flashquiz-backend/internal/quiz"
	"flashquiz-backend/internal/repository"
)

type quizOrchestrator interface {
	Open(ctx context.Context, key models.SessionKey, opts quiz.OpenOptions) (quiz.Engine, error)
	Engine(key models.SessionKey) (quiz.Engine, error)
	Finish(ctx context.Context, key models.SessionKey) (*quiz.Summary, error)
	Clear(ctx context.Context, key models.SessionKey) error
	Logout(uid string)
}

// Optional engine capabilities. An engine that lacks one answers
// ErrUnsupported.
type flipper interface {
	Flip(ctx context.Context) error
}

type reviewer interface {
	Review(ctx context.Context) error
}

type dragger interface {
	DragStart(ctx context.Context, itemID string) error
	DragOver(ctx context.Context, categoryID string) error
	DragEnd(ctx context.Context, itemID, targetCategoryID string) (bool, error)
}

type QuizHandler struct {
	quizzes quizOrchestrator
	log     *logger.Logger
}

func NewQuizHandler(quizzes quizOrchestrator, log *logger.Logger) *QuizHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &QuizHandler{quizzes: quizzes, log: log}
}

type startRequest struct {
	Fresh bool `json:"fresh"`
}

type dragRequest struct {
	ItemID     string `json:"itemId"`
	CategoryID string `json:"categoryId"`
}

type answerResponse struct {
	Correct bool      `json:"correct"`
	View    quiz.View `json:"view"`
}

func sessionKey(r *http.Request) (models.SessionKey, bool) {
	key := models.SessionKey{
		UserID:   middleware.GetUserID(r.Context()),
		SetID:    chi.URLParam(r, "setID"),
		QuizType: models.QuizType(chi.URLParam(r, "quizType")),
	}
	if key.SetID == "" || !key.QuizType.Valid() {
		return key, false
	}
	return key, true
}

// decodeBody accepts an empty body as the zero value.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// engineFor resolves the live engine for the request, writing the error
// response itself when there is none.
func (h *QuizHandler) engineFor(w http.ResponseWriter, r *http.Request) (quiz.Engine, bool) {
	key, ok := sessionKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid set or quiz type", r))
		return nil, false
	}
	eng, err := h.quizzes.Engine(key)
	if err != nil {
		h.handleQuizError(w, r, err)
		return nil, false
	}
	return eng, true
}

func (h *QuizHandler) Start(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid set or quiz type", r))
		return
	}
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	eng, err := h.quizzes.Open(r.Context(), key, quiz.OpenOptions{Fresh: req.Fresh})
	if err != nil {
		h.handleQuizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, eng.View())
}

func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, eng.View())
}

func (h *QuizHandler) Clear(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid set or quiz type", r))
		return
	}
	if err := h.quizzes.Clear(r.Context(), key); err != nil {
		h.handleQuizError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) Answer(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	var in quiz.Input
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	correct, err := eng.Answer(r.Context(), in)
	if err != nil {
		h.handleQuizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Correct: correct, View: eng.View()})
}

// transition wraps an engine operation that only changes state.
func (h *QuizHandler) transition(op func(ctx context.Context, eng quiz.Engine) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng, ok := h.engineFor(w, r)
		if !ok {
			return
		}
		if err := op(r.Context(), eng); err != nil {
			h.handleQuizError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, eng.View())
	}
}

func (h *QuizHandler) Flip(w http.ResponseWriter, r *http.Request) {
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		f, ok := eng.(flipper)
		if !ok {
			return quiz.ErrUnsupported
		}
		return f.Flip(ctx)
	})(w, r)
}

func (h *QuizHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		return eng.Advance(ctx)
	})(w, r)
}

func (h *QuizHandler) Review(w http.ResponseWriter, r *http.Request) {
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		rv, ok := eng.(reviewer)
		if !ok {
			return quiz.ErrUnsupported
		}
		return rv.Review(ctx)
	})(w, r)
}

func (h *QuizHandler) Shuffle(w http.ResponseWriter, r *http.Request) {
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		return eng.Shuffle(ctx)
	})(w, r)
}

func (h *QuizHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		return eng.Restart(ctx)
	})(w, r)
}

func (h *QuizHandler) Finish(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid set or quiz type", r))
		return
	}
	sum, err := h.quizzes.Finish(r.Context(), key)
	if err != nil {
		h.handleQuizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *QuizHandler) DragStart(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		d, ok := eng.(dragger)
		if !ok {
			return quiz.ErrUnsupported
		}
		return d.DragStart(ctx, req.ItemID)
	})(w, r)
}

func (h *QuizHandler) DragOver(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	h.transition(func(ctx context.Context, eng quiz.Engine) error {
		d, ok := eng.(dragger)
		if !ok {
			return quiz.ErrUnsupported
		}
		return d.DragOver(ctx, req.CategoryID)
	})(w, r)
}

func (h *QuizHandler) DragEnd(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	d, ok := eng.(dragger)
	if !ok {
		h.handleQuizError(w, r, quiz.ErrUnsupported)
		return
	}
	var req dragRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	correct, err := d.DragEnd(r.Context(), req.ItemID, req.CategoryID)
	if err != nil {
		h.handleQuizError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Correct: correct, View: eng.View()})
}

// Logout signs the caller out of every live quiz. Engines keep running but
// stop saving until the next start.
func (h *QuizHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.quizzes.Logout(middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *QuizHandler) handleQuizError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		loadErr    *quiz.LoadError
		invalidErr *quiz.InvalidSetError
		writeErr   *quiz.StorageWriteError
	)
	switch {
	case errors.As(err, &loadErr):
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Study set not found", r))
			return
		}
		if errors.Is(err, quiz.ErrNotAuthenticated) {
			writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Sign in to study this set", r))
			return
		}
		h.log.Error("quiz load failed", "set_id", loadErr.SetID, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResp("LOAD_ERROR", "Failed to load study set", r))
	case errors.As(err, &invalidErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp("INVALID_SET", invalidErr.Error(), r))
	case errors.As(err, &writeErr):
		h.log.Error("quiz storage write failed", "set_id", writeErr.Key.SetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("STORAGE_ERROR", "Failed to save quiz state", r))
	case errors.Is(err, quiz.ErrNotActive),
		errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrNothingToReview):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, quiz.ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, errorResp("UNSUPPORTED", err.Error(), r))
	case errors.Is(err, quiz.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, quiz.ErrNoSession):
		writeJSON(w, http.StatusNotFound, errorResp("NO_SESSION", "Start the quiz first", r))
	case errors.Is(err, quiz.ErrNotAuthenticated):
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Sign in to continue", r))
	default:
		h.log.Error("unexpected quiz error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
