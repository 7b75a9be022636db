package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"flashquiz-backend/internal/handlers"
	"flashquiz-backend/internal/middleware"
	"flashquiz-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	limiter *middleware.RateLimiter,
	quizHandler *handlers.QuizHandler,
	historyHandler *handlers.HistoryHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── WebSocket (token in query) ────
		r.Get("/ws", wsHub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(limiter.Middleware)

			// ──── Quiz Session Routes ────
			r.Route("/quiz/{setID}/{quizType}", func(r chi.Router) {
				r.Post("/start", quizHandler.Start)
				r.Get("/", quizHandler.Get)
				r.Delete("/", quizHandler.Clear)
				r.Post("/answer", quizHandler.Answer)
				r.Post("/flip", quizHandler.Flip)
				r.Post("/advance", quizHandler.Advance)
				r.Post("/review", quizHandler.Review)
				r.Post("/shuffle", quizHandler.Shuffle)
				r.Post("/restart", quizHandler.Restart)
				r.Post("/finish", quizHandler.Finish)
				r.Post("/drag-start", quizHandler.DragStart)
				r.Post("/drag-over", quizHandler.DragOver)
				r.Post("/drag-end", quizHandler.DragEnd)
			})

			// ──── History & Progress ────
			r.Get("/history", historyHandler.List)
			r.Get("/progress", historyHandler.Progress)

			r.Post("/identity/logout", quizHandler.Logout)
		})
	})

	return r
}
