package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"scholarship-exam-service/internal/app"
	"scholarship-exam-service/internal/auth"
	"scholarship-exam-service/internal/domain"
)

// Services are the use cases the HTTP API exposes.
type Services struct {
	Attempts   *app.AttemptService
	Payments   *app.PaymentService
	Rankings   *app.RankingService
	Tests      *app.TestService
	Candidates *app.CandidateService
}

type RouterConfig struct {
	Verifier       *auth.Verifier
	Roles          *auth.RoleResolver
	AllowedOrigins []string
	// Health reports readiness of backing stores; nil means always healthy.
	Health func(r *http.Request) error
}

func NewRouter(svc Services, cfg RouterConfig) http.Handler {
	h := &handlers{svc: svc}
	ws := NewLeaderboardHandler(svc.Rankings)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// The gateway signs webhooks; there is no bearer token on this route.
	r.Post("/tests/webhook", h.webhook)

	r.Group(func(pr chi.Router) {
		pr.Use(Authenticate(cfg.Verifier, cfg.Roles))

		pr.With(RequireRole(domain.RoleInstructor, domain.RoleAdmin)).
			Get("/tests/{id}/rankings/live", ws.ServeWS)

		pr.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(30 * time.Second))

			api.Group(func(sr chi.Router) {
				sr.Use(RequireRole(domain.RoleStudent))
				sr.Post("/tests/order", h.createOrder)
				sr.Get("/tests/order", h.confirmOrder)
				sr.Post("/tests/{id}/attempt/start", h.startAttempt)
				sr.Post("/tests/{id}/attempt/submit", h.submitAttempt)
				sr.Get("/tests/{id}/result", h.result)
				sr.Put("/candidates/me", h.saveProfile)
			})

			api.Group(func(ir chi.Router) {
				ir.Use(RequireRole(domain.RoleInstructor, domain.RoleAdmin))
				ir.Post("/tests", h.createTest)
				ir.Patch("/tests/{id}", h.updateTest)
				ir.Delete("/tests/{id}", h.deleteTest)
				ir.Post("/tests/{id}/questions", h.addQuestion)
				ir.Delete("/tests/{id}/questions/{questionId}", h.deleteQuestion)
				ir.Post("/tests/{id}/publish", h.publish)
				ir.Get("/tests/{id}/rankings", h.rankings)
			})

			api.Group(func(ar chi.Router) {
				ar.Use(RequireRole(domain.RoleAdmin))
				ar.Post("/tests/grant", h.grant)
				ar.Post("/sessions", h.createSession)
				ar.Delete("/candidates/{uid}", h.removeCandidate)
			})
		})
	})
	return r
}

type handlers struct {
	svc Services
}
