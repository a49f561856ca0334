package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
)

// RouterConfig carries the cross-cutting pieces the router wires in front of
// the handlers.
type RouterConfig struct {
	Verifier       *auth.Verifier
	Limiter        *RateLimiter
	RequestTimeout time.Duration
}

// NewRouter mounts the HTTP API. Everything under /api/v1 requires a bearer
// token.
func NewRouter(h *HTTPHandler, cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.Limiter != nil {
		r.Use(cfg.Limiter.Middleware)
	}
	r.Use(LimitBody(MaxBodyBytes))

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier, log))

		r.Post("/sows", h.RegisterDocument)
		r.Route("/sows/{documentId}", func(r chi.Router) {
			r.Get("/", h.GetDocument)

			r.Get("/workflow", h.GetWorkflowStatus)
			r.Post("/workflow", h.StartWorkflow)
			r.Post("/workflow/stages/{stageId}", h.ActOnStage)
			r.Get("/workflow/history", h.GetWorkflowHistory)

			r.Get("/comments", h.ListComments)
			r.Post("/comments", h.AddComment)
		})

		r.Get("/approval-stages", h.ListStages)
		r.Post("/approval-stages", h.CreateStage)
		r.Put("/approval-stages/{stageId}", h.UpdateStage)

		r.Get("/approval-rules", h.ListRules)
		r.Post("/approval-rules", h.CreateRule)
		r.Put("/approval-rules/{ruleId}", h.UpdateRule)
		r.Delete("/approval-rules/{ruleId}", h.DeleteRule)
	})

	return r
}
