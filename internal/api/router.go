package api

import (
	"net/http"

	"cortex.ai/contract-desk/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Identity and onboarding
		r.Get("/identity", apiHandler.IdentityHandler)
		r.Post("/onboarding", apiHandler.OnboardingHandler)
		r.Post("/logout", apiHandler.LogoutHandler)

		// Contract and questions
		r.Post("/upload", apiHandler.UploadHandler)
		r.Get("/contract", apiHandler.ActiveContractHandler)
		r.Post("/ask", apiHandler.AskHandler)
		r.Get("/history", apiHandler.HistoryHandler)

		// Negotiation
		r.Get("/state", apiHandler.StateHandler)
		r.Get("/draft", apiHandler.CompiledDraftHandler)
		r.Get("/timeline", apiHandler.ContractTimelineHandler)
		r.Route("/clauses", func(r chi.Router) {
			r.Get("/", apiHandler.ListClausesHandler)
			r.Post("/refresh", apiHandler.RefreshClausesHandler)
			r.Route("/{index}", func(r chi.Router) {
				r.Post("/select", apiHandler.SelectClauseHandler)
				r.Post("/suggest", apiHandler.SuggestHandler)
				r.Put("/draft", apiHandler.EditDraftHandler)
				r.Post("/accept", apiHandler.AcceptHandler)
				r.Post("/reset", apiHandler.ResetHandler)
				r.Post("/counterparty", apiHandler.CounterpartyHandler)
				r.Get("/timeline", apiHandler.ClauseTimelineHandler)
			})
		})
	})

	return r
}
