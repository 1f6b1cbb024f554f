package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/sessions", apiHandler.CreateSessionHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Session-token-guarded routes
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(apiHandler.SessionAuthMiddleware)

			r.Get("/", apiHandler.GetTranscriptHandler)
			r.Post("/messages", apiHandler.PostMessageHandler)
			r.Post("/documents", apiHandler.UploadDocumentHandler)
		})
	})

	return r
}
