package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	// base middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// our logger (after RequestID)
	r.Use(RequestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// everything below needs an authenticated identity
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.SubmitTask)
			r.Get("/", h.ListTasks)
			r.Get("/{id}/status", h.TaskStatus)
			r.Get("/{id}/events", h.TaskEvents)
			r.Get("/{id}/download", h.DownloadTask)
			r.Post("/{id}/delete", h.DeleteTask)
			r.Post("/{id}/revoke", h.RevokeTask)
		})

		r.Get("/voices", h.ListVoices)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return r
}
