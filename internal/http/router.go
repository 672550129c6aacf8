package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"photomemo/internal/auth"
	"photomemo/internal/blob"
	"photomemo/internal/config"
	"photomemo/internal/http/handler"
	mw "photomemo/internal/http/middleware"
	"photomemo/internal/journal"
)

// Services are the collaborators the routes dispatch to.
type Services struct {
	JWT     *auth.JWT
	Auth    *auth.Service
	Journal *journal.Service
	Uploads *blob.Uploads
	Log     logrus.FieldLogger
	// Ping reports backing store health for /health. Optional.
	Ping func(ctx context.Context) error
}

func NewRouter(cfg config.Config, s Services) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(s.Log))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if s.Ping != nil {
			if err := s.Ping(r.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	requireAuth := auth.RequireAuth(s.JWT)

	ah := &handler.AuthHandler{Svc: s.Auth, Log: s.Log, CookieSecure: cfg.CookieSecure}
	uh := &handler.UploadHandler{Uploads: s.Uploads, Log: s.Log}
	memoH := &handler.MemoHandler{Svc: s.Journal, Log: s.Log}
	postH := &handler.PostHandler{Svc: s.Journal, Log: s.Log}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", ah.Register)
			r.Post("/login", ah.Login)
			r.With(requireAuth).Get("/me", ah.Me)
			r.With(requireAuth).Post("/logout", ah.Logout)
			r.With(requireAuth, auth.RequireRole(auth.RoleAdmin)).Get("/users", ah.Users)
		})

		r.With(requireAuth).Post("/upload/presign", uh.Presign)

		r.Route("/memo", func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/", memoH.Create)
			r.Get("/me", memoH.ListMine)

			r.Get("/group/{groupId}", memoH.GetGroup)
			r.Put("/group/{groupId}", memoH.EditGroup)
			r.Delete("/group/{groupId}", memoH.DeleteGroup)

			r.Put("/{id}", memoH.Update)
			r.Delete("/{id}", memoH.Delete)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postH.List)
			r.With(requireAuth).Get("/my", postH.ListMine)
			r.Get("/{id}", postH.Get)
			r.With(requireAuth).Put("/{id}", postH.Update)
			r.With(requireAuth).Delete("/{id}", postH.Delete)
		})
	})

	return r
}
