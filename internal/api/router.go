package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/auth"
)

type RouterOptions struct {
	CORSOrigins []string
	// Auth serves the login routes; nil leaves them unregistered.
	Auth   *auth.Handler
	Logger *zap.Logger
}

func NewRouter(h *APIHandler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(logger),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes) // "/thread/get_chat_thread/" and friends
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Animation"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Get("/health", h.Health)

	r.Post("/generate-user", h.handle(h.GenerateUser))
	r.Get("/get-user/{etaID}", h.handle(h.GetUser))
	r.Post("/user/sync", h.handle(h.SyncUser))

	r.Post("/upload-context", h.handle(h.UploadContext))
	r.Get("/get-context/{etaID}", h.handle(h.GetContext))

	r.Route("/thread", func(r chi.Router) {
		r.Post("/create_chat_thread", h.handle(h.CreateThread))
		r.Get("/get_chat_thread", h.handle(h.GetThread))
		r.Post("/add_message", h.handle(h.AddMessage))
	})

	r.Post("/generate-practice-problems", h.handle(h.study(h.svc.Study.PracticeProblems, "practice_problems")))
	r.Post("/generate-weekly-plan", h.handle(h.study(h.svc.Study.WeeklyPlan, "weekly_plan")))
	r.Post("/generate-notes", h.handle(h.study(h.svc.Study.Notes, "notes")))

	r.Post("/voice-response", h.handle(h.VoiceResponse))

	if a := opts.Auth; a != nil {
		r.Get("/login", a.Login)
		r.Get("/callback", a.Callback)
		r.Get("/logout", a.Logout)
		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/login", a.Login)
			r.Get("/user", a.User)
		})
	}

	return r
}
