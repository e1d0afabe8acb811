package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/api/auth"
	"github.com/streamhub-io/streamhub/internal/api/user"
	"github.com/streamhub-io/streamhub/internal/api/video"
)

// Config contains the dependencies needed for the router setup.
type Config struct {
	Logger       *slog.Logger
	JWT          config.JWTConfig
	AuthHandler  auth.Handler
	UserHandler  user.Handler
	VideoHandler video.Handler
}

// SetupRouter wires the versioned API route table. Server-wide middleware
// (request ID, logger, recoverer) is applied by main before mounting this.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	authenticate := auth.Authenticate(cfg.Logger, cfg.JWT)
	optionalAuth := auth.OptionalAuthenticate(cfg.Logger, cfg.JWT)

	r.Route("/api/v1", func(r chi.Router) {

		// Public auth routes. The credential endpoints are rate limited
		// per IP on top of the account lockout policy.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, 1*time.Minute))

			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/forgot-password", cfg.AuthHandler.ForgotPassword)
			r.Put("/auth/reset-password/{token}", cfg.AuthHandler.ResetPassword)
			r.Get("/auth/verify-email/{token}", cfg.AuthHandler.VerifyEmail)
			// Public because unverified accounts cannot log in; keyed by
			// email in the body.
			r.Post("/auth/resend-verification", cfg.AuthHandler.ResendVerification)
		})

		// Protected auth routes.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/me", cfg.AuthHandler.GetMe)
			r.Put("/auth/update-password", cfg.AuthHandler.UpdatePassword)
		})

		// Video catalog. The feed and single-video reads work anonymously
		// but pick up the viewer identity when a session is present, so
		// owners can see their private videos and likes resolve.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)

			r.Get("/videos", cfg.VideoHandler.GetFeed)
			r.Get("/videos/{videoID}", cfg.VideoHandler.GetVideo)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/videos", cfg.VideoHandler.Upload)
			r.Get("/videos/my", cfg.VideoHandler.GetMyVideos)
			r.Put("/videos/{videoID}/privacy", cfg.VideoHandler.UpdatePrivacy)
			r.Delete("/videos/{videoID}", cfg.VideoHandler.Delete)
			r.Post("/videos/{videoID}/like", cfg.VideoHandler.ToggleLike)
		})

		// User profiles.
		r.Get("/users/{username}", cfg.UserHandler.GetPublicProfile)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/users/profile", cfg.UserHandler.GetProfile)
			r.Get("/users/activity", cfg.UserHandler.GetActivity)
			r.Put("/users/profile", cfg.UserHandler.UpdateProfile)
			r.Delete("/users/profile", cfg.UserHandler.DeleteAccount)
			r.Put("/users/avatar", cfg.UserHandler.UploadAvatar)
		})

		// Admin routes.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(auth.RequireRole(cfg.Logger, "admin"))

			r.Get("/admin/users", cfg.UserHandler.ListUsers)
			r.Get("/admin/users/{userID}", cfg.UserHandler.GetUser)
			r.Put("/admin/users/{userID}/role", cfg.UserHandler.UpdateRole)
			r.Delete("/admin/users/{userID}", cfg.UserHandler.DeleteUser)
		})
	})

	return r
}
