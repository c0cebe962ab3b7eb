package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"storyloom/backend/internal/devotp"
	"storyloom/backend/internal/server/middleware"
	"storyloom/backend/internal/telemetry"
)

// Deps holds the services behind the HTTP API.
type Deps struct {
	// Auth serves the OTP-gated auth routes and authenticates bearer tokens. Required.
	Auth AuthAPI
	// Notifications serves the notification routes. Required.
	Notifications NotificationAPI
	// Hub serves the websocket stream. If nil, the stream route is not registered.
	Hub RealtimeHub
	// HealthPinger is pinged by /healthz (e.g. *pgxpool.Pool). If nil, the database check is skipped.
	HealthPinger Pinger
	// DevOTPStore enables GET /dev/otp. Set only when dev OTP mode is enabled outside production.
	DevOTPStore devotp.Store
	// Emitter receives http_request telemetry events. May be nil.
	Emitter telemetry.EventEmitter
	// Logger is the request logger. If nil, a no-op logger is used.
	Logger *zap.Logger
	// PasswordMinLength is enforced at the boundary for signup and reset.
	PasswordMinLength int
	// CORSOrigins are the allowed browser origins. Empty allows none.
	CORSOrigins []string
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	errs := errorWriter{logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(middleware.RequestLogger(logger, deps.Emitter, map[string]bool{"/healthz": true}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{StatusCode: http.StatusNotFound, Message: "Route not found", Code: CodeNotFound})
	})

	health := &healthHandler{db: deps.HealthPinger}
	r.Get("/healthz", health.check)

	if deps.DevOTPStore != nil {
		dev := &devOTPHandler{store: deps.DevOTPStore, errs: errs}
		r.Get("/dev/otp", dev.get)
	}

	auth := &authHandler{auth: deps.Auth, passwordMinLength: deps.PasswordMinLength, errs: errs}
	notifications := &notificationHandler{notifications: deps.Notifications, hub: deps.Hub, errs: errs}
	requireAuth := middleware.RequireAuth(deps.Auth, errs.write)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/send-signup-otp", auth.sendSignupOTP)
			r.Post("/verify-signup-otp", auth.verifySignupOTP)
			r.Post("/send-login-otp", auth.sendLoginOTP)
			r.Post("/verify-login-otp", auth.verifyLoginOTP)
			r.Post("/forget-password/send-otp", auth.sendResetOTP)
			r.Post("/forget-password/reset-password", auth.resetPassword)
			r.Post("/refresh", auth.refresh)
			r.With(requireAuth).Post("/logout", auth.logout)
		})
		r.Route("/notifications", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notifications.list)
			r.Post("/", notifications.create)
			r.Delete("/{id}", notifications.respond)
			if deps.Hub != nil {
				r.Get("/ws", notifications.stream)
			}
		})
	})

	return otelhttp.NewHandler(r, "storyloom-http",
		otelhttp.WithFilter(func(req *http.Request) bool { return req.URL.Path != "/healthz" }),
	)
}
