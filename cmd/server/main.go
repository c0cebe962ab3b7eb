package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storyloom/backend/internal/audit"
	auditrepo "storyloom/backend/internal/audit/repository"
	authservice "storyloom/backend/internal/auth/service"
	"storyloom/backend/internal/config"
	"storyloom/backend/internal/db"
	"storyloom/backend/internal/devotp"
	"storyloom/backend/internal/logging"
	"storyloom/backend/internal/mail"
	notificationpublish "storyloom/backend/internal/notification/publish"
	"storyloom/backend/internal/notification/realtime"
	notificationrepo "storyloom/backend/internal/notification/repository"
	notificationservice "storyloom/backend/internal/notification/service"
	"storyloom/backend/internal/otp"
	otprepo "storyloom/backend/internal/otp/repository"
	"storyloom/backend/internal/security"
	"storyloom/backend/internal/server"
	"storyloom/backend/internal/server/middleware"
	sessionrepo "storyloom/backend/internal/session/repository"
	storyrepo "storyloom/backend/internal/story/repository"
	"storyloom/backend/internal/telemetry"
	telemetryotel "storyloom/backend/internal/telemetry/otel"
	userrepo "storyloom/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "storyloom-backend", cfg.OTLPInsecure)
	if err != nil {
		logger.Fatal("otel providers", zap.Error(err))
	}
	providers.SetGlobal()
	emitter := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer pool.Close()
	txm := db.NewTxManager(pool)

	users := userrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	challenges := otprepo.NewPostgresRepository(pool)
	stories := storyrepo.NewPostgresRepository(pool)
	notifications := notificationrepo.NewPostgresRepository(pool)

	var (
		devStore  devotp.Store
		transport mail.Transport
	)
	if cfg.DevOTPEnabled() {
		mem := devotp.NewMemoryStore()
		devStore = mem
		transport = mail.NewCaptureTransport(mem, logger)
		logger.Warn("dev OTP mode enabled: codes are not emailed and are readable at GET /dev/otp")
	} else {
		transport = newTransport(cfg, logger)
	}

	otpMetrics, err := telemetryotel.NewOTPMetrics(providers.MeterProvider)
	if err != nil {
		logger.Fatal("otp metrics", zap.Error(err))
	}
	issuer := otp.NewIssuer(challenges, transport, cfg.OTPTTL(), otpMetrics, logger)
	verifier := otp.NewVerifier(challenges, txm, cfg.OTPMaxAttempts, otpMetrics, logger)

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(pool), middleware.GetClientIP, emitter, logger)

	privateKey, publicKey, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		logger.Fatal("jwt keys", zap.Error(err))
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	authSvc := authservice.NewAuthService(users, sessions, issuer, verifier, security.NewHasher(cfg.BcryptCost), tokens, auditLogger, authservice.Config{
		PasswordMinLength:        cfg.PasswordMinLength,
		ConcealUnknownResetEmail: cfg.ResetConcealUnknownEmail,
	})

	hub := realtime.NewHub(cfg.CORSOrigins(), logger)
	publishers := notificationpublish.Multi{hub}
	kafkaPub := notificationpublish.NewKafkaPublisher(cfg.KafkaBrokersList(), cfg.NotificationKafkaTopic)
	if kafkaPub != nil {
		publishers = append(publishers, kafkaPub)
		logger.Info("publishing notifications to kafka", zap.String("topic", cfg.NotificationKafkaTopic))
	}
	notificationSvc := notificationservice.NewNotificationService(notifications, users, stories, txm, publishers, logger)

	handler := server.NewRouter(server.Deps{
		Auth:              authSvc,
		Notifications:     notificationSvc,
		Hub:               hub,
		HealthPinger:      pool,
		DevOTPStore:       devStore,
		Emitter:           emitter,
		Logger:            logger,
		PasswordMinLength: cfg.PasswordMinLength,
		CORSOrigins:       cfg.CORSOrigins(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	hub.Close()

	// Let in-flight async emits and publishes finish before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Warn("kafka close", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Warn("otel shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")
}

func newTransport(cfg *config.Config, logger *zap.Logger) mail.Transport {
	switch cfg.MailProvider {
	case config.MailProviderSMTP:
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailSenderEmail, cfg.OTPSubject)
	case config.MailProviderBrevo:
		if cfg.BrevoAPIKey == "" {
			logger.Warn("BREVO_API_KEY is empty; OTP emails will fail to send")
		}
		return mail.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoBaseURL, cfg.MailSenderEmail, cfg.MailSenderName, cfg.OTPSubject)
	default:
		logger.Fatal("MAIL_PROVIDER=dev is not allowed when APP_ENV=production")
		return nil
	}
}
