package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/wellhost/wellhost-server-go/internal/config"
	"github.com/wellhost/wellhost-server-go/internal/database"
	"github.com/wellhost/wellhost-server-go/internal/handler"
	"github.com/wellhost/wellhost-server-go/internal/httputil"
	"github.com/wellhost/wellhost-server-go/internal/jobs"
	"github.com/wellhost/wellhost-server-go/internal/middleware"
	"github.com/wellhost/wellhost-server-go/internal/model"
	"github.com/wellhost/wellhost-server-go/internal/redis"
	"github.com/wellhost/wellhost-server-go/internal/repository"
	"github.com/wellhost/wellhost-server-go/internal/service"
	"github.com/wellhost/wellhost-server-go/internal/sse"
	"github.com/wellhost/wellhost-server-go/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)
	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	isProduction := cfg.IsProduction()
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	cipher, err := util.NewTokenCipher(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid encryption key")
	}

	accountRepo := repository.NewExternalAccountRepository(db.DB)
	propertyRepo := repository.NewPropertyRepository(db.DB)
	reservationRepo := repository.NewReservationRepository(db.DB)
	inventoryRepo := repository.NewInventoryRepository(db.DB)

	broker := sse.NewBroker(redisClient)

	pageCache := redis.NewPageCache(redisClient.Client)

	airbnbService := service.NewAirbnbService(cfg, accountRepo, cipher, broker)
	tokenService := service.NewTokenService(
		accountRepo,
		map[model.Platform]service.TokenRefresher{model.PlatformAirbnb: airbnbService},
		redis.NewLocker(redisClient.Client),
		cipher,
		cfg.RefreshLockTTL(),
	)
	accountService := service.NewAccountService(accountRepo, broker)
	reservationService := service.NewReservationService(propertyRepo, reservationRepo, pageCache, broker, cfg.ReservationCacheTTL())
	inventoryService := service.NewInventoryService(db, propertyRepo, inventoryRepo, pageCache, broker)

	sessionTokens := service.NewSessionTokenService(cfg.SessionSecret, cfg.SessionTTL())
	resolver := service.NewSessionResolver(
		service.NewManagedSessionVerifier(cfg.SupabaseJWTSecret),
		sessionTokens,
		cfg.AllowLegacySessionTokens,
	)

	dispatcher := service.NewWebhookDispatcher(redis.NewClaimStore(redisClient.Client), cfg.WebhookDedupTTL())
	for _, eventType := range []string{
		model.EventReservationNew,
		model.EventReservationUpdated,
		model.EventReservationCancelled,
	} {
		dispatcher.Register(eventType, reservationService)
	}
	dispatcher.Register(model.EventRateChanged, inventoryService)
	dispatcher.Register(model.EventAvailabilityChanged, inventoryService)

	limiter := redis.NewRateLimiter(redisClient.Client)
	identityMiddleware := middleware.NewIdentityMiddleware(resolver)
	ownershipMiddleware := middleware.NewOwnershipMiddleware()
	userRateLimit := middleware.NewIdentityRateLimitMiddleware(limiter, config.DefaultRateLimitPerMin, config.RateLimitWindow)
	sessionRateLimit := middleware.NewIPRateLimitMiddleware(limiter, config.SessionIssueLimitPerIP, config.RateLimitWindow, "session")
	webhookSignatureMiddleware := middleware.NewWebhookSignatureMiddleware(cfg.ChannexWebhookSecret)
	csrfMiddleware := middleware.NewCSRFMiddleware(isProduction)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	airbnbHandler := handler.NewAirbnbHandler(airbnbService, accountService, tokenService, cfg.DashboardURL(), isProduction)
	channexHandler := handler.NewChannexHandler(dispatcher)
	authHandler := handler.NewAuthHandler(sessionTokens, isProduction)
	propertiesHandler := handler.NewPropertiesHandler(reservationService)
	eventsHandler := handler.NewEventsHandler(broker)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   append([]string{cfg.AppBaseURL}, cfg.CORSOrigins...),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.CSRFHeaderName},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.With(webhookSignatureMiddleware.Handler).Post("/channex/webhook", channexHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(csrfMiddleware.Handler)

				r.Mount("/auth", authHandler.Routes(identityMiddleware, sessionRateLimit.Handler))
				r.Mount("/airbnb", airbnbHandler.Routes(identityMiddleware, userRateLimit.Handler, ownershipMiddleware.Handler))

				r.Group(func(r chi.Router) {
					r.Use(identityMiddleware.Handler)
					r.Use(userRateLimit.Handler)
					r.Use(ownershipMiddleware.Handler)
					r.Mount("/properties", propertiesHandler.Routes())
				})
			})
		})

		// Event streams outlive the request timeout.
		r.With(identityMiddleware.Handler).Get("/events", eventsHandler.ServeHTTP)
	})

	statsJob := jobs.NewAccountStatsJob(accountRepo, config.AccountStatsJobInterval)
	statsJob.Start()
	defer statsJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Str("env", cfg.AppEnv).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	// Close event streams first so Shutdown is not held open by them.
	broker.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func healthHandler(db *database.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		checks := map[string]string{"database": "ok", "redis": "ok"}

		if err := db.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("health check: database unreachable")
			checks["database"] = "unreachable"
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error().Err(err).Msg("health check: redis unreachable")
			checks["redis"] = "unreachable"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httputil.WriteJSON(w, code, map[string]any{
			"status":    status,
			"checks":    checks,
			"timestamp": time.Now().UnixMilli(),
		})
	}
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
