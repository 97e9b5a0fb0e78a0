package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotcal/slotcal/internal/availability"
	"github.com/slotcal/slotcal/internal/booking"
	"github.com/slotcal/slotcal/internal/enrichment"
	"github.com/slotcal/slotcal/internal/handlers"
	"github.com/slotcal/slotcal/internal/outbox"
	"github.com/slotcal/slotcal/internal/storage"
	"github.com/slotcal/slotcal/libs/auth"
	"github.com/slotcal/slotcal/libs/config"
	"github.com/slotcal/slotcal/libs/db"
	"github.com/slotcal/slotcal/libs/httpx"
	"github.com/slotcal/slotcal/libs/kafkax"
	otelx "github.com/slotcal/slotcal/libs/otel"
	"github.com/slotcal/slotcal/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "slotcal")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	scheduleRepo := storage.NewScheduleRepository(pool)
	eventRepo := storage.NewEventTypeRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)

	resolver := &availability.Resolver{Schedules: scheduleRepo, Busy: bookingRepo}
	bookingSvc := &booking.Service{
		Events:    eventRepo,
		Schedules: scheduleRepo,
		Store:     bookingRepo,
		Logger:    logger,
	}

	enricher := enrichment.NewClient(enrichment.Config{
		ScrapeURL:    config.String("ENRICHMENT_SCRAPE_URL", ""),
		ScrapeAPIKey: config.String("ENRICHMENT_SCRAPE_API_KEY", ""),
		ChatURL:      config.String("ENRICHMENT_CHAT_URL", ""),
		ChatAPIKey:   config.String("ENRICHMENT_CHAT_API_KEY", ""),
		ChatModel:    config.String("ENRICHMENT_CHAT_MODEL", "deepseek-ai/DeepSeek-V3-0324"),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	retention := outbox.NewRetention(outboxRepo, logger,
		config.String("OUTBOX_RETENTION_CRON", ""),
		durationDays(config.String("OUTBOX_RETENTION_DAYS", "7"), logger))
	go retention.Run(ctx)

	var jwksClient *auth.JWKSClient
	if jwksURL := config.String("JWKS_URL", ""); jwksURL != "" {
		jwksClient = auth.NewJWKSClient(jwksURL, 5*time.Minute)
	}
	jwtSecret := config.String("JWT_SECRET", "")

	var redisClient *redis.Client
	var publicLimit httpx.Middleware
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		publicLimit = httpx.NewRedisRateLimiter(redisClient, 120, time.Minute, "slotcal:public").
			Middleware(logger, true)
	} else {
		publicLimit = httpx.NewRateLimiter(120, time.Minute).Middleware()
	}

	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, logger)
	eventHandler := handlers.NewEventTypeHandler(eventRepo, enricher, logger)
	ownerBookings := handlers.NewOwnerBookingHandler(bookingRepo, bookingSvc, logger)
	public := handlers.NewPublicHandler(eventRepo, resolver, bookingSvc, logger)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if redisClient != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)

	requireOwner := func(h http.HandlerFunc) http.Handler {
		return handlers.RequireOwner(h, jwtSecret, jwksClient)
	}
	mux.Handle("/api/v1/schedule", requireOwner(scheduleHandler.Handle))
	mux.Handle("/api/v1/events", requireOwner(eventHandler.Collection))
	mux.Handle("/api/v1/events/", requireOwner(eventHandler.Item))
	mux.Handle("/api/v1/bookings", requireOwner(ownerBookings.List))
	mux.Handle("/api/v1/bookings/cancel", requireOwner(ownerBookings.Cancel))

	mux.Handle("/api/v1/public/events", publicLimit(http.HandlerFunc(public.Events)))
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(public.Slots)))
	mux.Handle("/api/v1/public/book", publicLimit(http.HandlerFunc(public.Book)))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(corsPolicyFromEnv()),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func corsPolicyFromEnv() httpx.CORSPolicy {
	var origins []string
	for _, o := range strings.Split(config.String("CORS_ALLOWED_ORIGINS", ""), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return httpx.CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         10 * time.Minute,
	}
}

func durationDays(raw string, logger *slog.Logger) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		logger.Warn("invalid retention days; using default", "value", raw)
		return 0
	}
	return time.Duration(n) * 24 * time.Hour
}
