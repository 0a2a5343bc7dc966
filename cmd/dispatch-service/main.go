// cmd/dispatch-service/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-dispatch/internal/channels"
	"notification-dispatch/internal/common/auth"
	"notification-dispatch/internal/common/aws"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/database"
	commonerrors "notification-dispatch/internal/common/errors"
	httpclient "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/common/validation"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/ingest"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/preference"
	"notification-dispatch/internal/realtime"
	"notification-dispatch/internal/resilience"
	"notification-dispatch/internal/template"
	"notification-dispatch/internal/tracker"
	"notification-dispatch/pkg/capability"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch service...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional audit sink) ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Delivery tracking ---
	var indexer tracker.AuditIndexer
	if esClient != nil {
		indexer = tracker.NewESIndexer(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
	}
	trk := tracker.New(tracker.NewPostgresRepo(pg.DB), indexer, log)

	// --- Preference gate ---
	prefStore := preference.NewCachedStore(
		preference.NewPostgresStore(pg.DB),
		rdb.Client,
		cfg.Dispatch.PreferenceTTL,
		log,
	)
	limiter := preference.NewFrequencyLimiter(rdb.Client, log)
	gate := preference.NewGate(prefStore, limiter, log)

	// --- Template rendering ---
	renderer := template.NewRenderer(template.NewPostgresStore(pg.DB), log)

	// --- Channel senders wrapped with breaker/retry/timeout ---
	deliverer := make(map[models.Channel]dispatch.ChannelDeliverer)

	if cfg.Channels.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Channels.Email.AWSRegion)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		sender := channels.NewEmailSender(sesClient, cfg.Channels.Email.FromEmail)
		deliverer[models.ChannelEmail] = resilience.NewWrapper(sender, cfg.Channels.Email.Resilience, log)
	}

	if cfg.Channels.SMS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Channels.SMS.AWSRegion)
		if err != nil {
			zapLog.Fatal("sns client failed", zap.Error(err))
		}
		sender := channels.NewSMSSender(snsClient)
		deliverer[models.ChannelSMS] = resilience.NewWrapper(sender, cfg.Channels.SMS.Resilience, log)
	}

	if cfg.Channels.Push.Enabled {
		sender := channels.NewPushSender(
			httpclient.NewClient(cfg.Channels.Push.Resilience.CallTimeout),
			cfg.Channels.Push.ProviderURL,
			cfg.Channels.Push.APIKey,
		)
		deliverer[models.ChannelPush] = resilience.NewWrapper(sender, cfg.Channels.Push.Resilience, log)
	}

	// in-app writes to local redis, so the breaker is tuned tight
	deliverer[models.ChannelInApp] = resilience.NewWrapper(
		channels.NewInAppSender(rdb.Client),
		config.ResilienceConfig{
			FailureRateThreshold: 0.5,
			SlidingWindow:        10,
			MinimumCalls:         5,
			OpenWait:             10 * time.Second,
			HalfOpenProbes:       2,
			MaxRetryAttempts:     1,
			RetryWait:            100 * time.Millisecond,
			CallTimeout:          2 * time.Second,
		},
		log,
	)
	zapLog.Info("Channel senders initialized", zap.Int("channels", len(deliverer)))

	// --- Realtime hub + pipeline ---
	hub := realtime.NewHub(
		&readMarkerAdapter{trk: trk},
		&preferenceForwarder{updater: preference.NewPostgresStore(pg.DB), cache: prefStore},
		log,
	)

	dispatcher := dispatch.New(gate, prefStore, renderer, trk, hub, deliverer, cfg.Dispatch.QueueSize, log)
	dispatcher.Start(ctx, cfg.Dispatch.WorkerPoolSize)

	// --- Event ingestion ---
	validator, err := validation.NewEventValidator()
	if err != nil {
		zapLog.Fatal("event validator failed", zap.Error(err))
	}

	dlq := ingest.NewDeadLetter(cfg.Kafka.Brokers, cfg.Kafka.DeadLetterTopic, log)
	defer dlq.Close()

	consumer := ingest.NewConsumer(
		cfg.Kafka,
		validator,
		ingest.NewPreferredChannelRouter(hub, prefStore),
		dispatcher,
		dlq,
		log,
	)

	consumerCtx, stopConsumer := context.WithCancel(ctx)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Run(consumerCtx); err != nil && consumerCtx.Err() == nil {
			zapLog.Error("consumer exited", zap.Error(err))
		}
	}()
	zapLog.Info("Event consumer started", zap.Strings("brokers", cfg.Kafka.Brokers))

	// --- Health reporting ---
	health := capability.NewHealthReporter()
	health.Register("postgres", func() error { return pg.Ping(context.Background()) })
	health.Register("redis", func() error { return rdb.Ping(context.Background()) })
	if esClient != nil {
		health.Register("elasticsearch", esClient.Ping)
	}

	channelRegistry := capability.DefaultRegistry()
	if path := os.Getenv("CHANNEL_REGISTRY_PATH"); path != "" {
		loaded, err := capability.LoadRegistry(path)
		if err != nil {
			zapLog.Fatal("channel registry load failed", zap.String("path", path), zap.Error(err))
		}
		channelRegistry = loaded
	}

	// --- HTTP surface: websocket, metrics, health, status lookup ---
	wsHandler := realtime.NewHandler(hub, auth.NewValidator(cfg.Realtime.JWTSecret), cfg.Realtime, log)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		deps, healthy := health.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       map[bool]string{true: "healthy", false: "degraded"}[healthy],
			"dependencies": deps,
			"channels":     channelRegistry.Channels,
			"time":         time.Now().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/notifications/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/notifications/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		h, err := trk.Get(r.Context(), id)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(commonerrors.HTTPStatus(err))
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(h)
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining pipeline...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// stop intake, drain queued work (drained jobs still commit through the
	// open reader), then close the reader
	stopConsumer()
	<-consumerDone
	dispatcher.Stop()
	if err := consumer.Close(); err != nil {
		zapLog.Error("Error closing consumer", zap.Error(err))
	}
	hub.Shutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Dispatch service stopped gracefully")
}

// readMarkerAdapter routes mark_read control frames into the delivery
// tracker's state machine.
type readMarkerAdapter struct {
	trk *tracker.Tracker
}

func (a *readMarkerAdapter) MarkRead(ctx context.Context, notificationID string) error {
	return a.trk.RecordOutcome(ctx, notificationID, tracker.Read())
}

// preferenceForwarder persists preference_update control frames and drops
// the cached entry so the next gate check sees the new settings.
type preferenceForwarder struct {
	updater preference.Updater
	cache   *preference.CachedStore
}

func (f *preferenceForwarder) Forward(ctx context.Context, userID string, update map[string]interface{}) error {
	if err := f.updater.Apply(ctx, userID, update); err != nil {
		return err
	}
	f.cache.Invalidate(ctx, userID)
	return nil
}
