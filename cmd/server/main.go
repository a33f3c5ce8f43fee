package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/example/viacar/internal/api"
	"github.com/example/viacar/internal/config"
	"github.com/example/viacar/internal/draft"
	"github.com/example/viacar/internal/events"
	httpapi "github.com/example/viacar/internal/http"
	"github.com/example/viacar/internal/kv"
	"github.com/example/viacar/internal/logging"
	"github.com/example/viacar/internal/payments"
	"github.com/example/viacar/internal/places"
	"github.com/example/viacar/internal/search"
	"github.com/example/viacar/internal/session"
	wizsync "github.com/example/viacar/internal/sync"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// blob store: Redis when configured, Postgres as the durable
	// alternative, in-memory for local runs
	var blobs kv.Store
	var redisClient *redis.Client
	switch {
	case cfg.RedisAddr != "":
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		blobs = kv.NewRedisStore(redisClient)
	case cfg.PGDSN != "":
		ps, err := kv.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			if err := ps.Migrate(context.Background()); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migration applied", "table", "wizard_blobs")
		}
		blobs = ps
	default:
		logger.Warn("no REDIS_ADDR or PG_DSN set, wizard state is in-memory only")
		blobs = kv.NewMemoryStore()
	}

	watch := wizsync.NewRegistry(logger)
	drafts := draft.NewManager(blobs, watch)
	filters := search.NewManager(blobs)
	sessions := session.NewManager(blobs)

	endpoints := api.DefaultEndpoints().Override(cfg.UpstreamPaths)
	upstream := api.NewClient(cfg.UpstreamBaseURL, endpoints, nil)
	upstream.HTTP.Timeout = cfg.UpstreamTimeout

	provider := places.NewProvider(cfg.PlacesEndpoint, cfg.PlacesAPIKey)
	complete := places.NewAutocompleter(provider, cfg.AutocompleteCacheTTL)

	var popular *places.PopularIndex
	if redisClient != nil {
		popular = places.NewPopularIndexWithClient(redisClient, cfg.PopularGeoKey)
	} else {
		popular = places.NewPopularIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.PopularGeoKey)
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	var seatPayments *payments.SeatPayments
	if cfg.StripeAPIKey != "" {
		seatPayments = payments.NewSeatPayments(cfg.StripeAPIKey)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Logger:   logger,
		Drafts:   drafts,
		Filters:  filters,
		Sessions: sessions,
		Upstream: upstream,
		Places:   provider,
		Complete: complete,
		Popular:  popular,
		Events:   producer,
		Payments: seatPayments,
		Watch:    watch,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("ride-wizard listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("serve failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("stopped")
}
