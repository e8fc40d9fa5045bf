package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/donor-finder/internal/config"
	"github.com/example/donor-finder/internal/geo"
	httpapi "github.com/example/donor-finder/internal/http"
	"github.com/example/donor-finder/internal/ingest"
	"github.com/example/donor-finder/internal/logging"
	"github.com/example/donor-finder/internal/models"
	"github.com/example/donor-finder/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("donor-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	summary := make([]any, 0, 20)
	for k, v := range cfg.Summary() {
		summary = append(summary, k, v)
	}
	logger.Info("starting donor-api", summary...)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.SeedDonors {
		seeded, err := storage.SeedIfEmpty(ctx, store, time.Now().UTC())
		if err != nil {
			return err
		}
		logger.Info("seeded demo donors", "count", len(seeded))
	}

	index, closeIndex, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIndex()
	warmIndex(ctx, store, index, logger)

	opts := httpapi.Options{
		Store:          store,
		Index:          index,
		Logger:         logger,
		FrontendURL:    cfg.FrontendURL,
		QueryLimit:     cfg.QueryLimit,
		NearbyRadiusKm: cfg.NearbyRadiusKm,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		opts.Publisher = kp
		logger.Info("publishing registrations", "topic", cfg.KafkaTopic)
	}

	api, err := httpapi.NewServer(opts)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("donor-api listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.DonorStore, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		ps, err := storage.NewPostgresStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			applied, err := ps.Migrate(ctx)
			if err != nil {
				_ = ps.Close()
				return nil, err
			}
			logger.Info("migrations applied", "files", applied)
		}
		return ps, nil
	case config.BackendElastic:
		return storage.NewElasticStore(ctx, cfg.ElasticURL, cfg.ElasticIndex)
	default:
		return storage.NewMemoryStore(), nil
	}
}

// openIndex prefers Redis GEO and falls back to an in-process index.
func openIndex(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (geo.Index, func(), error) {
	if cfg.RedisAddr == "" {
		return geo.NewMemoryIndex(), func() {}, nil
	}
	rc, err := geo.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis geo index", "addr", cfg.RedisAddr, "key", cfg.RedisGeoKey)
	return geo.NewRedisIndex(rc, cfg.RedisGeoKey), func() { _ = rc.Close() }, nil
}

// warmIndex loads the positions of stored donors into the geo index.
// Only the first MaxLimit donors in listing order are loaded.
func warmIndex(ctx context.Context, store storage.DonorStore, index geo.Index, logger *slog.Logger) {
	donors, err := store.ListDonors(ctx, models.DonorFilter{Limit: storage.MaxLimit})
	if err != nil {
		logger.Warn("geo index warmup failed", "error", err)
		return
	}
	n := 0
	for _, d := range donors {
		if !d.HasPosition() {
			continue
		}
		if err := index.Upsert(ctx, d.ID, geo.Point{Lat: *d.Lat, Lng: *d.Lng}); err != nil {
			logger.Warn("geo index warmup failed", "donor_id", d.ID, "error", err)
			return
		}
		n++
	}
	logger.Info("geo index warmed", "donors", n)
}
