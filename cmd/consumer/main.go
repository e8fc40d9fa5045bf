package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/example/donor-finder/internal/config"
	"github.com/example/donor-finder/internal/geo"
	"github.com/example/donor-finder/internal/logging"
	"github.com/example/donor-finder/internal/models"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "donor_finder",
		Name:      "consumer_messages_consumed_total",
		Help:      "Total registration messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "donor_finder",
		Name:      "consumer_messages_invalid_total",
		Help:      "Total invalid messages received",
	})
	donorsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "donor_finder",
		Name:      "consumer_donors_without_position_total",
		Help:      "Registrations skipped because the donor has no position",
	})
	redisUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "donor_finder",
		Name:      "consumer_redis_updates_total",
		Help:      "Total successful redis updates",
	})
	redisErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "donor_finder",
		Name:      "consumer_redis_errors_total",
		Help:      "Total redis errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, donorsSkipped, redisUpdates, redisErrors)
}

func main() {
	cfg, err := config.LoadConsumerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.NewLogger("donor-index-consumer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("consumer exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ConsumerConfig, logger *slog.Logger) error {
	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rc.Close()
	index := geo.NewRedisIndex(rc, cfg.RedisGeoKey)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := rc.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)
		consume(gctx, reader, index, logger)
		return nil
	})
	return g.Wait()
}

// MessageReader is the part of *kafka.Reader the consume loop needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func consume(ctx context.Context, r MessageReader, index PositionWriter, logger *slog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			if !sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()
		switch res := processMessage(ctx, index, m.Value); res.outcome {
		case outcomeInvalid:
			msgsInvalid.Inc()
			logger.Warn("invalid message", "offset", m.Offset, "error", res.err)
		case outcomeSkipped:
			donorsSkipped.Inc()
		case outcomeFailed:
			redisErrors.Inc()
			logger.Error("redis update failed", "donor_id", res.donorID, "error", res.err)
		case outcomeIndexed:
			redisUpdates.Inc()
		}
	}
}

type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeSkipped
	outcomeInvalid
	outcomeFailed
)

type result struct {
	outcome outcome
	donorID string
	err     error
}

// processMessage decodes one registration event and mirrors it into the geo index.
func processMessage(ctx context.Context, index PositionWriter, value []byte) result {
	var ev models.RegistrationEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return result{outcome: outcomeInvalid, err: err}
	}
	d := ev.Donor
	if d.ID == "" {
		return result{outcome: outcomeInvalid, err: errors.New("missing donor id")}
	}
	if !d.HasPosition() {
		return result{outcome: outcomeSkipped, donorID: d.ID}
	}
	p := geo.Point{Lat: *d.Lat, Lng: *d.Lng}
	if !p.Valid() {
		return result{outcome: outcomeInvalid, donorID: d.ID, err: fmt.Errorf("position out of range: %v,%v", p.Lat, p.Lng)}
	}
	if err := updateIndexWithRetry(ctx, index, d.ID, p, 3, 200*time.Millisecond); err != nil {
		return result{outcome: outcomeFailed, donorID: d.ID, err: err}
	}
	return result{outcome: outcomeIndexed, donorID: d.ID}
}

// PositionWriter is the write side of the geo index; *geo.RedisIndex implements it.
type PositionWriter interface {
	Upsert(ctx context.Context, id string, p geo.Point) error
}

// updateIndexWithRetry writes the donor position, doubling delay between attempts.
func updateIndexWithRetry(ctx context.Context, index PositionWriter, id string, p geo.Point, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = index.Upsert(ctx, id, p); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

// sleep waits for d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
