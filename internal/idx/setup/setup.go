// Package setup assembles the document store chain selected by configuration.
package setup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"selfid/internal/idx"
	"selfid/internal/idx/events"
	"selfid/internal/idx/remote"
	"selfid/internal/idx/store/memory"
	pgstore "selfid/internal/idx/store/postgres"
	redisstore "selfid/internal/idx/store/redis"
	"selfid/internal/platform/config"
	"selfid/internal/platform/metrics"
	"selfid/internal/platform/postgres"
	"selfid/internal/platform/redis"
	"selfid/pkg/platform/circuit"
)

const eventBuffer = 256

// Index owns the document store chain and the connections behind it.
type Index struct {
	// Store is the outermost store of the chain.
	Store idx.Store
	// Local is false when documents live on a remote index node.
	Local bool

	redis     *redis.Client
	db        *sql.DB
	kafka     *kgo.Client
	publisher *events.Publisher
}

// Build assembles backend -> tracing -> circuit breaker -> events. tokens
// authorizes writes when the backend is a remote node.
func Build(ctx context.Context, cfg config.Server, tokens remote.TokenSource, m *metrics.Metrics, log *slog.Logger) (*Index, error) {
	infra := &Index{Local: cfg.Index.Backend != config.BackendRemote}

	var base idx.Store
	switch cfg.Index.Backend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		infra.redis = client
		base = redisstore.New(client.Client, redisstore.WithKeyPrefix(cfg.Index.KeyPrefix))
	case config.BackendPostgres:
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		infra.db = db
		pg := pgstore.New(db)
		if err := pg.Migrate(ctx); err != nil {
			infra.Close()
			return nil, fmt.Errorf("migrate document store: %w", err)
		}
		base = pg
	case config.BackendRemote:
		base = remote.New(cfg.Index.RemoteURL, tokens, remote.WithTimeout(cfg.Index.RemoteTimeout))
	default:
		base = memory.New()
	}

	sink, err := infra.buildSink(ctx, cfg.Kafka, log)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.publisher = events.NewPublisher(sink, events.WithAsyncBuffer(eventBuffer), events.WithLogger(log))

	breaker := circuit.New("index",
		circuit.WithFailureThreshold(cfg.Index.BreakerFailures),
		circuit.WithSuccessThreshold(cfg.Index.BreakerSuccesses),
	)
	var store idx.Store = idx.NewTracedStore(base, cfg.Index.Backend, m)
	store = idx.NewBreakerStore(store, memory.New(), breaker, m, log)
	infra.Store = idx.NewEventingStore(store, infra.publisher, m, log)
	return infra, nil
}

func (i *Index) buildSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (events.Sink, error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLogSink(log), nil
	}
	client, err := events.NewKafkaClient(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}
	i.kafka = client
	if err := events.EnsureTopic(ctx, client, cfg.Topic, 3, 1); err != nil {
		return nil, err
	}
	return events.NewKafkaSink(client, cfg.Topic), nil
}

// Health pings the backing connections that are configured.
func (i *Index) Health(ctx context.Context) error {
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			return err
		}
	}
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close drains pending events, then releases connections.
func (i *Index) Close() {
	if i.publisher != nil {
		i.publisher.Close()
	}
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}
