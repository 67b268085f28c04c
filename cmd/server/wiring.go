package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"evidentia/internal/evidence/blob"
	"evidentia/internal/evidence/lock"
	"evidentia/internal/evidence/store"
	evidencememory "evidentia/internal/evidence/store/memory"
	evidencepostgres "evidentia/internal/evidence/store/postgres"
	"evidentia/internal/platform/config"
	"evidentia/internal/platform/database"
	platformredis "evidentia/internal/platform/redis"
	tenantservice "evidentia/internal/tenant/service"
	portalstore "evidentia/internal/tenant/store/portal"
	tenantstore "evidentia/internal/tenant/store/tenant"
	"evidentia/pkg/platform/audit/outbox"
	auditmemory "evidentia/pkg/platform/audit/store/memory"
)

// evidenceStore is a store that can also run its own transactions.
type evidenceStore interface {
	store.Store
	store.TxRunner
}

type infra struct {
	evidence evidenceStore
	tenants  tenantservice.TenantStore
	portals  tenantservice.PortalStore
	outbox   outbox.Source
	db       *sql.DB
	redis    *platformredis.Client
	closers  []func()
}

func (i *infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

// buildInfra connects to Postgres when DATABASE_URL is set and falls back to
// in-memory stores otherwise.
func buildInfra(ctx context.Context, cfg config.Server, logger *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL == "" {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		audits := auditmemory.NewInMemoryStore()
		in.evidence = evidencememory.New(audits)
		in.tenants = tenantstore.NewInMemory()
		in.portals = portalstore.NewInMemory()
		in.outbox = audits
	} else {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		pool, err := database.OpenPool(ctx, cfg.Database)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.closers = append(in.closers, pool.Close)

		in.db = db
		in.evidence = evidencepostgres.New(db)
		in.tenants = tenantstore.NewPostgres(db)
		in.portals = portalstore.NewPostgres(db)
		in.outbox = outbox.NewPostgresSource(pool)
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.closers = append(in.closers, func() { _ = rc.Close() })
	}
	return in, nil
}

func (i *infra) locker(cfg config.Server, logger *slog.Logger) lock.Locker {
	if i.redis == nil {
		logger.Warn("REDIS_URL not set, entity locks are process-local")
		return lock.NewLocal()
	}
	return lock.NewRedis(i.redis.Client, lock.WithTTL(cfg.Redis.LockTTL))
}

func buildBlobs(ctx context.Context, cfg config.MinIOConfig, logger *slog.Logger) (blob.Storage, error) {
	if cfg.Endpoint == "" {
		logger.WarnContext(ctx, "MINIO_ENDPOINT not set, attachment bytes are kept in memory")
		return blob.NewMemory(), nil
	}
	return blob.NewMinIO(ctx, blob.MinIOConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
}

// buildPublisher returns the Kafka publisher, or a logging publisher when no
// brokers are configured. The cleanup func is always safe to call.
func buildPublisher(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (outbox.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		logger.WarnContext(ctx, "KAFKA_BROKERS not set, notifications are logged only")
		return outbox.NewLogPublisher(logger), func() {}, nil
	}
	kp, err := outbox.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := kp.EnsureTopic(ctx, cfg.Partitions, 1); err != nil {
		kp.Close()
		return nil, nil, fmt.Errorf("ensure notification topic: %w", err)
	}
	return kp, kp.Close, nil
}
