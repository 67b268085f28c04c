package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"evidentia/internal/evidence/guard"
	evidencehandler "evidentia/internal/evidence/handler"
	evidencemetrics "evidentia/internal/evidence/metrics"
	"evidentia/internal/evidence/models"
	"evidentia/internal/evidence/policy"
	"evidentia/internal/evidence/precondition"
	evidenceservice "evidentia/internal/evidence/service"
	jwttoken "evidentia/internal/jwt_token"
	"evidentia/internal/platform/config"
	"evidentia/internal/platform/httpserver"
	"evidentia/internal/platform/logger"
	"evidentia/internal/platform/metrics"
	"evidentia/internal/platform/tracing"
	tenanthandler "evidentia/internal/tenant/handler"
	tenantmetrics "evidentia/internal/tenant/metrics"
	tenantmodels "evidentia/internal/tenant/models"
	tenantservice "evidentia/internal/tenant/service"
	id "evidentia/pkg/domain"
	audit "evidentia/pkg/platform/audit"
	"evidentia/pkg/platform/audit/outbox"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auditMetrics := audit.NewMetrics(reg)

	in, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close()

	blobs, err := buildBlobs(ctx, cfg.MinIO, log)
	if err != nil {
		return err
	}
	publisher, closePublisher, err := buildPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closePublisher()

	policies, err := policy.Load(cfg.PolicyFile, log)
	if err != nil {
		return err
	}

	tenants := tenantservice.New(in.tenants, in.portals,
		tenantservice.WithLogger(log),
		tenantservice.WithMetrics(tenantmetrics.New(reg)),
	)
	if err := seedTenants(ctx, tenants, cfg.SeedTenants); err != nil {
		return err
	}

	evidence := evidenceservice.New(in.evidence, in.evidence, blobs,
		precondition.New(tenants),
		guard.New(tenants),
		evidenceservice.WithLogger(log),
		evidenceservice.WithMetrics(evidencemetrics.New(reg)),
		evidenceservice.WithLocker(in.locker(cfg, log)),
		evidenceservice.WithRecorder(audit.NewRecorder(audit.WithLogger(log), audit.WithMetrics(auditMetrics))),
		evidenceservice.WithPolicy(policies),
		evidenceservice.WithRejectionRecorder(tenants),
		evidenceservice.WithStoreTimeout(cfg.StoreTimeout),
	)

	router := newRouter(routerDeps{
		logger:     log,
		gatherer:   reg,
		httpMetric: metrics.New(reg),
		validator:  jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)),
		adminToken: cfg.AdminToken,
		evidence:   evidencehandler.New(evidence, log, evidencehandler.WithMaxUploadBytes(cfg.MaxUploadBytes)),
		tenants: tenanthandler.New(tenants, log, func(role string) bool {
			return policies.RolePolicy().Authorize(models.Role(role), models.OpPortalBind) == nil
		}),
		ready: func(ctx context.Context) error {
			if in.db != nil {
				if err := in.db.PingContext(ctx); err != nil {
					return err
				}
			}
			if in.redis != nil {
				return in.redis.Health(ctx)
			}
			return nil
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	relay := outbox.NewRelay(in.outbox, publisher,
		outbox.WithInterval(cfg.Outbox.Interval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(auditMetrics),
	)
	janitor := outbox.NewJanitor(in.outbox, cfg.Outbox.PurgeSchedule, cfg.Outbox.Retention, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting evidentia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return janitor.Start(gctx) })
	g.Go(func() error { return policies.Watch(gctx) })

	err = g.Wait()
	janitor.Stop()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("evidentia stopped")
	return err
}

func seedTenants(ctx context.Context, tenants *tenantservice.Service, seeds []config.SeedTenant) error {
	for _, s := range seeds {
		tenantID, err := id.ParseTenantID(s.ID)
		if err != nil {
			return err
		}
		if _, err := tenants.EnsureTenant(ctx, tenantID, s.Name, tenantmodels.Mode(s.Mode)); err != nil {
			return err
		}
	}
	return nil
}
