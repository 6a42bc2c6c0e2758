// Command server runs the kutumb field-visit API: visit request intake,
// visit lifecycle with geofenced check-in, and the audit trail behind both.
//
// All wiring lives here; business logic stays in the internal packages.
// Stores degrade gracefully: without DATABASE_URL everything runs in memory,
// without REDIS_URL the officer lock is process-local, and without
// KAFKA_BROKERS audit events stay in the store and notifications go to the
// log.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"kutumb/internal/directory"
	"kutumb/internal/intake"
	intakehandler "kutumb/internal/intake/handler"
	"kutumb/internal/jwtauth"
	"kutumb/internal/notify"
	"kutumb/internal/platform/config"
	"kutumb/internal/platform/httpserver"
	"kutumb/internal/platform/logger"
	"kutumb/internal/platform/metrics"
	"kutumb/internal/platform/middleware"
	platformredis "kutumb/internal/platform/redis"
	"kutumb/internal/visit"
	visithandler "kutumb/internal/visit/handler"
	"kutumb/pkg/domain"
	"kutumb/pkg/platform/audit"
	auditkafka "kutumb/pkg/platform/audit/kafka"
	"kutumb/pkg/platform/audit/publisher"
	auditmem "kutumb/pkg/platform/audit/store/memory"
	auditpg "kutumb/pkg/platform/audit/store/postgres"
	"kutumb/pkg/platform/httputil"
)

const tokenIssuer = "kutumb"

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	locks, err := buildOfficerLock(cfg, log)
	if err != nil {
		return err
	}

	auditorOpts := []publisher.Option{
		publisher.WithAsyncBuffer(1024),
		publisher.WithLogger(log),
	}
	var sender notify.Sender = notify.NewLogSender(log)
	if len(cfg.KafkaBrokers) > 0 {
		forwarder, err := auditkafka.NewForwarder(ctx, cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		if err != nil {
			return fmt.Errorf("connect audit forwarder: %w", err)
		}
		defer forwarder.Close()
		auditorOpts = append(auditorOpts, publisher.WithForwarder(forwarder))

		kafkaSender, err := notify.NewKafkaSender(cfg.KafkaBrokers, "kutumb.notifications")
		if err != nil {
			return fmt.Errorf("connect notification sender: %w", err)
		}
		defer kafkaSender.Close()
		sender = kafkaSender
		log.Info("kafka wired", "brokers", strings.Join(cfg.KafkaBrokers, ","))
	}

	auditor := publisher.NewPublisher(stores.audit, auditorOpts...)
	defer auditor.Close()

	dispatcher := notify.NewDispatcher(sender, log)
	defer dispatcher.Close()

	visitSvc := visit.NewService(stores.visits, stores.citizens, stores.officers, locks,
		auditor, dispatcher, m, log, cfg.GPSTimeout)
	intakeSvc := intake.NewService(stores.requests, visitSvc, stores.citizens, auditor, m, log)
	visitSvc.SetRequestSync(intakeSvc)

	tokens := jwtauth.NewService(cfg.JWTSigningKey, tokenIssuer, tokenIssuer)
	creds, err := credentialsFromEnv()
	if err != nil {
		return err
	}

	router := newRouter(log, m, tokens, creds, visitSvc, intakeSvc)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// storeSet bundles the persistence backends behind their interfaces so the
// rest of run does not care whether postgres is configured.
type storeSet struct {
	visits   visit.Store
	requests intake.Store
	audit    audit.Store
	citizens directory.CitizenDirectory
	officers directory.OfficerDirectory
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (storeSet, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("no DATABASE_URL, using in-memory stores")
		dir := directory.NewMemory()
		return storeSet{
			visits:   visit.NewMemoryStore(),
			requests: intake.NewMemoryStore(),
			audit:    auditmem.NewInMemoryStore(),
			citizens: dir,
			officers: dir,
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return storeSet{}, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return storeSet{}, nil, fmt.Errorf("ping database: %w", err)
	}
	for _, schema := range []string{visit.Schema, intake.Schema, auditpg.Schema, directory.Schema} {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			db.Close()
			return storeSet{}, nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		db.Close()
		return storeSet{}, nil, fmt.Errorf("open directory pool: %w", err)
	}

	dir := directory.NewPostgres(pool)
	cleanup := func() {
		pool.Close()
		db.Close()
	}
	return storeSet{
		visits:   visit.NewPostgresStore(db),
		requests: intake.NewPostgresStore(db),
		audit:    auditpg.New(db),
		citizens: dir,
		officers: dir,
	}, cleanup, nil
}

func buildOfficerLock(cfg config.Server, log *slog.Logger) (visit.OfficerLock, error) {
	client, err := platformredis.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		log.Warn("no REDIS_URL, officer lock is process-local")
		return visit.NewMemoryLock(), nil
	}
	return visit.NewRedisLock(client), nil
}

// credentialsFromEnv parses KUTUMB_USERS, a comma-separated list of
// username:password:role entries, into the dev credential store. Production
// deployments mint tokens out of band and leave this unset.
func credentialsFromEnv() (*jwtauth.CredentialStore, error) {
	raw := os.Getenv("KUTUMB_USERS")
	if raw == "" {
		return jwtauth.NewCredentialStore(), nil
	}

	var creds []jwtauth.Credential
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed KUTUMB_USERS entry %q, want username:password:role", entry)
		}
		role, err := domain.ParseRole(parts[2])
		if err != nil {
			return nil, fmt.Errorf("KUTUMB_USERS entry %q: %w", entry, err)
		}
		hash, err := jwtauth.HashPassword(parts[1])
		if err != nil {
			return nil, err
		}
		creds = append(creds, jwtauth.Credential{
			Username:     parts[0],
			PasswordHash: hash,
			Actor:        domain.NewActorID(),
			Role:         role,
		})
	}
	return jwtauth.NewCredentialStore(creds...), nil
}

func newRouter(
	log *slog.Logger,
	m *metrics.Metrics,
	tokens *jwtauth.Service,
	creds *jwtauth.CredentialStore,
	visitSvc *visit.Service,
	intakeSvc *intake.Service,
) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Instrument(m))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	jwtauth.NewHandler(tokens, creds, log).Register(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(tokens, log))
		visithandler.New(visitSvc, log).Register(r)
		intakehandler.New(intakeSvc, log).Register(r)
	})
	return r
}
