package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rfqnorm/backend/internal/api"
	"github.com/wonny/rfqnorm/backend/internal/api/handlers"
	"github.com/wonny/rfqnorm/backend/internal/audit"
	"github.com/wonny/rfqnorm/backend/internal/catalog"
	"github.com/wonny/rfqnorm/backend/internal/normalizer"
	"github.com/wonny/rfqnorm/backend/internal/scheduler"
	"github.com/wonny/rfqnorm/backend/internal/scheduler/jobs"
	"github.com/wonny/rfqnorm/backend/pkg/config"
	"github.com/wonny/rfqnorm/backend/pkg/database"
	"github.com/wonny/rfqnorm/backend/pkg/logger"
	"github.com/wonny/rfqnorm/backend/pkg/metrics"
	"github.com/wonny/rfqnorm/backend/pkg/redis"
)

func newAPICmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "api",
		Short: "API 서버 시작",
		Long: `REST + WebSocket API 서버를 시작합니다.

이 명령어는:
- 정규화/툴 엔드포인트 제공
- DATABASE_URL 설정 시 문의 감사 로그 저장
- HZ 설정 시 상품 카탈로그 주기 동기화

Endpoints:
  POST /api/v1/normalize                    - 문의 정규화
  POST /api/v1/normalize/batch              - 일괄 정규화
  POST /api/v1/tools/normalize_inquiry      - 단일 레그 + 힌트
  GET  /api/v1/tools/expire-date/{unit}     - 상대 만기일
  GET  /api/v1/products/candidates          - 상품 후보
  GET  /api/v1/catalog                      - 상품 테이블
  POST /api/v1/catalog/sync                 - 카탈로그 동기화
  GET  /api/v1/audit/inquiries              - 감사 로그
  GET  /ws/normalize                        - WebSocket 정규화
  GET  /health, /metrics

Example:
  go run ./cmd/rfq api
  go run ./cmd/rfq api --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if port != "" {
				cfg.Port = port
			}
			if opts.verbose {
				cfg.LogLevel = "debug"
			}
			return runAPIServer(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "API 서버 포트 (default: PORT)")
	return cmd
}

func runAPIServer(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 1. Metrics + normalizer
	var (
		m        *metrics.Metrics
		normOpts []normalizer.Option
	)
	if cfg.MetricsEnabled {
		m = metrics.New()
		normOpts = append(normOpts, normalizer.WithObserver(m))
	}

	base, err := catalog.LoadBase(cfg.KeywordsPath)
	if err != nil {
		return err
	}
	n := normalizer.New(base, log, normOpts...)

	// 2. Database (optional audit log)
	deps := api.Deps{Metrics: m}
	var recorder handlers.Recorder

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrNotConfigured):
		log.Info("DATABASE_URL not set, audit log disabled")
	case err != nil:
		return fmt.Errorf("connect to database: %w", err)
	default:
		defer db.Close()

		repo := audit.NewRepository(db.Pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		recorder = repo
		deps.Audit = handlers.NewAuditHandler(repo, log)
		deps.DB = db
		log.Info("Connected to database, audit log enabled")
	}

	// 3. Catalog sync (optional, needs HZ)
	var (
		syncer handlers.CatalogSyncer
		sched  *scheduler.Scheduler
	)
	client, rdb, err := connectHZ(cfg, log)
	switch {
	case errors.Is(err, errHZNotConfigured):
		log.Info("HZ not configured, catalog sync disabled")
	case err != nil:
		return err
	default:
		defer rdb.Close()
		if rdb.Enabled() {
			deps.Cache = rdb
		}

		catalogOpts := []catalog.Option{catalog.WithCache(redis.NewCache(rdb, redis.DefaultPrefix), cfg.Catalog.CacheTTL)}
		if m != nil {
			catalogOpts = append(catalogOpts, catalog.WithObserver(m))
		}
		s := catalog.New(base, client, n, log, catalogOpts...)
		if _, err := s.Sync(ctx); err != nil {
			log.WithError(err).Warn("Initial catalog sync failed, serving built-in tables")
		}
		syncer = s

		sched = scheduler.New(log, scheduler.WithRetry(2, 30*time.Second))
		if err := sched.AddJob(jobs.NewCatalogSyncJob(s, cfg.Catalog.SyncSchedule, log)); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// 4. Handlers + router
	normalize := handlers.NewNormalizeHandler(n, recorder, cfg.Today, log)
	deps.Normalize = normalize
	deps.Stream = handlers.NewStreamHandler(normalize)
	deps.Catalog = handlers.NewCatalogHandler(n.Tables, syncer, log)
	if sched != nil {
		deps.Catalog.WithSchedule(sched, jobs.CatalogSyncJobName)
	}

	server := api.New(cfg, log, api.NewRouter(deps, log))

	// 5. Start server with graceful shutdown
	if err := server.Listen(); err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Fprintf(os.Stderr, "\n✅ Server running on http://%s\n", server.Addr())
	fmt.Fprintln(os.Stderr, "\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
