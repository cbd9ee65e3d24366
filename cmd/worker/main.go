// Command worker drains the recompute queue when summaries are rebuilt in
// queued mode.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taxengine/internal/config"
	"taxengine/internal/logger"
	"taxengine/internal/ratetable"
	"taxengine/internal/repository/postgres"
	"taxengine/internal/service"
	"taxengine/internal/validator"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.New(cfg.Log, "taxengine-worker")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	table, err := loadRateTable(&cfg.Tax)
	if err != nil {
		return fmt.Errorf("failed to load rate tables: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	entityRepo := postgres.NewEntityRepo(db)
	txRepo := postgres.NewTransactionRepo(db)
	ledgerRepo := postgres.NewWHTLedgerRepo(db)
	queueRepo := postgres.NewRecomputeQueueRepo(db)
	auditRepo := postgres.NewTaxAuditRepo(db)

	// Initialize services
	rules := validator.NewEngine(validator.NewDefaultRegistry())
	turnover := service.NewTurnoverCalculator(txRepo, table, zl)
	classifier := service.NewClassifier(turnover, table)
	vatSvc := service.NewVATService(txRepo, classifier, table, rules, zl)
	whtSvc := service.NewWHTService(txRepo, ledgerRepo, classifier, table, rules, auditRepo, zl)

	// The worker itself always rebuilds inline.
	coordinator := service.NewRecomputeCoordinator(service.CoordinatorStores{
		Entities:     entityRepo,
		Transactions: txRepo,
		VATSummaries: postgres.NewVATSummaryRepo(db),
		WHTSummaries: postgres.NewWHTSummaryRepo(db),
		Ledger:       ledgerRepo,
		Queue:        queueRepo,
		Audit:        auditRepo,
	}, vatSvc, whtSvc, table, false, zl)

	worker := service.NewRecomputeQueueWorker(queueRepo, coordinator, service.RecomputeQueueConfig{
		PollInterval: time.Duration(cfg.Recompute.PollIntervalSecs) * time.Second,
		MaxRetries:   cfg.Recompute.MaxRetries,
		Concurrency:  cfg.Recompute.Concurrency,
		JobTimeout:   time.Duration(cfg.Recompute.JobTimeoutSecs) * time.Second,
		StaleAfter:   time.Duration(cfg.Recompute.StaleAfterSecs) * time.Second,
	}, zl)

	if !cfg.Recompute.Queued() {
		zl.Warn("recompute mode is inline; the queue only fills when writers run in queued mode",
			zap.String("mode", cfg.Recompute.Mode))
	}

	zl.Info("worker starting")
	worker.Start(ctx)
	zl.Info("worker stopped")
	return nil
}

func loadRateTable(cfg *config.TaxConfig) (*ratetable.Table, error) {
	if cfg.TablePath == "" {
		return ratetable.Default(), nil
	}
	return ratetable.LoadFile(cfg.TablePath, cfg.MinYear)
}
