// Command recompute rebuilds every withholding ledger entry and period summary
// from the transaction store. Run it after a rate table change or to repair
// drift left by turnover changes in earlier months.
// Usage: go run ./cmd/recompute
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"taxengine/internal/config"
	"taxengine/internal/domain"
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
		return fmt.Errorf("loading config: %w", err)
	}

	zl, err := logger.New(cfg.Log, "taxengine-recompute")
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	table := ratetable.Default()
	if cfg.Tax.TablePath != "" {
		table, err = ratetable.LoadFile(cfg.Tax.TablePath, cfg.Tax.MinYear)
		if err != nil {
			return fmt.Errorf("loading rate tables: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	entityRepo := postgres.NewEntityRepo(db)
	txRepo := postgres.NewTransactionRepo(db)
	ledgerRepo := postgres.NewWHTLedgerRepo(db)
	auditRepo := postgres.NewTaxAuditRepo(db)

	rules := validator.NewEngine(validator.NewDefaultRegistry())
	turnover := service.NewTurnoverCalculator(txRepo, table, zl)
	classifier := service.NewClassifier(turnover, table)
	vatSvc := service.NewVATService(txRepo, classifier, table, rules, zl)
	whtSvc := service.NewWHTService(txRepo, ledgerRepo, classifier, table, rules, auditRepo, zl)
	coordinator := service.NewRecomputeCoordinator(service.CoordinatorStores{
		Entities:     entityRepo,
		Transactions: txRepo,
		VATSummaries: postgres.NewVATSummaryRepo(db),
		WHTSummaries: postgres.NewWHTSummaryRepo(db),
		Ledger:       ledgerRepo,
		Audit:        auditRepo,
	}, vatSvc, whtSvc, table, false, zl)

	var rebuilt, incomplete atomic.Int64
	offset := 0
	for {
		entities, total, err := entityRepo.List(ctx, offset, cfg.Recompute.BatchSize)
		if err != nil {
			return fmt.Errorf("listing entities at offset %d: %w", offset, err)
		}
		if len(entities) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Recompute.Concurrency)
		for i := range entities {
			entity := entities[i]
			g.Go(func() error {
				err := coordinator.RebuildEntity(gctx, entity.ID)
				switch {
				case err == nil:
					rebuilt.Add(1)
					return nil
				case errors.Is(err, domain.ErrPayeeIdentityRequired):
					// Summaries were rebuilt; some payees still lack an identity.
					incomplete.Add(1)
					zl.Warn("entity rebuilt with unattributed withholding",
						zap.Stringer("entity_id", entity.ID), zap.Error(err))
					return nil
				case errors.Is(err, context.Canceled):
					return err
				default:
					return fmt.Errorf("rebuilding entity %s: %w", entity.ID, err)
				}
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		offset += len(entities)
		zl.Info("progress", zap.Int("processed", offset), zap.Int("total", total))
	}

	zl.Info("recompute complete",
		zap.Int64("rebuilt", rebuilt.Load()),
		zap.Int64("incomplete", incomplete.Load()))
	return nil
}
