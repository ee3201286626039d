package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lingometer/internal/config"
	dbRedis "github.com/kailas-cloud/lingometer/internal/db/redis"
	accountrepo "github.com/kailas-cloud/lingometer/internal/repository/account"
	"github.com/kailas-cloud/lingometer/internal/repository/monthly"
	"github.com/kailas-cloud/lingometer/internal/repository/postgres"
	"github.com/kailas-cloud/lingometer/internal/repository/usagelog"
	accountuc "github.com/kailas-cloud/lingometer/internal/usecase/account"
	billinguc "github.com/kailas-cloud/lingometer/internal/usecase/billing"
	ledgeruc "github.com/kailas-cloud/lingometer/internal/usecase/ledger"
	translateuc "github.com/kailas-cloud/lingometer/internal/usecase/translate"
)

// accountStore is everything the services need from the account table.
type accountStore interface {
	accountuc.Repository
	billinguc.PeriodResetter
	translateuc.AccountStore
	ledgeruc.UsageWriter
}

// storage bundles the driver-specific stores behind the usecase contracts.
type storage struct {
	accounts accountStore
	logs     ledgeruc.LogAppender
	monthly  ledgeruc.MonthlyUpserter
	pinger   interface{ Ping(ctx context.Context) error }
	close    func()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig, keyPrefix string, logger *zap.Logger) (*storage, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool, postgres.WithTablePrefix(cfg.TablePrefix))
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close()
				return nil, err
			}
			logger.Info("Schema ensured", zap.String("table_prefix", cfg.TablePrefix))
		}
		return &storage{
			accounts: store,
			logs:     store,
			monthly:  store,
			pinger:   store,
			close:    store.Close,
		}, nil

	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return nil, err
		}
		return &storage{
			accounts: accountrepo.New(store, keyPrefix),
			logs:     usagelog.New(store, keyPrefix),
			monthly:  monthly.New(store, keyPrefix),
			pinger:   store,
			close:    store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
