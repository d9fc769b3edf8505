package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docscan/internal/common"
)

// Stores bundles the repositories of whichever backend DB_DRIVER selects.
type Stores struct {
	Events AnalysisEventRepository
	Usage  UsageRepository

	ping  func(ctx context.Context) error
	close func()
}

// OpenStores opens the configured store, creating its schema or indexes.
func OpenStores(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Driver == common.StoreMongo {
		m, err := OpenMongo(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Events: NewMongoAnalysisEventRepository(m, logger),
			Usage:  NewMongoUsageRepository(m, logger),
			ping:   m.Ping,
			close: func() {
				if err := m.Close(context.Background()); err != nil {
					logger.Error("failed to disconnect mongo", "error", err)
				}
			},
		}, nil
	}

	db, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, logger); err != nil {
		Close(db, logger)
		return nil, err
	}
	return &Stores{
		Events: NewAnalysisEventRepository(db, logger),
		Usage:  NewUsageRepository(db, logger),
		ping: func(ctx context.Context) error {
			return HealthCheck(ctx, db, 0, logger)
		},
		close: func() { Close(db, logger) },
	}, nil
}

func (s *Stores) HealthCheck(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := common.WithTimeout(ctx, timeout)
	defer cancel()
	return s.ping(ctx)
}

func (s *Stores) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}
