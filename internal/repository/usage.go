package repository

import (
	"context"
	stdsql "database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// UsageRepository keeps the per-seller billing counters.
type UsageRepository interface {
	// Increment adds one scan to the counter of role in a single atomic statement.
	Increment(ctx context.Context, sellerID string, role constants.UploaderRole) error
	Get(ctx context.Context, sellerID string) (*entity.SellerUsage, error)
}

const tableUsage = "seller_usage"

func usageColumn(role constants.UploaderRole) string {
	if role == constants.UploaderCustomer {
		return "customer_ocr_scans"
	}
	return "ocr_scans"
}

type usageRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewUsageRepository(db *DB, logger *slog.Logger) UsageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &usageRepo{db: db, logger: logger}
}

func (r *usageRepo) Increment(ctx context.Context, sellerID string, role constants.UploaderRole) error {
	col := usageColumn(role)
	var seller, customer int64
	if col == "ocr_scans" {
		seller = 1
	} else {
		customer = 1
	}
	query, args := entsql.Dialect(r.db.dialect).
		Insert(tableUsage).
		Columns("seller_id", "ocr_scans", "customer_ocr_scans").
		Values(sellerID, seller, customer).
		OnConflict(
			entsql.ConflictColumns("seller_id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.Add(col, 1)
			}),
		).
		Query()
	var res stdsql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		r.logger.Error("usage increment failed", "seller_id", sellerID, "counter", col, "error", err)
		return dbError("increment usage", err)
	}
	r.logger.Info("usage incremented", "seller_id", sellerID, "counter", col)
	return nil
}

// Get returns zero counters for a seller that has never been billed.
func (r *usageRepo) Get(ctx context.Context, sellerID string) (*entity.SellerUsage, error) {
	query, args := entsql.Dialect(r.db.dialect).
		Select("ocr_scans", "customer_ocr_scans").
		From(entsql.Table(tableUsage)).
		Where(entsql.EQ("seller_id", sellerID)).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		return nil, dbError("get usage", err)
	}
	defer rows.Close()
	u := &entity.SellerUsage{SellerID: sellerID}
	if rows.Next() {
		if err := rows.Scan(&u.OCRScans, &u.CustomerOCRScans); err != nil {
			return nil, dbError("scan usage", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(err, "iterate usage")
	}
	return u, nil
}
