package repository

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// AnalysisEventRepository stores dedupe claims and their cached results.
type AnalysisEventRepository interface {
	// InsertIfAbsent atomically inserts ev unless the seller already has an event matching
	// either dedupe key. It returns the stored event and whether this call inserted it.
	InsertIfAbsent(ctx context.Context, ev *entity.AnalysisEvent) (*entity.AnalysisEvent, bool, error)
	FindByDedupeKeys(ctx context.Context, sellerID string, keys entity.DedupeKeys) (*entity.AnalysisEvent, error)
	GetByID(ctx context.Context, analysisID string) (*entity.AnalysisEvent, error)
	SaveCache(ctx context.Context, analysisID string, data entity.CachedOCRData) error
	// MarkBilled flips the billed flag of role from false to true; it reports whether this call flipped it.
	MarkBilled(ctx context.Context, analysisID string, role constants.UploaderRole) (bool, error)
	LinkRecord(ctx context.Context, analysisID, recordID string) error
	// Release deletes an uncached claim so the upload can be analyzed again.
	Release(ctx context.Context, analysisID string) error
}

const tableEvents = "analysis_events"

var eventColumns = []string{
	"analysis_id", "seller_id", "uploader_id", "uploader_type", "upload_id", "content_hash", "status",
	"cached_ocr_data", "record_id", "billed_to_seller", "billed_to_customer", "created_at", "updated_at",
}

// maxInsertAttempts bounds the retries when the conflicting row vanishes before it can be read.
const maxInsertAttempts = 3

type analysisEventRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewAnalysisEventRepository(db *DB, logger *slog.Logger) AnalysisEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &analysisEventRepo{db: db, logger: logger}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func (r *analysisEventRepo) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res stdsql.Result
	if err := r.db.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *analysisEventRepo) InsertIfAbsent(ctx context.Context, ev *entity.AnalysisEvent) (*entity.AnalysisEvent, bool, error) {
	row := *ev
	if row.AnalysisID == "" {
		row.AnalysisID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	row.Status = constants.AnalysisStatusAnalyzing
	row.CreatedAt, row.UpdatedAt = now, now
	row.CachedOCRData = nil

	query, args := entsql.Dialect(r.db.dialect).
		Insert(tableEvents).
		Columns(eventColumns...).
		Values(row.AnalysisID, row.SellerID, row.UploaderID, string(row.UploaderType), nullable(row.DedupeKeys.UploadID),
			row.DedupeKeys.ContentHash, string(row.Status), nil, nil, false, false, millis(now), millis(now)).
		OnConflict(entsql.DoNothing()).
		Query()

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		n, err := r.exec(ctx, query, args)
		if err != nil {
			r.logger.Error("analysis insert failed", "seller_id", row.SellerID, "error", err)
			return nil, false, dbError("insert analysis event", err)
		}
		if n == 1 {
			r.logger.Info("analysis event claimed", "analysis_id", row.AnalysisID, "seller_id", row.SellerID)
			return &row, true, nil
		}
		existing, err := r.FindByDedupeKeys(ctx, row.SellerID, row.DedupeKeys)
		if err == nil {
			r.logger.Debug("analysis event already exists", "analysis_id", existing.AnalysisID, "seller_id", row.SellerID)
			return existing, false, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, false, err
		}
		r.logger.Warn("conflicting analysis event vanished, retrying insert", "seller_id", row.SellerID, "attempt", attempt)
	}
	return nil, false, common.ErrConflictUnsolved
}

func (r *analysisEventRepo) selectEvents() *entsql.Selector {
	return entsql.Dialect(r.db.dialect).Select(eventColumns...).From(entsql.Table(tableEvents))
}

func (r *analysisEventRepo) queryOne(ctx context.Context, sel *entsql.Selector) (*entity.AnalysisEvent, error) {
	query, args := sel.Limit(1).Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, query, args, rows); err != nil {
		return nil, dbError("query analysis event", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, dbError("query analysis event", err)
		}
		return nil, common.ErrNotFound
	}
	ev, err := scanEvent(rows)
	if err != nil {
		return nil, dbError("scan analysis event", err)
	}
	return ev, nil
}

func (r *analysisEventRepo) FindByDedupeKeys(ctx context.Context, sellerID string, keys entity.DedupeKeys) (*entity.AnalysisEvent, error) {
	match := []*entsql.Predicate{entsql.EQ("content_hash", keys.ContentHash)}
	if keys.UploadID != "" {
		match = append(match, entsql.EQ("upload_id", keys.UploadID))
	}
	sel := r.selectEvents().
		Where(entsql.And(entsql.EQ("seller_id", sellerID), entsql.Or(match...))).
		OrderBy("created_at")
	return r.queryOne(ctx, sel)
}

func (r *analysisEventRepo) GetByID(ctx context.Context, analysisID string) (*entity.AnalysisEvent, error) {
	return r.queryOne(ctx, r.selectEvents().Where(entsql.EQ("analysis_id", analysisID)))
}

func (r *analysisEventRepo) SaveCache(ctx context.Context, analysisID string, data entity.CachedOCRData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return common.WrapError(err, "marshal cached ocr data")
	}
	query, args := entsql.Dialect(r.db.dialect).
		Update(tableEvents).
		Set("cached_ocr_data", string(blob)).
		Set("status", string(constants.AnalysisStatusCached)).
		Set("updated_at", millis(time.Now())).
		Where(entsql.EQ("analysis_id", analysisID)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("save cache failed", "analysis_id", analysisID, "error", err)
		return dbError("save cache", err)
	}
	if n == 0 {
		return common.WrapError(common.ErrNotFound, "analysis "+analysisID)
	}
	r.logger.Info("analysis cached", "analysis_id", analysisID, "document_type", data.DocumentType)
	return nil
}

func billedColumn(role constants.UploaderRole) string {
	if role == constants.UploaderCustomer {
		return "billed_to_customer"
	}
	return "billed_to_seller"
}

func (r *analysisEventRepo) MarkBilled(ctx context.Context, analysisID string, role constants.UploaderRole) (bool, error) {
	col := billedColumn(role)
	query, args := entsql.Dialect(r.db.dialect).
		Update(tableEvents).
		Set(col, true).
		Set("updated_at", millis(time.Now())).
		Where(entsql.And(entsql.EQ("analysis_id", analysisID), entsql.EQ(col, false))).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		r.logger.Error("mark billed failed", "analysis_id", analysisID, "error", err)
		return false, dbError("mark billed", err)
	}
	return n == 1, nil
}

func (r *analysisEventRepo) LinkRecord(ctx context.Context, analysisID, recordID string) error {
	query, args := entsql.Dialect(r.db.dialect).
		Update(tableEvents).
		Set("record_id", recordID).
		Set("updated_at", millis(time.Now())).
		Where(entsql.EQ("analysis_id", analysisID)).
		Query()
	n, err := r.exec(ctx, query, args)
	if err != nil {
		return dbError("link record", err)
	}
	if n == 0 {
		return common.WrapError(common.ErrNotFound, "analysis "+analysisID)
	}
	return nil
}

func (r *analysisEventRepo) Release(ctx context.Context, analysisID string) error {
	query, args := entsql.Dialect(r.db.dialect).
		Delete(tableEvents).
		Where(entsql.And(
			entsql.EQ("analysis_id", analysisID),
			entsql.NEQ("status", string(constants.AnalysisStatusCached)),
		)).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		r.logger.Error("release failed", "analysis_id", analysisID, "error", err)
		return dbError("release", err)
	}
	r.logger.Info("analysis claim released", "analysis_id", analysisID)
	return nil
}

func scanEvent(rows *entsql.Rows) (*entity.AnalysisEvent, error) {
	var (
		ev                   entity.AnalysisEvent
		uploaderType, status string
		uploadID, recordID   stdsql.NullString
		cached               stdsql.NullString
		created, updated     int64
	)
	err := rows.Scan(&ev.AnalysisID, &ev.SellerID, &ev.UploaderID, &uploaderType, &uploadID, &ev.DedupeKeys.ContentHash,
		&status, &cached, &recordID, &ev.BilledToSeller, &ev.BilledToCustomer, &created, &updated)
	if err != nil {
		return nil, err
	}
	ev.UploaderType = constants.UploaderRole(uploaderType)
	ev.Status = constants.AnalysisStatus(status)
	ev.DedupeKeys.UploadID = uploadID.String
	ev.RecordID = recordID.String
	ev.CreatedAt = time.UnixMilli(created).UTC()
	ev.UpdatedAt = time.UnixMilli(updated).UTC()
	if cached.Valid && cached.String != "" {
		var data entity.CachedOCRData
		if err := json.Unmarshal([]byte(cached.String), &data); err != nil {
			return nil, err
		}
		ev.CachedOCRData = &data
	}
	return &ev, nil
}
