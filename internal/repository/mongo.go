package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/entity"
)

// MongoDB holds the collections of the document store variant.
type MongoDB struct {
	client *mongo.Client
	events *mongo.Collection
	usage  *mongo.Collection
}

// OpenMongo connects, pings and ensures the dedupe indexes exist.
func OpenMongo(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*MongoDB, error) {
	logger.Info("connecting to mongo", "database", cfg.MongoDatabase)
	ctx, cancel := common.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.DSN).SetAppName("docscan")
	if cfg.MaxConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxConns))
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		logger.Error("failed to connect to mongo", "error", err)
		return nil, dbError("connect mongo", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, dbError("ping mongo", err)
	}
	db := client.Database(cfg.MongoDatabase)
	m := &MongoDB{client: client, events: db.Collection("analysisevents"), usage: db.Collection("sellerusages")}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("successfully connected to mongo")
	return m, nil
}

func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := m.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "analysisId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{
			Keys: bson.D{{Key: "sellerId", Value: 1}, {Key: "dedupeKeys.uploadId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedupeKeys.uploadId": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "sellerId", Value: 1}, {Key: "dedupeKeys.contentHash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return dbError("create analysis indexes", err)
	}
	_, err = m.usage.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sellerId", Value: 1}}, Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return dbError("create usage index", err)
	}
	return nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

type mongoDedupeKeys struct {
	UploadID    *string `bson:"uploadId,omitempty"`
	ContentHash string  `bson:"contentHash"`
}

type mongoEvent struct {
	AnalysisID       string          `bson:"analysisId"`
	SellerID         string          `bson:"sellerId"`
	UploaderID       string          `bson:"uploaderId"`
	UploaderType     string          `bson:"uploaderType"`
	DedupeKeys       mongoDedupeKeys `bson:"dedupeKeys"`
	Status           string          `bson:"status"`
	CachedOCRData    string          `bson:"cachedOcrData,omitempty"`
	RecordID         string          `bson:"recordId,omitempty"`
	BilledToSeller   bool            `bson:"billedToSeller"`
	BilledToCustomer bool            `bson:"billedToCustomer"`
	CreatedAt        time.Time       `bson:"createdAt"`
	UpdatedAt        time.Time       `bson:"updatedAt"`
}

func (d mongoEvent) toEntity() (*entity.AnalysisEvent, error) {
	ev := &entity.AnalysisEvent{
		AnalysisID:       d.AnalysisID,
		SellerID:         d.SellerID,
		UploaderID:       d.UploaderID,
		UploaderType:     constants.UploaderRole(d.UploaderType),
		DedupeKeys:       entity.DedupeKeys{ContentHash: d.DedupeKeys.ContentHash},
		Status:           constants.AnalysisStatus(d.Status),
		RecordID:         d.RecordID,
		BilledToSeller:   d.BilledToSeller,
		BilledToCustomer: d.BilledToCustomer,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if d.DedupeKeys.UploadID != nil {
		ev.DedupeKeys.UploadID = *d.DedupeKeys.UploadID
	}
	if d.CachedOCRData != "" {
		var data entity.CachedOCRData
		if err := json.Unmarshal([]byte(d.CachedOCRData), &data); err != nil {
			return nil, err
		}
		ev.CachedOCRData = &data
	}
	return ev, nil
}

type mongoAnalysisRepo struct {
	m      *MongoDB
	logger *slog.Logger
}

func NewMongoAnalysisEventRepository(m *MongoDB, logger *slog.Logger) AnalysisEventRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &mongoAnalysisRepo{m: m, logger: logger}
}

func dedupeFilter(sellerID string, keys entity.DedupeKeys) bson.M {
	or := bson.A{bson.M{"dedupeKeys.contentHash": keys.ContentHash}}
	if keys.UploadID != "" {
		or = append(or, bson.M{"dedupeKeys.uploadId": keys.UploadID})
	}
	return bson.M{"sellerId": sellerID, "$or": or}
}

// InsertIfAbsent upserts with $setOnInsert so the write only lands when no event matches. Two
// concurrent upserts can both miss; the unique indexes reject the loser, which then reads the winner.
func (r *mongoAnalysisRepo) InsertIfAbsent(ctx context.Context, ev *entity.AnalysisEvent) (*entity.AnalysisEvent, bool, error) {
	row := *ev
	if row.AnalysisID == "" {
		row.AnalysisID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	row.Status = constants.AnalysisStatusAnalyzing
	row.CreatedAt, row.UpdatedAt = now, now
	row.CachedOCRData = nil

	keys := bson.M{"contentHash": row.DedupeKeys.ContentHash}
	if row.DedupeKeys.UploadID != "" {
		keys["uploadId"] = row.DedupeKeys.UploadID
	}
	// sellerId comes from the filter's equality match
	update := bson.M{"$setOnInsert": bson.M{
		"analysisId":       row.AnalysisID,
		"uploaderId":       row.UploaderID,
		"uploaderType":     string(row.UploaderType),
		"dedupeKeys":       keys,
		"status":           string(row.Status),
		"billedToSeller":   false,
		"billedToCustomer": false,
		"createdAt":        now,
		"updatedAt":        now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.Before)

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		var before mongoEvent
		err := r.m.events.FindOneAndUpdate(ctx, dedupeFilter(row.SellerID, row.DedupeKeys), update, opts).Decode(&before)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			r.logger.Info("analysis event claimed", "analysis_id", row.AnalysisID, "seller_id", row.SellerID)
			return &row, true, nil
		case err == nil:
			existing, err := before.toEntity()
			if err != nil {
				return nil, false, dbError("decode analysis event", err)
			}
			return existing, false, nil
		case mongo.IsDuplicateKeyError(err):
			existing, ferr := r.FindByDedupeKeys(ctx, row.SellerID, row.DedupeKeys)
			if ferr == nil {
				return existing, false, nil
			}
			if !errors.Is(ferr, common.ErrNotFound) {
				return nil, false, ferr
			}
			r.logger.Warn("conflicting analysis event vanished, retrying insert", "seller_id", row.SellerID, "attempt", attempt)
		default:
			r.logger.Error("analysis upsert failed", "seller_id", row.SellerID, "error", err)
			return nil, false, dbError("upsert analysis event", err)
		}
	}
	return nil, false, common.ErrConflictUnsolved
}

func (r *mongoAnalysisRepo) findOne(ctx context.Context, filter bson.M) (*entity.AnalysisEvent, error) {
	var doc mongoEvent
	err := r.m.events.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, dbError("find analysis event", err)
	}
	return doc.toEntity()
}

func (r *mongoAnalysisRepo) FindByDedupeKeys(ctx context.Context, sellerID string, keys entity.DedupeKeys) (*entity.AnalysisEvent, error) {
	return r.findOne(ctx, dedupeFilter(sellerID, keys))
}

func (r *mongoAnalysisRepo) GetByID(ctx context.Context, analysisID string) (*entity.AnalysisEvent, error) {
	return r.findOne(ctx, bson.M{"analysisId": analysisID})
}

func (r *mongoAnalysisRepo) updateOne(ctx context.Context, op, analysisID string, filter, set bson.M) (*mongo.UpdateResult, error) {
	set["updatedAt"] = time.Now().UTC()
	res, err := r.m.events.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		r.logger.Error(op+" failed", "analysis_id", analysisID, "error", err)
		return nil, dbError(op, err)
	}
	return res, nil
}

func (r *mongoAnalysisRepo) SaveCache(ctx context.Context, analysisID string, data entity.CachedOCRData) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return common.WrapError(err, "marshal cached ocr data")
	}
	res, err := r.updateOne(ctx, "save cache", analysisID, bson.M{"analysisId": analysisID},
		bson.M{"cachedOcrData": string(blob), "status": string(constants.AnalysisStatusCached)})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return common.WrapError(common.ErrNotFound, "analysis "+analysisID)
	}
	return nil
}

func (r *mongoAnalysisRepo) MarkBilled(ctx context.Context, analysisID string, role constants.UploaderRole) (bool, error) {
	field := "billedToSeller"
	if role == constants.UploaderCustomer {
		field = "billedToCustomer"
	}
	res, err := r.updateOne(ctx, "mark billed", analysisID,
		bson.M{"analysisId": analysisID, field: false}, bson.M{field: true})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (r *mongoAnalysisRepo) LinkRecord(ctx context.Context, analysisID, recordID string) error {
	res, err := r.m.events.UpdateOne(ctx, bson.M{"analysisId": analysisID},
		bson.M{"$set": bson.M{"recordId": recordID, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return dbError("link record", err)
	}
	if res.MatchedCount == 0 {
		return common.WrapError(common.ErrNotFound, "analysis "+analysisID)
	}
	return nil
}

func (r *mongoAnalysisRepo) Release(ctx context.Context, analysisID string) error {
	_, err := r.m.events.DeleteOne(ctx, bson.M{
		"analysisId": analysisID,
		"status":     bson.M{"$ne": string(constants.AnalysisStatusCached)},
	})
	if err != nil {
		return dbError("release", err)
	}
	r.logger.Info("analysis claim released", "analysis_id", analysisID)
	return nil
}

type mongoUsageRepo struct {
	m      *MongoDB
	logger *slog.Logger
}

func NewMongoUsageRepository(m *MongoDB, logger *slog.Logger) UsageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &mongoUsageRepo{m: m, logger: logger}
}

func (r *mongoUsageRepo) Increment(ctx context.Context, sellerID string, role constants.UploaderRole) error {
	field := "ocrScans"
	if role == constants.UploaderCustomer {
		field = "customerOcrScans"
	}
	_, err := r.m.usage.UpdateOne(ctx, bson.M{"sellerId": sellerID},
		bson.M{"$inc": bson.M{field: int64(1)}}, options.Update().SetUpsert(true))
	if err != nil {
		r.logger.Error("usage increment failed", "seller_id", sellerID, "counter", field, "error", err)
		return dbError("increment usage", err)
	}
	return nil
}

func (r *mongoUsageRepo) Get(ctx context.Context, sellerID string) (*entity.SellerUsage, error) {
	var doc struct {
		OCRScans         int64 `bson:"ocrScans"`
		CustomerOCRScans int64 `bson:"customerOcrScans"`
	}
	err := r.m.usage.FindOne(ctx, bson.M{"sellerId": sellerID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dbError("get usage", err)
	}
	return &entity.SellerUsage{SellerID: sellerID, OCRScans: doc.OCRScans, CustomerOCRScans: doc.CustomerOCRScans}, nil
}
