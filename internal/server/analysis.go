package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docscan/constants"
	"github.com/joseph-ayodele/docscan/internal/common"
	"github.com/joseph-ayodele/docscan/internal/core"
	"github.com/joseph-ayodele/docscan/internal/entity"
	"github.com/joseph-ayodele/docscan/internal/ingest"
)

// Processor is what the service needs from core.Processor.
type Processor interface {
	Analyze(ctx context.Context, req core.AnalyzeRequest) (*core.AnalyzeResult, error)
	LinkRecord(ctx context.Context, analysisID, recordID string) error
	GetUsage(ctx context.Context, sellerID string) (*entity.SellerUsage, error)
}

type Exporter interface {
	ExportAnalysisXLSX(ctx context.Context, analysisIDs ...string) ([]byte, error)
}

type AnalysisService struct {
	proc     Processor
	exporter Exporter
	ingestor ingest.Ingestor
	logger   *slog.Logger
}

func NewAnalysisService(proc Processor, exporter Exporter, ingestor ingest.Ingestor, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{proc: proc, exporter: exporter, ingestor: ingestor, logger: logger}
}

func str(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

func documentType(in *structpb.Struct) constants.DocumentType {
	dt, _ := constants.CanonicalDocumentType(str(in, "documentType"))
	return dt
}

func tier(in *structpb.Struct) (constants.Tier, error) {
	switch t := constants.Tier(strings.ToLower(str(in, "tier"))); t {
	case "", constants.TierFree:
		return constants.TierFree, nil
	case constants.TierPremium:
		return t, nil
	default:
		return "", common.InvalidArgumentErrorf("tier must be %s or %s", constants.TierFree, constants.TierPremium)
	}
}

// jsonValue turns cached JSON into a struct value; undecodable bytes become a string.
func jsonValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func (s *AnalysisService) Analyze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	content, err := base64.StdEncoding.DecodeString(str(in, "content"))
	if err != nil {
		return nil, common.InvalidArgumentError("content must be base64 encoded")
	}
	t, err := tier(in)
	if err != nil {
		return nil, err
	}
	role := constants.UploaderRole(strings.ToLower(str(in, "uploaderType")))
	if role == "" {
		role = constants.UploaderSeller
	}

	res, err := s.proc.Analyze(ctx, core.AnalyzeRequest{
		SellerID:     str(in, "sellerId"),
		UploaderID:   str(in, "uploaderId"),
		UploaderType: role,
		UploadID:     str(in, "uploadId"),
		Content:      content,
		MimeType:     strings.ToLower(str(in, "mimeType")),
		Filename:     str(in, "filename"),
		DocumentType: documentType(in),
		Tier:         t,
	})
	if err != nil {
		s.logger.Error("analyze failed", "seller_id", str(in, "sellerId"), "error", err)
		return nil, common.ToStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{
		"analysisId":    res.AnalysisID,
		"cached":        res.Cached,
		"billed":        res.Billed,
		"recordId":      res.RecordID,
		"documentType":  string(res.DocumentType),
		"mimeType":      res.MimeType,
		"backend":       res.Backend,
		"cachedAt":      res.CachedAt.Format(time.RFC3339Nano),
		"parsedFields":  jsonValue(res.ParsedFields),
		"extractedData": jsonValue(res.ExtractedData),
	})
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

func (s *AnalysisService) GetUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	u, err := s.proc.GetUsage(ctx, str(in, "sellerId"))
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"sellerId":         u.SellerID,
		"ocrScans":         u.OCRScans,
		"customerOcrScans": u.CustomerOCRScans,
	})
}

func (s *AnalysisService) LinkRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, rec := str(in, "analysisId"), str(in, "recordId")
	if err := s.proc.LinkRecord(ctx, id, rec); err != nil {
		s.logger.Warn("link record failed", "analysis_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"analysisId": id, "recordId": rec})
}

func (s *AnalysisService) ExportAnalyses(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var ids []string
	for _, v := range in.GetFields()["analysisIds"].GetListValue().GetValues() {
		if id := strings.TrimSpace(v.GetStringValue()); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, common.InvalidArgumentError("analysisIds is required")
	}
	xlsx, err := s.exporter.ExportAnalysisXLSX(ctx, ids...)
	if err != nil {
		s.logger.Error("export.xlsx.failed", "analyses", len(ids), "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"xlsx": xlsx})
}

// IngestDirectory analyzes every supported file under a directory on the server's filesystem.
func (s *AnalysisService) IngestDirectory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	root := str(in, "root")
	if root == "" {
		return nil, common.InvalidArgumentError("root is required")
	}
	t, err := tier(in)
	if err != nil {
		return nil, err
	}
	opts := ingest.Options{
		SellerID:     str(in, "sellerId"),
		UploaderID:   str(in, "uploaderId"),
		UploaderType: constants.UploaderSeller,
		DocumentType: documentType(in),
		Tier:         t,
		SkipHidden:   in.GetFields()["skipHidden"].GetBoolValue(),
	}
	if !core.ValidSellerID(opts.SellerID) {
		return nil, common.InvalidArgumentError("Invalid sellerId provided")
	}

	s.logger.Info("starting directory ingest", "seller_id", opts.SellerID, "root", root)
	results, stats, err := s.ingestor.IngestDirectory(ctx, opts, root)
	if err != nil {
		s.logger.Error("directory ingest failed", "root", root, "error", err)
		return nil, common.InternalErrorf("ingest directory: %v", err)
	}

	files := make([]any, 0, len(results))
	for _, r := range results {
		files = append(files, map[string]any{
			"path":         r.SourcePath,
			"analysisId":   r.AnalysisID,
			"deduplicated": r.Deduplicated,
			"error":        r.Err,
		})
	}
	return structpb.NewStruct(map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"succeeded":    stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"files":        files,
	})
}

// UnaryLogger tags each call with a request id and logs its outcome.
func UnaryLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := uuid.NewString()
		ctx = common.WithRequestID(ctx, reqID)
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc call",
			"method", info.FullMethod,
			"request_id", reqID,
			"code", status.Code(err).String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
