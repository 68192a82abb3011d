package selection

import (
	"errors"
	"math"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/wonny/factorscore/internal/contracts"
	"github.com/wonny/factorscore/pkg/logger"
)

// RejectLog appends rejected records to a rotating JSONL file.
// Safe for concurrent use; a RejectLog with an empty path discards records.
type RejectLog struct {
	sink *lumberjack.Logger
	log  *logger.Logger
}

// RejectLogOption configures a RejectLog
type RejectLogOption func(*lumberjack.Logger)

// WithCompress gzips rotated backups (default on).
// Compression runs in a background goroutine after each rotation.
func WithCompress(enabled bool) RejectLogOption {
	return func(l *lumberjack.Logger) {
		l.Compress = enabled
	}
}

// NewRejectLog opens a reject log at path (rotation sizes in MB)
func NewRejectLog(path string, maxSizeMB, maxBackups int, opts ...RejectLogOption) *RejectLog {
	if path == "" {
		return &RejectLog{log: logger.Nop()}
	}

	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	for _, opt := range opts {
		opt(sink)
	}

	return &RejectLog{
		sink: sink,
		log:  logger.NewWithWriter(sink, "info"),
	}
}

// Append records one rejected CompositeScore with its snapshot reference
func (r *RejectLog) Append(snapshotID string, cs *contracts.CompositeScore, err error) {
	fields := map[string]interface{}{
		"snapshot_id": snapshotID,
		"reason":      err.Error(),
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		fields["field"] = ve.Field
	}

	if cs != nil {
		fields["run_id"] = cs.RunID
		fields["entity_id"] = cs.EntityID
		fields["as_of_date"] = cs.AsOfDate.Format("2006-01-02")
		fields["period_type"] = string(cs.PeriodType)
		fields["composite"] = floatOrNil(cs.Composite)
		fields["confidence"] = floatOrNil(cs.Confidence)

		factors := make(map[string]interface{}, len(cs.Factors))
		for f, fs := range cs.Factors {
			factors[string(f)] = floatOrNil(fs.Score)
		}
		fields["factors"] = factors
	}

	r.log.WithFields(fields).Info("score rejected")
}

// Rotate starts a new file; the old one becomes a (compressed) backup
func (r *RejectLog) Rotate() error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Rotate()
}

// Close flushes and closes the underlying file
func (r *RejectLog) Close() error {
	if r.sink == nil {
		return nil
	}
	return r.sink.Close()
}

// floatOrNil keeps NaN/Inf readable in JSON output
func floatOrNil(v *float64) interface{} {
	switch {
	case v == nil:
		return nil
	case math.IsNaN(*v):
		return "NaN"
	case math.IsInf(*v, 1):
		return "+Inf"
	case math.IsInf(*v, -1):
		return "-Inf"
	default:
		return *v
	}
}
