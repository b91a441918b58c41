package usecase

import (
	"context"
	"fmt"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
)

type BatchWriter struct {
	repo   stats.Repository
	logger *logging.Logger
}

func NewBatchWriter(repo stats.Repository, logger *logging.Logger) *BatchWriter {
	if logger == nil {
		logger = logging.Default()
	}
	return &BatchWriter{repo: repo, logger: logger}
}

// Write upserts records into target, chunkSize rows per statement (all at once when chunkSize <= 0).
// A failed chunk does not stop later chunks and earlier chunks stay committed;
// the returned error combines every chunk failure.
func (w *BatchWriter) Write(ctx context.Context, target stats.Target, chunkSize int, records []stats.Record) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BatchWriter.Write")
	defer span.End()

	if len(records) == 0 {
		return 0, nil
	}
	if w.repo == nil {
		return 0, fmt.Errorf("%w: stats repository is not configured", ErrDependencyUnavailable)
	}
	if chunkSize <= 0 || chunkSize > len(records) {
		chunkSize = len(records)
	}

	written := 0
	var combined error
	for start := 0; start < len(records); start += chunkSize {
		end := min(start+chunkSize, len(records))
		n, err := w.repo.UpsertRecords(ctx, target, records[start:end])
		if err != nil {
			w.logger.WarnContext(ctx, "upsert chunk failed",
				"table", target.Table,
				"chunk_start", start,
				"chunk_size", end-start,
				"error", err,
			)
			combined = crerr.CombineErrors(combined, crerr.Wrapf(err, "upsert %s rows %d-%d", target.Table, start, end-1))
			continue
		}
		written += n
	}

	return written, combined
}
