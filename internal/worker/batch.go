package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ppiankov/concordia/internal/model"
)

// Uploader sends one file to one record
type Uploader interface {
	Upload(ctx context.Context, recordID string, file model.CandidateFile) error
}

// UploaderFunc adapts a function to the Uploader interface
type UploaderFunc func(ctx context.Context, recordID string, file model.CandidateFile) error

// Upload calls f
func (f UploaderFunc) Upload(ctx context.Context, recordID string, file model.CandidateFile) error {
	return f(ctx, recordID, file)
}

// Progress is reported after every settled item
type Progress struct {
	Batch   int // 1-based
	Batches int
	Done    int
	Total   int
	Item    model.MatchResult
}

// ItemError wraps the error that aborted a run with the item that caused it
type ItemError struct {
	Index    int
	RecordID string
	File     string
	Err      error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("upload %s -> %s (item %d): %v", e.File, e.RecordID, e.Index+1, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// BatchRunner walks a matched set in fixed-size chunks, one upload at a time.
// The first failure stops the run; earlier uploads are not rolled back.
type BatchRunner struct {
	batchSize  int
	onProgress func(Progress)
	logger     *slog.Logger
}

// NewBatchRunner creates a runner. Batch sizes below 1 become 1.
func NewBatchRunner(batchSize int, logger *slog.Logger) *BatchRunner {
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BatchRunner{
		batchSize: batchSize,
		logger:    logger,
	}
}

// OnProgress registers a callback invoked after each settled item
func (b *BatchRunner) OnProgress(fn func(Progress)) {
	b.onProgress = fn
}

// Run uploads every matched item in order. The context is checked before
// each item, so cancellation takes effect between uploads.
func (b *BatchRunner) Run(ctx context.Context, matched []model.MatchResult, up Uploader) (model.BatchOutcome, error) {
	batches := Chunk(matched, b.batchSize)
	outcome := model.BatchOutcome{
		Total:   len(matched),
		Batches: len(batches),
	}

	index := 0
	for bi, batch := range batches {
		b.logger.Debug("starting batch", "batch", bi+1, "of", len(batches), "items", len(batch))

		for _, item := range batch {
			if err := ctx.Err(); err != nil {
				return outcome, b.abort(&outcome, index, item, err)
			}

			outcome.Attempted++
			if err := up.Upload(ctx, item.RecordID, item.File); err != nil {
				return outcome, b.abort(&outcome, index, item, err)
			}
			outcome.Succeeded++
			index++

			b.logger.Debug("uploaded", "file", item.File.OriginalName, "record", item.RecordID)
			if b.onProgress != nil {
				b.onProgress(Progress{
					Batch:   bi + 1,
					Batches: len(batches),
					Done:    outcome.Succeeded,
					Total:   outcome.Total,
					Item:    item,
				})
			}
		}
	}

	outcome.Completed = true
	return outcome, nil
}

func (b *BatchRunner) abort(outcome *model.BatchOutcome, index int, item model.MatchResult, err error) error {
	itemErr := &ItemError{
		Index:    index,
		RecordID: item.RecordID,
		File:     item.File.OriginalName,
		Err:      err,
	}
	outcome.Failure = &model.ItemFailure{
		Index:    index,
		RecordID: item.RecordID,
		File:     item.File.OriginalName,
		Message:  err.Error(),
	}

	level := slog.LevelError
	if errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	b.logger.Log(context.Background(), level, "batch aborted",
		"file", item.File.OriginalName,
		"record", item.RecordID,
		"succeeded", outcome.Succeeded,
		"total", outcome.Total,
		"error", err)

	return itemErr
}

// Chunk splits items into consecutive slices of size n; the last may be shorter
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	chunks := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		end := min(start+n, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
