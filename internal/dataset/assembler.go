// Package dataset drives the feature engine over the sampled handle
// population and writes chunked CSV batches.
package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/probsolve/cfdataset/internal/features"
	"github.com/probsolve/cfdataset/internal/logger"
	"github.com/probsolve/cfdataset/internal/metrics"
	"github.com/probsolve/cfdataset/internal/storage"
)

// Config holds assembly behavior.
type Config struct {
	OutputDir          string
	ChunkCount         int
	Normalize          bool
	Seed               int64
	RatingPivot        int
	ProblemRatingPivot int
}

// Summary reports the outcome of one assembly run.
type Summary struct {
	RunID    string
	Handles  int
	Chunks   int
	Emitted  int
	Skipped  int
	Duration time.Duration
}

// Assembler partitions handles into chunks and assembles one output
// batch per chunk, so a run can restart from an arbitrary chunk offset
// without recomputing earlier chunks.
type Assembler struct {
	store  *storage.Storage
	engine *features.Engine
	caches *features.Caches
	cfg    Config
}

// New creates an assembler. The caches must be the same instance the
// engine was built with; the assembler owns their lifecycle.
func New(store *storage.Storage, engine *features.Engine, caches *features.Caches, cfg Config) *Assembler {
	if cfg.ChunkCount < 1 {
		cfg.ChunkCount = 1
	}
	return &Assembler{store: store, engine: engine, caches: caches, cfg: cfg}
}

// Run assembles dataset batches for every chunk from chunkOffset on.
func (a *Assembler) Run(ctx context.Context, chunkOffset int) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()

	handles, err := a.store.SampledHandles()
	if err != nil {
		return nil, fmt.Errorf("failed to load sampled handles: %w", err)
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("no sampled handles; run the handles stage first")
	}

	rnd := rand.New(rand.NewSource(a.cfg.Seed))
	rnd.Shuffle(len(handles), func(i, j int) {
		handles[i], handles[j] = handles[j], handles[i]
	})

	chunks := partition(handles, a.cfg.ChunkCount)
	logger.Info("Run %s: %d handles in %d chunks, resuming at chunk %d",
		runID, len(handles), len(chunks), chunkOffset)

	if chunkOffset < 0 || chunkOffset >= len(chunks) {
		return nil, fmt.Errorf("chunk offset %d out of range [0,%d)", chunkOffset, len(chunks))
	}

	columns := a.engine.Columns()
	summary := &Summary{RunID: runID, Handles: len(handles)}

	for i := chunkOffset; i < len(chunks); i++ {
		emitted, skipped, err := a.runChunk(ctx, i, chunks[i], columns)
		if err != nil {
			return nil, fmt.Errorf("chunk %d failed: %w", i, err)
		}
		summary.Chunks++
		summary.Emitted += emitted
		summary.Skipped += skipped
	}

	summary.Duration = time.Since(start)
	logger.Info("Run %s complete: %d records emitted, %d skipped across %d chunks in %v",
		runID, summary.Emitted, summary.Skipped, summary.Chunks, summary.Duration)
	return summary, nil
}

func (a *Assembler) runChunk(ctx context.Context, idx int, handles []string, columns []string) (int, int, error) {
	// Per-chunk caches bound memory across a long run.
	a.caches.Reset()

	allAccepted, err := a.store.AllAcceptedByHandle()
	if err != nil {
		return 0, 0, err
	}
	for _, h := range handles {
		a.caches.SetAccepted(h, allAccepted[h])
	}

	var records []*features.Record
	emitted, skipped := 0, 0

	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		a.caches.ResetRatings()

		outcomes, err := a.store.OutcomesForHandle(handle)
		if err != nil {
			return 0, 0, err
		}
		for _, out := range outcomes {
			rec, err := a.engine.Derive(ctx, out)
			if skip := features.AsSkip(err); skip != nil {
				logger.Warn("Skipping outcome %s/%d/%d: %s",
					skip.Handle, skip.ContestID, skip.ProblemIndex, skip.Reason)
				metrics.RecordsSkipped.WithLabelValues(skip.Reason).Inc()
				skipped++
				continue
			}
			if err != nil {
				return 0, 0, err
			}
			if a.cfg.Normalize {
				features.Normalize(rec, a.cfg.RatingPivot, a.cfg.ProblemRatingPivot)
			}
			records = append(records, rec)
			emitted++
			metrics.RecordsEmitted.Inc()
		}
	}

	path := filepath.Join(a.cfg.OutputDir, fmt.Sprintf("dataset_group_%d.csv", idx))
	if err := WriteBatch(path, columns, records); err != nil {
		return 0, 0, err
	}
	metrics.ChunksWritten.Inc()
	logger.Info("Chunk %d saved to %s with %d records (%d skipped)", idx, path, emitted, skipped)
	return emitted, skipped, nil
}

// partition splits handles into chunkCount groups of equal size; the
// remainder spills into an extra trailing group.
func partition(handles []string, chunkCount int) [][]string {
	size := len(handles) / chunkCount
	if size < 1 {
		size = 1
	}
	var chunks [][]string
	for i := 0; i < len(handles); i += size {
		end := i + size
		if end > len(handles) {
			end = len(handles)
		}
		chunks = append(chunks, handles[i:end])
	}
	return chunks
}
