package service

import (
	"context"
	"errors"
	"time"

	"github.com/anthanhphan/gosdk/logger"

	"github.com/khanhng-dev/gridstore/internal/domain"
	"github.com/khanhng-dev/gridstore/internal/port"
)

// Sweeper periodically restores the chunk/record consistency invariant
// after crashes: chunk sets without a record are deleted, and pending
// records older than the grace period are treated as crashed uploads
// and rolled back.
type Sweeper struct {
	catalog  port.Catalog
	chunks   port.ChunkStore
	interval time.Duration
	grace    time.Duration
}

// NewSweeper builds an orphan sweeper.
func NewSweeper(catalog port.Catalog, chunks port.ChunkStore, interval, grace time.Duration) *Sweeper {
	return &Sweeper{
		catalog:  catalog,
		chunks:   chunks,
		interval: interval,
		grace:    grace,
	}
}

// Start runs sweep passes until the context is canceled. It blocks and
// is meant to run on its own goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			orphans, reaped, err := s.SweepOnce(ctx)
			if err != nil {
				logger.Warnw("Sweep pass failed", "error", err.Error())
				continue
			}
			if orphans > 0 || reaped > 0 {
				logger.Infow("Sweep pass finished", "orphaned_chunksets", orphans, "reaped_pending", reaped)
			}
		}
	}
}

// SweepOnce runs a single pass and reports how many orphaned chunk
// sets and stale pending uploads it removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, int, error) {
	orphans, err := s.sweepOrphanedChunks(ctx)
	if err != nil {
		return orphans, 0, err
	}

	reaped, err := s.reapStalePending(ctx)
	return orphans, reaped, err
}

// sweepOrphanedChunks deletes chunk sets whose file ID has no catalog
// record. A record in any state, pending included, keeps its chunks: a
// pending record may be an upload that is still streaming.
func (s *Sweeper) sweepOrphanedChunks(ctx context.Context) (int, error) {
	ids, err := s.chunks.ListFileIDs(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		_, err := s.catalog.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrFileNotFound) {
			logger.Warnw("Sweep record lookup failed", "file_id", id, "error", err.Error())
			continue
		}

		logger.Infow("Sweeping orphaned chunks", "file_id", id)
		if err := s.chunks.DeleteAll(ctx, id); err != nil {
			logger.Warnw("Sweep chunk delete failed", "file_id", id, "error", err.Error())
			continue
		}
		deleted++
	}
	return deleted, nil
}

// reapStalePending rolls back pending records older than the grace
// period, chunks first, then the record.
func (s *Sweeper) reapStalePending(ctx context.Context) (int, error) {
	stale, err := s.catalog.ListPendingBefore(ctx, time.Now().UTC().Add(-s.grace))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, record := range stale {
		logger.Infow("Reaping stale pending upload", "file_id", record.ID, "filename", record.Filename, "created_at", record.CreatedAt)
		if err := s.chunks.DeleteAll(ctx, record.ID); err != nil {
			logger.Warnw("Reap chunk delete failed", "file_id", record.ID, "error", err.Error())
			continue
		}
		if err := s.catalog.Remove(ctx, record.ID); err != nil && !errors.Is(err, domain.ErrFileNotFound) {
			logger.Warnw("Reap record removal failed", "file_id", record.ID, "error", err.Error())
			continue
		}
		reaped++
	}
	return reaped, nil
}
