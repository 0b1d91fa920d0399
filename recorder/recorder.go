package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LdDl/mot-pose/mot"
)

const (
	eventCreated = "created"
	eventEvicted = "evicted"
)

// RunRecorder writes per-frame track observations and lifecycle events of one run.
// It is both a mot.FrameSink and a mot.Observer. Writes are batched in transactions;
// call Flush (or Close) before reading the run back.
type RunRecorder[F any] struct {
	ctx    context.Context
	store  *Store
	runID  uuid.UUID
	logger *slog.Logger

	tx         *sql.Tx
	obsStmt    *sql.Stmt
	eventStmt  *sql.Stmt
	framesInTx int
	flushEvery int

	// Index of the frame being processed, for events
	frame   int
	pending []Event
}

var (
	_ mot.FrameSink[struct{}] = (*RunRecorder[struct{}])(nil)
	_ mot.Observer            = (*RunRecorder[struct{}])(nil)
)

func (r *RunRecorder[F]) begin() error {
	if r.tx != nil {
		return nil
	}
	tx, err := r.store.db.BeginTx(r.ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	obsStmt, err := tx.PrepareContext(r.ctx,
		`INSERT INTO observations (run_id, frame, track_id, x, y, width, height, quality,
		 smooth_x, smooth_y, smooth_width, smooth_height, vx, vy)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare observation insert: %w", err)
	}
	eventStmt, err := tx.PrepareContext(r.ctx,
		`INSERT INTO events (run_id, frame, track_id, kind, reason, quality) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare event insert: %w", err)
	}
	r.tx, r.obsStmt, r.eventStmt = tx, obsStmt, eventStmt
	return nil
}

func (r *RunRecorder[F]) writeEvents() error {
	runID := r.runID.String()
	for _, event := range r.pending {
		_, err := r.eventStmt.ExecContext(r.ctx, runID, event.Frame, event.TrackID, event.Kind, event.Reason, event.Quality)
		if err != nil {
			return fmt.Errorf("insert %s event of track %d: %w", event.Kind, event.TrackID, err)
		}
	}
	r.pending = r.pending[:0]
	return nil
}

// Consume stores live tracks of the frame
func (r *RunRecorder[F]) Consume(frame F, frameIndex int, tracks []mot.TrackView) error {
	if err := r.begin(); err != nil {
		return err
	}
	if err := r.writeEvents(); err != nil {
		return err
	}
	runID := r.runID.String()
	for _, track := range tracks {
		box, smoothed := track.BBox, track.SmoothedBBox
		_, err := r.obsStmt.ExecContext(r.ctx, runID, frameIndex, track.ID, box.X, box.Y, box.Width, box.Height, track.Quality,
			smoothed.X, smoothed.Y, smoothed.Width, smoothed.Height, track.Velocity.X, track.Velocity.Y)
		if err != nil {
			return fmt.Errorf("insert observation of track %d on frame %d: %w", track.ID, frameIndex, err)
		}
	}
	r.framesInTx++
	if r.framesInTx >= r.flushEvery {
		return r.commit()
	}
	return nil
}

func (r *RunRecorder[F]) commit() error {
	if r.tx == nil {
		return nil
	}
	started := time.Now()
	err := r.tx.Commit()
	frames := r.framesInTx
	r.tx, r.obsStmt, r.eventStmt, r.framesInTx = nil, nil, nil, 0
	if err != nil {
		return fmt.Errorf("commit observations: %w", err)
	}
	r.logger.Debug("observations committed",
		"run_id", r.runID.String(),
		"frames", frames,
		"took", time.Since(started),
	)
	return nil
}

// Flush writes everything buffered so far
func (r *RunRecorder[F]) Flush() error {
	if len(r.pending) > 0 {
		if err := r.begin(); err != nil {
			return err
		}
		if err := r.writeEvents(); err != nil {
			return err
		}
	}
	return r.commit()
}

func (r *RunRecorder[F]) Close() error {
	return r.Flush()
}

func (r *RunRecorder[F]) FrameProcessed(frameIndex int, detectionFrame bool, activeTracks int) {
	r.frame = frameIndex + 1
}

func (r *RunRecorder[F]) TrackCreated(id int, box mot.Rectangle) {
	r.pending = append(r.pending, Event{Frame: r.frame, TrackID: id, Kind: eventCreated})
}

func (r *RunRecorder[F]) TrackEvicted(id int, reason mot.EvictionReason, quality float64) {
	r.pending = append(r.pending, Event{Frame: r.frame, TrackID: id, Kind: eventEvicted, Reason: string(reason), Quality: quality})
}

func (r *RunRecorder[F]) CandidatesSkipped(int) {}

func (r *RunRecorder[F]) DetectorLatency(time.Duration) {}
