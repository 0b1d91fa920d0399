package mot

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrStopped may be returned by a FrameSink to end Run early without failing it
var ErrStopped = errors.New("processing stopped")

// Option configures TrackManager
type Option func(*managerOptions)

type managerOptions struct {
	logger   *slog.Logger
	observer Observer
	runID    uuid.UUID
	now      func() time.Time
}

// WithLogger sets logger. Default is slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithObserver sets lifecycle observer (e.g. metrics)
func WithObserver(observer Observer) Option {
	return func(o *managerOptions) {
		o.observer = observer
	}
}

// WithRunID overrides randomly generated run identifier
func WithRunID(runID uuid.UUID) Option {
	return func(o *managerOptions) {
		o.runID = runID
	}
}

// WithClock overrides time source used for run statistics
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) {
		o.now = now
	}
}

// Eviction describes a removed track
type Eviction struct {
	ID      int
	Reason  EvictionReason
	Quality float64
}

// FrameResult describes everything that happened to the track set on a single frame
type FrameResult struct {
	FrameIndex     int
	DetectionFrame bool
	// Tracks removed on this frame, ascending ID
	Evicted []Eviction
	// Detection boxes and their association (detection frames only)
	Associations []Association
	// IDs of tracks created on this frame
	Created []int
	// Indices of detector candidates which gave no detection box
	Skipped []int
	// Live tracks after processing, ascending ID
	Tracks []TrackView
}

// TrackManager is the multi-object tracker combining periodic keypoint detections with
// per-frame visual tracking. It exclusively owns the active track set.
// F is the frame type understood by the detector and visual trackers.
// TrackManager is not safe for concurrent use: frames must be processed sequentially.
type TrackManager[F any] struct {
	cfg        Config
	detector   Detector[F]
	newTracker TrackerFactory[F]
	// Main storage
	tracks     map[int]*Track[F]
	nextID     int
	frameIndex int
	runID      uuid.UUID
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
	stats      statsCollector
}

// NewTrackManager creates new instance of TrackManager
func NewTrackManager[F any](cfg Config, detector Detector[F], newTracker TrackerFactory[F], opts ...Option) (*TrackManager[F], error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid tracking configuration")
	}
	if detector == nil {
		return nil, errors.New("Detector must not be nil")
	}
	if newTracker == nil {
		return nil, errors.New("Tracker factory must not be nil")
	}
	options := managerOptions{
		logger:   slog.Default(),
		observer: nopObserver{},
		runID:    uuid.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &TrackManager[F]{
		cfg:        cfg,
		detector:   detector,
		newTracker: newTracker,
		tracks:     make(map[int]*Track[F]),
		runID:      options.runID,
		logger:     options.logger.With("run_id", options.runID.String()),
		observer:   options.observer,
		now:        options.now,
	}, nil
}

// Config returns copy of manager configuration
func (m *TrackManager[F]) Config() Config {
	return m.cfg
}

// RunID returns identifier of this manager's run
func (m *TrackManager[F]) RunID() uuid.UUID {
	return m.runID
}

// Len returns number of live tracks
func (m *TrackManager[F]) Len() int {
	return len(m.tracks)
}

// Track returns live track by ID
func (m *TrackManager[F]) Track(id int) (*Track[F], bool) {
	track, ok := m.tracks[id]
	return track, ok
}

// sortedIDs returns live track IDs in ascending order. Every walk over the track set
// goes through it so processing order never depends on map iteration.
func (m *TrackManager[F]) sortedIDs() []int {
	ids := make([]int, 0, len(m.tracks))
	for id := range m.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Tracks returns snapshots of live tracks, ascending ID
func (m *TrackManager[F]) Tracks() []TrackView {
	ids := m.sortedIDs()
	views := make([]TrackView, 0, len(ids))
	for _, id := range ids {
		views = append(views, m.tracks[id].View())
	}
	return views
}

// TrackBoxes returns current boxes of live tracks, ascending ID
func (m *TrackManager[F]) TrackBoxes() []TrackBox {
	ids := m.sortedIDs()
	boxes := make([]TrackBox, 0, len(ids))
	for _, id := range ids {
		boxes = append(boxes, TrackBox{ID: id, BBox: m.tracks[id].BBox()})
	}
	return boxes
}

// ProcessFrame runs one full cycle: visual update and eviction of every track, then
// detection and association if the frame falls on the detection cadence.
func (m *TrackManager[F]) ProcessFrame(frame F) (FrameResult, error) {
	frameIndex := m.frameIndex
	m.frameIndex++
	result := FrameResult{
		FrameIndex:     frameIndex,
		DetectionFrame: m.cfg.IsDetectionFrame(frameIndex),
	}

	evicted, err := m.UpdateTracks(frame)
	if err != nil {
		return result, errors.Wrapf(err, "Can't update tracks on frame %d", frameIndex)
	}
	result.Evicted = evicted

	if result.DetectionFrame {
		started := m.now()
		candidates, err := m.detector.Detect(frame)
		if err != nil {
			return result, errors.Wrapf(err, "Detector failed on frame %d", frameIndex)
		}
		m.observer.DetectorLatency(m.now().Sub(started))
		m.stats.detectionFrames++

		detection, err := m.AssociateCandidates(frame, frameIndex, candidates)
		if err != nil {
			return result, errors.Wrapf(err, "Can't associate detections on frame %d", frameIndex)
		}
		result.Associations = detection.Associations
		result.Created = detection.Created
		result.Skipped = detection.Skipped
		result.Evicted = append(result.Evicted, detection.Evicted...)
	}

	result.Tracks = m.Tracks()
	m.stats.frames++
	m.stats.activePerFrame = append(m.stats.activePerFrame, float64(len(m.tracks)))
	m.observer.FrameProcessed(frameIndex, result.DetectionFrame, len(m.tracks))
	return result, nil
}

// UpdateTracks refreshes every live track against the frame and evicts those whose
// quality fell below threshold. Removal happens only after all tracks are updated.
func (m *TrackManager[F]) UpdateTracks(frame F) ([]Eviction, error) {
	toEvict := make([]int, 0)
	for _, id := range m.sortedIDs() {
		track := m.tracks[id]
		if err := track.update(frame); err != nil {
			return nil, err
		}
		m.stats.qualities = append(m.stats.qualities, track.Quality())
		// NaN quality fails the comparison and is evicted too
		if !(track.Quality() >= m.cfg.QualityThreshold) {
			toEvict = append(toEvict, id)
		}
	}
	return m.evict(toEvict, EvictedLowQuality)
}

// evict removes tracks and releases their visual trackers. Every listed track is removed
// even if releasing one of them fails; the first such failure is returned.
func (m *TrackManager[F]) evict(ids []int, reason EvictionReason) ([]Eviction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	evicted := make([]Eviction, 0, len(ids))
	var firstErr error
	for _, id := range ids {
		track, ok := m.tracks[id]
		if !ok {
			continue
		}
		delete(m.tracks, id)
		m.stats.tracksEvicted++
		evicted = append(evicted, Eviction{ID: id, Reason: reason, Quality: track.Quality()})
		m.logger.Info("removing track",
			"track_id", id,
			"reason", string(reason),
			"quality", track.Quality(),
			"age", track.Age(),
		)
		m.observer.TrackEvicted(id, reason, track.Quality())
		if err := track.release(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "Can't release visual tracker of track %d", id)
		}
	}
	return evicted, firstErr
}

// DetectionResult is outcome of associating one detector batch
type DetectionResult struct {
	Associations []Association
	Created      []int
	Skipped      []int
	Evicted      []Eviction
}

// AssociateCandidates turns detector candidates into boxes, matches them against live
// tracks and starts a track for every box nothing matched.
//
// Boxes are associated against tracks that existed before this batch first. A box left
// unmatched is then checked against tracks started earlier in the same batch, so one
// subject reported twice does not get two tracks.
func (m *TrackManager[F]) AssociateCandidates(frame F, frameIndex int, candidates []Candidate) (DetectionResult, error) {
	result := DetectionResult{}
	boxes, skipped := ExtractDetectionBoxes(candidates, m.cfg.MinPoints, m.cfg.Padding, m.cfg.Axes)
	result.Skipped = skipped
	m.stats.candidates += len(candidates)
	m.stats.candidatesSkipped += len(skipped)
	if len(skipped) > 0 {
		m.logger.Debug("candidates without detected keypoints skipped",
			"frame", frameIndex,
			"skipped", len(skipped),
		)
		m.observer.CandidatesSkipped(len(skipped))
	}

	existing := m.TrackBoxes()
	associations := AssociateBatch(m.cfg.Association, boxes, existing)

	claimed := make(map[int]struct{}, len(associations))
	spawned := make([]TrackBox, 0)
	for i := range associations {
		association := &associations[i]
		switch association.Outcome {
		case OutcomeMatched:
			claimed[association.TrackID] = struct{}{}
			continue
		case OutcomeSuppressed:
			continue
		}
		if id, ok := Associate(association.Box, spawned); ok {
			association.Outcome = OutcomeMatched
			association.TrackID = id
			continue
		}
		id, err := m.spawn(frame, frameIndex, association.Box.Rect())
		if err != nil {
			return result, err
		}
		association.TrackID = id
		spawned = append(spawned, TrackBox{ID: id, BBox: association.Box.Rect()})
		result.Created = append(result.Created, id)
	}
	result.Associations = associations

	if m.cfg.MaxUnclaimedDetections > 0 {
		evicted, err := m.evictUnclaimed(existing, claimed)
		result.Evicted = evicted
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// evictUnclaimed counts detection frames in a row where a track was not claimed by any
// detection box and drops tracks past the limit
func (m *TrackManager[F]) evictUnclaimed(existing []TrackBox, claimed map[int]struct{}) ([]Eviction, error) {
	toEvict := make([]int, 0)
	for _, trackBox := range existing {
		track, ok := m.tracks[trackBox.ID]
		if !ok {
			continue
		}
		if _, ok := claimed[trackBox.ID]; ok {
			track.unclaimed = 0
			continue
		}
		track.unclaimed++
		if track.unclaimed >= m.cfg.MaxUnclaimedDetections {
			toEvict = append(toEvict, trackBox.ID)
		}
	}
	return m.evict(toEvict, EvictedUnclaimed)
}

func (m *TrackManager[F]) spawn(frame F, frameIndex int, box Rectangle) (int, error) {
	tracker, err := m.newTracker(frame, box)
	if err != nil {
		return 0, errors.Wrapf(err, "Can't start visual tracker for box %v", box)
	}
	id := m.nextID
	m.nextID++
	m.tracks[id] = newTrack(id, tracker, box, frameIndex, m.cfg.QualityThreshold, m.cfg.MaxTrailLen, m.cfg.SmoothingDt)
	m.stats.tracksCreated++
	m.logger.Info("creating new track",
		"track_id", id,
		"frame", frameIndex,
		"x", box.X,
		"y", box.Y,
		"width", box.Width,
		"height", box.Height,
	)
	m.observer.TrackCreated(id, box)
	return id, nil
}

// Run processes frames from source until it is exhausted, feeding every processed frame
// to sink (may be nil). Context is checked between frames only.
// A sink returning ErrStopped ends the run normally.
func (m *TrackManager[F]) Run(ctx context.Context, source FrameSource[F], sink FrameSink[F]) (RunStats, error) {
	started := m.now()
	finish := func() RunStats {
		m.stats.elapsed += m.now().Sub(started)
		return m.Stats()
	}
	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}
		frame, ok, err := source.Next()
		if err != nil {
			return finish(), errors.Wrapf(err, "Can't read frame %d", m.frameIndex)
		}
		if !ok {
			break
		}
		result, err := m.ProcessFrame(frame)
		if err != nil {
			return finish(), err
		}
		if sink == nil {
			continue
		}
		if err := sink.Consume(frame, result.FrameIndex, result.Tracks); err != nil {
			if errors.Cause(err) == ErrStopped {
				m.logger.Info("processing stopped by sink", "frame", result.FrameIndex)
				break
			}
			return finish(), errors.Wrapf(err, "Sink failed on frame %d", result.FrameIndex)
		}
	}
	stats := finish()
	m.logger.Info("processing finished",
		"frames", stats.Frames,
		"detection_frames", stats.DetectionFrames,
		"tracks_created", stats.TracksCreated,
		"tracks_evicted", stats.TracksEvicted,
		"active_tracks", stats.ActiveTracks,
		"elapsed", stats.Elapsed,
		"fps", stats.FPS(),
	)
	return stats, nil
}

// Stats returns statistics collected so far
func (m *TrackManager[F]) Stats() RunStats {
	return m.stats.summary(m.runID, len(m.tracks))
}

// Close releases visual trackers of every live track and empties the track set
func (m *TrackManager[F]) Close() error {
	var firstErr error
	for _, id := range m.sortedIDs() {
		if err := m.tracks[id].release(); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "Can't release visual tracker of track %d", id)
		}
		delete(m.tracks, id)
	}
	return firstErr
}
