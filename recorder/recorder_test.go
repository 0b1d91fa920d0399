package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/mot-pose/mot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestLatestRunEmpty(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestRunRecorder(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	runID := uuid.New()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.BeginRun(ctx, runID, "walk.mp4", mot.DefaultConfig(), started))

	rec := Recorder[struct{}](ctx, store, runID, nil)
	rec.flushEvery = 2

	view := func(id int, x float64, quality float64) mot.TrackView {
		return mot.TrackView{ID: id, BBox: mot.NewRect(x, 10, 20, 40), Quality: quality}
	}
	// Frame 0: track 0 created
	rec.TrackCreated(0, mot.NewRect(0, 10, 20, 40))
	rec.FrameProcessed(0, true, 1)
	require.NoError(t, rec.Consume(struct{}{}, 0, []mot.TrackView{view(0, 0, 0)}))
	// Frame 1: track 1 created
	rec.TrackCreated(1, mot.NewRect(100, 10, 20, 40))
	rec.FrameProcessed(1, true, 2)
	require.NoError(t, rec.Consume(struct{}{}, 1, []mot.TrackView{view(0, 2, 20), view(1, 100, 0)}))
	// Frame 2: track 0 lost
	rec.TrackEvicted(0, mot.EvictedLowQuality, 4.5)
	rec.FrameProcessed(2, false, 1)
	require.NoError(t, rec.Consume(struct{}{}, 2, []mot.TrackView{view(1, 104, 18)}))
	// Frame 3 evicts the last one, no sink call follows
	rec.TrackEvicted(1, mot.EvictedUnclaimed, 18)
	rec.FrameProcessed(3, false, 0)
	require.NoError(t, rec.Close())

	require.NoError(t, store.FinishRun(ctx, mot.RunStats{
		RunID:           runID,
		Frames:          4,
		DetectionFrames: 2,
		TracksCreated:   2,
		TracksEvicted:   2,
		Elapsed:         time.Second,
	}, started.Add(time.Second)))

	run, err := store.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "walk.mp4", run.Input)
	assert.True(t, run.Finished)
	assert.Equal(t, 4, run.Frames)
	assert.Equal(t, 2, run.DetectionFrames)
	assert.Equal(t, started, run.StartedAt)
	assert.Contains(t, run.Config, "detect_every: 10")

	trails, err := store.Trails(ctx, runID, false)
	require.NoError(t, err)
	want := []Trail{
		{TrackID: 0, Frames: []int{0, 1}, Points: []mot.Point{mot.NewPoint(10, 30), mot.NewPoint(12, 30)}},
		{TrackID: 1, Frames: []int{1, 2}, Points: []mot.Point{mot.NewPoint(110, 30), mot.NewPoint(114, 30)}},
	}
	if diff := cmp.Diff(want, trails); diff != "" {
		t.Errorf("Trails() mismatch (-want +got):\n%s", diff)
	}

	events, err := store.Events(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Frame: 0, TrackID: 0, Kind: eventCreated},
		{Frame: 1, TrackID: 1, Kind: eventCreated},
		{Frame: 2, TrackID: 0, Kind: eventEvicted, Reason: "low_quality", Quality: 4.5},
		{Frame: 3, TrackID: 1, Kind: eventEvicted, Reason: "unclaimed", Quality: 18},
	}, events)
}

func TestFinishUnknownRun(t *testing.T) {
	store := openTestStore(t)
	err := store.FinishRun(context.Background(), mot.RunStats{RunID: uuid.New()}, time.Now())
	assert.Error(t, err)
}

func TestObservationsNeedRun(t *testing.T) {
	store := openTestStore(t)
	rec := Recorder[struct{}](context.Background(), store, uuid.New(), nil)
	err := rec.Consume(struct{}{}, 0, []mot.TrackView{{ID: 0, BBox: mot.NewRect(0, 0, 1, 1)}})
	assert.Error(t, err, "foreign key on run_id must reject observations of unknown runs")
	rec.tx.Rollback()
}

func TestRecorderKeepsSmoothedState(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	runID := uuid.New()
	require.NoError(t, store.BeginRun(ctx, runID, "walk.mp4", mot.DefaultConfig(), time.Now()))

	rec := Recorder[struct{}](ctx, store, runID, nil)
	for frame := 0; frame < 3; frame++ {
		x := float64(10 * frame)
		view := mot.TrackView{
			ID:           0,
			BBox:         mot.NewRect(x, 0, 20, 40),
			SmoothedBBox: mot.NewRect(x-2, 1, 22, 38),
			Velocity:     mot.NewPoint(9.5, -0.5),
			Quality:      15,
		}
		require.NoError(t, rec.Consume(struct{}{}, frame, []mot.TrackView{view}))
	}
	require.NoError(t, rec.Flush())

	observations, err := store.Observations(ctx, runID, 0)
	require.NoError(t, err)
	require.Len(t, observations, 3)
	assert.Equal(t, Observation{
		Frame:        2,
		TrackID:      0,
		BBox:         mot.NewRect(20, 0, 20, 40),
		SmoothedBBox: mot.NewRect(18, 1, 22, 38),
		Velocity:     mot.NewPoint(9.5, -0.5),
		Quality:      15,
	}, observations[2])

	smoothed, err := store.Trails(ctx, runID, true)
	require.NoError(t, err)
	want := []Trail{{
		TrackID: 0,
		Frames:  []int{0, 1, 2},
		Points:  []mot.Point{mot.NewPoint(9, 20), mot.NewPoint(19, 20), mot.NewPoint(29, 20)},
	}}
	if diff := cmp.Diff(want, smoothed); diff != "" {
		t.Errorf("smoothed Trails() mismatch (-want +got):\n%s", diff)
	}
}
