package recorder

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/LdDl/mot-pose/mot"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNoRuns is returned when the database holds no recorded run
var ErrNoRuns = errors.New("no recorded runs")

// Store persists tracking runs into a SQLite database
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) database at path and brings schema to the latest version
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: that would close the underlying connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun registers a new run
func (s *Store) BeginRun(ctx context.Context, runID uuid.UUID, input string, cfg mot.Config, startedAt time.Time) error {
	cfgText, err := yaml.Marshal(runConfig(cfg))
	if err != nil {
		return fmt.Errorf("encode run config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, input, config, started_at) VALUES (?, ?, ?, ?)`,
		runID.String(), input, string(cfgText), startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores final run statistics
func (s *Store) FinishRun(ctx context.Context, stats mot.RunStats, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, frames = ?, detection_frames = ?, tracks_created = ?, tracks_evicted = ?, elapsed_ms = ?
		 WHERE run_id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), stats.Frames, stats.DetectionFrames,
		stats.TracksCreated, stats.TracksEvicted, stats.Elapsed.Milliseconds(), stats.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", stats.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: run not found", stats.RunID)
	}
	return nil
}

// runConfig is the stored representation of tracker configuration
func runConfig(cfg mot.Config) map[string]any {
	return map[string]any{
		"detect_every":             cfg.DetectEvery,
		"quality_threshold":        cfg.QualityThreshold,
		"min_points":               cfg.MinPoints,
		"padding":                  cfg.Padding,
		"axes":                     cfg.Axes.String(),
		"association":              cfg.Association.String(),
		"max_unclaimed_detections": cfg.MaxUnclaimedDetections,
	}
}

// Run is a recorded run summary
type Run struct {
	ID              uuid.UUID
	Input           string
	Config          string
	StartedAt       time.Time
	Finished        bool
	Frames          int
	DetectionFrames int
	TracksCreated   int
	TracksEvicted   int
}

// LatestRun returns the most recently started run
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, input, config, started_at, finished_at IS NOT NULL, frames, detection_frames, tracks_created, tracks_evicted
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	return scanRun(row)
}

// GetRun returns run by ID
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, input, config, started_at, finished_at IS NOT NULL, frames, detection_frames, tracks_created, tracks_evicted
		 FROM runs WHERE run_id = ?`, runID.String())
	return scanRun(row)
}

func scanRun(row *sql.Row) (Run, error) {
	var (
		run       Run
		id        string
		startedAt string
	)
	err := row.Scan(&id, &run.Input, &run.Config, &startedAt, &run.Finished,
		&run.Frames, &run.DetectionFrames, &run.TracksCreated, &run.TracksEvicted)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if run.ID, err = uuid.Parse(id); err != nil {
		return Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse start time %q: %w", startedAt, err)
	}
	return run, nil
}

// Trail is the recorded center path of one track
type Trail struct {
	TrackID int
	Frames  []int
	Points  []mot.Point
}

// Trails returns center paths of every track of a run, ascending track ID.
// With smoothed set the centers of Kalman-smoothed boxes are used.
func (s *Store) Trails(ctx context.Context, runID uuid.UUID, smoothed bool) ([]Trail, error) {
	query := `SELECT track_id, frame, x + width / 2.0, y + height / 2.0
		 FROM observations WHERE run_id = ? ORDER BY track_id, frame`
	if smoothed {
		query = `SELECT track_id, frame, smooth_x + smooth_width / 2.0, smooth_y + smooth_height / 2.0
		 FROM observations WHERE run_id = ? ORDER BY track_id, frame`
	}
	rows, err := s.db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query trails of run %s: %w", runID, err)
	}
	defer rows.Close()

	trails := make([]Trail, 0)
	for rows.Next() {
		var (
			trackID, frame int
			cx, cy         float64
		)
		if err := rows.Scan(&trackID, &frame, &cx, &cy); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		if len(trails) == 0 || trails[len(trails)-1].TrackID != trackID {
			trails = append(trails, Trail{TrackID: trackID})
		}
		last := &trails[len(trails)-1]
		last.Frames = append(last.Frames, frame)
		last.Points = append(last.Points, mot.NewPoint(cx, cy))
	}
	return trails, rows.Err()
}

// Observation is one recorded track state
type Observation struct {
	Frame        int
	TrackID      int
	BBox         mot.Rectangle
	SmoothedBBox mot.Rectangle
	Velocity     mot.Point
	Quality      float64
}

// Observations returns every recorded state of a track, ascending frame
func (s *Store) Observations(ctx context.Context, runID uuid.UUID, trackID int) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, track_id, x, y, width, height, smooth_x, smooth_y, smooth_width, smooth_height, vx, vy, quality
		 FROM observations WHERE run_id = ? AND track_id = ? ORDER BY frame`, runID.String(), trackID)
	if err != nil {
		return nil, fmt.Errorf("query observations of track %d: %w", trackID, err)
	}
	defer rows.Close()

	observations := make([]Observation, 0)
	for rows.Next() {
		var obs Observation
		err := rows.Scan(&obs.Frame, &obs.TrackID,
			&obs.BBox.X, &obs.BBox.Y, &obs.BBox.Width, &obs.BBox.Height,
			&obs.SmoothedBBox.X, &obs.SmoothedBBox.Y, &obs.SmoothedBBox.Width, &obs.SmoothedBBox.Height,
			&obs.Velocity.X, &obs.Velocity.Y, &obs.Quality)
		if err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// Event is a track lifecycle record
type Event struct {
	Frame   int
	TrackID int
	// created or evicted
	Kind    string
	Reason  string
	Quality float64
}

// Events returns lifecycle events of a run in recording order
func (s *Store) Events(ctx context.Context, runID uuid.UUID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT frame, track_id, kind, reason, quality FROM events WHERE run_id = ? ORDER BY id`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query events of run %s: %w", runID, err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.Frame, &event.TrackID, &event.Kind, &event.Reason, &event.Quality); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Recorder returns a sink writing observations of the run.
// Register it as observer of the same TrackManager to get lifecycle events too.
func Recorder[F any](ctx context.Context, s *Store, runID uuid.UUID, logger *slog.Logger) *RunRecorder[F] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunRecorder[F]{
		ctx:        ctx,
		store:      s,
		runID:      runID,
		logger:     logger,
		flushEvery: 100,
	}
}
