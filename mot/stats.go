package mot

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
)

// RunStats summarizes a processing run
type RunStats struct {
	RunID             uuid.UUID
	Frames            int
	DetectionFrames   int
	Candidates        int
	CandidatesSkipped int
	TracksCreated     int
	TracksEvicted     int
	ActiveTracks      int
	Elapsed           time.Duration
	// Mean and standard deviation of the number of live tracks per frame
	MeanActiveTracks float64
	StdActiveTracks  float64
	// Mean visual tracking quality over every track update
	MeanQuality float64
}

// FPS returns average processing rate
func (s RunStats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

type statsCollector struct {
	frames            int
	detectionFrames   int
	candidates        int
	candidatesSkipped int
	tracksCreated     int
	tracksEvicted     int
	activePerFrame    []float64
	qualities         []float64
	elapsed           time.Duration
}

func (c *statsCollector) summary(runID uuid.UUID, activeTracks int) RunStats {
	s := RunStats{
		RunID:             runID,
		Frames:            c.frames,
		DetectionFrames:   c.detectionFrames,
		Candidates:        c.candidates,
		CandidatesSkipped: c.candidatesSkipped,
		TracksCreated:     c.tracksCreated,
		TracksEvicted:     c.tracksEvicted,
		ActiveTracks:      activeTracks,
		Elapsed:           c.elapsed,
	}
	if len(c.activePerFrame) > 1 {
		s.MeanActiveTracks, s.StdActiveTracks = stat.MeanStdDev(c.activePerFrame, nil)
	} else if len(c.activePerFrame) == 1 {
		s.MeanActiveTracks = c.activePerFrame[0]
	}
	if len(c.qualities) > 0 {
		s.MeanQuality = stat.Mean(c.qualities, nil)
	}
	return s
}
