package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/LdDl/mot-pose/config"
	"github.com/LdDl/mot-pose/cvio"
	"github.com/LdDl/mot-pose/mot"
	"github.com/LdDl/mot-pose/observability"
	"github.com/LdDl/mot-pose/pose"
	"github.com/LdDl/mot-pose/recorder"
)

type runOptions struct {
	configPath  string
	input       string
	output      string
	record      string
	show        bool
	metricsAddr string
	detectEvery int
	preset      string
}

func runCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Track subjects of a video",
		Long: `Track every subject of a video.

Examples:
  posetrack run --input walk.mp4 --output tracked.avi
  posetrack run --config posetrack.yaml --input walk.mp4 --record run.db --show`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyFlags(cmd, cfg, opts)
			return runTracking(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config")
	flags.StringVar(&opts.input, "input", "", "input video file or camera index")
	flags.StringVar(&opts.output, "output", "", "output video file (XVID)")
	flags.StringVar(&opts.record, "record", "", "SQLite database to record tracks into")
	flags.BoolVar(&opts.show, "show", false, "show preview window, 'q' stops")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.IntVar(&opts.detectEvery, "detect-every", 0, "run detector every N frames")
	flags.StringVar(&opts.preset, "preset", "", "keypoint preset: face, upper_body or full_body")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// applyFlags overrides config values with flags set explicitly
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts runOptions) {
	flags := cmd.Flags()
	if flags.Changed("record") {
		cfg.Recorder.Path = opts.record
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("detect-every") {
		cfg.Tracking.DetectEvery = opts.detectEvery
	}
	if flags.Changed("preset") {
		cfg.Tracking.Preset = opts.preset
	}
}

func runTracking(ctx context.Context, out io.Writer, cfg *config.Config, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	core, err := cfg.Tracking.ToCore()
	if err != nil {
		return err
	}

	if err := pose.InitRuntime(cfg.Detector.ONNXLibPath); err != nil {
		return err
	}
	defer pose.DestroyRuntime()

	detector, err := pose.NewDetector(pose.Config{
		ModelPath:     cfg.Detector.ModelPath,
		InputSize:     cfg.Detector.InputSize,
		NumKeypoints:  cfg.Detector.NumKeypoints,
		MinPoseScore:  cfg.Detector.MinPoseScore,
		MinPartScore:  cfg.Detector.MinPartScore,
		MaxDetections: cfg.Detector.MaxDetections,
		NMSThreshold:  cfg.Detector.NMSThreshold,
		Axes:          core.Axes,
	}, nil)
	if err != nil {
		return err
	}
	defer detector.Close()

	capture, err := cvio.OpenCapture(opts.input, cfg.Video.ScaleFactor)
	if err != nil {
		return err
	}
	defer capture.Close()

	runID := uuid.New()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	observers := mot.MultiObserver{metrics}
	sinks := mot.MultiSink[gocv.Mat]{}

	if cfg.Metrics.Addr != "" {
		server := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	if opts.output != "" || opts.show {
		fps := cfg.Video.FPS
		if fps <= 0 {
			fps = capture.FPS()
		}
		renderer, err := cvio.NewRenderer(cvio.RendererOptions{
			OutputPath:   opts.output,
			Codec:        cfg.Video.Codec,
			FPS:          fps,
			FrameSize:    capture.FrameSize(),
			Show:         opts.show,
			DrawTrails:   cfg.Video.DrawTrails,
			DrawSmoothed: cfg.Video.DrawSmoothed,
		})
		if err != nil {
			return err
		}
		defer renderer.Close()
		sinks = append(sinks, renderer)
	}

	var (
		store *recorder.Store
		rec   *recorder.RunRecorder[gocv.Mat]
	)
	if cfg.Recorder.Path != "" {
		store, err = recorder.Open(cfg.Recorder.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.BeginRun(ctx, runID, opts.input, core, time.Now()); err != nil {
			return err
		}
		rec = recorder.Recorder[gocv.Mat](ctx, store, runID, logger)
		observers = append(observers, rec)
		sinks = append(sinks, rec)
	}

	manager, err := mot.NewTrackManager[gocv.Mat](core,
		cvio.MatDetector{Detector: detector},
		cvio.CorrelationTrackerFactory(cfg.Video.SearchScale, cfg.Video.RefreshQuality),
		mot.WithLogger(logger),
		mot.WithObserver(observers),
		mot.WithRunID(runID),
	)
	if err != nil {
		return err
	}
	defer manager.Close()

	logger.Info("starting tracking",
		"input", opts.input,
		"detect_every", core.DetectEvery,
		"min_points", core.MinPoints,
		"association", core.Association.String(),
	)
	stats, runErr := manager.Run(ctx, capture, sinks)
	if errors.Is(runErr, context.Canceled) {
		logger.Warn("tracking interrupted", "frames", stats.Frames)
		runErr = nil
	}

	if rec != nil {
		if err := rec.Flush(); err != nil && runErr == nil {
			runErr = err
		}
		// Context may be cancelled by now, the summary is still worth keeping
		if err := store.FinishRun(context.Background(), stats, time.Now()); err != nil && runErr == nil {
			runErr = err
		}
	}
	printSummary(out, stats)
	return runErr
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server", "error", err)
		}
	}()
	return server
}

func printSummary(w io.Writer, stats mot.RunStats) {
	label := color.New(color.Bold)
	good := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	fmt.Fprintf(w, "%s %s\n", label.Sprint("Run:"), stats.RunID)
	fmt.Fprintf(w, "%s %d (%d with detection)\n", label.Sprint("Frames:"), stats.Frames, stats.DetectionFrames)
	fmt.Fprintf(w, "%s %s created, %s evicted, %d active at the end\n", label.Sprint("Tracks:"),
		good.Sprint(stats.TracksCreated), warn.Sprint(stats.TracksEvicted), stats.ActiveTracks)
	fmt.Fprintf(w, "%s %.2f ± %.2f\n", label.Sprint("Active per frame:"), stats.MeanActiveTracks, stats.StdActiveTracks)
	if stats.CandidatesSkipped > 0 {
		fmt.Fprintf(w, "%s %s of %d\n", label.Sprint("Candidates skipped:"), warn.Sprint(stats.CandidatesSkipped), stats.Candidates)
	}
	fmt.Fprintf(w, "%s %s (%.2f FPS)\n", label.Sprint("Time:"), stats.Elapsed.Round(time.Millisecond), stats.FPS())
}
