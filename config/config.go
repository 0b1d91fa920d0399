package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/LdDl/mot-pose/mot"
)

type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Detector DetectorConfig `yaml:"detector"`
	Video    VideoConfig    `yaml:"video"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TrackingConfig struct {
	DetectEvery      int     `yaml:"detect_every"`
	QualityThreshold float64 `yaml:"quality_threshold"`
	// Preset overrides MinPoints when set (face, upper_body, full_body)
	Preset    string  `yaml:"preset"`
	MinPoints int     `yaml:"min_points"`
	Padding   float64 `yaml:"padding"`
	// row_col or col_row
	Axes string `yaml:"axes"`
	// sequential, greedy or hungarian
	Association            string  `yaml:"association"`
	MaxUnclaimedDetections int     `yaml:"max_unclaimed_detections"`
	MaxTrailLen            int     `yaml:"max_trail_len"`
	SmoothingDt            float64 `yaml:"smoothing_dt"`
}

type DetectorConfig struct {
	ModelPath     string  `yaml:"model_path"`
	ONNXLibPath   string  `yaml:"onnx_lib_path"`
	InputSize     int     `yaml:"input_size"`
	NumKeypoints  int     `yaml:"num_keypoints"`
	MinPoseScore  float64 `yaml:"min_pose_score"`
	MinPartScore  float64 `yaml:"min_part_score"`
	MaxDetections int     `yaml:"max_detections"`
	NMSThreshold  float64 `yaml:"nms_threshold"`
}

type VideoConfig struct {
	ScaleFactor float64 `yaml:"scale_factor"`
	// Output FPS. Zero means the input's own rate
	FPS        float64 `yaml:"fps"`
	Codec      string  `yaml:"codec"`
	DrawTrails bool    `yaml:"draw_trails"`
	// Also draw Kalman-smoothed box of every track
	DrawSmoothed bool `yaml:"draw_smoothed"`
	// Correlation tracker search window relative to box size
	SearchScale float64 `yaml:"search_scale"`
	// Correlation tracker refreshes its template when quality reaches this value
	RefreshQuality float64 `yaml:"refresh_quality"`
}

type RecorderConfig struct {
	// Path to SQLite database. Empty disables recording
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	// Listen address for /metrics. Empty disables the endpoint
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// Load reads config from YAML file and applies environment variable overrides.
// Empty path gives defaults with environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	core := mot.DefaultConfig()
	if cfg.Tracking.DetectEvery == 0 {
		cfg.Tracking.DetectEvery = core.DetectEvery
	}
	if cfg.Tracking.QualityThreshold == 0 {
		cfg.Tracking.QualityThreshold = core.QualityThreshold
	}
	if cfg.Tracking.MinPoints == 0 {
		cfg.Tracking.MinPoints = core.MinPoints
	}
	if cfg.Tracking.Padding == 0 {
		cfg.Tracking.Padding = core.Padding
	}
	if cfg.Tracking.Axes == "" {
		cfg.Tracking.Axes = core.Axes.String()
	}
	if cfg.Tracking.Association == "" {
		cfg.Tracking.Association = core.Association.String()
	}
	if cfg.Tracking.MaxTrailLen == 0 {
		cfg.Tracking.MaxTrailLen = core.MaxTrailLen
	}
	if cfg.Tracking.SmoothingDt == 0 {
		cfg.Tracking.SmoothingDt = core.SmoothingDt
	}
	if cfg.Detector.InputSize == 0 {
		cfg.Detector.InputSize = 640
	}
	if cfg.Detector.NumKeypoints == 0 {
		cfg.Detector.NumKeypoints = 17
	}
	if cfg.Detector.MinPoseScore == 0 {
		cfg.Detector.MinPoseScore = 0.15
	}
	if cfg.Detector.MinPartScore == 0 {
		cfg.Detector.MinPartScore = 0.1
	}
	if cfg.Detector.MaxDetections == 0 {
		cfg.Detector.MaxDetections = 10
	}
	if cfg.Detector.NMSThreshold == 0 {
		cfg.Detector.NMSThreshold = 0.45
	}
	if cfg.Video.ScaleFactor == 0 {
		cfg.Video.ScaleFactor = 0.7125
	}
	if cfg.Video.Codec == "" {
		cfg.Video.Codec = "XVID"
	}
	if cfg.Video.SearchScale == 0 {
		cfg.Video.SearchScale = 2.0
	}
	if cfg.Video.RefreshQuality == 0 {
		cfg.Video.RefreshQuality = 12
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("POSETRACK_DETECT_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("POSETRACK_DETECT_EVERY: %w", err)
		}
		cfg.Tracking.DetectEvery = n
	}
	if v := os.Getenv("POSETRACK_QUALITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("POSETRACK_QUALITY_THRESHOLD: %w", err)
		}
		cfg.Tracking.QualityThreshold = f
	}
	if v := os.Getenv("POSETRACK_PRESET"); v != "" {
		cfg.Tracking.Preset = v
	}
	if v := os.Getenv("POSETRACK_ASSOCIATION"); v != "" {
		cfg.Tracking.Association = v
	}
	if v := os.Getenv("POSETRACK_MODEL_PATH"); v != "" {
		cfg.Detector.ModelPath = v
	}
	if v := os.Getenv("POSETRACK_ONNX_LIB"); v != "" {
		cfg.Detector.ONNXLibPath = v
	}
	if v := os.Getenv("POSETRACK_SCALE_FACTOR"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("POSETRACK_SCALE_FACTOR: %w", err)
		}
		cfg.Video.ScaleFactor = f
	}
	if v := os.Getenv("POSETRACK_RECORD_PATH"); v != "" {
		cfg.Recorder.Path = v
	}
	if v := os.Getenv("POSETRACK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("POSETRACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("POSETRACK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

// ToCore builds validated tracker configuration
func (t TrackingConfig) ToCore() (mot.Config, error) {
	axes, err := mot.ParseAxisOrder(t.Axes)
	if err != nil {
		return mot.Config{}, fmt.Errorf("tracking.axes: %w", err)
	}
	association, err := mot.ParseAssociationAlgorithm(t.Association)
	if err != nil {
		return mot.Config{}, fmt.Errorf("tracking.association: %w", err)
	}
	minPoints := t.MinPoints
	if t.Preset != "" {
		n, ok := mot.PresetMinPoints(t.Preset)
		if !ok {
			return mot.Config{}, fmt.Errorf("tracking.preset: unknown preset %q", t.Preset)
		}
		minPoints = n
	}
	core := mot.Config{
		DetectEvery:            t.DetectEvery,
		QualityThreshold:       t.QualityThreshold,
		MinPoints:              minPoints,
		Padding:                t.Padding,
		Axes:                   axes,
		Association:            association,
		MaxUnclaimedDetections: t.MaxUnclaimedDetections,
		MaxTrailLen:            t.MaxTrailLen,
		SmoothingDt:            t.SmoothingDt,
	}
	if err := core.Validate(); err != nil {
		return mot.Config{}, fmt.Errorf("tracking: %w", err)
	}
	return core, nil
}
