package pose

import (
	"fmt"
	"image"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/LdDl/mot-pose/mot"
)

// Config describes pose model and decoding parameters
type Config struct {
	ModelPath string
	// Square model input side
	InputSize     int
	NumKeypoints  int
	MinPoseScore  float64
	MinPartScore  float64
	MaxDetections int
	NMSThreshold  float64
	Axes          mot.AxisOrder
	InputName     string
	OutputName    string
}

// Detector runs a YOLOv8-pose style ONNX model. It implements mot.Detector for image.Image frames.
type Detector struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	numAnchors   int
	cfg          Config
}

var _ mot.Detector[image.Image] = (*Detector)(nil)

// InitRuntime loads the ONNX Runtime shared library. Empty path picks the platform default.
func InitRuntime(libPath string) error {
	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = defaultLibPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

// DestroyRuntime releases ONNX Runtime environment
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

func defaultLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

// numAnchors returns number of YOLOv8 output anchors for strides 8, 16 and 32
func numAnchors(inputSize int) int {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		side := inputSize / stride
		total += side * side
	}
	return total
}

// NewDetector loads the pose model. opts may be nil (ORT defaults).
func NewDetector(cfg Config, opts *ort.SessionOptions) (*Detector, error) {
	if cfg.InputSize <= 0 || cfg.InputSize%32 != 0 {
		return nil, fmt.Errorf("input size must be a positive multiple of 32, got %d", cfg.InputSize)
	}
	if cfg.NumKeypoints <= 0 {
		return nil, fmt.Errorf("number of keypoints must be positive, got %d", cfg.NumKeypoints)
	}
	if cfg.InputName == "" {
		cfg.InputName = "images"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output0"
	}

	inputShape := ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	anchors := numAnchors(cfg.InputSize)
	outputShape := ort.NewShape(1, int64(5+3*cfg.NumKeypoints), int64(anchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create pose session: %w", err)
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		numAnchors:   anchors,
		cfg:          cfg,
	}, nil
}

// Detect runs pose estimation on the whole image
func (d *Detector) Detect(img image.Image) ([]mot.Candidate, error) {
	letterboxed, transform := Letterbox(img, d.cfg.InputSize)
	toCHW(letterboxed, d.inputTensor.GetData())

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run pose model: %w", err)
	}

	return Decode(d.outputTensor.GetData(), d.numAnchors, transform, DecodeParams{
		NumKeypoints:  d.cfg.NumKeypoints,
		MinPoseScore:  d.cfg.MinPoseScore,
		MinPartScore:  d.cfg.MinPartScore,
		MaxDetections: d.cfg.MaxDetections,
		NMSThreshold:  d.cfg.NMSThreshold,
		Axes:          d.cfg.Axes,
	}), nil
}

// Close releases session and tensors
func (d *Detector) Close() error {
	var firstErr error
	if d.session != nil {
		firstErr = d.session.Destroy()
	}
	if d.inputTensor != nil {
		if err := d.inputTensor.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.outputTensor != nil {
		if err := d.outputTensor.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
