// Package gostyle is the public entry point for arbitrary-style transfer.
package gostyle

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/config"
	"github.com/FlavioCFOliveira/GoStyle/internal/imageio"
	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/metrics"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/opt"
	"github.com/FlavioCFOliveira/GoStyle/internal/perceptual"
	"github.com/FlavioCFOliveira/GoStyle/internal/style"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Re-export common types and functions for easier access
type (
	Tensor           = tensor.Tensor
	Engine           = style.Engine
	EngineConfig     = style.Config
	Config           = config.Config
	LayerSpec        = net.LayerSpec
	Extractor        = perceptual.Extractor
	FeatureExtractor = perceptual.FeatureExtractor
	LossConfig       = perceptual.Config
	Metrics          = metrics.Metrics
	Optimizer        = opt.Optimizer
)

// Errors
var (
	ErrDeviceMismatch     = style.ErrDeviceMismatch
	ErrDeviceUnavailable  = style.ErrDeviceUnavailable
	ErrInvalidInput       = style.ErrInvalidInput
	ErrParamWidth         = net.ErrParamWidth
	ErrCheckpointMismatch = net.ErrCheckpointMismatch
)

// Configuration
func DefaultConfig() Config {
	return config.Default()
}

func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Architectures
func DefaultTransformSpec() []LayerSpec {
	return net.DefaultTransformSpec()
}

func VGG19Features() []LayerSpec {
	return perceptual.VGG19Features()
}

// NewExtractor builds a frozen feature extractor from specs, loads weights
// when path is not empty, and selects comparison points per cfg.
func NewExtractor(specs []LayerSpec, path string, cfg LossConfig, seed int64) (*Extractor, error) {
	features, err := perceptual.NewFeatureExtractor(specs, layer.NewRNG(seed))
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := features.Load(path); err != nil {
			return nil, errors.Wrap(err, "load feature extractor weights")
		}
	}
	return perceptual.NewExtractor(features, cfg)
}

// NewEngine builds an engine around an already loaded extractor.
func NewEngine(cfg EngineConfig, extractor *Extractor, logger logrus.FieldLogger, m *Metrics) (*Engine, error) {
	return style.NewEngine(cfg, extractor, logger, m)
}

// FromConfig builds a VGG-19 extractor and an engine from a file configuration.
func FromConfig(cfg Config, logger logrus.FieldLogger, m *Metrics) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.ExtractorWeights == "" {
		logger.Warn("no extractor_weights configured, perceptual losses use a randomly initialized extractor")
	}
	extractor, err := NewExtractor(VGG19Features(), cfg.ExtractorWeights, cfg.Perceptual(), cfg.Seed)
	if err != nil {
		return nil, err
	}
	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	return style.NewEngine(engineCfg, extractor, logger, m)
}

// Output activations for EngineConfig.OutputActivation
var (
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
)

func ScaledTanh(scale float64) activations.Activation {
	return activations.ScaledTanh{Scale: scale}
}

// Images
func LoadImage(path string, size int) (*Tensor, error) {
	return imageio.Load(path, size)
}

func SaveImage(path string, t *Tensor) error {
	return imageio.Save(path, t)
}

// Training
type (
	Callback    = style.Callback
	StepResult  = style.StepResult
	BatchSource = style.BatchSource
	Trainer     = style.Trainer
)

func NewTrainer(e *Engine, callbacks ...Callback) *Trainer {
	return style.NewTrainer(e, callbacks...)
}

func Logger(interval int, logger logrus.FieldLogger) style.Logger {
	return style.Logger{Interval: interval, Logger: logger}
}

func ModelCheckpoint() *style.ModelCheckpoint {
	return style.NewModelCheckpoint()
}

func EarlyStopping(patience int, minDelta float64) *style.EarlyStopping {
	return style.NewEarlyStopping(patience, minDelta)
}

func CSVLogger(filename string, append bool) *style.CSVLogger {
	return style.NewCSVLogger(filename, append)
}

func StepLR(stepSize int, gamma float64, optimizers ...Optimizer) Callback {
	return style.NewSchedulerCallback(opt.NewStepLR(stepSize, gamma, optimizers...))
}

func ReduceLROnPlateau(factor float64, patience int, threshold, minLR float64, optimizers ...Optimizer) Callback {
	return style.NewSchedulerCallback(opt.NewReduceLROnPlateau(factor, patience, threshold, minLR, optimizers...))
}

// Devices
func GetDefaultDevice() tensor.Device {
	return tensor.GetDefaultDevice()
}

func ParseDevice(s string) (tensor.DeviceType, error) {
	return tensor.ParseDevice(s)
}
