// Package config loads GoStyle settings from YAML files.
package config

import (
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/perceptual"
	"github.com/FlavioCFOliveira/GoStyle/internal/style"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// LRDecay configures step decay of both learning rates. StepSize 0 disables it.
type LRDecay struct {
	StepSize int     `yaml:"step_size"`
	Gamma    float64 `yaml:"gamma"`
}

// Config is the on-disk configuration of a training or stylization run.
type Config struct {
	Device        string `yaml:"device"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	LogLevel      string `yaml:"log_level"`
	Seed          int64  `yaml:"seed"`

	ContentLayers []string `yaml:"content_layers"`
	StyleLayers   []string `yaml:"style_layers"`
	ContentWeight float64  `yaml:"content_weight"`
	StyleWeight   float64  `yaml:"style_weight"`

	NormalizationLR float64 `yaml:"normalization_lr"`
	TransformLR     float64 `yaml:"transform_lr"`
	LRDecay         LRDecay `yaml:"lr_decay"`

	StyleSize int     `yaml:"style_size"`
	InitScale float64 `yaml:"init_scale"`
	// OutputActivation squashes the transform network's output before the
	// clamp, e.g. "scaled_tanh:255". Empty leaves the output linear.
	OutputActivation string `yaml:"output_activation"`

	// ExtractorWeights is a checkpoint of the VGG-19 feature trunk. Without it
	// the extractor keeps its random initialization.
	ExtractorWeights string `yaml:"extractor_weights"`
	MetricsAddr      string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file overrides a key.
func Default() Config {
	loss := perceptual.DefaultConfig()
	norm := net.DefaultNormalizationConfig()
	return Config{
		Device:          "cpu",
		CheckpointDir:   ".",
		LogLevel:        "info",
		Seed:            1,
		ContentLayers:   loss.ContentLayers,
		StyleLayers:     loss.StyleLayers,
		ContentWeight:   loss.ContentWeight,
		StyleWeight:     loss.StyleWeight,
		NormalizationLR: 1e-3,
		TransformLR:     1e-3,
		StyleSize:       norm.ImageSize,
		InitScale:       norm.InitScale,
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "error unmarshalling the yaml config file")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if _, err := tensor.ParseDevice(c.Device); err != nil {
		result = multierror.Append(result, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "log_level"))
	}
	if len(c.ContentLayers) == 0 && len(c.StyleLayers) == 0 {
		result = multierror.Append(result, errors.New("at least one of content_layers and style_layers is required"))
	}
	if c.ContentWeight < 0 {
		result = multierror.Append(result, errors.Errorf("content_weight must not be negative, got %g", c.ContentWeight))
	}
	if c.StyleWeight < 0 {
		result = multierror.Append(result, errors.Errorf("style_weight must not be negative, got %g", c.StyleWeight))
	}
	if c.NormalizationLR <= 0 {
		result = multierror.Append(result, errors.Errorf("normalization_lr must be positive, got %g", c.NormalizationLR))
	}
	if c.TransformLR <= 0 {
		result = multierror.Append(result, errors.Errorf("transform_lr must be positive, got %g", c.TransformLR))
	}
	if c.LRDecay.StepSize < 0 {
		result = multierror.Append(result, errors.Errorf("lr_decay.step_size must not be negative, got %d", c.LRDecay.StepSize))
	}
	if c.LRDecay.StepSize > 0 && (c.LRDecay.Gamma <= 0 || c.LRDecay.Gamma > 1) {
		result = multierror.Append(result, errors.Errorf("lr_decay.gamma must be in (0, 1], got %g", c.LRDecay.Gamma))
	}
	if c.StyleSize <= 0 {
		result = multierror.Append(result, errors.Errorf("style_size must be positive, got %d", c.StyleSize))
	}
	if c.InitScale < 0 {
		result = multierror.Append(result, errors.Errorf("init_scale must not be negative, got %g", c.InitScale))
	}
	if _, err := activations.ByName(c.OutputActivation); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "output_activation"))
	}
	return result.ErrorOrNil()
}

// Level returns the parsed log level. Call Validate first.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Engine returns the engine settings with the default network declarations.
func (c Config) Engine() (style.Config, error) {
	device, err := tensor.ParseDevice(c.Device)
	if err != nil {
		return style.Config{}, err
	}
	cfg := style.DefaultConfig()
	cfg.Device = device
	cfg.CheckpointDir = c.CheckpointDir
	cfg.NormalizationLR = c.NormalizationLR
	cfg.TransformLR = c.TransformLR
	cfg.Seed = c.Seed
	cfg.Normalization.ImageSize = c.StyleSize
	cfg.Normalization.InitScale = c.InitScale
	if c.OutputActivation != "" {
		act, err := activations.ByName(c.OutputActivation)
		if err != nil {
			return style.Config{}, errors.Wrap(err, "output_activation")
		}
		cfg.OutputActivation = act
	}
	return cfg, nil
}

// Perceptual returns the loss settings.
func (c Config) Perceptual() perceptual.Config {
	return perceptual.Config{
		ContentLayers: c.ContentLayers,
		StyleLayers:   c.StyleLayers,
		ContentWeight: c.ContentWeight,
		StyleWeight:   c.StyleWeight,
	}
}
