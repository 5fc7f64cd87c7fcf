// Package style trains and runs arbitrary-style transfer: a normalization
// network turns a style image into instance-norm parameters for a transform
// network, and a frozen perceptual extractor scores the result.
package style

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/metrics"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/opt"
	"github.com/FlavioCFOliveira/GoStyle/internal/perceptual"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Checkpoint file names inside Config.CheckpointDir.
const (
	NormalizationCheckpoint = "normalization_net_ckpt"
	TransformCheckpoint     = "transform_net_ckpt"
)

var (
	// ErrDeviceMismatch is returned when an input tensor lives on a device
	// other than the engine's.
	ErrDeviceMismatch = errors.New("input tensor is on a different device than the engine")
	// ErrDeviceUnavailable is returned when the configured device cannot be used.
	ErrDeviceUnavailable = errors.New("device is not available")
	// ErrInvalidInput is returned for images of the wrong rank, channel count or size.
	ErrInvalidInput = errors.New("invalid input image")
)

// Config configures an Engine.
type Config struct {
	Device tensor.DeviceType
	// CheckpointDir holds the two network checkpoints. Empty disables Save and Load.
	CheckpointDir string
	Transform     []net.LayerSpec
	Normalization net.NormalizationConfig
	// OutputActivation, when set, is applied to the transform output before
	// it is clamped to [0, 255].
	OutputActivation activations.Activation

	NormalizationLR float64
	TransformLR     float64
	Seed            int64
}

// DefaultConfig returns the full-size networks with Adam at 1e-3 for both.
func DefaultConfig() Config {
	return Config{
		Device:          tensor.CPU,
		CheckpointDir:   ".",
		Transform:       net.DefaultTransformSpec(),
		Normalization:   net.DefaultNormalizationConfig(),
		NormalizationLR: 1e-3,
		TransformLR:     1e-3,
		Seed:            1,
	}
}

// Engine owns the two trainable networks, their optimizers and a shared,
// frozen perceptual extractor. It is not safe for concurrent use.
type Engine struct {
	cfg           Config
	transform     *net.TransformNetwork
	normalization *net.NormalizationNetwork
	extractor     *perceptual.Extractor
	normOpt       opt.Optimizer
	transformOpt  opt.Optimizer
	logger        logrus.FieldLogger
	metrics       *metrics.Metrics
	steps         int
}

// NewEngine builds both networks, checks that the normalization network emits
// exactly the parameters the transform network consumes, and restores any
// checkpoints found in cfg.CheckpointDir. Missing checkpoints are not an error.
func NewEngine(cfg Config, extractor *perceptual.Extractor, logger logrus.FieldLogger, m *metrics.Metrics) (*Engine, error) {
	if !tensor.DeviceFor(cfg.Device).IsAvailable() {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "%s", cfg.Device)
	}
	if extractor == nil {
		return nil, errors.New("perceptual extractor is required")
	}
	if logger == nil {
		logger = logrus.New()
	}

	rng := layer.NewRNG(cfg.Seed)
	transform, err := net.NewTransformNetwork(cfg.Transform, rng)
	if err != nil {
		return nil, errors.Wrap(err, "build transform network")
	}
	if cfg.OutputActivation != nil {
		transform.SetOutputActivation(cfg.OutputActivation)
	}
	normalization, err := net.NewNormalizationNetwork(cfg.Normalization, transform.Table(), rng)
	if err != nil {
		return nil, errors.Wrap(err, "build normalization network")
	}
	if got, want := normalization.OutputWidth(), transform.Table().Width(); got != want {
		return nil, errors.Wrapf(net.ErrParamWidth, "normalization network emits %d, transform network needs %d", got, want)
	}

	e := &Engine{
		cfg:           cfg,
		transform:     transform,
		normalization: normalization,
		extractor:     extractor,
		normOpt:       opt.NewAdam(cfg.NormalizationLR),
		transformOpt:  opt.NewAdam(cfg.TransformLR),
		logger:        logger.WithField("component", "style_engine"),
		metrics:       m,
	}

	if cfg.CheckpointDir != "" {
		for _, c := range e.checkpoints() {
			err := net.LoadFile(c.path, c.name, c.params)
			switch {
			case errors.Is(err, os.ErrNotExist):
				e.logger.WithField("path", c.path).Debug("no checkpoint found, starting from initial weights")
			case err != nil:
				return nil, errors.Wrapf(err, "restore %s", c.name)
			default:
				e.logger.WithField("path", c.path).Info("restored checkpoint")
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"device":               cfg.Device,
		"conditioned_layers":   len(transform.Table()),
		"param_width":          transform.Table().Width(),
		"output_activation":    activations.Name(transform.OutputActivation()),
		"comparison_points":    len(extractor.Points()),
		"normalization_params": normalization.NumParams(),
	}).Debug("style engine ready")
	return e, nil
}

type checkpointFile struct {
	name   string
	path   string
	params []*tensor.Tensor
}

func (e *Engine) checkpoints() []checkpointFile {
	return []checkpointFile{
		{"normalization", filepath.Join(e.cfg.CheckpointDir, NormalizationCheckpoint), e.normalization.Params()},
		{"transform", filepath.Join(e.cfg.CheckpointDir, TransformCheckpoint), e.transform.Params()},
	}
}

// Transform returns the transform network.
func (e *Engine) Transform() *net.TransformNetwork {
	return e.transform
}

// Normalization returns the normalization network.
func (e *Engine) Normalization() *net.NormalizationNetwork {
	return e.normalization
}

// Optimizers returns the normalization and transform optimizers, in that order.
func (e *Engine) Optimizers() []opt.Optimizer {
	return []opt.Optimizer{e.normOpt, e.transformOpt}
}

// Steps returns the number of completed training steps.
func (e *Engine) Steps() int {
	return e.steps
}

// validate checks device tags and shapes before any work is done.
func (e *Engine) validate(content, style *tensor.Tensor) error {
	if content == nil || style == nil {
		return errors.Wrap(ErrInvalidInput, "nil image")
	}
	if content.Device() != e.cfg.Device || style.Device() != e.cfg.Device {
		return errors.Wrapf(ErrDeviceMismatch, "content on %s, style on %s, engine on %s",
			content.Device(), style.Device(), e.cfg.Device)
	}
	if len(content.Shape) != 4 || content.Dim(1) != 3 {
		return errors.Wrapf(ErrInvalidInput, "content must be [B,3,H,W], got %v", content.Shape)
	}
	h, w := content.Dim(2), content.Dim(3)
	if e.transform.OutputSize(h) != h || e.transform.OutputSize(w) != w {
		return errors.Wrapf(ErrInvalidInput, "transform network cannot reproduce a %dx%d content image", h, w)
	}
	if len(style.Shape) != 4 || style.Dim(1) != 3 {
		return errors.Wrapf(ErrInvalidInput, "style must be [B,3,S,S], got %v", style.Shape)
	}
	if b := style.Dim(0); b != 1 && b != content.Dim(0) {
		return errors.Wrapf(ErrInvalidInput, "style batch %d does not match content batch %d", b, content.Dim(0))
	}
	s := e.normalization.ImageSize()
	if style.Dim(2) != s || style.Dim(3) != s {
		return errors.Wrapf(ErrInvalidInput, "style must be %dx%d, got %dx%d", s, s, style.Dim(2), style.Dim(3))
	}
	return nil
}

// Train runs one optimization step of both networks on a batch and returns
// the content loss, the style loss and a copy of the generated pastiche.
// A style batch of 1 is shared by every content image.
func (e *Engine) Train(content, style *tensor.Tensor) (float64, float64, *tensor.Tensor, error) {
	if err := e.validate(content, style); err != nil {
		return 0, 0, nil, err
	}
	start := time.Now()
	style = tensor.Expand(style, content.Dim(0))

	e.normalization.ZeroGrad()
	e.transform.ZeroGrad()

	affine, err := net.DeriveAffineParams(e.normalization.Forward(style), e.transform.Table(), true)
	if err != nil {
		return 0, 0, nil, errors.Wrap(err, "derive affine parameters")
	}
	pastiche := e.transform.Forward(content, affine)
	result := pastiche.Detach().Clone()

	losses := e.extractor.Compute(pastiche, content, style)
	losses.Total().Backward()

	e.normOpt.Step(e.normalization.Params())
	e.transformOpt.Step(e.transform.Params())
	e.steps++

	contentLoss, styleLoss := losses.Content.Item(), losses.Style.Item()
	e.metrics.ObserveTrain(contentLoss, styleLoss, time.Since(start))
	e.logger.WithFields(logrus.Fields{
		"step":         e.steps,
		"content_loss": contentLoss,
		"style_loss":   styleLoss,
	}).Debug("train step")
	return contentLoss, styleLoss, result, nil
}

// Eval stylizes content with style without tracking gradients. Neither the
// inputs nor any network weight is modified.
func (e *Engine) Eval(content, style *tensor.Tensor) (*tensor.Tensor, error) {
	if err := e.validate(content, style); err != nil {
		return nil, err
	}
	affine, err := e.affine(tensor.Expand(style, content.Dim(0)))
	if err != nil {
		return nil, err
	}
	out := e.transform.Forward(content.Detach(), affine)
	e.metrics.ObserveEval()
	return out.Detach(), nil
}

// NormParams returns the raw parameter vector [B,F] the normalization
// network emits for style, without gradient history.
func (e *Engine) NormParams(style *tensor.Tensor) (*tensor.Tensor, error) {
	if style == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil image")
	}
	if style.Device() != e.cfg.Device {
		return nil, errors.Wrapf(ErrDeviceMismatch, "style on %s, engine on %s", style.Device(), e.cfg.Device)
	}
	s := e.normalization.ImageSize()
	if len(style.Shape) != 4 || style.Dim(1) != 3 || style.Dim(2) != s || style.Dim(3) != s {
		return nil, errors.Wrapf(ErrInvalidInput, "style must be [B,3,%d,%d], got %v", s, s, style.Shape)
	}
	return e.normalization.Forward(style.Detach()).Detach(), nil
}

func (e *Engine) affine(style *tensor.Tensor) ([]net.AffineParams, error) {
	vec := e.normalization.Forward(style.Detach())
	affine, err := net.DeriveAffineParams(vec, e.transform.Table(), false)
	if err != nil {
		return nil, errors.Wrap(err, "derive affine parameters")
	}
	return affine, nil
}

// Save writes both networks to Config.CheckpointDir.
func (e *Engine) Save() error {
	if e.cfg.CheckpointDir == "" {
		return errors.New("no checkpoint directory configured")
	}
	if err := os.MkdirAll(e.cfg.CheckpointDir, 0o755); err != nil {
		return errors.Wrap(err, "create checkpoint directory")
	}
	for _, c := range e.checkpoints() {
		if err := net.SaveFile(c.path, c.name, c.params); err != nil {
			return errors.Wrapf(err, "save %s", c.name)
		}
	}
	e.logger.WithField("dir", e.cfg.CheckpointDir).Info("saved checkpoints")
	return nil
}

// Load restores both networks from Config.CheckpointDir. Unlike construction,
// a missing file is an error.
func (e *Engine) Load() error {
	if e.cfg.CheckpointDir == "" {
		return errors.New("no checkpoint directory configured")
	}
	for _, c := range e.checkpoints() {
		if err := net.LoadFile(c.path, c.name, c.params); err != nil {
			return errors.Wrapf(err, "load %s", c.name)
		}
	}
	return nil
}
