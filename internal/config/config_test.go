package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"conv_4"}, cfg.ContentLayers)
	assert.Equal(t, []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"}, cfg.StyleLayers)
	assert.Equal(t, 5.0, cfg.ContentWeight)
	assert.Equal(t, 1000.0, cfg.StyleWeight)
	assert.Equal(t, 1e-3, cfg.NormalizationLR)
	assert.Equal(t, 1e-3, cfg.TransformLR)
	assert.Equal(t, 256, cfg.StyleSize)
	assert.Equal(t, 0.01, cfg.InitScale)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
device: cpu
checkpoint_dir: /tmp/ckpt
log_level: debug
style_layers: [conv_2]
style_weight: 250
transform_lr: 0.01
lr_decay:
  step_size: 100
  gamma: 0.5
metrics_addr: ":9090"
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ckpt", cfg.CheckpointDir)
	assert.Equal(t, []string{"conv_2"}, cfg.StyleLayers)
	assert.Equal(t, []string{"conv_4"}, cfg.ContentLayers)
	assert.Equal(t, 250.0, cfg.StyleWeight)
	assert.Equal(t, 0.01, cfg.TransformLR)
	assert.Equal(t, 1e-3, cfg.NormalizationLR)
	assert.Equal(t, LRDecay{StepSize: 100, Gamma: 0.5}, cfg.LRDecay)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())

	engine, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, engine.Device)
	assert.Equal(t, "/tmp/ckpt", engine.CheckpointDir)
	assert.Equal(t, 0.01, engine.TransformLR)
	assert.Equal(t, 256, engine.Normalization.ImageSize)

	loss := cfg.Perceptual()
	assert.Equal(t, []string{"conv_2"}, loss.StyleLayers)
	assert.Equal(t, 5.0, loss.ContentWeight)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("style_wieght: 10\n"))
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Device = "tpu"
	cfg.LogLevel = "chatty"
	cfg.ContentLayers = nil
	cfg.StyleLayers = nil
	cfg.StyleWeight = -1
	cfg.TransformLR = 0
	cfg.LRDecay = LRDecay{StepSize: 10, Gamma: 2}
	cfg.StyleSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 7)
}

func TestOutputActivation(t *testing.T) {
	cfg, err := Parse([]byte("output_activation: scaled_tanh:255\n"))
	require.NoError(t, err)
	engine, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, activations.ScaledTanh{Scale: 255}, engine.OutputActivation)

	engine, err = Default().Engine()
	require.NoError(t, err)
	assert.Nil(t, engine.OutputActivation)

	_, err = Parse([]byte("output_activation: softmax\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_activation")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gostyle.yaml")
	require.NoError(t, os.WriteFile(path, []byte("content_weight: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.ContentWeight)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, os.WriteFile(path, []byte("init_scale: -1\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}
