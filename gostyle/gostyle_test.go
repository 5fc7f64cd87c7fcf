package gostyle

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func tinyExtractorSpecs() []LayerSpec {
	return []LayerSpec{net.Conv(3, 4, 3, 1, 1), net.ReLU(), net.Conv(4, 4, 3, 1, 1), net.ReLU()}
}

func tinyEngineConfig(dir string) EngineConfig {
	return EngineConfig{
		Device:        tensor.CPU,
		CheckpointDir: dir,
		Transform: []LayerSpec{
			net.ReflectionPad(1),
			net.Conv(3, 4, 3, 1, 1),
			net.Conv(4, 4, 3, 1, 0),
			net.Conv(4, 3, 3, 1, 1),
		},
		Normalization: net.NormalizationConfig{
			ImageSize: 8,
			Channels:  [3]int{2, 2, 2},
			Kernel:    1,
			Hidden:    4,
			InitScale: 0.01,
		},
		NormalizationLR: 1e-3,
		TransformLR:     1e-3,
	}
}

func TestDefaults(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Len(t, VGG19Features(), 37)
	assert.NotEmpty(t, DefaultTransformSpec())
	assert.Equal(t, tensor.CPU, GetDefaultDevice().Type())
	d, err := ParseDevice("gpu")
	require.NoError(t, err)
	assert.Equal(t, tensor.GPU, d)
}

func TestNewExtractorWeights(t *testing.T) {
	cfg := LossConfig{ContentLayers: []string{"conv_2"}, StyleLayers: []string{"conv_1"}, ContentWeight: 1, StyleWeight: 1}
	_, err := NewExtractor(tinyExtractorSpecs(), filepath.Join(t.TempDir(), "missing"), cfg, 1)
	assert.Error(t, err)

	e, err := NewExtractor(tinyExtractorSpecs(), "", cfg, 1)
	require.NoError(t, err)
	assert.Len(t, e.Points(), 2)
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	extractor, err := NewExtractor(tinyExtractorSpecs(), "", LossConfig{
		ContentLayers: []string{"conv_2"},
		StyleLayers:   []string{"conv_1", "conv_2"},
		ContentWeight: 1,
		StyleWeight:   1,
	}, 1)
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	engine, err := NewEngine(tinyEngineConfig(dir), extractor, logger, nil)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	img := tensor.New(1, 3, 8, 8)
	for i := range img.Data {
		img.Data[i] = rng.Float64() * 255
	}
	imgPath := filepath.Join(dir, "in.png")
	require.NoError(t, SaveImage(imgPath, img))
	loaded, err := LoadImage(imgPath, 8)
	require.NoError(t, err)

	batches := func(step int) (*Tensor, *Tensor, error) { return loaded, loaded, nil }
	trainer := NewTrainer(engine,
		Logger(1, logger),
		ModelCheckpoint(),
		EarlyStopping(100, 0),
		StepLR(1, 0.5, engine.Optimizers()...),
	)
	require.NoError(t, trainer.Run(context.Background(), 2, batches))
	assert.FileExists(t, filepath.Join(dir, "transform_net_ckpt"))

	out, err := engine.Eval(loaded, loaded)
	require.NoError(t, err)
	require.NoError(t, SaveImage(filepath.Join(dir, "out.png"), out))

	_, err = engine.Eval(loaded.To(tensor.GPU), loaded)
	assert.True(t, errors.Is(err, ErrDeviceMismatch))
}
