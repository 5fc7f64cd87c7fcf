package perceptual

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func tinySpecs() []net.LayerSpec {
	return []net.LayerSpec{
		net.Conv(3, 4, 3, 1, 1),
		net.Conv(4, 4, 3, 1, 1),
		net.ReLU(),
		net.Conv(4, 4, 3, 1, 1),
		net.ReLU(),
		net.MaxPool(2, 2),
		net.Conv(4, 4, 3, 1, 1),
		net.ReLU(),
	}
}

func tinyExtractor(t *testing.T, cfg Config) *Extractor {
	t.Helper()
	features, err := NewFeatureExtractor(tinySpecs(), layer.NewRNG(1))
	require.NoError(t, err)
	e, err := NewExtractor(features, cfg)
	require.NoError(t, err)
	return e
}

func randomImage(rng *rand.Rand) *tensor.Tensor {
	img := tensor.New(1, 3, 8, 8)
	for i := range img.Data {
		img.Data[i] = rng.Float64() * 255
	}
	return img
}

func TestConvNamesCountActivations(t *testing.T) {
	specs := []net.LayerSpec{
		net.Conv(3, 4, 3, 1, 1),
		net.Conv(4, 4, 3, 1, 1),
		net.ReLU(),
		net.Conv(4, 4, 3, 1, 1),
		net.ReLU(),
	}
	assert.Equal(t, []string{"conv_1", "conv_1", "", "conv_2", ""}, ConvNames(specs))
}

func TestVGG19DefaultComparisonPoints(t *testing.T) {
	cfg := DefaultConfig()
	points := BuildComparisonPoints(VGG19Features(), cfg.ContentLayers, cfg.StyleLayers)

	want := []ComparisonPoint{
		{Index: 0, Name: "conv_1", Flags: FlagStyle},
		{Index: 2, Name: "conv_2", Flags: FlagStyle},
		{Index: 5, Name: "conv_3", Flags: FlagStyle},
		{Index: 7, Name: "conv_4", Flags: FlagContent | FlagStyle},
		{Index: 10, Name: "conv_5", Flags: FlagStyle},
	}
	assert.Equal(t, want, points)
	assert.Equal(t, "{content,style}", points[3].Flags.String())
}

func TestContentOnlyComparisonPoint(t *testing.T) {
	points := BuildComparisonPoints(VGG19Features(), []string{"conv_4"}, nil)
	require.Len(t, points, 1)
	assert.Equal(t, ComparisonPoint{Index: 7, Name: "conv_4", Flags: FlagContent}, points[0])
}

func TestVGG19Shape(t *testing.T) {
	specs := VGG19Features()
	require.Len(t, specs, 37)
	convs := 0
	for _, s := range specs {
		if s.Kind == layer.KindConv {
			convs++
		}
	}
	assert.Equal(t, 16, convs)
	assert.Equal(t, 512, specs[len(specs)-3].Out)
}

func TestNewExtractorRejectsUnknownLayers(t *testing.T) {
	features, err := NewFeatureExtractor(tinySpecs(), layer.NewRNG(1))
	require.NoError(t, err)

	_, err = NewExtractor(features, Config{ContentLayers: []string{"conv_9"}})
	assert.Error(t, err)

	_, err = NewExtractor(features, Config{ContentLayers: []string{"conv_2"}, StyleLayers: []string{"relu_1"}})
	assert.Error(t, err)
}

func TestNewFeatureExtractorRejectsTransposedConv(t *testing.T) {
	_, err := NewFeatureExtractor([]net.LayerSpec{net.ConvTranspose(3, 3, 3, 2, 1, 1)}, layer.NewRNG(1))
	assert.Error(t, err)
}

func TestIdenticalImagesHaveZeroLoss(t *testing.T) {
	e := tinyExtractor(t, Config{
		ContentLayers: []string{"conv_2"},
		StyleLayers:   []string{"conv_1", "conv_3"},
		ContentWeight: 5,
		StyleWeight:   1000,
	})
	img := randomImage(rand.New(rand.NewSource(2)))
	losses := e.Compute(img, img, img)
	assert.InDelta(t, 0, losses.Content.Item(), 1e-12)
	assert.InDelta(t, 0, losses.Style.Item(), 1e-12)
}

func TestZeroStyleWeightDisablesStyleLoss(t *testing.T) {
	e := tinyExtractor(t, Config{
		ContentLayers: []string{"conv_2"},
		StyleLayers:   []string{"conv_1"},
		ContentWeight: 5,
		StyleWeight:   0,
	})
	rng := rand.New(rand.NewSource(4))
	losses := e.Compute(randomImage(rng), randomImage(rng), randomImage(rng))
	assert.Equal(t, 0.0, losses.Style.Item())
	assert.Greater(t, losses.Content.Item(), 0.0)
}

func TestStepMatchesCompute(t *testing.T) {
	e := tinyExtractor(t, Config{
		ContentLayers: []string{"conv_2"},
		StyleLayers:   []string{"conv_1", "conv_2", "conv_3"},
		ContentWeight: 1,
		StyleWeight:   10,
	})
	rng := rand.New(rand.NewSource(3))
	p, c, s := randomImage(rng), randomImage(rng), randomImage(rng)

	// conv_1 names both of the first two convolutions.
	require.Len(t, e.Points(), 4)

	acc := newLosses()
	fp, fc, fs := p, c, s
	prev := -1
	for _, point := range e.Points() {
		fp, fc, fs = e.Step(fp, fc, fs, prev, point, acc)
		prev = point.Index
	}
	assert.Equal(t, []int{1, 4, 4, 4}, fp.Shape)

	want := e.Compute(p, c, s)
	assert.InDelta(t, want.Content.Item(), acc.Content.Item(), 1e-9)
	assert.InDelta(t, want.Style.Item(), acc.Style.Item(), 1e-9)
	assert.Greater(t, acc.Content.Item(), 0.0)
	assert.Greater(t, acc.Style.Item(), 0.0)
}

func TestExtractorIsFrozenAndInputsUntouched(t *testing.T) {
	e := tinyExtractor(t, Config{
		ContentLayers: []string{"conv_3"},
		StyleLayers:   []string{"conv_1", "conv_2", "conv_3"},
		ContentWeight: 5,
		StyleWeight:   1000,
	})
	rng := rand.New(rand.NewSource(4))

	p := tensor.Param(randomImage(rng).Data, 1, 3, 8, 8)
	c, s := randomImage(rng), randomImage(rng)
	before := [][]float64{
		append([]float64(nil), p.Data...),
		append([]float64(nil), c.Data...),
		append([]float64(nil), s.Data...),
	}
	var weights [][]float64
	for _, w := range e.features.Params() {
		weights = append(weights, append([]float64(nil), w.Data...))
	}

	losses := e.Compute(p, c, s)
	losses.Total().Backward()

	require.NotNil(t, p.Grad)
	assert.Nil(t, c.Grad)
	assert.Nil(t, s.Grad)
	for i, w := range e.features.Params() {
		assert.False(t, w.RequiresGrad())
		assert.Nil(t, w.Grad, "extractor param %d received a gradient", i)
		assert.Equal(t, weights[i], w.Data)
	}
	assert.Equal(t, before[0], p.Data)
	assert.Equal(t, before[1], c.Data)
	assert.Equal(t, before[2], s.Data)
}

func TestFeatureExtractorWeightFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vgg")
	a, err := NewFeatureExtractor(tinySpecs(), layer.NewRNG(1))
	require.NoError(t, err)
	b, err := NewFeatureExtractor(tinySpecs(), layer.NewRNG(2))
	require.NoError(t, err)

	require.NoError(t, a.Save(path))
	require.NoError(t, b.Load(path))
	for i := range a.Params() {
		assert.Equal(t, a.Params()[i].Data, b.Params()[i].Data)
	}
	assert.Equal(t, 8, b.Len())
}
