package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func checker() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(10 * x), G: uint8(100 * y), B: 7, A: 255})
		}
	}
	return img
}

func TestFromImageLayout(t *testing.T) {
	ten := FromImage(checker())
	require.Equal(t, []int{1, 3, 2, 4}, ten.Shape)
	assert.Equal(t, []float64{0, 10, 20, 30, 0, 10, 20, 30}, ten.Data[:8])
	assert.Equal(t, []float64{0, 0, 0, 0, 100, 100, 100, 100}, ten.Data[8:16])
	assert.Equal(t, 7.0, ten.Data[16])
}

func TestToImageRoundsAndClamps(t *testing.T) {
	_, err := ToImage(tensor.New(1, 4, 1, 1), 0)
	assert.Error(t, err)

	ten := tensor.FromData([]float64{-3, 300, 127.6}, 1, 3, 1, 1)
	img, err := ToImage(ten, 0)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0, G: 255, B: 128, A: 255}, img.RGBAAt(0, 0))

	_, err = ToImage(ten, 1)
	assert.Error(t, err)
}

func TestResize(t *testing.T) {
	img := Resize(checker(), 2, 1)
	assert.Equal(t, image.Rect(0, 0, 2, 1), img.Bounds())
	left, right := img.RGBAAt(0, 0), img.RGBAAt(1, 0)
	assert.Less(t, left.R, right.R)
	assert.Equal(t, uint8(255), left.A)

	flat := image.NewRGBA(image.Rect(0, 0, 5, 3))
	for i := 0; i < len(flat.Pix); i += 4 {
		copy(flat.Pix[i:], []uint8{40, 80, 120, 255})
	}
	up := Resize(flat, 8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := up.RGBAAt(x, y)
			assert.InDelta(t, 40, int(c.R), 1)
			assert.InDelta(t, 120, int(c.B), 1)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := FromImage(checker())

	path := filepath.Join(dir, "out.png")
	require.NoError(t, Save(path, src))
	got, err := Load(path, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Data, got.Data)

	resized, err := Load(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 3, 3}, resized.Shape)

	jpg := filepath.Join(dir, "out.jpg")
	require.NoError(t, Save(jpg, src))
	decoded, err := Load(jpg, 0)
	require.NoError(t, err)
	assert.Equal(t, src.Shape, decoded.Shape)

	_, err = Load(filepath.Join(dir, "missing.png"), 0)
	assert.Error(t, err)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not an image")))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, checker()))
	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
}
