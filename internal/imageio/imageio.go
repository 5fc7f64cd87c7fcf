// Package imageio converts between image files and [1,3,H,W] tensors whose
// values are 0..255 pixel intensities.
package imageio

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// FromImage returns img as a [1,3,H,W] tensor.
func FromImage(img image.Image) *tensor.Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	t := tensor.New(1, 3, h, w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := y*w + x
			t.Data[i] = float64(c.R)
			t.Data[plane+i] = float64(c.G)
			t.Data[2*plane+i] = float64(c.B)
		}
	}
	return t
}

// ToImage converts image index of a [B,3,H,W] tensor to RGBA. Values are
// rounded and clamped to 0..255.
func ToImage(t *tensor.Tensor, index int) (*image.RGBA, error) {
	if len(t.Shape) != 4 || t.Dim(1) != 3 {
		return nil, errors.Errorf("expected [B,3,H,W] tensor, got %v", t.Shape)
	}
	if index < 0 || index >= t.Dim(0) {
		return nil, errors.Errorf("image index %d out of range for batch %d", index, t.Dim(0))
	}
	h, w := t.Dim(2), t.Dim(3)
	plane := h * w
	data := t.Data[index*3*plane : (index+1)*3*plane]

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			rgba.SetRGBA(x, y, color.RGBA{
				R: clampByte(data[i]),
				G: clampByte(data[plane+i]),
				B: clampByte(data[2*plane+i]),
				A: 255,
			})
		}
	}
	return rgba, nil
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Resize scales img to w×h with bilinear interpolation.
func Resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Decode reads a PNG or JPEG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode image")
	}
	return img, nil
}

// Load reads the image at path. A size greater than zero resizes it to
// size×size first.
func Load(path string, size int) (*tensor.Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open image")
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if size > 0 {
		img = Resize(img, size, size)
	}
	return FromImage(img), nil
}

// Save writes the first image of t to path, as JPEG for .jpg and .jpeg
// extensions and PNG otherwise.
func Save(path string, t *tensor.Tensor) error {
	img, err := ToImage(t, 0)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create image file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return errors.Wrap(f.Close(), "failed to close image file")
}
