package perceptual

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/loss"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Flags marks which losses are evaluated at a comparison point.
type Flags uint8

const (
	FlagContent Flags = 1 << iota
	FlagStyle
)

// Has reports whether every bit of o is set in f.
func (f Flags) Has(o Flags) bool {
	return f&o == o
}

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagContent) {
		parts = append(parts, "content")
	}
	if f.Has(FlagStyle) {
		parts = append(parts, "style")
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// ComparisonPoint is a feature extractor depth where losses are evaluated.
type ComparisonPoint struct {
	Index int
	Name  string
	Flags Flags
}

// ConvNames names every convolution of specs "conv_k". k starts at 1 and
// increases by one at every activation layer, regardless of how many
// convolutions precede it. Non-convolution layers get an empty name.
func ConvNames(specs []net.LayerSpec) []string {
	names := make([]string, len(specs))
	k := 1
	for i, s := range specs {
		switch s.Kind {
		case layer.KindConv:
			names[i] = fmt.Sprintf("conv_%d", k)
		case layer.KindActivation:
			k++
		}
	}
	return names
}

// BuildComparisonPoints returns, in layer order, every convolution whose name
// appears in contentLayers or styleLayers, with the matching flags.
func BuildComparisonPoints(specs []net.LayerSpec, contentLayers, styleLayers []string) []ComparisonPoint {
	content := toSet(contentLayers)
	style := toSet(styleLayers)

	var points []ComparisonPoint
	for i, name := range ConvNames(specs) {
		if name == "" {
			continue
		}
		var flags Flags
		if content[name] {
			flags |= FlagContent
		}
		if style[name] {
			flags |= FlagStyle
		}
		if flags != 0 {
			points = append(points, ComparisonPoint{Index: i, Name: name, Flags: flags})
		}
	}
	return points
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Config selects comparison points and loss weights.
type Config struct {
	ContentLayers []string
	StyleLayers   []string
	ContentWeight float64
	StyleWeight   float64
}

// DefaultConfig compares content at conv_4 and style at conv_1 through conv_5.
func DefaultConfig() Config {
	return Config{
		ContentLayers: []string{"conv_4"},
		StyleLayers:   []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"},
		ContentWeight: 5,
		StyleWeight:   1000,
	}
}

// Losses accumulates the scalar content and style loss terms.
type Losses struct {
	Content *tensor.Tensor
	Style   *tensor.Tensor
}

func newLosses() *Losses {
	return &Losses{Content: tensor.New(1), Style: tensor.New(1)}
}

// Total returns content + style.
func (l *Losses) Total() *tensor.Tensor {
	return tensor.Add(l.Content, l.Style)
}

// Extractor wraps a frozen feature extractor and evaluates perceptual losses
// at its comparison points.
type Extractor struct {
	features *FeatureExtractor
	points   []ComparisonPoint
	content  loss.Content
	style    loss.Style
}

// NewExtractor builds the comparison-point table once. Every configured layer
// name must match a convolution of the extractor.
func NewExtractor(features *FeatureExtractor, cfg Config) (*Extractor, error) {
	points := BuildComparisonPoints(features.Specs(), cfg.ContentLayers, cfg.StyleLayers)
	if len(points) == 0 {
		return nil, errors.New("no comparison points match the configured layers")
	}

	found := make(map[string]bool)
	for _, p := range points {
		found[p.Name] = true
	}
	for _, name := range append(append([]string(nil), cfg.ContentLayers...), cfg.StyleLayers...) {
		if !found[name] {
			return nil, errors.Errorf("layer %q does not name a convolution of the feature extractor", name)
		}
	}

	return &Extractor{
		features: features,
		points:   points,
		content:  loss.NewContent(cfg.ContentWeight),
		style:    loss.NewStyle(cfg.StyleWeight),
	}, nil
}

// Points returns the comparison-point table.
func (e *Extractor) Points() []ComparisonPoint {
	return e.points
}

// Step runs pastiche, content and style through layers prev+1 up to and
// including point, adds the losses flagged at point to acc, and returns the
// three feature maps.
func (e *Extractor) Step(pastiche, content, style *tensor.Tensor, prev int, point ComparisonPoint, acc *Losses) (*tensor.Tensor, *tensor.Tensor, *tensor.Tensor) {
	from, to := prev+1, point.Index
	pastiche = e.features.Run(pastiche, from, to)
	content = e.features.Run(content, from, to)
	style = e.features.Run(style, from, to)

	if point.Flags.Has(FlagContent) {
		acc.Content = tensor.Add(acc.Content, e.content.Forward(pastiche, content))
	}
	if point.Flags.Has(FlagStyle) {
		acc.Style = tensor.Add(acc.Style, e.style.Forward(pastiche, style))
	}
	return pastiche, content, style
}

// Compute walks every comparison point in order and returns the accumulated losses.
func (e *Extractor) Compute(pastiche, content, style *tensor.Tensor) *Losses {
	acc := newLosses()
	prev := -1
	for _, point := range e.points {
		pastiche, content, style = e.Step(pastiche, content, style, prev, point, acc)
		prev = point.Index
	}
	return acc
}
