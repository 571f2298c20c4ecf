// Package region crops screen frames into named sections while keeping track
// of where each crop sits on the absolute screen.
package region

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Edge selects the side of an image a section is anchored to
type Edge int

const (
	Top Edge = iota
	Bottom
	Left
	Right
)

func (e Edge) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("edge(%d)", int(e))
	}
}

// ParseEdge converts a configuration string into an Edge.
func ParseEdge(s string) (Edge, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "top":
		return Top, nil
	case "bottom":
		return Bottom, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, types.NewError(types.ReasonInvalidParameter, "region.ParseEdge", "unknown edge %q", s)
}

// UnmarshalText lets Edge be decoded from configuration files.
func (e *Edge) UnmarshalText(text []byte) error {
	v, err := ParseEdge(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

func (e Edge) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Spec is one step of a section chain
type Spec struct {
	Percentage float64 `json:"percentage" mapstructure:"percentage"`
	Edge       Edge    `json:"edge" mapstructure:"edge"`
}

// S is shorthand for building a Spec.
func S(percentage float64, edge Edge) Spec {
	return Spec{Percentage: percentage, Edge: edge}
}

// Section crops percentage of img along edge. ref is the absolute box of img
// on the screen; the returned box is the absolute box of the crop. The
// returned image is re-origined at (0,0).
func Section(img image.Image, percentage float64, edge Edge, ref types.BoundingBox) (image.Image, types.BoundingBox, error) {
	if percentage < 0 || percentage > 100 {
		return nil, types.BoundingBox{}, types.NewError(types.ReasonInvalidParameter, "region.Section",
			"percentage %.2f outside [0,100]", percentage)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var local types.BoundingBox
	switch edge {
	case Top:
		local = types.Box(0, 0, w, int(percentage/100*float64(h)))
	case Bottom:
		local = types.Box(0, h-int(percentage/100*float64(h)), w, h)
	case Left:
		local = types.Box(0, 0, int(percentage/100*float64(w)), h)
	case Right:
		local = types.Box(w-int(percentage/100*float64(w)), 0, w, h)
	default:
		return nil, types.BoundingBox{}, types.NewError(types.ReasonInvalidParameter, "region.Section",
			"unsupported edge %s", edge)
	}

	cropped := imaging.Crop(img, local.Rect().Add(b.Min))
	return cropped, Relative(ref, local), nil
}

// Relative converts local, expressed inside the crop whose absolute box is ref,
// into absolute screen coordinates. The end coordinates are computed from the
// ref's end so that a crop anchored to the bottom or right edge stays anchored.
func Relative(ref, local types.BoundingBox) types.BoundingBox {
	return types.BoundingBox{
		StartX: ref.StartX + local.StartX,
		StartY: ref.StartY + local.StartY,
		EndX:   ref.EndX - (ref.Width() - local.EndX),
		EndY:   ref.EndY - (ref.Height() - local.EndY),
	}
}

// Chain applies Section repeatedly, each step cropping the previous result.
func Chain(img image.Image, ref types.BoundingBox, specs ...Spec) (image.Image, types.BoundingBox, error) {
	cur, box := img, ref
	for i, s := range specs {
		var err error
		cur, box, err = Section(cur, s.Percentage, s.Edge, box)
		if err != nil {
			return nil, types.BoundingBox{}, fmt.Errorf("section %d: %w", i, err)
		}
	}
	return cur, box, nil
}

// Columns splits img into consecutive vertical strips. fractions are widths
// relative to the full image and are applied left to right.
func Columns(img image.Image, ref types.BoundingBox, fractions []float64) ([]types.BoundingBox, error) {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	boxes := make([]types.BoundingBox, 0, len(fractions))
	x := 0
	for _, f := range fractions {
		if f <= 0 {
			return nil, types.NewError(types.ReasonInvalidParameter, "region.Columns", "non-positive fraction %.3f", f)
		}
		cw := int(f * float64(w))
		end := x + cw
		if end > w {
			end = w
		}
		boxes = append(boxes, Relative(ref, types.Box(x, 0, end, h)))
		x = end
	}
	return boxes, nil
}

// Equal returns n equal fractions summing to one.
func Equal(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// Band returns a copy of img where only the horizontal band [from·w, to·w)
// keeps its pixels; everything else is painted black.
func Band(img image.Image, from, to float64) (*image.NRGBA, error) {
	if from < 0 || to > 1 || from >= to {
		return nil, types.NewError(types.ReasonInvalidParameter, "region.Band", "band [%.2f,%.2f) invalid", from, to)
	}
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	x0, x1 := int(from*float64(w)), int(to*float64(w))

	black := image.NewUniform(color.NRGBA{0, 0, 0, 255})
	draw.Draw(src, image.Rect(0, 0, x0, h), black, image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(x1, 0, w, h), black, image.Point{}, draw.Src)
	return src, nil
}

// Crop cuts the absolute box out of a frame whose absolute box is ref.
func Crop(img image.Image, ref, box types.BoundingBox) (image.Image, error) {
	local := box.Translate(-ref.StartX, -ref.StartY).Rect().Add(img.Bounds().Min)
	r := local.Intersect(img.Bounds())
	if r.Empty() {
		return nil, types.NewError(types.ReasonInvalidParameter, "region.Crop", "box %v outside frame", box)
	}
	return imaging.Crop(img, r), nil
}
