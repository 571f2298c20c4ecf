package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Processor loads frames and templates and writes diagnostic images
type Processor struct {
	format   string
	quality  int
	lossless bool
}

// NewProcessor creates a processor saving diagnostics as lossy webp.
func NewProcessor() *Processor {
	return &Processor{format: "webp", quality: 85}
}

// NewProcessorWithFormat creates a processor saving diagnostics in format.
func NewProcessorWithFormat(format string, quality int, lossless bool) *Processor {
	if quality < 1 || quality > 100 {
		quality = 85
	}
	if format == "" {
		format = "webp"
	}
	return &Processor{format: strings.ToLower(format), quality: quality, lossless: lossless}
}

// Format returns the diagnostics file format.
func (p *Processor) Format() string { return p.format }

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.DecodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("image: unknown format for %s", path)
	}
	return img, nil
}

// DecodeImage decodes an image from byte data with WebP support
func (p *Processor) DecodeImage(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// SaveImage writes img to path in the processor's format, creating the
// parent directory when needed.
func (p *Processor) SaveImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	switch p.format {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: p.lossless, Quality: float32(p.quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(p.quality))
	}
}

// Annotation is a labelled box drawn on a debug overlay
type Annotation struct {
	Box   types.BoundingBox
	Color color.NRGBA
}

// Overlay colours.
var (
	ColorFound    = color.NRGBA{0, 255, 0, 255}
	ColorRejected = color.NRGBA{255, 0, 0, 255}
	ColorRegion   = color.NRGBA{255, 204, 0, 255}
	ColorClick    = color.NRGBA{0, 170, 255, 255}
)

// CreateDebugOverlay draws the annotations on a copy of img. Boxes are in
// img coordinates.
func (p *Processor) CreateDebugOverlay(img image.Image, annotations []Annotation) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side
	cross := int(math.Max(4, 0.01*float64(min(w, h))))   // ~1% of min side

	for _, a := range annotations {
		drawBox(nrgba, a.Box, a.Color, stroke)
		c := a.Box.Center()
		drawHLine(nrgba, c.Y, c.X-cross, c.X+cross, a.Color)
		drawVLine(nrgba, c.X, c.Y-cross, c.Y+cross, a.Color)
	}
	return nrgba
}

func drawBox(img *image.NRGBA, box types.BoundingBox, color color.NRGBA, stroke int) {
	x0, y0, x1, y1 := box.StartX, box.StartY, box.EndX, box.EndY
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, color)
		drawHLine(img, y1-1-s, x0, x1, color)
		drawVLine(img, x0+s, y0, y1, color)
		drawVLine(img, x1-1-s, y0, y1, color)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0 = max(x0, 0)
	x1 = min(x1, img.Bounds().Dx())
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0 = max(y0, 0)
	y1 = min(y1, img.Bounds().Dy())
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
