package extract

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// BGR is a colour triple in blue, green, red order
type BGR struct {
	B, G, R uint8
}

// ChannelRange is an inclusive per-channel colour window
type ChannelRange struct {
	Name  string `json:"name" mapstructure:"name"`
	Lower BGR    `json:"lower" mapstructure:"lower"`
	Upper BGR    `json:"upper" mapstructure:"upper"`
}

// Preset ranges for the colours used by on-screen counters.
var (
	White       = ChannelRange{Name: "white", Lower: BGR{128, 128, 128}, Upper: BGR{255, 255, 255}}
	BrightWhite = ChannelRange{Name: "bright_white", Lower: BGR{193, 193, 193}, Upper: BGR{255, 255, 255}}
	QueueWhite  = ChannelRange{Name: "queue_white", Lower: BGR{110, 110, 110}, Upper: BGR{255, 255, 255}}
	Green       = ChannelRange{Name: "green", Lower: BGR{0, 140, 10}, Upper: BGR{7, 255, 75}}
	Black       = ChannelRange{Name: "black", Lower: BGR{2, 2, 2}, Upper: BGR{65, 65, 65}}
)

// Presets indexes the named ranges.
var Presets = map[string]ChannelRange{
	White.Name:       White,
	BrightWhite.Name: BrightWhite,
	QueueWhite.Name:  QueueWhite,
	Green.Name:       Green,
	Black.Name:       Black,
}

func (r ChannelRange) contains(red, green, blue uint8) bool {
	return blue >= r.Lower.B && blue <= r.Upper.B &&
		green >= r.Lower.G && green <= r.Upper.G &&
		red >= r.Lower.R && red <= r.Upper.R
}

// Filter binarises img: pixels inside r become 255, the rest 0.
func Filter(img image.Image, r ChannelRange) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if r.contains(row[x*4], row[x*4+1], row[x*4+2]) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// Coverage returns the number of foreground pixels of a binary image.
func Coverage(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v > 0 {
			n++
		}
	}
	return n
}

// Dominant applies every range and returns the mask with the most
// foreground, together with the range that produced it.
func Dominant(img image.Image, ranges ...ChannelRange) (*image.Gray, ChannelRange) {
	var (
		best      *image.Gray
		bestRange ChannelRange
		bestCount = -1
	)
	for _, r := range ranges {
		m := Filter(img, r)
		if c := Coverage(m); c > bestCount {
			best, bestRange, bestCount = m, r, c
		}
	}
	return best, bestRange
}

// Grayscale converts img to a single-channel image.
func Grayscale(img image.Image) *image.Gray {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetGray(x, y, color.Gray{Y: g.Pix[y*g.Stride+x*4]})
		}
	}
	return out
}
