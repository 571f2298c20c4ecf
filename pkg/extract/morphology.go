package extract

import (
	"image"
	"sort"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// TopHat subtracts the morphological opening of the grayscale image from
// itself, keeping small bright details such as thin digits on busy
// backgrounds. kernel is the rectangular structuring element size.
func TopHat(img image.Image, kernel image.Point) *image.Gray {
	g := Grayscale(img)
	if kernel.X < 1 {
		kernel.X = 1
	}
	if kernel.Y < 1 {
		kernel.Y = 1
	}
	opened := dilate(erode(g, kernel), kernel)
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if o := opened.Pix[i]; v > o {
			out.Pix[i] = v - o
		}
	}
	return out
}

func erode(g *image.Gray, k image.Point) *image.Gray {
	return rankFilter(g, k, func(a, b uint8) bool { return a < b })
}

func dilate(g *image.Gray, k image.Point) *image.Gray {
	return rankFilter(g, k, func(a, b uint8) bool { return a > b })
}

// rankFilter applies a separable min or max over a k.X by k.Y window
// anchored at its centre. Out-of-bounds pixels are ignored.
func rankFilter(g *image.Gray, k image.Point, better func(a, b uint8) bool) *image.Gray {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	ax, ay := k.X/2, k.Y/2

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := g.Pix[y*g.Stride+x]
			for dx := -ax; dx < k.X-ax; dx++ {
				xx := x + dx
				if xx < 0 || xx >= w {
					continue
				}
				if c := g.Pix[y*g.Stride+xx]; better(c, v) {
					v = c
				}
			}
			tmp.Pix[y*tmp.Stride+x] = v
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := tmp.Pix[y*tmp.Stride+x]
			for dy := -ay; dy < k.Y-ay; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				if c := tmp.Pix[yy*tmp.Stride+x]; better(c, v) {
					v = c
				}
			}
			out.Pix[y*out.Stride+x] = v
		}
	}
	return out
}

// Glyphs returns the boxes of the outer connected foreground components of a
// binary image, left to right. Components enclosed by another component's
// box and components smaller than minArea pixels are dropped.
func Glyphs(g *image.Gray, minArea int) []types.BoundingBox {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	seen := make([]bool, w*h)
	var boxes []types.BoundingBox
	stack := make([]int, 0, 64)

	for start := 0; start < w*h; start++ {
		sx, sy := start%w, start/w
		if seen[start] || g.Pix[sy*g.Stride+sx] == 0 {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		box := types.Box(sx, sy, sx+1, sy+1)
		area := 0
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			area++
			if px < box.StartX {
				box.StartX = px
			}
			if py < box.StartY {
				box.StartY = py
			}
			if px+1 > box.EndX {
				box.EndX = px + 1
			}
			if py+1 > box.EndY {
				box.EndY = py + 1
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					n := ny*w + nx
					if !seen[n] && g.Pix[ny*g.Stride+nx] != 0 {
						seen[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
		if area >= minArea {
			boxes = append(boxes, box)
		}
	}

	outer := boxes[:0:0]
	for i, b := range boxes {
		enclosed := false
		for j, o := range boxes {
			if i != j && contains(o, b) && o != b {
				enclosed = true
				break
			}
		}
		if !enclosed {
			outer = append(outer, b)
		}
	}
	sort.SliceStable(outer, func(i, j int) bool { return outer[i].StartX < outer[j].StartX })
	return outer
}

func contains(outer, inner types.BoundingBox) bool {
	return inner.StartX >= outer.StartX && inner.StartY >= outer.StartY &&
		inner.EndX <= outer.EndX && inner.EndY <= outer.EndY
}
