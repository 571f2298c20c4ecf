package vision

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Descriptor returns the gradient histogram descriptor of img.
func Descriptor(img image.Image, orientations, cellSize int) []float64 {
	return hog(newPlane(imaging.Clone(img)), orientations, cellSize)
}

// hog computes a histogram-of-oriented-gradients descriptor with unsigned
// orientations, cellSize pixel cells and 1x1 blocks normalised with L2-Hys.
// For each pixel the gradient of the channel with the largest magnitude is
// used. The cell size shrinks to fit images smaller than one cell.
func hog(p *plane, orientations, cellSize int) []float64 {
	if p == nil || p.w == 0 || p.h == 0 || orientations <= 0 {
		return nil
	}
	if cellSize > p.w {
		cellSize = p.w
	}
	if cellSize > p.h {
		cellSize = p.h
	}
	cellsX, cellsY := p.w/cellSize, p.h/cellSize

	mag := make([]float64, p.w*p.h)
	ori := make([]float64, p.w*p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			var bestMag, gx, gy float64
			for k := 0; k < 3; k++ {
				c := p.c[k]
				var dx, dy float64
				if x > 0 && x < p.w-1 {
					dx = c[i+1] - c[i-1]
				}
				if y > 0 && y < p.h-1 {
					dy = c[i+p.w] - c[i-p.w]
				}
				m := math.Hypot(dx, dy)
				if k == 0 || m > bestMag {
					bestMag, gx, gy = m, dx, dy
				}
			}
			mag[i] = bestMag
			deg := math.Atan2(gy, gx) * 180 / math.Pi
			if deg < 0 {
				deg += 180
			}
			if deg >= 180 {
				deg -= 180
			}
			ori[i] = deg
		}
	}

	binWidth := 180.0 / float64(orientations)
	features := make([]float64, 0, cellsX*cellsY*orientations)
	hist := make([]float64, orientations)
	area := float64(cellSize * cellSize)
	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			for b := range hist {
				hist[b] = 0
			}
			for y := cy * cellSize; y < (cy+1)*cellSize; y++ {
				for x := cx * cellSize; x < (cx+1)*cellSize; x++ {
					i := y*p.w + x
					bin := int(ori[i] / binWidth)
					if bin >= orientations {
						bin = orientations - 1
					}
					hist[bin] += mag[i] / area
				}
			}
			features = append(features, l2Hys(hist)...)
		}
	}
	return features
}

func l2Hys(v []float64) []float64 {
	const eps = 1e-5
	out := make([]float64, len(v))
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	norm := math.Sqrt(sum + eps*eps)
	for i, x := range v {
		out[i] = math.Min(x/norm, 0.2)
	}
	sum = 0
	for _, x := range out {
		sum += x * x
	}
	norm = math.Sqrt(sum + eps*eps)
	for i := range out {
		out[i] /= norm
	}
	return out
}

// Cosine returns the cosine similarity of two descriptors. Two zero vectors
// are identical (1); a zero vector against a non-zero one scores 0.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, x := range a {
		na += x * x
	}
	for _, x := range b {
		nb += x * x
	}
	switch {
	case na == 0 && nb == 0:
		return 1
	case na == 0 || nb == 0:
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
