package vision

import (
	"image"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// plane stores an image as three float channels for matching
type plane struct {
	w, h int
	c    [3][]float64

	sq   []float64
	spec *spectrum
}

func newPlane(img *image.NRGBA) *plane {
	b := img.Bounds()
	p := &plane{w: b.Dx(), h: b.Dy()}
	n := p.w * p.h
	for k := range p.c {
		p.c[k] = make([]float64, n)
	}
	for y := 0; y < p.h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			p.c[0][i] = float64(row[x*4])
			p.c[1][i] = float64(row[x*4+1])
			p.c[2][i] = float64(row[x*4+2])
		}
	}
	return p
}

// energy is the sum of squared intensities over all channels.
func (p *plane) energy() float64 {
	var e float64
	for k := 0; k < 3; k++ {
		for _, v := range p.c[k] {
			e += v * v
		}
	}
	return e
}

// integral returns the (w+1)×(h+1) summed-area table of squared
// intensities, built once per plane.
func (p *plane) integral() []float64 {
	if p.sq != nil {
		return p.sq
	}
	iw := p.w + 1
	sq := make([]float64, iw*(p.h+1))
	for y := 0; y < p.h; y++ {
		var rowSum float64
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			v0, v1, v2 := p.c[0][i], p.c[1][i], p.c[2][i]
			rowSum += v0*v0 + v1*v1 + v2*v2
			sq[(y+1)*iw+x+1] = sq[y*iw+x+1] + rowSum
		}
	}
	p.sq = sq
	return sq
}

// matchSqDiffNormed slides tpl over img and returns the minimum normalised
// squared difference and its top-left location. Ties keep the first
// location in row-major order.
//
// The squared difference expands to window energy - 2·cross + template
// energy. Window energies come from the integral image and the cross term
// from a frequency-domain correlation.
func matchSqDiffNormed(img, tpl *plane) (float64, image.Point) {
	tplNorm := tpl.energy()
	sq := img.integral()
	iw := img.w + 1
	cross := img.correlate(tpl)
	ow := img.w - tpl.w + 1

	best := math.Inf(1)
	var loc image.Point
	for y := 0; y+tpl.h <= img.h; y++ {
		for x := 0; x+tpl.w <= img.w; x++ {
			winNorm := sq[(y+tpl.h)*iw+x+tpl.w] - sq[y*iw+x+tpl.w] - sq[(y+tpl.h)*iw+x] + sq[y*iw+x]
			winNorm = math.Max(winNorm, 0)
			num := math.Max(winNorm-2*cross[y*ow+x]+tplNorm, 0)
			den := math.Sqrt(winNorm * tplNorm)
			score := 1.0
			if num < den {
				score = num / den
			}
			if score < best {
				best = score
				loc = image.Pt(x, y)
			}
		}
	}
	return best, loc
}

// channelPairs packs two real channels into one complex signal. With a
// conjugated template the real part of the product sums both channel
// correlations.
var channelPairs = [2][2]int{{0, 1}, {2, -1}}

// spectrum holds the padded 2-D transforms of a plane's channel pairs
type spectrum struct {
	w, h       int
	rows, cols *fourier.CmplxFFT
	pairs      [2][]complex128

	row, col, colOut []complex128
}

// spectra transforms p once. Later templates reuse the result.
func (p *plane) spectra() *spectrum {
	if p.spec != nil {
		return p.spec
	}
	w, h := fftSize(p.w), fftSize(p.h)
	s := &spectrum{
		w:      w,
		h:      h,
		rows:   fourier.NewCmplxFFT(w),
		cols:   fourier.NewCmplxFFT(h),
		row:    make([]complex128, w),
		col:    make([]complex128, h),
		colOut: make([]complex128, h),
	}
	for k, pair := range channelPairs {
		buf := make([]complex128, w*h)
		p.pack(buf, w, pair)
		s.forward(buf, p.h)
		s.pairs[k] = buf
	}
	p.spec = s
	return s
}

// correlate returns Σ img·tpl over all channels for every offset at which
// tpl fits inside p, in row-major order of the valid offsets. Padding to at
// least the image size keeps the circular correlation free of wraparound
// for those offsets.
func (p *plane) correlate(tpl *plane) []float64 {
	s := p.spectra()
	n := s.w * s.h
	acc := make([]complex128, n)
	buf := make([]complex128, n)
	for k, pair := range channelPairs {
		tpl.pack(buf, s.w, pair)
		s.forward(buf, tpl.h)
		for i, v := range s.pairs[k] {
			acc[i] += v * cmplx.Conj(buf[i])
		}
	}

	ow, oh := p.w-tpl.w+1, p.h-tpl.h+1
	s.inverse(acc, oh)
	norm := 1 / float64(n)
	out := make([]float64, ow*oh)
	for y := 0; y < oh; y++ {
		for x := 0; x < ow; x++ {
			out[y*ow+x] = real(acc[y*s.w+x]) * norm
		}
	}
	return out
}

// pack writes the channel pair into dst, a zeroed grid of the given stride.
func (p *plane) pack(dst []complex128, stride int, pair [2]int) {
	clear(dst)
	re := p.c[pair[0]]
	var im []float64
	if pair[1] >= 0 {
		im = p.c[pair[1]]
	}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			i := y*p.w + x
			v := complex(re[i], 0)
			if im != nil {
				v = complex(re[i], im[i])
			}
			dst[y*stride+x] = v
		}
	}
}

// forward transforms buf in place. Rows from live onwards are zero and
// skip the row pass.
func (s *spectrum) forward(buf []complex128, live int) {
	for y := 0; y < live; y++ {
		r := buf[y*s.w : (y+1)*s.w]
		s.rows.Coefficients(s.row, r)
		copy(r, s.row)
	}
	s.columns(buf, s.cols.Coefficients)
}

// inverse undoes forward without normalisation, finishing only the first
// keep rows.
func (s *spectrum) inverse(buf []complex128, keep int) {
	s.columns(buf, s.cols.Sequence)
	for y := 0; y < keep; y++ {
		r := buf[y*s.w : (y+1)*s.w]
		s.rows.Sequence(s.row, r)
		copy(r, s.row)
	}
}

func (s *spectrum) columns(buf []complex128, transform func(dst, seq []complex128) []complex128) {
	for x := 0; x < s.w; x++ {
		for y := 0; y < s.h; y++ {
			s.col[y] = buf[y*s.w+x]
		}
		transform(s.colOut, s.col)
		for y := 0; y < s.h; y++ {
			buf[y*s.w+x] = s.colOut[y]
		}
	}
}

// fftSize returns the smallest length >= n whose only prime factors are 2, 3
// and 5.
func fftSize(n int) int {
	for m := max(n, 1); ; m++ {
		r := m
		for _, f := range [...]int{2, 3, 5} {
			for r%f == 0 {
				r /= f
			}
		}
		if r == 1 {
			return m
		}
	}
}
