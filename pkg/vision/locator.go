package vision

import (
	"image"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/types"
)

// Config holds the matching and verification parameters of a Locator
type Config struct {
	// Threshold is the maximum normalised squared difference accepted.
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	// MinCosine is the minimum HOG cosine similarity accepted (exclusive).
	MinCosine float64 `json:"min_cosine" mapstructure:"min_cosine"`
	// Scales is the number of evenly spaced resize factors evaluated.
	Scales   int     `json:"scales" mapstructure:"scales"`
	MinScale float64 `json:"min_scale" mapstructure:"min_scale"`
	MaxScale float64 `json:"max_scale" mapstructure:"max_scale"`
	// Orientations and CellSize parameterise the gradient histogram.
	Orientations int `json:"orientations" mapstructure:"orientations"`
	CellSize     int `json:"cell_size" mapstructure:"cell_size"`
}

// DefaultConfig returns the standard locator parameters.
func DefaultConfig() Config {
	return Config{
		Threshold:    0.55,
		MinCosine:    0.50,
		Scales:       20,
		MinScale:     0.05,
		MaxScale:     1.0,
		Orientations: 8,
		CellSize:     16,
	}
}

// Locator finds the best match of a set of templates inside a reference image
type Locator struct {
	config Config
	logger *zap.Logger
}

// New creates a Locator with default configuration
func New() *Locator {
	return &Locator{config: DefaultConfig(), logger: zap.NewNop()}
}

// NewWithConfig creates a Locator with custom configuration
func NewWithConfig(config Config, logger *zap.Logger) *Locator {
	d := DefaultConfig()
	if config.Threshold <= 0 {
		config.Threshold = d.Threshold
	}
	if config.MinCosine <= 0 {
		config.MinCosine = d.MinCosine
	}
	if config.Scales <= 0 {
		config.Scales = d.Scales
	}
	if config.MinScale <= 0 {
		config.MinScale = d.MinScale
	}
	if config.MaxScale <= 0 {
		config.MaxScale = d.MaxScale
	}
	if config.Orientations <= 0 {
		config.Orientations = d.Orientations
	}
	if config.CellSize <= 0 {
		config.CellSize = d.CellSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{config: config, logger: logger.Named("locator")}
}

// Config returns the locator configuration.
func (l *Locator) Config() Config { return l.config }

// Result describes the outcome of a location attempt
type Result struct {
	Found     bool                 `json:"found"`
	Box       types.BoundingBox    `json:"box"`
	Candidate types.MatchCandidate `json:"candidate"`
	Cosine    float64              `json:"cosine"`
	// Evaluated is false when no template fit inside the reference at any scale.
	Evaluated bool `json:"evaluated"`
}

// Locate returns the box of the best verified match in reference coordinates.
// A threshold <= 0 selects the configured default. Absence is reported with
// false, never as an error.
func (l *Locator) Locate(reference image.Image, templates []image.Image, threshold float64) (types.BoundingBox, bool) {
	r := l.LocateDetailed(reference, templates, threshold)
	return r.Box, r.Found
}

// LocateDetailed is Locate with the match score and verification details.
func (l *Locator) LocateDetailed(reference image.Image, templates []image.Image, threshold float64) Result {
	if threshold <= 0 {
		threshold = l.config.Threshold
	}
	if reference == nil || len(templates) == 0 {
		return Result{}
	}

	ref := imaging.Clone(reference)
	origW := ref.Bounds().Dx()
	tpls := make([]*plane, len(templates))
	for i, t := range templates {
		tpls[i] = newPlane(imaging.Clone(t))
	}

	scales := linspace(l.config.MinScale, l.config.MaxScale, l.config.Scales)
	var (
		best types.MatchCandidate
		have bool
	)
	// scales shrink monotonically, so once no template fits none will
	for si := len(scales) - 1; si >= 0; si-- {
		resized := newPlane(resize(ref, scales[si]))
		fits := false
		for ti, tp := range tpls {
			if tp.w == 0 || tp.h == 0 || resized.w < tp.w || resized.h < tp.h {
				continue
			}
			fits = true
			score, loc := matchSqDiffNormed(resized, tp)
			if !have || score < best.Score {
				best = types.MatchCandidate{
					TemplateIndex: ti,
					Score:         score,
					Location:      loc,
					ScaleRatio:    float64(origW) / float64(resized.w),
				}
				have = true
			}
		}
		if !fits {
			break
		}
	}
	if !have {
		l.logger.Debug("no template fits the reference at any scale")
		return Result{}
	}

	tb := tpls[best.TemplateIndex]
	r := best.ScaleRatio
	box := types.Box(
		int(float64(best.Location.X)*r),
		int(float64(best.Location.Y)*r),
		int(float64(best.Location.X+tb.w)*r),
		int(float64(best.Location.Y+tb.h)*r),
	)

	cos := l.verify(ref, box, tb)
	found := best.Score < threshold && cos > l.config.MinCosine
	l.logger.Debug("template match",
		zap.Int("template", best.TemplateIndex),
		zap.Float64("score", best.Score),
		zap.Float64("cosine", cos),
		zap.Float64("ratio", r),
		zap.Bool("found", found),
	)
	return Result{Found: found, Box: box, Candidate: best, Cosine: cos, Evaluated: true}
}

// verify compares gradient histograms of the matched crop and the template.
func (l *Locator) verify(ref *image.NRGBA, box types.BoundingBox, tpl *plane) float64 {
	rect := box.Rect().Intersect(ref.Bounds())
	if rect.Empty() {
		return 0
	}
	crop := imaging.Crop(ref, rect)
	if crop.Bounds().Dx() != tpl.w || crop.Bounds().Dy() != tpl.h {
		crop = imaging.Resize(crop, tpl.w, tpl.h, imaging.Linear)
	}
	a := hog(newPlane(crop), l.config.Orientations, l.config.CellSize)
	b := hog(tpl, l.config.Orientations, l.config.CellSize)
	return Cosine(a, b)
}

func resize(img *image.NRGBA, scale float64) *image.NRGBA {
	w := img.Bounds().Dx()
	nw := int(float64(w) * scale)
	if nw == w {
		return img
	}
	if nw < 1 {
		nw = 1
	}
	return imaging.Resize(img, nw, 0, imaging.Linear)
}

// linspace returns n evenly spaced values over [lo, hi] with hi exact.
func linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{hi}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
