package main

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/pkg/extract"
	"github.com/menta2k/screen-pilot/pkg/ocr"
	"github.com/menta2k/screen-pilot/pkg/processing"
	"github.com/menta2k/screen-pilot/pkg/region"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// frameFlags selects a saved frame and an optional box inside it.
type frameFlags struct {
	frame string
	box   string
}

func (f *frameFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.frame, "frame", "", "saved screen image (required)")
	cmd.Flags().StringVar(&f.box, "box", "", "restrict to x0,y0,x1,y1 inside the frame")
	_ = cmd.MarkFlagRequired("frame")
}

// load returns the frame, the searched area and its box in frame coordinates.
func (f *frameFlags) load() (image.Image, image.Image, types.BoundingBox, error) {
	img, err := processing.NewProcessor().LoadImage(f.frame)
	if err != nil {
		return nil, nil, types.BoundingBox{}, fmt.Errorf("failed to load frame: %w", err)
	}
	full := types.FromRect(img.Bounds())
	if f.box == "" {
		return img, img, full, nil
	}
	box, err := parseBox(f.box)
	if err != nil {
		return nil, nil, types.BoundingBox{}, err
	}
	area, err := region.Crop(img, full, box)
	if err != nil {
		return nil, nil, types.BoundingBox{}, err
	}
	return img, area, box, nil
}

func parseBox(s string) (types.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.BoundingBox{}, fmt.Errorf("box %q must be x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return types.BoundingBox{}, fmt.Errorf("box %q: %w", s, err)
		}
		v[i] = n
	}
	box := types.Box(v[0], v[1], v[2], v[3])
	if !box.Valid() || box.Empty() {
		return types.BoundingBox{}, fmt.Errorf("box %q is empty", s)
	}
	return box, nil
}

func newLocateCmd(a *app) *cobra.Command {
	var (
		ff        frameFlags
		target    string
		threshold float64
		out       string
	)
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Locate a template in a saved frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, area, areaBox, err := ff.load()
			if err != nil {
				return err
			}
			a.cfg.Screen.Backend = "static"
			a.cfg.Screen.Frames = []string{ff.frame}
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			res, err := p.Locate(area, target, threshold)
			if err != nil {
				return err
			}
			abs := region.Relative(areaBox, res.Box)
			if res.Found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s found at %d,%d,%d,%d (score %.3f, cosine %.3f)\n",
					target, abs.StartX, abs.StartY, abs.EndX, abs.EndY, res.Candidate.Score, res.Cosine)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s not found\n", target)
			}

			if out == "" {
				return nil
			}
			anns := []processing.Annotation{{Box: areaBox, Color: processing.ColorRegion}}
			if res.Evaluated {
				c := processing.ColorRejected
				if res.Found {
					c = processing.ColorFound
				}
				anns = append(anns, processing.Annotation{Box: abs, Color: c})
			}
			if err := p.Processor().SaveImage(p.Processor().CreateDebugOverlay(frame, anns), out); err != nil {
				return fmt.Errorf("failed to save overlay: %w", err)
			}
			a.logger.Info("overlay written", zap.String("path", out))
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringVar(&target, "target", "", "template name, e.g. radar or go-button (required)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "match threshold (0 uses locator.threshold)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write a debug overlay to this path")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newReadCmd(a *app) *cobra.Command {
	var (
		ff        frameFlags
		filters   []string
		psm       []int
		whitelist string
		blacklist string
	)
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Run text extraction on a saved frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, area, _, err := ff.load()
			if err != nil {
				return err
			}
			req := extract.Request{
				Op:  "cli.read",
				OCR: ocr.Config{Whitelist: whitelist, Blacklist: blacklist},
			}
			for _, name := range filters {
				r, ok := extract.Presets[name]
				if !ok {
					return fmt.Errorf("unknown filter %q", name)
				}
				req.Filter = append(req.Filter, r)
			}
			for _, m := range psm {
				req.Modes = append(req.Modes, ocr.PageSegMode(m))
			}

			a.cfg.Screen.Backend = "static"
			a.cfg.Screen.Frames = []string{ff.frame}
			p, err := a.newPilot()
			if err != nil {
				return err
			}
			defer p.Close()

			text, err := p.Read(cmd.Context(), area, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().StringSliceVar(&filters, "filter", nil, "colour filter: white, bright_white, queue_white, green or black")
	cmd.Flags().IntSliceVar(&psm, "psm", nil, "page segmentation modes to try in order")
	cmd.Flags().StringVar(&whitelist, "whitelist", "", "characters to allow")
	cmd.Flags().StringVar(&blacklist, "blacklist", "", "characters to reject")
	return cmd
}
