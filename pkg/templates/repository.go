// Package templates loads the reference images used to locate UI elements.
//
// Templates live under a root directory, one sub-directory per logical
// target, each holding one or more template_*.{png,jpg,webp} variants:
//
//	templates/
//	  radar/template_1.png
//	  go-button/template_1.png
//	  go-button/template_2.webp
package templates

import (
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/menta2k/screen-pilot/internal/utils"
	"github.com/menta2k/screen-pilot/pkg/types"
)

// Logical target names used by the mission workflows.
const (
	Radar         = "radar"
	GoButton      = "go-button"
	LevelIncrease = "level-increase"
	LevelDecrease = "level-decrease"
	Arrow         = "arrow"
	AttackButton  = "attack-button"
	GatherButton  = "gather-button"
	FleetConflict = "fleet-conflict"
	Fleets        = "fleets"
	SetOut        = "setout"
	Mobility      = "mobility"
	CityView      = "city-view"
	WorldView     = "world-view"
	BattleButton  = "battle-button"
	EliteSkip     = "elite-skip"
	Rewards       = "rewards"
)

// Loader decodes a template file
type Loader interface {
	LoadImage(path string) (image.Image, error)
}

// Repository resolves logical names to cached template images
type Repository struct {
	root   string
	loader Loader
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string][]image.Image
	// static entries registered in code take precedence over the directory
	static map[string][]image.Image
}

// NewRepository creates a repository rooted at dir.
func NewRepository(dir string, loader Loader, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		root:   dir,
		loader: loader,
		logger: logger.Named("templates"),
		cache:  make(map[string][]image.Image),
		static: make(map[string][]image.Image),
	}
}

// Register adds in-memory templates for name.
func (r *Repository) Register(name string, imgs ...image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[name] = append(r.static[name], imgs...)
}

// Get returns every template variant of name. Unknown names fail with a
// configuration error.
func (r *Repository) Get(name string) ([]image.Image, error) {
	r.mu.RLock()
	if imgs, ok := r.static[name]; ok {
		r.mu.RUnlock()
		return imgs, nil
	}
	if imgs, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return imgs, nil
	}
	r.mu.RUnlock()

	imgs, err := r.load(name)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[name] = imgs
	r.mu.Unlock()
	return imgs, nil
}

func (r *Repository) load(name string) ([]image.Image, error) {
	if r.root == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, types.NewError(types.ReasonUnknownTarget, "templates.Get", "unknown target %q", name)
	}
	dir := filepath.Join(r.root, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, types.NewError(types.ReasonUnknownTarget, "templates.Get", "no template directory for %q", name)
	}

	files, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, types.WrapError(types.ReasonUnknownTarget, "templates.Get", err)
	}
	var paths []string
	for _, f := range files {
		if strings.HasPrefix(filepath.Base(f), "template_") && filepath.Dir(f) == dir {
			paths = append(paths, f)
		}
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, types.NewError(types.ReasonUnknownTarget, "templates.Get", "no template_* files for %q", name)
	}

	imgs := make([]image.Image, 0, len(paths))
	for _, p := range paths {
		img, err := r.loader.LoadImage(p)
		if err != nil {
			return nil, types.WrapError(types.ReasonUnknownTarget, "templates.Get", err)
		}
		imgs = append(imgs, img)
	}
	r.logger.Debug("loaded templates", zap.String("name", name), zap.Int("count", len(imgs)))
	return imgs, nil
}

// Names lists the target directories available under the root.
func (r *Repository) Names() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	r.mu.RLock()
	for n := range r.static {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}
