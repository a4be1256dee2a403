// Package assets virtualizes the on-disk files a captured task touches into a
// canonical, role-partitioned layout and archives that layout as a zip file.
//
// A Repository starts Open: assets are registered and project scopes tracked.
// Freeze moves it to Frozen, after which the layout is fixed and relative paths
// can be resolved and the archive written.
package assets

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
)

// State is the repository lifecycle state.
type State int

const (
	StateOpen State = iota
	StateFrozen
)

func (s State) String() string {
	if s == StateFrozen {
		return "Frozen"
	}
	return "Open"
}

// Asset is one entry of the asset table.
type Asset struct {
	// OriginalPath is the absolute on-disk source, empty for generated assets.
	OriginalPath string `json:"original_path,omitempty"`
	Kind         Kind   `json:"kind"`
}

// Entry pairs an asset with its canonical path.
type Entry struct {
	Path  AssetPath
	Asset Asset
}

// Options tune naming and archival.
type Options struct {
	// ReplayProjectName is the reserved filename of the GeneratedProject asset.
	ReplayProjectName string
	// ManagedAssemblyPattern filters InputManagedAssemblyDirectory contents.
	ManagedAssemblyPattern string
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		ReplayProjectName:      "replay.proj",
		ManagedAssemblyPattern: "*.dll",
	}
}

// Repository owns the canonical path space of one capture. It is not safe for
// concurrent use.
type Repository struct {
	logger *zap.Logger
	opts   Options
	state  State

	order     []AssetPath
	assets    map[string]Asset
	generated map[string]*GeneratedAsset

	projectDir string
}

// New creates an empty, open repository.
func New(logger *zap.Logger, opts Options) *Repository {
	def := DefaultOptions()
	if opts.ReplayProjectName == "" {
		opts.ReplayProjectName = def.ReplayProjectName
	}
	if opts.ManagedAssemblyPattern == "" {
		opts.ManagedAssemblyPattern = def.ManagedAssemblyPattern
	}
	return &Repository{
		logger:    logging.OrNop(logger).Named("assets"),
		opts:      opts,
		state:     StateOpen,
		assets:    make(map[string]Asset),
		generated: make(map[string]*GeneratedAsset),
	}
}

// State returns the current lifecycle state.
func (r *Repository) State() State {
	return r.state
}

// Options returns the options the repository was built with.
func (r *Repository) Options() Options {
	return r.opts
}

// CurrentProjectDir is the base directory relative inputs resolve against.
func (r *Repository) CurrentProjectDir() string {
	return r.projectDir
}

func (r *Repository) requireState(op string, want State) error {
	if r.state == want {
		return nil
	}
	r.logger.Error("repository state violation",
		zap.String("operation", op),
		zap.Stringer("state", r.state),
		zap.Stringer("required", want))
	if want == StateOpen {
		return errors.NewRepositoryFrozen(op)
	}
	return errors.NewRepositoryNotFrozen(op)
}

// Len returns the number of registered assets.
func (r *Repository) Len() int {
	return len(r.order)
}

// Entries returns the asset table in registration order.
func (r *Repository) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, p := range r.order {
		out = append(out, Entry{Path: p, Asset: r.assets[p.Key()]})
	}
	return out
}

// Lookup returns the asset registered at p.
func (r *Repository) Lookup(p AssetPath) (Asset, bool) {
	a, ok := r.assets[p.Key()]
	return a, ok
}

func (r *Repository) toolingPath(onDiskPath string, kind Kind) (AssetPath, error) {
	if kind.Category() != CategoryTooling {
		return AssetPath{}, errors.NewInvalidRequest(fmt.Sprintf("%s is not a tooling kind", kind))
	}
	if !filepath.IsAbs(onDiskPath) {
		r.logger.Error("tooling asset path is not absolute", zap.String("path", onDiskPath))
		return AssetPath{}, errors.NewInvalidRequest(fmt.Sprintf("tooling path must be absolute: %q", onDiskPath))
	}
	segs := rootedSegments(onDiskPath)
	if len(segs) == 0 {
		return AssetPath{}, errors.NewInvalidRequest(fmt.Sprintf("tooling path has no file name: %q", onDiskPath))
	}
	p := newAssetPath(ToolingRoot, segs)
	r.logger.Debug("tooling path canonicalized",
		zap.String("path", onDiskPath), zap.Stringer("asset", p))
	return p, nil
}

// inputPath returns the canonical path and the resolved absolute source.
// Relative paths keep their relative form as the canonical subpath; those that
// climb out of the project (..) fall back to the resolved absolute form.
func (r *Repository) inputPath(onDiskPath string, kind Kind) (AssetPath, string, error) {
	if kind.Category() != CategoryInput {
		return AssetPath{}, "", errors.NewInvalidRequest(fmt.Sprintf("%s is not an input kind", kind))
	}
	if onDiskPath == "" {
		return AssetPath{}, "", errors.NewInvalidRequest("input path is empty")
	}

	var (
		segs []string
		abs  string
	)
	if filepath.IsAbs(onDiskPath) {
		abs = filepath.Clean(onDiskPath)
		segs = rootedSegments(abs)
	} else {
		if r.projectDir == "" {
			r.logger.Error("relative input outside a project scope", zap.String("path", onDiskPath))
			return AssetPath{}, "", errors.NewInvalidRequest(
				fmt.Sprintf("relative input %q requires a project scope", onDiskPath))
		}
		rel := filepath.Clean(onDiskPath)
		abs = filepath.Join(r.projectDir, rel)
		segs = splitSegments(filepath.ToSlash(rel))
		if len(segs) > 0 && segs[0] == ".." {
			r.logger.Debug("relative input escapes project, using absolute form",
				zap.String("path", onDiskPath), zap.String("resolved", abs))
			segs = rootedSegments(abs)
		}
	}
	if len(segs) == 0 {
		return AssetPath{}, "", errors.NewInvalidRequest(fmt.Sprintf("input path has no file name: %q", onDiskPath))
	}
	p := newAssetPath(InputRoot, segs)
	r.logger.Debug("input path canonicalized",
		zap.String("path", onDiskPath), zap.String("resolved", abs), zap.Stringer("asset", p))
	return p, abs, nil
}

func (r *Repository) tryAdd(p AssetPath, asset Asset) bool {
	key := p.Key()
	if _, ok := r.assets[key]; ok {
		return false
	}
	r.assets[key] = asset
	r.order = append(r.order, p)
	r.logger.Debug("asset registered",
		zap.Stringer("asset", p),
		zap.Stringer("kind", asset.Kind),
		zap.String("source", asset.OriginalPath))
	return true
}

func (r *Repository) getOrAdd(p AssetPath, asset Asset, requested string) (AssetPath, error) {
	if existing, ok := r.assets[p.Key()]; ok {
		if existing.Kind != asset.Kind {
			r.logger.Error("asset kind mismatch",
				zap.String("path", requested),
				zap.Stringer("existing", existing.Kind),
				zap.Stringer("requested", asset.Kind))
			return AssetPath{}, errors.NewKindMismatch(p.Key(), existing.Kind.String(), asset.Kind.String())
		}
		if existing.OriginalPath != asset.OriginalPath {
			r.logger.Warn("distinct sources share a canonical path",
				zap.Stringer("asset", p),
				zap.String("archived", existing.OriginalPath),
				zap.String("dropped", asset.OriginalPath))
		}
		return p, nil
	}
	r.tryAdd(p, asset)
	return p, nil
}

// TryAddToolingAsset registers an absolute tooling path. ok is false, with the
// existing canonical path returned, when the path is already registered.
func (r *Repository) TryAddToolingAsset(onDiskPath string, kind Kind) (p AssetPath, ok bool, err error) {
	if err := r.requireState("TryAddToolingAsset", StateOpen); err != nil {
		return AssetPath{}, false, err
	}
	p, err = r.toolingPath(onDiskPath, kind)
	if err != nil {
		return AssetPath{}, false, err
	}
	return p, r.tryAdd(p, Asset{OriginalPath: filepath.Clean(onDiskPath), Kind: kind}), nil
}

// GetOrAddToolingAsset registers an absolute tooling path, or returns the
// existing registration. Re-registering under another kind is an error.
func (r *Repository) GetOrAddToolingAsset(onDiskPath string, kind Kind) (AssetPath, error) {
	if err := r.requireState("GetOrAddToolingAsset", StateOpen); err != nil {
		return AssetPath{}, err
	}
	p, err := r.toolingPath(onDiskPath, kind)
	if err != nil {
		return AssetPath{}, err
	}
	return r.getOrAdd(p, Asset{OriginalPath: filepath.Clean(onDiskPath), Kind: kind}, onDiskPath)
}

// TryAddInputAsset registers a build input. ok is false, with the existing
// canonical path returned, when the path is already registered.
func (r *Repository) TryAddInputAsset(onDiskPath string, kind Kind) (p AssetPath, ok bool, err error) {
	if err := r.requireState("TryAddInputAsset", StateOpen); err != nil {
		return AssetPath{}, false, err
	}
	p, abs, err := r.inputPath(onDiskPath, kind)
	if err != nil {
		return AssetPath{}, false, err
	}
	return p, r.tryAdd(p, Asset{OriginalPath: abs, Kind: kind}), nil
}

// GetOrAddInputAsset registers a build input, or returns the existing
// registration. Two inputs with the same relative form share one asset.
func (r *Repository) GetOrAddInputAsset(onDiskPath string, kind Kind) (AssetPath, error) {
	if err := r.requireState("GetOrAddInputAsset", StateOpen); err != nil {
		return AssetPath{}, err
	}
	p, abs, err := r.inputPath(onDiskPath, kind)
	if err != nil {
		return AssetPath{}, err
	}
	return r.getOrAdd(p, Asset{OriginalPath: abs, Kind: kind}, onDiskPath)
}

// GetOrAddGeneratedAsset registers a synthetic asset at the archive root and
// returns its content builder. The replay project name is reserved for
// GeneratedProject and GeneratedProject must use it.
func (r *Repository) GetOrAddGeneratedAsset(filename string, kind Kind) (AssetPath, *GeneratedAsset, error) {
	if err := r.requireState("GetOrAddGeneratedAsset", StateOpen); err != nil {
		return AssetPath{}, nil, err
	}
	if kind.Category() != CategoryGenerated {
		return AssetPath{}, nil, errors.NewInvalidRequest(fmt.Sprintf("%s is not a generated kind", kind))
	}
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return AssetPath{}, nil, errors.NewInvalidRequest(fmt.Sprintf("invalid generated asset name: %q", filename))
	}
	reserved := filename == r.opts.ReplayProjectName
	if reserved != (kind == GeneratedProject) {
		return AssetPath{}, nil, errors.NewInvalidRequest(
			fmt.Sprintf("%s is reserved for %s", r.opts.ReplayProjectName, GeneratedProject))
	}

	p := AssetPath{Filename: filename}
	if _, err := r.getOrAdd(p, Asset{Kind: kind}, filename); err != nil {
		return AssetPath{}, nil, err
	}
	g, ok := r.generated[p.Key()]
	if !ok {
		g = &GeneratedAsset{}
		r.generated[p.Key()] = g
	}
	return p, g, nil
}

// Freeze fixes the layout. It may only be called once.
func (r *Repository) Freeze() error {
	if err := r.requireState("Freeze", StateOpen); err != nil {
		return err
	}
	r.optimizeLayout()
	r.state = StateFrozen
	r.logger.Debug("repository frozen",
		zap.Int("assets", len(r.order)),
		zap.String("layout", "\n"+r.Dump()))
	return nil
}

// optimizeLayout is where single-child folder chains would be collapsed.
// Canonical paths are currently left as registered.
func (r *Repository) optimizeLayout() {}

// GetAssetRelativePath returns the forward-slash path of p inside the archive.
// It is only valid once the layout is frozen.
func (r *Repository) GetAssetRelativePath(p AssetPath) (string, error) {
	if err := r.requireState("GetAssetRelativePath", StateFrozen); err != nil {
		return "", err
	}
	if _, ok := r.assets[p.Key()]; !ok {
		return "", errors.NewNotFound(p.Key())
	}
	return p.Key(), nil
}
