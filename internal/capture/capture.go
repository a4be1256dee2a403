// Package capture turns a build trace into a self-contained replay archive.
package capture

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
	"github.com/hpungsan/stump/internal/scrape"
	"github.com/hpungsan/stump/internal/taskmodel"
)

// Input contains parameters for Run.
type Input struct {
	TracePath  string  // required
	OutputPath string  // default: <captures dir>/<trace>-<id>.zip
	IndexDB    *sql.DB // optional; nil skips recording
}

// Output contains the result of Run.
type Output struct {
	ID           string        `json:"id"`
	Flavor       scrape.Flavor `json:"flavor"`
	ArchivePath  string        `json:"archive_path"`
	TaskCount    int           `json:"task_count"`
	AssetCount   int           `json:"asset_count"`
	ArchiveBytes int64         `json:"archive_bytes"`
	Indexed      bool          `json:"indexed"`
}

// TaskSummary describes one reconstructed task.
type TaskSummary struct {
	Name        string `json:"name"`
	Target      string `json:"target"`
	Assembly    string `json:"assembly"`
	Properties  int    `json:"properties"`
	Parameters  int    `json:"parameters"`
	OutputItems int    `json:"output_items"`
}

// AssetSummary describes one archived asset.
type AssetSummary struct {
	Path   string      `json:"path"`
	Kind   assets.Kind `json:"kind"`
	Source string      `json:"source,omitempty"`
}

// Inspection is everything a capture would archive, without writing it.
type Inspection struct {
	ID          string         `json:"id"`
	TracePath   string         `json:"trace_path"`
	Flavor      scrape.Flavor  `json:"flavor"`
	Tasks       []TaskSummary  `json:"tasks"`
	Assets      []AssetSummary `json:"assets"`
	OutputDirs  []string       `json:"output_dirs,omitempty"`
	Layout      string         `json:"layout"`
	ProjectName string         `json:"project_name"`
	Project     string         `json:"project"`
}

// session is a trace loaded into a frozen repository.
type session struct {
	id      string
	flavor  scrape.Flavor
	repo    *assets.Repository
	models  []*taskmodel.TaskModel
	project *ReplayProject
	gen     assets.AssetPath
}

// Run captures every supported task of the trace into a replay archive.
func Run(ctx context.Context, logger *zap.Logger, cfg *config.Config, input Input) (*Output, error) {
	logger = logging.OrNop(logger).Named("capture")
	cfg = withDefaults(cfg)

	if input.TracePath == "" {
		return nil, errors.NewInvalidRequest("trace path is required")
	}

	id := NewCaptureID()
	outputPath := input.OutputPath
	if outputPath == "" {
		dir, err := DefaultCapturesDir(cfg)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, errors.NewIO(dir, err)
		}
		outputPath = DefaultOutputPath(dir, input.TracePath, id)
	}
	if err := ValidateOutputPath(outputPath, cfg); err != nil {
		return nil, err
	}
	absOutput, err := filepath.Abs(outputPath)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	s, err := prepare(ctx, logger, cfg, id, input.TracePath)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.Archive(ctx, absOutput)
	if err != nil {
		logger.Error("archive failed", zap.String("output", absOutput), zap.Error(err))
		return nil, err
	}
	logger.Info("capture written",
		zap.String("id", id),
		zap.String("archive", res.Path),
		zap.Int("entries", res.Entries),
		zap.Int64("bytes", res.Bytes))

	out := &Output{
		ID:           id,
		Flavor:       s.flavor,
		ArchivePath:  res.Path,
		TaskCount:    len(s.models),
		AssetCount:   s.repo.Len(),
		ArchiveBytes: res.Bytes,
	}

	if input.IndexDB != nil && !cfg.DisableIndex {
		rec := &db.Capture{
			ID:           id,
			TracePath:    absPath(input.TracePath),
			ArchivePath:  res.Path,
			Flavor:       s.flavor.String(),
			TaskCount:    out.TaskCount,
			AssetCount:   out.AssetCount,
			ArchiveBytes: res.Bytes,
			CreatedAt:    time.Now().Unix(),
		}
		if err := db.Insert(input.IndexDB, rec); err != nil {
			// The archive is already in place; report the index failure without undoing it.
			logger.Warn("failed to record capture", zap.String("id", id), zap.Error(err))
		} else {
			out.Indexed = true
		}
	}
	return out, nil
}

// Inspect reconstructs the trace and renders the replay project without
// writing an archive. An empty id gets a fresh capture ID.
func Inspect(ctx context.Context, logger *zap.Logger, cfg *config.Config, tracePath, id string) (*Inspection, error) {
	logger = logging.OrNop(logger).Named("capture")
	cfg = withDefaults(cfg)

	if tracePath == "" {
		return nil, errors.NewInvalidRequest("trace path is required")
	}

	if id == "" {
		id = NewCaptureID()
	}
	s, err := prepare(ctx, logger, cfg, id, tracePath)
	if err != nil {
		return nil, err
	}
	project, err := s.repo.RenderGenerated(s.gen)
	if err != nil {
		return nil, err
	}

	insp := &Inspection{
		ID:          s.id,
		TracePath:   absPath(tracePath),
		Flavor:      s.flavor,
		OutputDirs:  s.project.OutputDirs,
		Layout:      s.repo.Dump(),
		ProjectName: s.gen.Key(),
		Project:     project,
	}
	targets := s.project.TargetNames()
	for i, m := range s.models {
		asm, err := s.repo.GetAssetRelativePath(m.AssemblyPath)
		if err != nil {
			return nil, err
		}
		insp.Tasks = append(insp.Tasks, TaskSummary{
			Name:        m.Name,
			Target:      targets[i],
			Assembly:    asm,
			Properties:  len(m.Properties),
			Parameters:  len(m.Parameters),
			OutputItems: len(m.OutputItems),
		})
	}
	for _, e := range s.repo.Entries() {
		rel, err := s.repo.GetAssetRelativePath(e.Path)
		if err != nil {
			return nil, err
		}
		insp.Assets = append(insp.Assets, AssetSummary{Path: rel, Kind: e.Asset.Kind, Source: e.Asset.OriginalPath})
	}
	return insp, nil
}

// prepare loads the trace, reconstructs its tasks, queues the replay project
// and freezes the repository.
func prepare(ctx context.Context, logger *zap.Logger, cfg *config.Config, id, tracePath string) (*session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("capture")
	}

	root, err := binlog.Load(tracePath)
	if err != nil {
		return nil, err
	}

	flavor := scrape.DetectFlavor(root)
	logger.Info("trace loaded", zap.String("trace", tracePath), zap.Stringer("flavor", flavor))

	repo := assets.New(logger, assets.Options{
		ReplayProjectName:      cfg.ReplayProjectName,
		ManagedAssemblyPattern: cfg.ManagedAssemblyPattern,
	})
	scraper, err := scrape.NewScraper(flavor, logger, repo, cfg.ReplayRootProperty)
	if err != nil {
		logger.Error("no scraper for trace", zap.Stringer("flavor", flavor))
		return nil, err
	}
	models, err := scraper.CollectTasks(root)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("capture")
	}

	genPath, gen, err := repo.GetOrAddGeneratedAsset(cfg.ReplayProjectName, assets.GeneratedProject)
	if err != nil {
		return nil, err
	}
	project := &ReplayProject{
		Renderer:   &taskmodel.Renderer{Resolver: repo, RootProperty: cfg.ReplayRootProperty},
		CaptureID:  id,
		Models:     models,
		OutputDirs: scraper.OutputDirs(),
	}
	project.AppendTo(gen)

	if err := repo.Freeze(); err != nil {
		return nil, err
	}
	logger.Debug("capture prepared",
		zap.String("id", id),
		zap.Int("tasks", len(models)),
		zap.Int("assets", repo.Len()))

	return &session{
		id:      id,
		flavor:  flavor,
		repo:    repo,
		models:  models,
		project: project,
		gen:     genPath,
	}, nil
}

// withDefaults fills the settings capture cannot run without.
func withDefaults(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return config.Merge(config.DefaultConfig(), cfg)
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
