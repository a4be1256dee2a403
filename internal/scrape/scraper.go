package scrape

import (
	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
	"github.com/hpungsan/stump/internal/taskmodel"
)

// TaskScraper reconstructs every supported task invocation of one flavor.
type TaskScraper interface {
	Flavor() Flavor
	// CollectTasks builds a model per task under root, registering assets as
	// it goes. The first failure aborts the whole collection.
	CollectTasks(root *binlog.Node) ([]*taskmodel.TaskModel, error)
	// OutputDirs lists directories, relative to the output root, the replay
	// must create before running.
	OutputDirs() []string
}

// NewScraper returns the scraper for flavor.
func NewScraper(flavor Flavor, logger *zap.Logger, repo *assets.Repository, rootProperty string) (TaskScraper, error) {
	logger = logging.OrNop(logger).Named("scrape")
	switch flavor {
	case FlavorAotCompilerTask:
		return NewAotCompilerScraper(logger, repo, rootProperty), nil
	case FlavorAndroid, FlavorAppleLocal, FlavorAppleRemote:
		return &unsupportedScraper{flavor: flavor, logger: logger}, nil
	default:
		return nil, errors.NewUnsupportedFlavor(flavor.String())
	}
}

// AotCompilerScraper handles traces that run the MonoAOTCompiler task.
type AotCompilerScraper struct {
	logger   *zap.Logger
	repo     *assets.Repository
	strategy *AotCompilerStrategy
}

// NewAotCompilerScraper creates a scraper registering assets in repo.
func NewAotCompilerScraper(logger *zap.Logger, repo *assets.Repository, rootProperty string) *AotCompilerScraper {
	logger = logging.OrNop(logger)
	return &AotCompilerScraper{
		logger:   logger,
		repo:     repo,
		strategy: NewAotCompilerStrategy(logger, rootProperty),
	}
}

// Flavor implements TaskScraper.
func (s *AotCompilerScraper) Flavor() Flavor {
	return FlavorAotCompilerTask
}

// OutputDirs implements TaskScraper.
func (s *AotCompilerScraper) OutputDirs() []string {
	return s.strategy.OutputDirs()
}

// CollectTasks implements TaskScraper.
func (s *AotCompilerScraper) CollectTasks(root *binlog.Node) ([]*taskmodel.TaskModel, error) {
	tasks := root.FindDescendants(binlog.IsTask(TaskMonoAOTCompiler))
	s.logger.Info("collecting AOT compiler tasks", zap.Int("tasks", len(tasks)))

	models := make([]*taskmodel.TaskModel, 0, len(tasks))
	for i, task := range tasks {
		b := taskmodel.NewBuilder(s.logger, s.repo, s.strategy)
		if err := b.Create(task); err != nil {
			s.logger.Error("task reconstruction failed", zap.Int("index", i), zap.Error(err))
			return nil, err
		}
		m, err := b.Model()
		if err != nil {
			return nil, err
		}
		s.logExecMessages(task)
		models = append(models, m)
	}
	return models, nil
}

// logExecMessages reports the compiler command lines the task ran.
func (s *AotCompilerScraper) logExecMessages(task *binlog.Node) {
	messages := task.FindDescendants(func(n *binlog.Node) bool { return n.Kind == binlog.KindMessage })
	for _, m := range messages {
		text := m.Value
		if text == "" {
			text = m.Name
		}
		exec, ok := ParseExecMessage(text)
		if !ok {
			continue
		}
		s.logger.Debug("compiler invocation",
			zap.String("prefix", exec.Prefix),
			zap.String("working_dir", exec.WorkingDir),
			zap.Int("env", len(exec.Env)),
			zap.String("command_line", exec.CommandLine))
	}
}

// unsupportedScraper recognizes a flavor it cannot reconstruct yet.
type unsupportedScraper struct {
	flavor Flavor
	logger *zap.Logger
}

func (u *unsupportedScraper) Flavor() Flavor { return u.flavor }

func (u *unsupportedScraper) OutputDirs() []string { return nil }

func (u *unsupportedScraper) CollectTasks(*binlog.Node) ([]*taskmodel.TaskModel, error) {
	u.logger.Warn("build flavor is not supported yet", zap.Stringer("flavor", u.flavor))
	return nil, errors.NewUnsupportedFlavor(u.flavor.String())
}
