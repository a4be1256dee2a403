package taskmodel

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
)

const (
	propertyAssembly    = "Assembly"
	parameterAssemblies = "Assemblies"
)

// MSBuild logs list outputs of some tasks as a message rather than a
// TaskParameterItem; the parameter name is recovered from the text.
var (
	outputItemsMessage    = regexp.MustCompile(`^Output Item\(s\):\s*([^\s=]+)`)
	outputPropertyMessage = regexp.MustCompile(`^Output Property:\s*([^\s=]+)`)
)

// BuilderState is the builder lifecycle state.
type BuilderState int

const (
	BuilderUninitialized BuilderState = iota
	BuilderPopulated
	BuilderFailed
)

// Builder walks one Task node and populates a TaskModel. A builder yields at
// most one model.
type Builder struct {
	logger   *zap.Logger
	repo     *assets.Repository
	strategy Strategy

	state BuilderState
	model *TaskModel
	memo  map[string]assets.AssetPath
}

// NewBuilder creates a builder. A nil strategy handles nothing.
func NewBuilder(logger *zap.Logger, repo *assets.Repository, strategy Strategy) *Builder {
	if strategy == nil {
		strategy = GenericStrategy{}
	}
	return &Builder{
		logger:   logging.OrNop(logger).Named("taskmodel"),
		repo:     repo,
		strategy: strategy,
		memo:     make(map[string]assets.AssetPath),
	}
}

// State returns the builder state.
func (b *Builder) State() BuilderState {
	return b.state
}

// Model returns the populated model.
func (b *Builder) Model() (*TaskModel, error) {
	if b.state != BuilderPopulated {
		return nil, errors.NewInvalidRequest("task model has not been created")
	}
	return b.model, nil
}

// Create populates the model from task. Any failure is fatal for this task
// and leaves no model behind.
func (b *Builder) Create(task *binlog.Node) error {
	if b.state != BuilderUninitialized {
		return errors.NewInvalidRequest("builder already used")
	}
	if task == nil || task.Kind != binlog.KindTask {
		return errors.NewInvalidRequest(fmt.Sprintf("expected a Task node, got %s", task))
	}

	if err := b.create(task); err != nil {
		b.state = BuilderFailed
		b.model = nil
		return err
	}
	b.state = BuilderPopulated
	return nil
}

func (b *Builder) create(task *binlog.Node) error {
	project := task.NearestParent(binlog.KindProject)
	if project == nil {
		b.logger.Error("task has no parent project", zap.Stringer("task", task))
		return errors.NewNoProject(task.Name)
	}
	b.logger.Debug("setting parent project", zap.String("project", project.ProjectFile))

	scope, err := b.repo.BeginProject(project.ProjectFile)
	if err != nil {
		return err
	}
	defer scope.Release()

	if task.IsDerived {
		b.logger.Warn("task is a derived task", zap.Stringer("task", task))
	}

	asmPath, err := b.repo.GetOrAddToolingAsset(task.FromAssembly, assets.ToolingAssembly)
	if err != nil {
		return err
	}

	aot := b.repo.BeginAotCompilation(task.Name)
	defer aot.Release()

	b.model = &TaskModel{Name: task.Name, AssemblyPath: asmPath}
	if err := b.populateParameters(task); err != nil {
		return err
	}
	return b.populateOutputItems(task)
}

// populateParameters runs two passes: properties first, then list
// parameters, so an item that repeats a property value resolves to the asset
// the property chose.
func (b *Builder) populateParameters(task *binlog.Node) error {
	folder := task.FindChild(binlog.KindFolder, binlog.FolderParameters)
	if folder == nil {
		b.logger.Error("task has no Parameters folder", zap.Stringer("task", task))
		return errors.NewNoParameters(task.Name)
	}

	for pass := 0; pass < 2; pass++ {
		for _, child := range folder.Children {
			switch child.Kind {
			case binlog.KindProperty:
				if pass != 0 {
					continue
				}
				if err := b.populateProperty(child); err != nil {
					return err
				}
			case binlog.KindParameter:
				if pass != 1 {
					continue
				}
				if err := b.populateParameter(child); err != nil {
					return err
				}
			default:
				return b.unexpected(binlog.FolderParameters, child)
			}
		}
	}
	return nil
}

func (b *Builder) populateProperty(prop *binlog.Node) error {
	b.logger.Debug("property", zap.String("name", prop.Name), zap.String("value", prop.Value))

	handled, err := b.strategy.HandleSpecialTaskProperty(b, prop)
	if err != nil || handled {
		return err
	}

	if prop.Name == propertyAssembly {
		p, err := b.repo.GetOrAddToolingAsset(prop.Value, assets.ToolingAssembly)
		if err != nil {
			return err
		}
		b.AddProperty(TaskProperty{Name: prop.Name, Value: AssetValue(p)})
		return nil
	}
	b.AddProperty(TaskProperty{Name: prop.Name, Value: StringValue(prop.Value)})
	return nil
}

func (b *Builder) populateParameter(param *binlog.Node) error {
	b.logger.Debug("parameter", zap.String("name", param.Name), zap.Int("items", len(param.Children)))

	handled, err := b.strategy.HandleSpecialTaskParameter(b, param)
	if err != nil || handled {
		return err
	}

	var kind *assets.Kind
	if param.Name == parameterAssemblies {
		k := assets.InputAssembly
		kind = &k
	}

	items := make([]TaskItem, 0, len(param.Children))
	for _, child := range param.Children {
		if child.Kind != binlog.KindItem {
			return b.unexpected(param.Name, child)
		}
		item, err := b.PopulateItem(child, kind)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	b.AddParameter(TaskParameter{Name: param.Name, Items: items})
	return nil
}

func (b *Builder) populateOutputItems(task *binlog.Node) error {
	folder := task.FindChild(binlog.KindFolder, binlog.FolderOutputItems)
	if folder == nil {
		b.logger.Debug("task has no OutputItems folder", zap.Stringer("task", task))
		return nil
	}

	for _, child := range folder.Children {
		var out TaskOutputItem
		switch child.Kind {
		case binlog.KindTaskParameterItem:
			out = TaskOutputItem{Name: child.ParameterName}
		case binlog.KindAddItem, binlog.KindItem:
			out = TaskOutputItem{Name: child.Name}
		case binlog.KindProperty:
			out = TaskOutputItem{Name: child.Name, IsProperty: true}
		case binlog.KindMessage:
			text := messageText(child)
			if m := outputItemsMessage.FindStringSubmatch(text); m != nil {
				out = TaskOutputItem{Name: m[1]}
			} else if m := outputPropertyMessage.FindStringSubmatch(text); m != nil {
				out = TaskOutputItem{Name: m[1], IsProperty: true}
			} else {
				return b.unexpected(binlog.FolderOutputItems, child)
			}
		default:
			return b.unexpected(binlog.FolderOutputItems, child)
		}
		if out.Name == "" {
			return b.unexpected(binlog.FolderOutputItems, child)
		}
		b.logger.Debug("output binding", zap.String("name", out.Name), zap.Bool("property", out.IsProperty))
		b.model.OutputItems = append(b.model.OutputItems, out)
	}
	return nil
}

func messageText(n *binlog.Node) string {
	if n.Value != "" {
		return n.Value
	}
	return n.Name
}

func (b *Builder) unexpected(where string, n *binlog.Node) error {
	b.logger.Error("unexpected node", zap.String("in", where), zap.Stringer("node", n))
	return errors.NewUnexpectedNode(where, string(n.Kind), n.Name)
}

// Assets implements Populator.
func (b *Builder) Assets() *assets.Repository {
	return b.repo
}

// AddProperty implements Populator.
func (b *Builder) AddProperty(p TaskProperty) {
	b.model.Properties = append(b.model.Properties, p)
}

// AddParameter implements Populator.
func (b *Builder) AddParameter(p TaskParameter) {
	b.model.Parameters = append(b.model.Parameters, p)
}

// PopulateItem implements Populator. The item spec is the Item node's name.
func (b *Builder) PopulateItem(item *binlog.Node, kind *assets.Kind) (TaskItem, error) {
	var metadata []TaskMetadata
	for _, child := range item.Children {
		if child.Kind != binlog.KindMetadata {
			return TaskItem{}, b.unexpected(item.Name, child)
		}
		handled, err := b.strategy.HandleSpecialTaskMetadata(b, child, &metadata)
		if err != nil {
			return TaskItem{}, err
		}
		if !handled {
			b.PopulateMetadata(child, &metadata)
		}
	}

	spec := item.Name
	if p, ok := b.RememberedAsset(spec); ok {
		b.logger.Debug("item resolved to remembered asset", zap.String("item", spec), zap.Stringer("asset", p))
		return TaskItem{Value: AssetValue(p), Metadata: metadata}, nil
	}
	if kind == nil {
		return TaskItem{Value: StringValue(spec), Metadata: metadata}, nil
	}
	p, err := b.repo.GetOrAddInputAsset(spec, *kind)
	if err != nil {
		return TaskItem{}, err
	}
	return TaskItem{Value: AssetValue(p), Metadata: metadata}, nil
}

// PopulateMetadata implements Populator.
func (b *Builder) PopulateMetadata(md *binlog.Node, dest *[]TaskMetadata) {
	*dest = append(*dest, TaskMetadata{Name: md.Name, Value: StringValue(md.Value)})
}

// RememberAsset implements Populator.
func (b *Builder) RememberAsset(literal string, p assets.AssetPath) {
	b.memo[literal] = p
}

// RememberedAsset implements Populator.
func (b *Builder) RememberedAsset(literal string) (assets.AssetPath, bool) {
	p, ok := b.memo[literal]
	return p, ok
}
