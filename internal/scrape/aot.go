package scrape

import (
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/aotargs"
	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
	"github.com/hpungsan/stump/internal/errors"
	"github.com/hpungsan/stump/internal/logging"
	"github.com/hpungsan/stump/internal/taskmodel"
)

// MonoAOTCompiler task properties with special handling.
const (
	propCompilerBinaryPath     = "CompilerBinaryPath"
	propDedupAssembly          = "DedupAssembly"
	propLLVMPath               = "LLVMPath"
	propToolPrefix             = "ToolPrefix"
	propOutputDir              = "OutputDir"
	propIntermediateOutputPath = "IntermediateOutputPath"
	propCacheFilePath          = "CacheFilePath"
	propAotModulesTablePath    = "AotModulesTablePath"

	paramAdditionalAssemblySearchPaths = "AdditionalAssemblySearchPaths"
	paramMibcProfilePath               = "MibcProfilePath"
	paramAotProfilePath                = "AotProfilePath"

	metaAotArguments = "AotArguments"
)

type outputShape int

const (
	outputFile outputShape = iota
	outputDir
)

// Properties whose values are written by the compiler and must be moved
// under the replay output root.
var outputProperties = map[string]outputShape{
	propOutputDir:              outputDir,
	propIntermediateOutputPath: outputDir,
	propCacheFilePath:          outputFile,
	propAotModulesTablePath:    outputFile,
}

// Mono --aot options that name compiler outputs.
var outputOptions = map[string]outputShape{
	"outfile":      outputFile,
	"llvm-outfile": outputFile,
	"data-outfile": outputFile,
	"asm-outfile":  outputFile,
	"temp-path":    outputDir,
}

// Mono --aot options that name profile inputs.
var profileOptions = map[string]bool{
	"profile":      true,
	"mibc-profile": true,
}

const optionToolPrefix = "tool-prefix"

// AotCompilerStrategy rewrites the paths of a MonoAOTCompiler invocation so
// it can run against the captured assets.
type AotCompilerStrategy struct {
	logger       *zap.Logger
	rootProperty string

	outputDirs []string
	seenDirs   map[string]bool
}

// NewAotCompilerStrategy creates a strategy whose relocated outputs are
// rooted at the given replay root property.
func NewAotCompilerStrategy(logger *zap.Logger, rootProperty string) *AotCompilerStrategy {
	return &AotCompilerStrategy{
		logger:       logging.OrNop(logger).Named("aot"),
		rootProperty: rootProperty,
		seenDirs:     make(map[string]bool),
	}
}

// OutputDirs lists the relocated output directories, relative to the output
// root, in first-seen order. The replay project creates them up front.
func (s *AotCompilerStrategy) OutputDirs() []string {
	return append([]string(nil), s.outputDirs...)
}

func (s *AotCompilerStrategy) addOutputDir(dir string) {
	if dir == "" || s.seenDirs[dir] {
		return
	}
	s.seenDirs[dir] = true
	s.outputDirs = append(s.outputDirs, dir)
}

// absolute resolves p against the current project directory.
func absolute(b taskmodel.Populator, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(b.Assets().CurrentProjectDir(), p)
}

// relocate maps an output path to its replay location and records the
// directory that must exist.
func (s *AotCompilerStrategy) relocate(b taskmodel.Populator, p string, shape outputShape) string {
	rel := assets.RootedPathToRelative(absolute(b, p))
	dir := rel
	if shape == outputFile {
		dir = path.Dir(rel)
		if dir == "." {
			dir = ""
		}
	}
	s.addOutputDir(dir)
	expr := taskmodel.OutputRef(s.rootProperty, taskmodel.EscapeMSBuild(rel, false))
	s.logger.Debug("output relocated", zap.String("path", p), zap.String("replay", expr))
	return expr
}

// toolPrefix registers the directory of a tool prefix as a bin tree and
// returns a value rebuilding the prefix inside it.
func (s *AotCompilerStrategy) toolPrefix(b taskmodel.Populator, prefix string) (taskmodel.Value, error) {
	abs := absolute(b, prefix)
	dir, base := filepath.Dir(abs), filepath.Base(abs)
	if strings.HasSuffix(prefix, "/") || strings.HasSuffix(prefix, string(filepath.Separator)) {
		dir, base = abs, ""
	}
	dirAsset, err := b.Assets().GetOrAddToolingAsset(dir, assets.ToolingUnixyBinTree)
	if err != nil {
		return taskmodel.Value{}, err
	}
	s.logger.Debug("tool prefix", zap.String("prefix", prefix), zap.Stringer("dir", dirAsset))
	return taskmodel.ComputedValue(func(r *taskmodel.Renderer) (string, error) {
		ref, err := r.AssetRef(dirAsset)
		if err != nil {
			return "", err
		}
		return ref + "/" + taskmodel.EscapeMSBuild(base, false), nil
	}), nil
}

// HandleSpecialTaskProperty implements taskmodel.Strategy.
func (s *AotCompilerStrategy) HandleSpecialTaskProperty(b taskmodel.Populator, prop *binlog.Node) (bool, error) {
	v := prop.Value
	if v == "" {
		return false, nil
	}

	var value taskmodel.Value
	switch prop.Name {
	case propCompilerBinaryPath:
		p, err := b.Assets().GetOrAddToolingAsset(absolute(b, v), assets.ToolingBinary)
		if err != nil {
			return false, err
		}
		value = taskmodel.AssetValue(p)
	case propDedupAssembly:
		p, err := b.Assets().GetOrAddInputAsset(v, assets.InputAssembly)
		if err != nil {
			return false, err
		}
		b.RememberAsset(v, p)
		value = taskmodel.AssetValue(p)
	case propLLVMPath:
		p, err := b.Assets().GetOrAddToolingAsset(absolute(b, v), assets.ToolingUnixyBinTree)
		if err != nil {
			return false, err
		}
		value = taskmodel.AssetValue(p)
	case propToolPrefix:
		var err error
		value, err = s.toolPrefix(b, v)
		if err != nil {
			return false, err
		}
	default:
		shape, ok := outputProperties[prop.Name]
		if !ok {
			return false, nil
		}
		value = taskmodel.ExpressionValue(s.relocate(b, v, shape))
	}

	s.logger.Debug("special property", zap.String("name", prop.Name), zap.String("value", value.Describe()))
	b.AddProperty(taskmodel.TaskProperty{Name: prop.Name, Value: value})
	return true, nil
}

// HandleSpecialTaskParameter implements taskmodel.Strategy.
func (s *AotCompilerStrategy) HandleSpecialTaskParameter(b taskmodel.Populator, param *binlog.Node) (bool, error) {
	var kind assets.Kind
	switch param.Name {
	case paramAdditionalAssemblySearchPaths:
		kind = assets.InputManagedAssemblyDirectory
	case paramMibcProfilePath, paramAotProfilePath:
		kind = assets.InputOther
	default:
		return false, nil
	}

	items := make([]taskmodel.TaskItem, 0, len(param.Children))
	for _, child := range param.Children {
		if child.Kind != binlog.KindItem {
			s.logger.Error("unexpected node", zap.String("in", param.Name), zap.Stringer("node", child))
			return false, errors.NewUnexpectedNode(param.Name, string(child.Kind), child.Name)
		}
		item, err := b.PopulateItem(child, &kind)
		if err != nil {
			return false, err
		}
		items = append(items, item)
	}
	s.logger.Debug("special parameter", zap.String("name", param.Name), zap.Stringer("kind", kind), zap.Int("items", len(items)))
	b.AddParameter(taskmodel.TaskParameter{Name: param.Name, Items: items})
	return true, nil
}

// HandleSpecialTaskMetadata implements taskmodel.Strategy. AotArguments is
// split into options, path options are rewritten, and the list is rejoined
// at render time.
func (s *AotCompilerStrategy) HandleSpecialTaskMetadata(b taskmodel.Populator, md *binlog.Node, dest *[]taskmodel.TaskMetadata) (bool, error) {
	if md.Name != metaAotArguments {
		return false, nil
	}

	var parts []taskmodel.Value
	for _, tok := range aotargs.Tokenize(md.Value) {
		name, raw, hasValue := aotargs.SplitOption(tok)
		quoted := aotargs.IsQuoted(raw)
		v := aotargs.Unquote(raw)
		if !hasValue || v == "" {
			parts = append(parts, taskmodel.StringValue(tok))
			continue
		}

		switch {
		case name == optionToolPrefix:
			tp, err := s.toolPrefix(b, v)
			if err != nil {
				return false, err
			}
			parts = append(parts, option(name, tp, quoted))
		case profileOptions[name]:
			p, err := b.Assets().GetOrAddInputAsset(v, assets.InputOther)
			if err != nil {
				return false, err
			}
			parts = append(parts, option(name, taskmodel.AssetValue(p), quoted))
		default:
			shape, ok := outputOptions[name]
			if !ok {
				parts = append(parts, taskmodel.StringValue(tok))
				continue
			}
			parts = append(parts, option(name, taskmodel.ExpressionValue(s.relocate(b, v, shape)), quoted))
		}
	}

	s.logger.Debug("aot arguments rewritten", zap.Int("options", len(parts)))
	*dest = append(*dest, taskmodel.TaskMetadata{
		Name:  md.Name,
		Value: joinValues(parts),
	})
	return true, nil
}

// option renders name=v. A value that was quoted in the trace is quoted again
// so commas inside it stay within the option.
func option(name string, v taskmodel.Value, quoted bool) taskmodel.Value {
	return taskmodel.ComputedValue(func(r *taskmodel.Renderer) (string, error) {
		s, err := r.Text(v)
		if err != nil {
			return "", err
		}
		if quoted {
			s = aotargs.Quote(s)
		}
		return name + "=" + s, nil
	})
}

func joinValues(parts []taskmodel.Value) taskmodel.Value {
	return taskmodel.ComputedValue(func(r *taskmodel.Renderer) (string, error) {
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			s, err := r.Text(p)
			if err != nil {
				return "", err
			}
			out = append(out, s)
		}
		return aotargs.Join(out), nil
	})
}
