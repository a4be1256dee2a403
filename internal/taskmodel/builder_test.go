package taskmodel

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
	"github.com/hpungsan/stump/internal/errors"
)

const testTaskAssembly = "/sdk/tasks/MonoAOTCompiler.Task.dll"

// newTask builds Build > Project > Target > Task with the given task children.
func newTask(children ...*binlog.Node) *binlog.Node {
	task := &binlog.Node{Kind: binlog.KindTask, Name: "MonoAOTCompiler", FromAssembly: testTaskAssembly}
	for _, c := range children {
		task.Add(c)
	}
	target := (&binlog.Node{Kind: binlog.KindTarget, Name: "_AotCompile"}).Add(task)
	project := (&binlog.Node{Kind: binlog.KindProject, Name: "App.csproj", ProjectFile: "/proj/App.csproj"}).Add(target)
	(&binlog.Node{Kind: binlog.KindBuild}).Add(project)
	return task
}

func folder(name string, children ...*binlog.Node) *binlog.Node {
	f := &binlog.Node{Kind: binlog.KindFolder, Name: name}
	for _, c := range children {
		f.Add(c)
	}
	return f
}

func prop(name, value string) *binlog.Node {
	return &binlog.Node{Kind: binlog.KindProperty, Name: name, Value: value}
}

func param(name string, items ...*binlog.Node) *binlog.Node {
	p := &binlog.Node{Kind: binlog.KindParameter, Name: name}
	for _, i := range items {
		p.Add(i)
	}
	return p
}

func item(spec string, metadata ...*binlog.Node) *binlog.Node {
	i := &binlog.Node{Kind: binlog.KindItem, Name: spec}
	for _, m := range metadata {
		i.Add(m)
	}
	return i
}

func meta(name, value string) *binlog.Node {
	return &binlog.Node{Kind: binlog.KindMetadata, Name: name, Value: value}
}

func build(t *testing.T, task *binlog.Node, strategy Strategy) (*TaskModel, *assets.Repository) {
	t.Helper()
	repo := assets.New(nil, assets.DefaultOptions())
	b := NewBuilder(nil, repo, strategy)
	if err := b.Create(task); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	m, err := b.Model()
	if err != nil {
		t.Fatalf("Model() error = %v", err)
	}
	return m, repo
}

func assetKeys(repo *assets.Repository) []string {
	var keys []string
	for _, e := range repo.Entries() {
		keys = append(keys, e.Path.Key())
	}
	return keys
}

func TestCreate_EndToEnd(t *testing.T) {
	task := newTask(folder(binlog.FolderParameters,
		prop("Assembly", "/usr/bin/mono-aot-cross"),
		param("Assemblies", item("/proj/bin/App.dll")),
	))

	m, repo := build(t, task, nil)

	if m.Name != "MonoAOTCompiler" {
		t.Errorf("Name = %q", m.Name)
	}
	wantKeys := []string{
		"tools/sdk/tasks/MonoAOTCompiler.Task.dll",
		"tools/usr/bin/mono-aot-cross",
		"input/proj/bin/App.dll",
	}
	if diff := cmp.Diff(wantKeys, assetKeys(repo)); diff != "" {
		t.Errorf("assets mismatch (-want +got):\n%s", diff)
	}

	asmProp, ok := m.Property("Assembly")
	if !ok || asmProp.Value.Kind() != ValueAsset || asmProp.Value.Asset().Key() != "tools/usr/bin/mono-aot-cross" {
		t.Errorf("Assembly property = %+v", asmProp)
	}
	a, _ := repo.Lookup(asmProp.Value.Asset())
	if a.Kind != assets.ToolingAssembly {
		t.Errorf("Assembly kind = %v", a.Kind)
	}

	asms, ok := m.Parameter("Assemblies")
	if !ok || len(asms.Items) != 1 {
		t.Fatalf("Assemblies parameter = %+v", asms)
	}
	in, _ := repo.Lookup(asms.Items[0].Value.Asset())
	if in.Kind != assets.InputAssembly || in.OriginalPath != "/proj/bin/App.dll" {
		t.Errorf("Assemblies item asset = %+v", in)
	}
	if len(m.OutputItems) != 0 {
		t.Errorf("OutputItems = %v, want none", m.OutputItems)
	}

	if err := repo.Freeze(); err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	r := &Renderer{Resolver: repo, RootProperty: "StumpReplayRoot"}
	if err := m.GenerateTaskFragment(&b, r, FragmentOptions{TargetName: "Replay_MonoAOTCompiler_1"}); err != nil {
		t.Fatalf("GenerateTaskFragment() error = %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`<ItemGroup>`,
		`<Replay_MonoAOTCompiler_1_Assemblies Include="$(StumpReplayRoot)input/proj/bin/App.dll" />`,
		`Assembly="$(StumpReplayRoot)tools/usr/bin/mono-aot-cross"`,
		`Assemblies="@(Replay_MonoAOTCompiler_1_Assemblies)"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("fragment missing %q:\n%s", want, out)
		}
	}
}

func TestCreate_ParametersWithoutAssets(t *testing.T) {
	task := newTask(folder(binlog.FolderParameters,
		prop("Mode", "Full"),
		param("Profilers", item("log", meta("Format", "text"))),
	))
	m, _ := build(t, task, nil)

	mode, _ := m.Property("Mode")
	if mode.Value.Kind() != ValueString || mode.Value.Str() != "Full" {
		t.Errorf("Mode = %+v", mode)
	}
	profilers, _ := m.Parameter("Profilers")
	if len(profilers.Items) != 1 {
		t.Fatalf("Profilers = %+v", profilers)
	}
	it := profilers.Items[0]
	if it.Value.Kind() != ValueString || it.Value.Str() != "log" {
		t.Errorf("item value = %+v", it.Value)
	}
	if len(it.Metadata) != 1 || it.Metadata[0].Name != "Format" || it.Metadata[0].Value.Str() != "text" {
		t.Errorf("metadata = %+v", it.Metadata)
	}
}

// dedupStrategy registers DedupAssembly as an input and remembers it.
type dedupStrategy struct{ GenericStrategy }

func (dedupStrategy) HandleSpecialTaskProperty(b Populator, p *binlog.Node) (bool, error) {
	if p.Name != "DedupAssembly" {
		return false, nil
	}
	ap, err := b.Assets().GetOrAddInputAsset(p.Value, assets.InputOther)
	if err != nil {
		return false, err
	}
	b.RememberAsset(p.Value, ap)
	b.AddProperty(TaskProperty{Name: p.Name, Value: AssetValue(ap)})
	return true, nil
}

func TestCreate_TwoPassDedup(t *testing.T) {
	orders := map[string][]*binlog.Node{
		"item first": {
			param("Assemblies", item("obj/aot-instances.dll"), item("/proj/bin/App.dll")),
			prop("DedupAssembly", "obj/aot-instances.dll"),
		},
		"property first": {
			prop("DedupAssembly", "obj/aot-instances.dll"),
			param("Assemblies", item("obj/aot-instances.dll"), item("/proj/bin/App.dll")),
		},
	}
	for name, children := range orders {
		t.Run(name, func(t *testing.T) {
			m, repo := build(t, newTask(folder(binlog.FolderParameters, children...)), dedupStrategy{})

			dedup, _ := m.Property("DedupAssembly")
			asms, _ := m.Parameter("Assemblies")
			if !asms.Items[0].Value.Asset().Equal(dedup.Value.Asset()) {
				t.Errorf("item %v and property %v resolved differently",
					asms.Items[0].Value.Asset(), dedup.Value.Asset())
			}
			// The item would be InputAssembly by default; the remembered
			// InputOther asset wins, so no kind mismatch occurs.
			a, _ := repo.Lookup(dedup.Value.Asset())
			if a.Kind != assets.InputOther {
				t.Errorf("dedup kind = %v", a.Kind)
			}
			if a.OriginalPath != "/proj/obj/aot-instances.dll" {
				t.Errorf("dedup source = %q", a.OriginalPath)
			}
			if repo.Len() != 3 {
				t.Errorf("Len() = %d, want 3", repo.Len())
			}
		})
	}
}

func TestCreate_OutputItems(t *testing.T) {
	task := newTask(
		folder(binlog.FolderParameters, prop("Mode", "Full")),
		folder(binlog.FolderOutputItems,
			&binlog.Node{Kind: binlog.KindTaskParameterItem, ParameterName: "CompiledAssemblies", Name: "_Compiled"},
			&binlog.Node{Kind: binlog.KindAddItem, Name: "FileWrites"},
			&binlog.Node{Kind: binlog.KindItem, Name: "_AotFiles"},
			prop("ExitCode", "0"),
			&binlog.Node{Kind: binlog.KindMessage, Value: "Output Item(s): FileWrites=\n    /proj/obj/a.o"},
			&binlog.Node{Kind: binlog.KindMessage, Value: "Output Property: LibraryFormat=so"},
		),
	)
	m, _ := build(t, task, nil)

	want := []TaskOutputItem{
		{Name: "CompiledAssemblies"},
		{Name: "FileWrites"},
		{Name: "_AotFiles"},
		{Name: "ExitCode", IsProperty: true},
		{Name: "FileWrites"},
		{Name: "LibraryFormat", IsProperty: true},
	}
	if diff := cmp.Diff(want, m.OutputItems); diff != "" {
		t.Errorf("OutputItems mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_Failures(t *testing.T) {
	orphan := &binlog.Node{Kind: binlog.KindTask, Name: "MonoAOTCompiler", FromAssembly: testTaskAssembly}
	orphan.Add(folder(binlog.FolderParameters))

	tests := []struct {
		name string
		task *binlog.Node
		code errors.ErrorCode
	}{
		{"no project", orphan, errors.ErrNoProject},
		{"no parameters", newTask(), errors.ErrNoParameters},
		{
			"unexpected node in parameters",
			newTask(folder(binlog.FolderParameters, &binlog.Node{Kind: binlog.KindMessage, Value: "hi"})),
			errors.ErrUnexpectedNode,
		},
		{
			"unexpected node in parameter",
			newTask(folder(binlog.FolderParameters, param("Assemblies", prop("x", "y")))),
			errors.ErrUnexpectedNode,
		},
		{
			"unexpected node in item",
			newTask(folder(binlog.FolderParameters, param("Assemblies", item("/a.dll", item("/b.dll"))))),
			errors.ErrUnexpectedNode,
		},
		{
			"unexpected output message",
			newTask(folder(binlog.FolderParameters),
				folder(binlog.FolderOutputItems, &binlog.Node{Kind: binlog.KindMessage, Value: "Done."})),
			errors.ErrUnexpectedNode,
		},
		{
			"unexpected output folder",
			newTask(folder(binlog.FolderParameters),
				folder(binlog.FolderOutputItems, folder("Nested"))),
			errors.ErrUnexpectedNode,
		},
		{
			"relative task assembly",
			func() *binlog.Node {
				n := newTask(folder(binlog.FolderParameters))
				n.FromAssembly = "MonoAOTCompiler.Task.dll"
				return n
			}(),
			errors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := assets.New(nil, assets.DefaultOptions())
			b := NewBuilder(nil, repo, nil)
			err := b.Create(tt.task)
			if !errors.Is(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if b.State() != BuilderFailed {
				t.Errorf("State() = %v, want BuilderFailed", b.State())
			}
			if _, err := b.Model(); err == nil {
				t.Error("Model() should fail after a failed Create")
			}
			if repo.CurrentProjectDir() != "" {
				t.Errorf("project scope leaked: %q", repo.CurrentProjectDir())
			}
		})
	}
}

func TestCreate_OnlyOnce(t *testing.T) {
	task := newTask(folder(binlog.FolderParameters))
	repo := assets.New(nil, assets.DefaultOptions())
	b := NewBuilder(nil, repo, nil)

	if _, err := b.Model(); err == nil {
		t.Error("Model() before Create should fail")
	}
	if err := b.Create(task); err != nil {
		t.Fatal(err)
	}
	if err := b.Create(task); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("second Create: expected ErrInvalidRequest, got %v", err)
	}
	if b.State() != BuilderPopulated {
		t.Errorf("State() = %v", b.State())
	}
}

func TestCreate_NotATask(t *testing.T) {
	b := NewBuilder(nil, assets.New(nil, assets.DefaultOptions()), nil)
	if err := b.Create(&binlog.Node{Kind: binlog.KindProject}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

// metaStrategy turns every "Path" metadata into an InputOther asset.
type metaStrategy struct{ GenericStrategy }

func (metaStrategy) HandleSpecialTaskMetadata(b Populator, md *binlog.Node, dest *[]TaskMetadata) (bool, error) {
	if md.Name != "Path" {
		return false, nil
	}
	p, err := b.Assets().GetOrAddInputAsset(md.Value, assets.InputOther)
	if err != nil {
		return false, err
	}
	*dest = append(*dest, TaskMetadata{Name: md.Name, Value: AssetValue(p)})
	return true, nil
}

func TestCreate_MetadataStrategy(t *testing.T) {
	task := newTask(folder(binlog.FolderParameters,
		param("Profiles", item("p1", meta("Path", "/data/p1.mibc"), meta("Weight", "2"))),
	))
	m, _ := build(t, task, metaStrategy{})

	profiles, _ := m.Parameter("Profiles")
	md := profiles.Items[0].Metadata
	if len(md) != 2 {
		t.Fatalf("metadata = %+v", md)
	}
	if md[0].Value.Kind() != ValueAsset || md[0].Value.Asset().Key() != "input/data/p1.mibc" {
		t.Errorf("Path metadata = %+v", md[0])
	}
	if md[1].Value.Kind() != ValueString || md[1].Value.Str() != "2" {
		t.Errorf("Weight metadata = %+v", md[1])
	}
}
