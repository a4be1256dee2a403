package assets

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hpungsan/stump/internal/errors"
)

func newTestRepo() *Repository {
	return New(nil, DefaultOptions())
}

func TestGetOrAddToolingAsset_Canonical(t *testing.T) {
	r := newTestRepo()

	p, err := r.GetOrAddToolingAsset("/usr/bin/mono-aot-cross", ToolingBinary)
	if err != nil {
		t.Fatalf("GetOrAddToolingAsset() error = %v", err)
	}
	want := AssetPath{Subfolders: []string{"tools", "usr", "bin"}, Filename: "mono-aot-cross"}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("asset path mismatch (-want +got):\n%s", diff)
	}
	if p.Key() != "tools/usr/bin/mono-aot-cross" {
		t.Errorf("Key() = %q", p.Key())
	}
}

func TestGetOrAddToolingAsset_RequiresAbsolute(t *testing.T) {
	r := newTestRepo()
	_, err := r.GetOrAddToolingAsset("bin/mono-aot-cross", ToolingBinary)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
	_, err = r.GetOrAddToolingAsset("/", ToolingBinary)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("root path: expected ErrInvalidRequest, got %v", err)
	}
}

func TestGetOrAdd_WrongCategory(t *testing.T) {
	r := newTestRepo()
	if _, err := r.GetOrAddToolingAsset("/a/b.dll", InputAssembly); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("tooling with input kind: got %v", err)
	}
	if _, err := r.GetOrAddInputAsset("/a/b.dll", ToolingAssembly); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("input with tooling kind: got %v", err)
	}
}

func TestGetOrAddInputAsset_Idempotent(t *testing.T) {
	r := newTestRepo()

	first, err := r.GetOrAddInputAsset("/proj/bin/App.dll", InputAssembly)
	if err != nil {
		t.Fatalf("first GetOrAddInputAsset() error = %v", err)
	}
	second, err := r.GetOrAddInputAsset("/proj/bin/App.dll", InputAssembly)
	if err != nil {
		t.Fatalf("second GetOrAddInputAsset() error = %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("paths differ: %v vs %v", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if first.Key() != "input/proj/bin/App.dll" {
		t.Errorf("Key() = %q", first.Key())
	}
}

func TestGetOrAdd_KindMismatch(t *testing.T) {
	r := newTestRepo()

	if _, err := r.GetOrAddInputAsset("/proj/a.dll", InputAssembly); err != nil {
		t.Fatal(err)
	}
	_, err := r.GetOrAddInputAsset("/proj/a.dll", InputOther)
	if !errors.Is(err, errors.ErrKindMismatch) {
		t.Errorf("input: expected ErrKindMismatch, got %v", err)
	}

	if _, err := r.GetOrAddToolingAsset("/sdk/tool", ToolingBinary); err != nil {
		t.Fatal(err)
	}
	_, err = r.GetOrAddToolingAsset("/sdk/tool", ToolingUnixyBinTree)
	if !errors.Is(err, errors.ErrKindMismatch) {
		t.Errorf("tooling: expected ErrKindMismatch, got %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestTryAdd(t *testing.T) {
	r := newTestRepo()

	p, ok, err := r.TryAddToolingAsset("/sdk/bin/clang", ToolingBinary)
	if err != nil || !ok {
		t.Fatalf("first TryAddToolingAsset() = %v, %v", ok, err)
	}
	again, ok, err := r.TryAddToolingAsset("/sdk/bin/clang", ToolingBinary)
	if err != nil {
		t.Fatalf("second TryAddToolingAsset() error = %v", err)
	}
	if ok {
		t.Error("second TryAddToolingAsset() should report already present")
	}
	if !again.Equal(p) {
		t.Errorf("existing path = %v, want %v", again, p)
	}

	_, ok, err = r.TryAddInputAsset("/proj/App.dll", InputAssembly)
	if err != nil || !ok {
		t.Fatalf("TryAddInputAsset() = %v, %v", ok, err)
	}
	_, ok, _ = r.TryAddInputAsset("/proj/App.dll", InputAssembly)
	if ok {
		t.Error("duplicate TryAddInputAsset() should report already present")
	}
}

func TestCanonicalization_DistinctAndShared(t *testing.T) {
	r := newTestRepo()

	a, _ := r.GetOrAddInputAsset("/a/x/lib.dll", InputAssembly)
	b, _ := r.GetOrAddInputAsset("/b/x/lib.dll", InputAssembly)
	if a.Equal(b) {
		t.Errorf("distinct absolute paths collided: %v", a)
	}

	scope, err := r.BeginProject("/one/App.csproj")
	if err != nil {
		t.Fatal(err)
	}
	rel1, _ := r.GetOrAddInputAsset("obj/lib.dll", InputAssembly)
	scope.Release()

	scope, err = r.BeginProject("/two/Other.csproj")
	if err != nil {
		t.Fatal(err)
	}
	rel2, _ := r.GetOrAddInputAsset("obj/lib.dll", InputAssembly)
	scope.Release()

	if !rel1.Equal(rel2) {
		t.Errorf("same relative form should share an asset: %v vs %v", rel1, rel2)
	}
	if rel1.Key() != "input/obj/lib.dll" {
		t.Errorf("relative key = %q", rel1.Key())
	}
	asset, ok := r.Lookup(rel1)
	if !ok {
		t.Fatal("Lookup() missed relative asset")
	}
	if asset.OriginalPath != "/one/obj/lib.dll" {
		t.Errorf("OriginalPath = %q, want first registration", asset.OriginalPath)
	}
}

func TestInputAsset_RelativeEscapingProject(t *testing.T) {
	r := newTestRepo()
	scope, err := r.BeginProject("/src/app/App.csproj")
	if err != nil {
		t.Fatal(err)
	}
	defer scope.Release()

	p, err := r.GetOrAddInputAsset("../shared/Lib.dll", InputAssembly)
	if err != nil {
		t.Fatalf("GetOrAddInputAsset() error = %v", err)
	}
	if p.Key() != "input/src/shared/Lib.dll" {
		t.Errorf("Key() = %q, want input/src/shared/Lib.dll", p.Key())
	}
	for _, s := range p.Subfolders {
		if s == ".." {
			t.Fatalf("canonical path contains ..: %v", p)
		}
	}
}

func TestInputAsset_RelativeWithoutProject(t *testing.T) {
	r := newTestRepo()
	_, err := r.GetOrAddInputAsset("obj/lib.dll", InputAssembly)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestBeginProject(t *testing.T) {
	r := newTestRepo()

	if _, err := r.BeginProject("App.csproj"); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("relative project: expected ErrInvalidRequest, got %v", err)
	}

	outer, err := r.BeginProject("/outer/Outer.csproj")
	if err != nil {
		t.Fatal(err)
	}
	inner, err := r.BeginProject("/outer/inner/Inner.csproj")
	if err != nil {
		t.Fatal(err)
	}
	if r.CurrentProjectDir() != "/outer/inner" {
		t.Errorf("inner dir = %q", r.CurrentProjectDir())
	}
	inner.Release()
	inner.Release()
	if r.CurrentProjectDir() != "/outer" {
		t.Errorf("after inner release dir = %q", r.CurrentProjectDir())
	}
	_ = outer.Close()
	if r.CurrentProjectDir() != "" {
		t.Errorf("after outer release dir = %q", r.CurrentProjectDir())
	}
}

func TestBeginProject_RestoredOnErrorPath(t *testing.T) {
	r := newTestRepo()

	failing := func() error {
		scope, err := r.BeginProject("/p/P.csproj")
		if err != nil {
			return err
		}
		defer scope.Release()
		_, err = r.GetOrAddInputAsset("a.dll", InputOther)
		if err != nil {
			return err
		}
		_, err = r.GetOrAddInputAsset("a.dll", InputAssembly)
		return err
	}
	if err := failing(); !errors.Is(err, errors.ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}
	if r.CurrentProjectDir() != "" {
		t.Errorf("scope not restored: %q", r.CurrentProjectDir())
	}
}

func TestNoopScopes(t *testing.T) {
	r := newTestRepo()
	r.BeginBuild("linux-arm64", "net9.0").Release()
	r.BeginAotCompilation("MonoAOTCompiler").Release()
	var nilScope *Scope
	nilScope.Release()
}

func TestLifecycle(t *testing.T) {
	r := newTestRepo()
	p, err := r.GetOrAddInputAsset("/proj/App.dll", InputAssembly)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.GetAssetRelativePath(p); !errors.Is(err, errors.ErrRepositoryNotFrozen) {
		t.Errorf("before freeze: expected ErrRepositoryNotFrozen, got %v", err)
	}

	if err := r.Freeze(); err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}
	if r.State() != StateFrozen {
		t.Errorf("State() = %v", r.State())
	}
	if err := r.Freeze(); !errors.Is(err, errors.ErrRepositoryFrozen) {
		t.Errorf("second Freeze(): expected ErrRepositoryFrozen, got %v", err)
	}

	rel, err := r.GetAssetRelativePath(p)
	if err != nil {
		t.Fatalf("GetAssetRelativePath() error = %v", err)
	}
	if rel != "input/proj/App.dll" {
		t.Errorf("relative path = %q", rel)
	}

	if _, err := r.GetAssetRelativePath(AssetPath{Filename: "nope"}); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("unknown path: expected ErrNotFound, got %v", err)
	}

	mutations := map[string]func() error{
		"GetOrAddInputAsset": func() error {
			_, err := r.GetOrAddInputAsset("/x.dll", InputAssembly)
			return err
		},
		"TryAddInputAsset": func() error {
			_, _, err := r.TryAddInputAsset("/x.dll", InputAssembly)
			return err
		},
		"GetOrAddToolingAsset": func() error {
			_, err := r.GetOrAddToolingAsset("/x", ToolingBinary)
			return err
		},
		"TryAddToolingAsset": func() error {
			_, _, err := r.TryAddToolingAsset("/x", ToolingBinary)
			return err
		},
		"GetOrAddGeneratedAsset": func() error {
			_, _, err := r.GetOrAddGeneratedAsset("notes.txt", GeneratedOther)
			return err
		},
		"BeginProject": func() error {
			_, err := r.BeginProject("/p/P.csproj")
			return err
		},
	}
	for name, fn := range mutations {
		if err := fn(); !errors.Is(err, errors.ErrRepositoryFrozen) {
			t.Errorf("%s after freeze: expected ErrRepositoryFrozen, got %v", name, err)
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestGetOrAddGeneratedAsset(t *testing.T) {
	r := newTestRepo()

	p, g, err := r.GetOrAddGeneratedAsset("replay.proj", GeneratedProject)
	if err != nil {
		t.Fatalf("GetOrAddGeneratedAsset() error = %v", err)
	}
	if p.Key() != "replay.proj" || len(p.Subfolders) != 0 {
		t.Errorf("generated path = %v, want archive root", p)
	}
	g.AppendText("<Project>")

	p2, g2, err := r.GetOrAddGeneratedAsset("replay.proj", GeneratedProject)
	if err != nil {
		t.Fatal(err)
	}
	if !p2.Equal(p) || g2 != g {
		t.Error("second call should return the same asset and builder")
	}

	tests := []struct {
		name     string
		filename string
		kind     Kind
	}{
		{"project kind with other name", "other.proj", GeneratedProject},
		{"reserved name with other kind", "replay.proj", GeneratedOther},
		{"non generated kind", "x.txt", InputOther},
		{"nested name", "a/b.txt", GeneratedOther},
		{"empty name", "", GeneratedOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.GetOrAddGeneratedAsset(tt.filename, tt.kind)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}

	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}
	content, err := r.RenderGenerated(p)
	if err != nil {
		t.Fatalf("RenderGenerated() error = %v", err)
	}
	if content != "<Project>" {
		t.Errorf("content = %q", content)
	}
}

func TestGeneratedAsset_FragmentsRenderLazily(t *testing.T) {
	r := newTestRepo()
	_, g, err := r.GetOrAddGeneratedAsset("replay.proj", GeneratedProject)
	if err != nil {
		t.Fatal(err)
	}
	lib, err := r.GetOrAddInputAsset("/proj/Lib.dll", InputAssembly)
	if err != nil {
		t.Fatal(err)
	}

	g.AppendText("ref=")
	g.Append(func(b *strings.Builder) error {
		rel, err := r.GetAssetRelativePath(lib)
		if err != nil {
			return err
		}
		b.WriteString(rel)
		return nil
	})
	if g.Len() != 2 {
		t.Errorf("Len() = %d", g.Len())
	}

	if _, err := g.Render(); !errors.Is(err, errors.ErrRepositoryNotFrozen) {
		t.Errorf("render before freeze: expected ErrRepositoryNotFrozen, got %v", err)
	}
	if err := r.Freeze(); err != nil {
		t.Fatal(err)
	}
	got, err := g.Render()
	if err != nil {
		t.Fatal(err)
	}
	if got != "ref=input/proj/Lib.dll" {
		t.Errorf("Render() = %q", got)
	}
}

func TestEntries_RegistrationOrder(t *testing.T) {
	r := newTestRepo()
	_, _ = r.GetOrAddToolingAsset("/z/tool", ToolingBinary)
	_, _ = r.GetOrAddInputAsset("/a/in.dll", InputAssembly)
	_, _, _ = r.GetOrAddGeneratedAsset("replay.proj", GeneratedProject)

	var keys []string
	for _, e := range r.Entries() {
		keys = append(keys, e.Path.Key())
	}
	want := []string{"tools/z/tool", "input/a/in.dll", "replay.proj"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("Entries() order mismatch (-want +got):\n%s", diff)
	}
}

func TestDump(t *testing.T) {
	r := newTestRepo()
	_, _ = r.GetOrAddToolingAsset("/usr/bin/mono-aot-cross", ToolingBinary)
	_, _ = r.GetOrAddInputAsset("/proj/bin/App.dll", InputAssembly)
	_, _ = r.GetOrAddInputAsset("/proj/bin/Lib.dll", InputAssembly)
	_, _, _ = r.GetOrAddGeneratedAsset("replay.proj", GeneratedProject)

	want := strings.Join([]string{
		"├── tools/",
		"│  └── usr/",
		"│     └── bin/",
		"│        └── mono-aot-cross",
		"├── input/",
		"│  └── proj/",
		"│     └── bin/",
		"│        ├── App.dll",
		"│        └── Lib.dll",
		"└── replay.proj",
		"",
	}, "\n")
	if diff := cmp.Diff(want, r.Dump()); diff != "" {
		t.Errorf("Dump() mismatch (-want +got):\n%s", diff)
	}
}

func TestKind_Category(t *testing.T) {
	tests := []struct {
		kind Kind
		want Category
	}{
		{InputAssembly, CategoryInput},
		{InputManagedAssemblyDirectory, CategoryInput},
		{InputOther, CategoryInput},
		{ToolingAssembly, CategoryTooling},
		{ToolingBinary, CategoryTooling},
		{ToolingUnixyBinTree, CategoryTooling},
		{GeneratedProject, CategoryGenerated},
		{GeneratedOther, CategoryGenerated},
	}
	for _, tt := range tests {
		if got := tt.kind.Category(); got != tt.want {
			t.Errorf("%s.Category() = %s, want %s", tt.kind, got, tt.want)
		}
	}
	if Kind(99).String() != "Kind(99)" {
		t.Errorf("unknown kind String() = %q", Kind(99).String())
	}
}

func TestRootedPathToRelative(t *testing.T) {
	tests := map[string]string{
		"/usr/bin/x": "usr/bin/x",
		"/a//b/./c":  "a/b/c",
		"/a/b/../c":  "a/c",
		"/":          "",
	}
	for in, want := range tests {
		if got := RootedPathToRelative(in); got != want {
			t.Errorf("RootedPathToRelative(%q) = %q, want %q", in, got, want)
		}
	}
}
