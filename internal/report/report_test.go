package report

import (
	"strings"
	"testing"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/capture"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/scrape"
)

func sampleInspection() *capture.Inspection {
	return &capture.Inspection{
		ID:        "01REPORT",
		TracePath: "/work/build|1.json",
		Flavor:    scrape.FlavorAotCompilerTask,
		Tasks: []capture.TaskSummary{{
			Name: "MonoAOTCompiler", Target: "Replay_MonoAOTCompiler_0",
			Properties: 3, Parameters: 2, OutputItems: 1,
		}},
		Assets: []capture.AssetSummary{
			{Path: "tools/sdk/bin/mono-aot-cross", Kind: assets.ToolingBinary, Source: "/sdk/bin/mono-aot-cross"},
			{Path: "replay.proj", Kind: assets.GeneratedProject},
		},
		OutputDirs:  []string{"proj/obj"},
		Layout:      "├── replay.proj\n└── tools/\n",
		ProjectName: "replay.proj",
		Project:     "<Project>\n  <!-- ``` -->\n</Project>\n",
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleInspection(), nil)

	for _, want := range []string{
		"# Capture 01REPORT\n",
		"- **Trace:** /work/build\\|1.json\n",
		"- **Flavor:** AotCompilerTask\n",
		"| 0 | MonoAOTCompiler | Replay_MonoAOTCompiler_0 | 3 | 2 | 1 |\n",
		"| tools/sdk/bin/mono-aot-cross | ToolingBinary | /sdk/bin/mono-aot-cross |\n",
		"| replay.proj | GeneratedProject | (generated) |\n",
		"## Output directories\n\n- proj/obj\n",
		"```\n├── replay.proj\n└── tools/\n```\n",
		"## replay.proj\n\n````xml\n<Project>\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Archive") {
		t.Error("archive section should need an index record")
	}
}

func TestMarkdown_WithRecord(t *testing.T) {
	rec := &db.Capture{ID: "01REPORT", ArchivePath: "/out/a.zip", ArchiveBytes: 1536, CreatedAt: 0}
	md := Markdown(sampleInspection(), rec)

	for _, want := range []string{
		"## Archive\n",
		"- **Path:** /out/a.zip\n",
		"- **Size:** 1.5 KiB\n",
		"- **Created:** 1970-01-01T00:00:00Z\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown() missing %q", want)
		}
	}
}

func TestMarkdown_NoTasks(t *testing.T) {
	insp := sampleInspection()
	insp.Tasks = nil
	insp.OutputDirs = nil
	md := Markdown(insp, nil)

	if !strings.Contains(md, "No tasks were reconstructed.") {
		t.Errorf("missing empty task note:\n%s", md)
	}
	if strings.Contains(md, "Output directories") {
		t.Error("output directory section should be omitted when empty")
	}
}

func TestHTML(t *testing.T) {
	out, err := HTML("Capture <1>", Markdown(sampleInspection(), nil))
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{
		"<title>Capture &lt;1&gt;</title>",
		"<h1>Capture 01REPORT</h1>",
		"<table>",
		"&lt;Project&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML() missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
