package capture

import (
	"fmt"
	"strings"

	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/taskmodel"
)

// Target names the replay project defines besides the per-task targets.
const (
	TargetCreateDirectories = "StumpCreateDirectories"
	TargetReplay            = "Replay"

	captureIDProperty = "StumpCaptureId"
)

// ReplayProject assembles the generated MSBuild project that re-runs every
// captured task against the archive contents.
type ReplayProject struct {
	Renderer   *taskmodel.Renderer
	CaptureID  string
	Models     []*taskmodel.TaskModel
	OutputDirs []string
}

// TargetNames lists the per-task targets in execution order.
func (p *ReplayProject) TargetNames() []string {
	names := make([]string, len(p.Models))
	for i, m := range p.Models {
		names[i] = taskmodel.TargetName(m.Name, i)
	}
	return names
}

// AppendTo queues the project text onto gen. Task fragments render when the
// generated asset is rendered, after the repository is frozen.
func (p *ReplayProject) AppendTo(gen *assets.GeneratedAsset) {
	gen.AppendText(p.prologue())
	targets := p.TargetNames()
	for i, m := range p.Models {
		m, target := m, targets[i]
		gen.Append(func(b *strings.Builder) error {
			if err := m.GenerateTaskFragment(b, p.Renderer, taskmodel.FragmentOptions{
				TargetName:       target,
				DependsOnTargets: TargetCreateDirectories,
			}); err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			return nil
		})
	}
	gen.AppendText(p.epilogue(targets))
}

func (p *ReplayProject) prologue() string {
	var b strings.Builder
	b.WriteString("<Project>\n")
	b.WriteString("  <PropertyGroup>\n")
	fmt.Fprintf(&b, "    <%s>$(MSBuildThisFileDirectory)</%s>\n", p.Renderer.RootProperty, p.Renderer.RootProperty)
	fmt.Fprintf(&b, "    <%s>%s</%s>\n", captureIDProperty, taskmodel.EscapeXML(p.CaptureID), captureIDProperty)
	b.WriteString("  </PropertyGroup>\n")

	if len(p.OutputDirs) == 0 {
		fmt.Fprintf(&b, "  <Target Name=\"%s\" />\n", TargetCreateDirectories)
		return b.String()
	}
	fmt.Fprintf(&b, "  <Target Name=\"%s\">\n", TargetCreateDirectories)
	for _, dir := range p.OutputDirs {
		ref := p.Renderer.OutputRef(taskmodel.EscapeMSBuild(dir, true))
		fmt.Fprintf(&b, "    <MakeDir Directories=\"%s\" />\n", taskmodel.EscapeXML(ref))
	}
	b.WriteString("  </Target>\n")
	return b.String()
}

func (p *ReplayProject) epilogue(targets []string) string {
	var b strings.Builder
	if len(targets) == 0 {
		fmt.Fprintf(&b, "  <Target Name=\"%s\" DependsOnTargets=\"%s\" />\n", TargetReplay, TargetCreateDirectories)
	} else {
		fmt.Fprintf(&b, "  <Target Name=\"%s\" DependsOnTargets=\"%s\" />\n",
			TargetReplay, taskmodel.EscapeXML(strings.Join(targets, ";")))
	}
	b.WriteString("</Project>\n")
	return b.String()
}
