// Package report renders a capture inspection as Markdown, and optionally as
// a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/stump/internal/capture"
	"github.com/hpungsan/stump/internal/db"
	"github.com/hpungsan/stump/internal/errors"
)

// Markdown renders insp. rec adds the archive section when the capture was
// recorded in the index.
func Markdown(insp *capture.Inspection, rec *db.Capture) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Capture %s\n\n", insp.ID)
	fmt.Fprintf(&b, "- **Trace:** %s\n", cell(insp.TracePath))
	fmt.Fprintf(&b, "- **Flavor:** %s\n", insp.Flavor)
	fmt.Fprintf(&b, "- **Tasks:** %d\n", len(insp.Tasks))
	fmt.Fprintf(&b, "- **Assets:** %d\n", len(insp.Assets))
	b.WriteString("\n")

	if rec != nil {
		b.WriteString("## Archive\n\n")
		fmt.Fprintf(&b, "- **Path:** %s\n", cell(rec.ArchivePath))
		fmt.Fprintf(&b, "- **Size:** %s\n", formatBytes(rec.ArchiveBytes))
		fmt.Fprintf(&b, "- **Created:** %s\n", time.Unix(rec.CreatedAt, 0).UTC().Format(time.RFC3339))
		b.WriteString("\n")
	}

	b.WriteString("## Tasks\n\n")
	if len(insp.Tasks) == 0 {
		b.WriteString("No tasks were reconstructed.\n\n")
	} else {
		b.WriteString("| # | Task | Target | Properties | Parameters | Outputs |\n")
		b.WriteString("|---|------|--------|-----------:|-----------:|--------:|\n")
		for i, t := range insp.Tasks {
			fmt.Fprintf(&b, "| %d | %s | %s | %d | %d | %d |\n",
				i, cell(t.Name), cell(t.Target), t.Properties, t.Parameters, t.OutputItems)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Assets\n\n")
	b.WriteString("| Path | Kind | Source |\n")
	b.WriteString("|------|------|--------|\n")
	for _, a := range insp.Assets {
		src := a.Source
		if src == "" {
			src = "(generated)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(a.Path), a.Kind, cell(src))
	}
	b.WriteString("\n")

	if len(insp.OutputDirs) > 0 {
		b.WriteString("## Output directories\n\n")
		for _, d := range insp.OutputDirs {
			fmt.Fprintf(&b, "- %s\n", cell(d))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Layout\n\n")
	writeFenced(&b, "", insp.Layout)

	fmt.Fprintf(&b, "## %s\n\n", cell(insp.ProjectName))
	writeFenced(&b, "xml", insp.Project)

	return b.String()
}

// Tables need the GFM extension; raw HTML in the report stays escaped.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML converts a Markdown report into a standalone page.
func HTML(title, md string) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return "", errors.NewInternal(fmt.Errorf("render markdown: %w", err))
	}

	var out bytes.Buffer
	err := page.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{title, template.HTML(body.String())})
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return out.String(), nil
}

// cell escapes text for a Markdown table cell or list item.
func cell(s string) string {
	r := strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")
	return r.Replace(s)
}

// writeFenced writes content as a code block whose fence is longer than any
// backtick run inside it.
func writeFenced(b *strings.Builder, lang, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	b.WriteString(fence + lang + "\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(fence + "\n\n")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
