package assets

import (
	"fmt"
	"strings"
)

// Fragment appends one piece of a generated asset's content. Fragments run at
// archive time, after the layout is frozen.
type Fragment func(b *strings.Builder) error

// GeneratedAsset is the content of an asset synthesized at archive time.
type GeneratedAsset struct {
	fragments []Fragment
}

// Append adds a fragment.
func (g *GeneratedAsset) Append(f Fragment) {
	g.fragments = append(g.fragments, f)
}

// AppendText adds a fixed fragment.
func (g *GeneratedAsset) AppendText(s string) {
	g.Append(func(b *strings.Builder) error {
		b.WriteString(s)
		return nil
	})
}

// Len returns the number of fragments.
func (g *GeneratedAsset) Len() int {
	return len(g.fragments)
}

// Render runs every fragment in order.
func (g *GeneratedAsset) Render() (string, error) {
	var b strings.Builder
	for i, f := range g.fragments {
		if err := f(&b); err != nil {
			return "", fmt.Errorf("fragment %d: %w", i, err)
		}
	}
	return b.String(), nil
}

// RenderGenerated renders the generated asset at p. The repository must be frozen.
func (r *Repository) RenderGenerated(p AssetPath) (string, error) {
	if err := r.requireState("RenderGenerated", StateFrozen); err != nil {
		return "", err
	}
	g, err := r.generatedFor(p)
	if err != nil {
		return "", err
	}
	return g.Render()
}
