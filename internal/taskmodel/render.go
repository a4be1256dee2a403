package taskmodel

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hpungsan/stump/internal/assets"
)

// Resolver maps assets to their frozen relative paths. *assets.Repository
// satisfies it.
type Resolver interface {
	GetAssetRelativePath(p assets.AssetPath) (string, error)
}

// Renderer turns values into MSBuild text rooted at the replay root property.
type Renderer struct {
	Resolver     Resolver
	RootProperty string
}

// Root is the replay root expression. The property always ends in a slash.
func (r *Renderer) Root() string {
	return "$(" + r.RootProperty + ")"
}

// AssetRef is the replay-rooted expression for an asset, MSBuild-escaped for
// use in a property or metadata value.
func (r *Renderer) AssetRef(p assets.AssetPath) (string, error) {
	return r.assetRef(p, false)
}

func (r *Renderer) assetRef(p assets.AssetPath, item bool) (string, error) {
	rel, err := r.Resolver.GetAssetRelativePath(p)
	if err != nil {
		return "", err
	}
	return r.Root() + EscapeMSBuild(rel, item), nil
}

// OutputRef is the replay-rooted expression for a relocated output path.
func (r *Renderer) OutputRef(rel string) string {
	return OutputRef(r.RootProperty, rel)
}

// OutputRef is the replay-rooted expression for rel under the output root.
func OutputRef(rootProperty, rel string) string {
	if rel == "" {
		return "$(" + rootProperty + ")" + assets.OutputRoot
	}
	return "$(" + rootProperty + ")" + assets.OutputRoot + assets.Separator + rel
}

// Text renders v as it would appear in a property or metadata value, before
// XML escaping.
func (r *Renderer) Text(v Value) (string, error) {
	return r.text(v, false)
}

// text renders v as MSBuild text before XML escaping. Literals and asset
// paths are MSBuild-escaped; item selects the Include escaper.
func (r *Renderer) text(v Value, item bool) (string, error) {
	switch v.kind {
	case ValueAsset:
		return r.assetRef(v.asset, item)
	case ValueComputed:
		if v.compute == nil {
			return "", fmt.Errorf("computed value has no producer")
		}
		return v.compute(r)
	default:
		return EscapeMSBuild(v.str, item), nil
	}
}

var (
	msbuildEscaper     = strings.NewReplacer("%", "%25", "$", "%24", "@", "%40")
	msbuildItemEscaper = strings.NewReplacer("%", "%25", "$", "%24", "@", "%40", ";", "%3B", "*", "%2A", "?", "%3F")
)

// EscapeMSBuild escapes the characters MSBuild would otherwise evaluate.
// Item specs additionally escape the list separator and wildcards.
func EscapeMSBuild(s string, item bool) string {
	if item {
		return msbuildItemEscaper.Replace(s)
	}
	return msbuildEscaper.Replace(s)
}

// EscapeXML escapes s for use in XML text or a quoted attribute.
func EscapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// Item attributes MSBuild reserves; metadata with these names is written as
// child elements instead.
var reservedItemAttributes = map[string]bool{
	"Include": true, "Exclude": true, "Remove": true, "Update": true, "Condition": true,
	"KeepMetadata": true, "RemoveMetadata": true, "KeepDuplicates": true,
	"MatchOnMetadata": true, "MatchOnMetadataOptions": true, "Label": true,
}

// TargetName is the replay target name for the index-th task.
func TargetName(task string, index int) string {
	return fmt.Sprintf("Replay_%s_%d", task, index)
}

// FragmentOptions control GenerateTaskFragment.
type FragmentOptions struct {
	// TargetName names the execution target and prefixes synthetic item and
	// property names.
	TargetName string
	// DependsOnTargets is copied onto the target when set.
	DependsOnTargets string
}

// GenerateTaskFragment appends the UsingTask declaration and one target that
// invokes the task. Must be called after the repository is frozen.
func (m *TaskModel) GenerateTaskFragment(b *strings.Builder, r *Renderer, opts FragmentOptions) error {
	target := opts.TargetName
	if target == "" {
		target = TargetName(m.Name, 0)
	}

	asm, err := r.AssetRef(m.AssemblyPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "  <UsingTask TaskName=\"%s\" AssemblyFile=\"%s\" />\n", EscapeXML(m.Name), EscapeXML(asm))

	fmt.Fprintf(b, "  <Target Name=\"%s\"", EscapeXML(target))
	if opts.DependsOnTargets != "" {
		fmt.Fprintf(b, " DependsOnTargets=\"%s\"", EscapeXML(opts.DependsOnTargets))
	}
	b.WriteString(">\n")

	if len(m.Parameters) > 0 {
		b.WriteString("    <ItemGroup>\n")
		for _, p := range m.Parameters {
			itemName := target + "_" + p.Name
			for _, item := range p.Items {
				if err := r.writeItem(b, itemName, item); err != nil {
					return fmt.Errorf("parameter %s: %w", p.Name, err)
				}
			}
		}
		b.WriteString("    </ItemGroup>\n")
	}

	fmt.Fprintf(b, "    <%s", m.Name)
	for _, p := range m.Properties {
		s, err := r.text(p.Value, false)
		if err != nil {
			return fmt.Errorf("property %s: %w", p.Name, err)
		}
		fmt.Fprintf(b, " %s=\"%s\"", p.Name, EscapeXML(s))
	}
	for _, p := range m.Parameters {
		fmt.Fprintf(b, " %s=\"@(%s_%s)\"", p.Name, EscapeXML(target), p.Name)
	}

	if len(m.OutputItems) == 0 {
		b.WriteString(" />\n")
	} else {
		b.WriteString(">\n")
		for _, o := range m.OutputItems {
			attr := "ItemName"
			if o.IsProperty {
				attr = "PropertyName"
			}
			fmt.Fprintf(b, "      <Output TaskParameter=\"%s\" %s=\"%s_%s\" />\n",
				EscapeXML(o.Name), attr, EscapeXML(target), EscapeXML(o.Name))
		}
		fmt.Fprintf(b, "    </%s>\n", m.Name)
	}
	b.WriteString("  </Target>\n")
	return nil
}

func (r *Renderer) writeItem(b *strings.Builder, itemName string, item TaskItem) error {
	include, err := r.text(item.Value, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "      <%s Include=\"%s\"", itemName, EscapeXML(include))

	var nested []TaskMetadata
	for _, md := range item.Metadata {
		if reservedItemAttributes[md.Name] {
			nested = append(nested, md)
			continue
		}
		s, err := r.text(md.Value, false)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", md.Name, err)
		}
		fmt.Fprintf(b, " %s=\"%s\"", md.Name, EscapeXML(s))
	}
	if len(nested) == 0 {
		b.WriteString(" />\n")
		return nil
	}

	b.WriteString(">\n")
	for _, md := range nested {
		s, err := r.text(md.Value, false)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", md.Name, err)
		}
		fmt.Fprintf(b, "        <%s>%s</%s>\n", md.Name, EscapeXML(s), md.Name)
	}
	fmt.Fprintf(b, "      </%s>\n", itemName)
	return nil
}
