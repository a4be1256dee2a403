// Package taskmodel reconstructs one captured task invocation from the build
// trace and renders it as a standalone MSBuild target that replays the task
// against the captured assets.
package taskmodel

import (
	"fmt"

	"github.com/hpungsan/stump/internal/assets"
)

// ValueKind tags which variant of Value is populated.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueAsset
	ValueComputed
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueAsset:
		return "asset"
	case ValueComputed:
		return "computed"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// ComputeFunc produces a value at render time, once every asset's final
// canonical path is known. Its result is emitted as an MSBuild expression and
// is not escaped for MSBuild.
type ComputeFunc func(r *Renderer) (string, error)

// Value is a literal string, a reference to an asset, or a computed value.
// Exactly one variant is populated.
type Value struct {
	kind    ValueKind
	str     string
	asset   assets.AssetPath
	compute ComputeFunc
}

// StringValue is an opaque literal.
func StringValue(s string) Value {
	return Value{kind: ValueString, str: s}
}

// AssetValue references a registered asset.
func AssetValue(p assets.AssetPath) Value {
	return Value{kind: ValueAsset, asset: p}
}

// ComputedValue defers the value to render time.
func ComputedValue(fn ComputeFunc) Value {
	return Value{kind: ValueComputed, compute: fn}
}

// ExpressionValue is a fixed MSBuild expression, emitted unescaped.
func ExpressionValue(expr string) Value {
	return ComputedValue(func(*Renderer) (string, error) { return expr, nil })
}

func (v Value) Kind() ValueKind { return v.kind }

// Str returns the literal of a ValueString.
func (v Value) Str() string { return v.str }

// Asset returns the referenced path of a ValueAsset.
func (v Value) Asset() assets.AssetPath { return v.asset }

// Describe is a short human-readable form for logs and reports.
func (v Value) Describe() string {
	switch v.kind {
	case ValueAsset:
		return "asset:" + v.asset.Key()
	case ValueComputed:
		return "<computed>"
	default:
		return v.str
	}
}

// TaskProperty is a scalar task parameter.
type TaskProperty struct {
	Name  string
	Value Value
}

// TaskMetadata is one metadata entry of a TaskItem.
type TaskMetadata struct {
	Name  string
	Value Value
}

// TaskItem is one item of a list-valued parameter. Its value is a string or an
// asset reference.
type TaskItem struct {
	Value    Value
	Metadata []TaskMetadata
}

// TaskParameter is a list-valued task parameter.
type TaskParameter struct {
	Name  string
	Items []TaskItem
}

// TaskOutputItem is an output binding. Only its shape is captured.
type TaskOutputItem struct {
	Name       string
	IsProperty bool
}

// TaskModel is the reconstructed invocation of one task. It is populated once
// by a Builder and read-only afterwards.
type TaskModel struct {
	Name         string
	AssemblyPath assets.AssetPath
	Properties   []TaskProperty
	Parameters   []TaskParameter
	OutputItems  []TaskOutputItem
}

// Property returns the property with the given name.
func (m *TaskModel) Property(name string) (TaskProperty, bool) {
	for _, p := range m.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return TaskProperty{}, false
}

// Parameter returns the list parameter with the given name.
func (m *TaskModel) Parameter(name string) (TaskParameter, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return TaskParameter{}, false
}
