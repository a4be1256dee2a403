package assets

import (
	"path/filepath"
	"slices"
	"strings"
)

// Separator joins canonical path segments regardless of host.
const Separator = "/"

// AssetPath is the canonical location of an asset inside the capture layout.
// It is compared by value; use Equal or Key, never pointer identity.
type AssetPath struct {
	Subfolders []string
	Filename   string
}

// Equal reports whether p and other name the same location.
func (p AssetPath) Equal(other AssetPath) bool {
	return p.Filename == other.Filename && slices.Equal(p.Subfolders, other.Subfolders)
}

// IsZero reports whether p is the zero path.
func (p AssetPath) IsZero() bool {
	return p.Filename == "" && len(p.Subfolders) == 0
}

// Key is the forward-slash joined form of p, used as the table key.
func (p AssetPath) Key() string {
	if len(p.Subfolders) == 0 {
		return p.Filename
	}
	return strings.Join(p.Subfolders, Separator) + Separator + p.Filename
}

func (p AssetPath) String() string {
	return p.Key()
}

// Dir is the forward-slash joined folder part of p.
func (p AssetPath) Dir() string {
	return strings.Join(p.Subfolders, Separator)
}

func newAssetPath(root string, segments []string) AssetPath {
	n := len(segments)
	sub := make([]string, 0, n)
	if root != "" {
		sub = append(sub, root)
	}
	sub = append(sub, segments[:n-1]...)
	return AssetPath{Subfolders: sub, Filename: segments[n-1]}
}

// rootedSegments strips the volume and root from an absolute path and returns
// the remaining components. Canonical paths never carry the root.
func rootedSegments(p string) []string {
	vol := filepath.VolumeName(p)
	rest := filepath.ToSlash(filepath.Clean(p[len(vol):]))
	return splitSegments(rest)
}

func splitSegments(slashed string) []string {
	var out []string
	for _, s := range strings.Split(slashed, Separator) {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return out
}

// RootedPathToRelative returns the canonical relative form of an absolute host
// path, with the root stripped and forward slashes.
func RootedPathToRelative(p string) string {
	return strings.Join(rootedSegments(p), Separator)
}
