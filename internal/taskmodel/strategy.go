package taskmodel

import (
	"github.com/hpungsan/stump/internal/assets"
	"github.com/hpungsan/stump/internal/binlog"
)

// Populator is the part of the Builder a Strategy may call back into.
type Populator interface {
	// Assets is the repository assets are registered with.
	Assets() *assets.Repository
	AddProperty(p TaskProperty)
	AddParameter(p TaskParameter)
	// PopulateItem builds a TaskItem from an Item node, offering each metadata
	// entry to the strategy first. A nil kind keeps the item value a string.
	PopulateItem(item *binlog.Node, kind *assets.Kind) (TaskItem, error)
	// PopulateMetadata stores a metadata entry as a plain string.
	PopulateMetadata(md *binlog.Node, dest *[]TaskMetadata)
	// RememberAsset records that literal resolved to p, so the same literal
	// seen later as an item resolves to the same asset.
	RememberAsset(literal string, p assets.AssetPath)
	RememberedAsset(literal string) (assets.AssetPath, bool)
}

// Strategy supplies task-specific rewrites. Each method reports whether it
// handled the node; unhandled nodes fall back to the generic classification.
type Strategy interface {
	HandleSpecialTaskProperty(b Populator, prop *binlog.Node) (bool, error)
	HandleSpecialTaskParameter(b Populator, param *binlog.Node) (bool, error)
	HandleSpecialTaskMetadata(b Populator, md *binlog.Node, dest *[]TaskMetadata) (bool, error)
}

// GenericStrategy handles nothing.
type GenericStrategy struct{}

func (GenericStrategy) HandleSpecialTaskProperty(Populator, *binlog.Node) (bool, error) {
	return false, nil
}

func (GenericStrategy) HandleSpecialTaskParameter(Populator, *binlog.Node) (bool, error) {
	return false, nil
}

func (GenericStrategy) HandleSpecialTaskMetadata(Populator, *binlog.Node, *[]TaskMetadata) (bool, error) {
	return false, nil
}
