package binlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/stump/internal/errors"
)

// Decode reads a JSON-encoded trace tree and links parent pointers.
func Decode(r io.Reader) (*Node, error) {
	var root Node
	dec := json.NewDecoder(r)
	if err := dec.Decode(&root); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid trace: %v", err))
	}
	if root.Kind == "" {
		return nil, errors.NewInvalidRequest("invalid trace: root node has no kind")
	}
	root.Link()
	return &root, nil
}

// Load opens path and decodes it as a trace tree.
func Load(path string) (*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, errors.NewIO(path, err)
	}
	defer f.Close()
	return Decode(f)
}
