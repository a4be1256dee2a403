//go:build windows

package assets

import "os"

// openFileNoFollow opens a file for writing.
// On Windows, O_NOFOLLOW is not available; Archive checks the destination for
// a symlink before renaming.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
