package capture

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/stump/internal/config"
	"github.com/hpungsan/stump/internal/errors"
)

// ArchiveExt is the required extension of capture archives.
const ArchiveExt = ".zip"

// NewCaptureID returns a new ULID for a capture.
func NewCaptureID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ValidateOutputPath checks an archive destination before anything is written.
// It checks:
// 1. Path traversal (.. sequences)
// 2. Extension (.zip required)
// 3. Directory restrictions, only when allowed_paths is configured (file must be
// directly in the default captures dir or an allowed path)
// 4. Symlink safety (neither the parent dir nor the file may be a symlink)
func ValidateOutputPath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("output path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("output path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !strings.EqualFold(filepath.Ext(cleaned), ArchiveExt) {
		return errors.NewInvalidRequest(fmt.Sprintf("output path must have %s extension", ArchiveExt))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid output path: %v", err))
	}

	restricted := cfg != nil && !cfg.AllowUnsafePaths && len(cfg.AllowedPaths) > 0
	if restricted {
		allowedDirs, err := getAllowedDirs(cfg)
		if err != nil {
			return err
		}
		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("output must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}
	}

	if info, err := os.Lstat(filepath.Dir(absPath)); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("output directory must not be a symlink")
		}
	}

	// O_NOFOLLOW would reject this at rename time too; failing early is clearer.
	if info, err := os.Lstat(absPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("output path must not be a symlink")
		}
	}

	return nil
}

// getAllowedDirs returns the default captures dir plus the absolute configured
// allowed paths, with symlinked entries resolved.
func getAllowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultCapturesDir(cfg)
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}
	for _, p := range cfg.AllowedPaths {
		if filepath.IsAbs(p) {
			dirs = append(dirs, filepath.Clean(p))
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}
	return result, nil
}

// isDirectlyInAllowedDir checks if parentDir exactly matches one of the allowed directories.
func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// StumpDir returns the per-user state directory (~/.stump).
func StumpDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".stump"), nil
}

// DefaultCapturesDir returns the configured output directory, or ~/.stump/captures.
func DefaultCapturesDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.DefaultOutputDir != "" {
		return filepath.Clean(cfg.DefaultOutputDir), nil
	}
	base, err := StumpDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "captures"), nil
}

// DefaultOutputPath names the archive for a trace inside dir.
func DefaultOutputPath(dir, tracePath, id string) string {
	base := strings.TrimSuffix(filepath.Base(tracePath), filepath.Ext(tracePath))
	return filepath.Join(dir, SanitizeForFilename(base)+"-"+strings.ToLower(id)+ArchiveExt)
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform.
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe to use as a file name.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "capture"
	}
	return s
}
