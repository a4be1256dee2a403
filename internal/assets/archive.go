package assets

import (
	"archive/zip"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/errors"
)

// ArchiveResult summarizes a written archive.
type ArchiveResult struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
}

type archiveWriter struct {
	zw      *zip.Writer
	logger  *zap.Logger
	written map[string]bool
	posix   bool
	count   int
}

// Archive writes every registered asset into a zip file at outputPath. The
// archive is built in a temporary file next to outputPath and renamed into
// place; on failure outputPath is left untouched.
func (r *Repository) Archive(ctx context.Context, outputPath string) (*ArchiveResult, error) {
	if err := r.requireState("Archive", StateFrozen); err != nil {
		return nil, err
	}
	if err := r.checkGenerated(); err != nil {
		return nil, err
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := outputPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewIO(tempPath, err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	aw := &archiveWriter{
		zw:      zip.NewWriter(file),
		logger:  r.logger,
		written: make(map[string]bool),
		posix:   runtime.GOOS != "windows",
	}

	for _, p := range r.order {
		select {
		case <-ctx.Done():
			return nil, errors.NewCancelled("archive")
		default:
		}

		asset := r.assets[p.Key()]
		var err error
		switch asset.Kind.archiveMethod() {
		case archiveFile:
			err = aw.addFile(p.Key(), asset.OriginalPath)
		case archiveFilteredDir:
			err = aw.addFilteredDir(p.Key(), asset.OriginalPath, r.opts.ManagedAssemblyPattern)
		case archiveTree:
			err = aw.addTree(ctx, p.Key(), asset.OriginalPath)
		case archiveRender:
			var content string
			content, err = r.generated[p.Key()].Render()
			if err == nil {
				err = aw.addBytes(p.Key(), []byte(content), 0644, time.Now())
			}
		}
		if err != nil {
			r.logger.Error("archiving asset failed", zap.Stringer("asset", p), zap.Error(err))
			return nil, err
		}
	}

	if err := aw.zw.Close(); err != nil {
		return nil, errors.NewIO(tempPath, err)
	}
	if err := file.Sync(); err != nil {
		return nil, errors.NewIO(tempPath, err)
	}
	info, err := file.Stat()
	if err != nil {
		return nil, errors.NewIO(tempPath, err)
	}
	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return nil, errors.NewIO(tempPath, err)
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if fi, err := os.Lstat(outputPath); err == nil && fi.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("archive path is a symlink")
	}
	if err := os.Rename(tempPath, outputPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(outputPath); statErr == nil {
				return nil, errors.NewInvalidRequest("archive destination already exists; overwriting is not supported on Windows")
			}
		}
		return nil, errors.NewIO(outputPath, err)
	}

	success = true
	r.logger.Info("archive written",
		zap.String("path", outputPath),
		zap.Int("entries", aw.count),
		zap.Int64("bytes", info.Size()))
	return &ArchiveResult{Path: outputPath, Entries: aw.count, Bytes: info.Size()}, nil
}

// checkGenerated verifies every generated builder has a generated-kind asset.
func (r *Repository) checkGenerated() error {
	for key := range r.generated {
		a, ok := r.assets[key]
		if !ok || a.Kind.Category() != CategoryGenerated {
			return errors.NewInternal(fmt.Errorf("generated asset %s has no generated-kind entry", key))
		}
	}
	for key, a := range r.assets {
		if a.Kind.Category() == CategoryGenerated && r.generated[key] == nil {
			return errors.NewInternal(fmt.Errorf("generated-kind asset %s has no content", key))
		}
	}
	return nil
}

func (r *Repository) generatedFor(p AssetPath) (*GeneratedAsset, error) {
	a, ok := r.assets[p.Key()]
	if !ok {
		return nil, errors.NewNotFound(p.Key())
	}
	g := r.generated[p.Key()]
	if a.Kind.Category() != CategoryGenerated || g == nil {
		return nil, errors.NewInternal(fmt.Errorf("asset %s is not generated", p.Key()))
	}
	return g, nil
}

func (aw *archiveWriter) header(name string, mode fs.FileMode, modified time.Time) *zip.FileHeader {
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	}
	if aw.posix {
		hdr.SetMode(mode)
	}
	return hdr
}

// claim reports whether name is still free. Overlapping registrations (a
// binary that also lives inside a registered bin tree) are written once.
func (aw *archiveWriter) claim(name string) bool {
	if aw.written[name] {
		aw.logger.Debug("archive entry already written", zap.String("entry", name))
		return false
	}
	aw.written[name] = true
	aw.count++
	return true
}

func (aw *archiveWriter) addBytes(name string, data []byte, mode fs.FileMode, modified time.Time) error {
	if !aw.claim(name) {
		return nil
	}
	w, err := aw.zw.CreateHeader(aw.header(name, mode, modified))
	if err != nil {
		return errors.NewIO(name, err)
	}
	if _, err := w.Write(data); err != nil {
		return errors.NewIO(name, err)
	}
	return nil
}

// addFile copies one source file, following symlinks.
func (aw *archiveWriter) addFile(name, src string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(src)
		}
		return errors.NewIO(src, err)
	}
	if info.IsDir() {
		return errors.NewInvalidRequest(fmt.Sprintf("expected a file, found a directory: %s", src))
	}
	if !aw.claim(name) {
		return nil
	}

	f, err := os.Open(src)
	if err != nil {
		return errors.NewIO(src, err)
	}
	defer f.Close()

	w, err := aw.zw.CreateHeader(aw.header(name, info.Mode().Perm(), info.ModTime()))
	if err != nil {
		return errors.NewIO(name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return errors.NewIO(src, err)
	}
	aw.logger.Debug("archived file", zap.String("entry", name), zap.String("source", src))
	return nil
}

// addFilteredDir copies the top-level files of dir matching pattern.
func (aw *archiveWriter) addFilteredDir(name, dir, pattern string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(dir)
		}
		return errors.NewIO(dir, err)
	}
	for _, e := range entries {
		ok, err := filepath.Match(pattern, e.Name())
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("invalid managed assembly pattern %q: %v", pattern, err))
		}
		if !ok {
			continue
		}
		src := filepath.Join(dir, e.Name())
		info, err := os.Stat(src)
		if err != nil {
			return errors.NewIO(src, err)
		}
		if info.IsDir() {
			continue
		}
		if err := aw.addFile(name+Separator+e.Name(), src); err != nil {
			return err
		}
	}
	return nil
}

// addTree copies the whole tree below root. Symlinks are stored as symlink
// entries whose content is the link target.
func (aw *archiveWriter) addTree(ctx context.Context, name, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewFileNotFound(root)
		}
		return errors.NewIO(root, err)
	}
	if !info.IsDir() {
		return errors.NewInvalidRequest(fmt.Sprintf("expected a directory: %s", root))
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return errors.NewIO(path, walkErr)
		}
		if ctx.Err() != nil {
			return errors.NewCancelled("archive")
		}
		if path == root || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.NewIO(path, err)
		}
		entry := name + Separator + filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(path)
			if err != nil {
				return errors.NewIO(path, err)
			}
			li, err := os.Lstat(path)
			if err != nil {
				return errors.NewIO(path, err)
			}
			return aw.addBytes(entry, []byte(filepath.ToSlash(target)), fs.ModeSymlink|0777, li.ModTime())
		}
		if !d.Type().IsRegular() {
			aw.logger.Debug("skipping special file", zap.String("path", path))
			return nil
		}
		return aw.addFile(entry, path)
	})
}
