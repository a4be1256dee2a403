package assets

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/stump/internal/errors"
)

// Scope is returned by the Begin* methods. Release undoes whatever the Begin
// call changed; releasing twice is a no-op. Use it with defer.
type Scope struct {
	release func()
}

// Release ends the scope.
func (s *Scope) Release() {
	if s == nil || s.release == nil {
		return
	}
	fn := s.release
	s.release = nil
	fn()
}

// Close is Release for use with io.Closer.
func (s *Scope) Close() error {
	s.Release()
	return nil
}

// BeginProject makes the directory of projectPath the base for relative inputs
// until the returned scope is released. projectPath must be absolute.
func (r *Repository) BeginProject(projectPath string) (*Scope, error) {
	if err := r.requireState("BeginProject", StateOpen); err != nil {
		return nil, err
	}
	if !filepath.IsAbs(projectPath) {
		r.logger.Error("project path is not fully qualified", zap.String("project", projectPath))
		return nil, errors.NewInvalidRequest(fmt.Sprintf("project path must be absolute: %q", projectPath))
	}

	prev := r.projectDir
	r.projectDir = filepath.Dir(filepath.Clean(projectPath))
	r.logger.Debug("project scope entered",
		zap.String("project", projectPath), zap.String("base_dir", r.projectDir))

	return &Scope{release: func() {
		r.logger.Debug("project scope left",
			zap.String("project", projectPath), zap.String("base_dir", prev))
		r.projectDir = prev
	}}, nil
}

// BeginBuild marks the start of a build for the given runtime identifier and
// framework version. It currently enforces nothing.
func (r *Repository) BeginBuild(rid, frameworkVersion string) *Scope {
	r.logger.Debug("build scope entered", zap.String("rid", rid), zap.String("framework", frameworkVersion))
	return &Scope{}
}

// BeginAotCompilation marks the start of one AOT compilation task. It
// currently enforces nothing.
func (r *Repository) BeginAotCompilation(taskName string) *Scope {
	r.logger.Debug("aot compilation scope entered", zap.String("task", taskName))
	return &Scope{}
}
