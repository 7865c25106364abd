// Package fsops performs file operations confined to the solver workspace.
package fsops

import (
	"io"
	"os"
	"path/filepath"

	"github.com/petasbytes/solver-agent/internal/safety"
)

// Workspace is the directory tools write into and execute code from.
type Workspace struct {
	root string
}

// NewWorkspace resolves (and creates) root. Empty means the current directory.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := safety.InitWorkspaceRoot(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace directory.
func (w *Workspace) Root() string { return w.root }

// WriteFile writes content to relPath under the workspace, creating parent
// directories as needed. Policy violations come back as safety.ToolError.
func (w *Workspace) WriteFile(relPath string, content []byte) (string, error) {
	absPath, err := safety.ValidateWritePath(w.root, relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", err
	}
	return absPath, os.WriteFile(absPath, content, 0o644)
}

// WriteFrom streams r into relPath and returns the number of bytes written.
// A partially written file is removed on error.
func (w *Workspace) WriteFrom(relPath string, r io.Reader) (int64, error) {
	absPath, err := safety.ValidateWritePath(w.root, relPath)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(absPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(absPath)
		return n, err
	}
	return n, nil
}
