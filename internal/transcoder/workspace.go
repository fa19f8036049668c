package transcoder

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is a caller-owned scratch directory. Stages create one per
// invocation and Close it with defer.
type Workspace struct {
	dir string
}

// NewWorkspace creates a unique directory under root.
func NewWorkspace(root, label string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	if label == "" {
		label = "job"
	}
	dir, err := os.MkdirTemp(root, label+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Close removes the workspace and everything in it.
func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	return os.RemoveAll(w.dir)
}
