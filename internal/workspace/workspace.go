package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"git.home.luguber.info/inful/tocbuilder/internal/fsutil"
	"git.home.luguber.info/inful/tocbuilder/internal/logfields"
)

type mode int

const (
	modeEphemeral mode = iota
	modePersistent
	modeInPlace
)

// Manager handles workspace operations.
type Manager struct {
	fs      afero.Fs
	baseDir string
	dir     string
	mode    mode
}

// NewManager creates a manager for ephemeral workspaces below baseDir
// (the system temp directory when empty).
func NewManager(fs afero.Fs, baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{fs: fs, baseDir: baseDir, mode: modeEphemeral}
}

// NewPersistentManager creates a manager using the fixed directory
// baseDir/subdirName. Cleanup keeps it.
func NewPersistentManager(fs afero.Fs, baseDir, subdirName string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{
		fs:      fs,
		baseDir: baseDir,
		dir:     filepath.Join(baseDir, subdirName),
		mode:    modePersistent,
	}
}

// NewInPlaceManager creates a manager whose workspace is input itself.
func NewInPlaceManager(fs afero.Fs, input string) *Manager {
	return &Manager{fs: fs, dir: input, mode: modeInPlace}
}

// Create creates the workspace directory.
func (m *Manager) Create() error {
	switch m.mode {
	case modeInPlace:
		slog.Debug("Resolving in place", logfields.Path(m.dir))
		return nil
	case modePersistent:
		if err := m.fs.MkdirAll(m.dir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent workspace directory: %w", err)
		}
		slog.Info("Using persistent workspace", logfields.Path(m.dir))
		return nil
	}
	if err := m.fs.MkdirAll(m.baseDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	dir, err := afero.TempDir(m.fs, m.baseDir, "tocbuilder-")
	if err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	m.dir = dir
	slog.Info("Created workspace", logfields.Path(dir))
	return nil
}

// Path returns the workspace directory.
func (m *Manager) Path() string {
	return m.dir
}

// Fs returns a filesystem rooted at the workspace, so project-relative
// paths can be used directly.
func (m *Manager) Fs() afero.Fs {
	return afero.NewBasePathFs(m.fs, m.dir)
}

// Populate copies input into the workspace, skipping excluded relative
// paths. The workspace is emptied first so files copied by earlier merges do
// not linger, which makes Populate safe to call again before a rebuild. It
// returns the number of files copied.
func (m *Manager) Populate(input string, excludes ...string) (int, error) {
	if m.dir == "" {
		return 0, fmt.Errorf("workspace not created")
	}
	if m.mode == modeInPlace {
		return 0, nil
	}
	if err := m.fs.RemoveAll(m.dir); err != nil {
		return 0, fmt.Errorf("failed to clear workspace: %w", err)
	}
	if err := m.fs.MkdirAll(m.dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	copier, err := fsutil.NewCopier(m.fs, excludes)
	if err != nil {
		return 0, err
	}
	files, err := copier.CopyDir(input, m.dir)
	if err != nil {
		return len(files), fmt.Errorf("failed to populate workspace: %w", err)
	}
	slog.Debug("Populated workspace", logfields.Path(m.dir), logfields.Count(len(files)))
	return len(files), nil
}

// Cleanup removes an ephemeral workspace. Persistent and in-place
// workspaces are kept.
func (m *Manager) Cleanup() error {
	if m.dir == "" || m.mode != modeEphemeral {
		slog.Debug("Skipping workspace cleanup", logfields.Path(m.dir))
		return nil
	}
	if err := m.fs.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Info("Cleaned up workspace", logfields.Path(m.dir))
	m.dir = ""
	return nil
}
