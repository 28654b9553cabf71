package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	perrors "git.home.luguber.info/inful/packler/internal/errors"
	"git.home.luguber.info/inful/packler/internal/logfields"
)

// Manager handles scratch directories used while building (both staging and persistent)
type Manager struct {
	baseDir    string
	prefix     string
	tempDir    string
	persistent bool // If true, use baseDir/subdir directly without timestamps
}

// NewManager creates a manager for ephemeral staging directories under baseDir.
// Each Create yields a fresh timestamped directory named after prefix.
func NewManager(baseDir, prefix string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if prefix == "" {
		prefix = "packler"
	}
	return &Manager{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

// NewPersistentManager creates a manager for a fixed scratch directory
// (baseDir/subdirName) that survives Cleanup and is emptied by Reset.
func NewPersistentManager(baseDir, subdirName string) *Manager {
	if subdirName == "" {
		subdirName = "working"
	}
	return &Manager{
		baseDir:    baseDir,
		tempDir:    filepath.Join(baseDir, subdirName),
		persistent: true,
	}
}

// Create creates the workspace directory.
// Staging mode: creates a unique timestamped directory.
// Persistent mode: ensures the fixed directory exists.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.tempDir, 0o750); err != nil {
			return perrors.FileSystem("mkdir", m.tempDir, err)
		}
		slog.Debug("Using persistent workspace", logfields.Path(m.tempDir))
		return nil
	}

	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return perrors.FileSystem("mkdir", m.baseDir, err)
	}
	timestamp := time.Now().Format("20060102-150405")
	tempDir, err := os.MkdirTemp(m.baseDir, fmt.Sprintf("%s-%s-*", m.prefix, timestamp))
	if err != nil {
		return perrors.FileSystem("mkdir", m.baseDir, err)
	}

	m.tempDir = tempDir
	slog.Debug("Created staging workspace", logfields.Path(tempDir))
	return nil
}

// Reset empties a persistent workspace and recreates it.
func (m *Manager) Reset() error {
	if !m.persistent {
		return fmt.Errorf("reset is only supported for persistent workspaces")
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		return perrors.FileSystem("remove_all", m.tempDir, err)
	}
	return m.Create()
}

// GetPath returns the path to the workspace directory
func (m *Manager) GetPath() string {
	return m.tempDir
}

// Cleanup removes the workspace directory.
// Persistent mode: does nothing (the scratch directory is reused by the next run).
// Staging mode: removes the timestamped directory.
func (m *Manager) Cleanup() error {
	if m.tempDir == "" {
		return nil
	}

	if m.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(m.tempDir))
		return nil
	}

	if err := os.RemoveAll(m.tempDir); err != nil {
		return perrors.FileSystem("remove_all", m.tempDir, err)
	}

	slog.Debug("Cleaned up staging workspace", logfields.Path(m.tempDir))
	m.tempDir = ""
	return nil
}

// CreateSubdir creates a subdirectory within the workspace
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.tempDir == "" {
		return "", fmt.Errorf("workspace not created")
	}

	subdir := filepath.Join(m.tempDir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", perrors.FileSystem("mkdir", subdir, err)
	}

	return subdir, nil
}
