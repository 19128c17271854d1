package fs

import (
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/fx"
)

//go:generate mockgen -destination fsmock/fs_mock.go -package fsmock . GhostlineFS

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// GhostlineFS wraps the filesystem operations used by ghostline.
type GhostlineFS interface {
	UserCacheDir() (string, error)
	MkdirAll(path string) error
	WorkspaceRoot(path string) ([]byte, error)
	DirExists(path string) (bool, error)
	FileExists(path string) (bool, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data string) error
	WritePrivateFile(name string, data []byte) error
	OpenAppend(name string) (*os.File, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
	Remove(name string) error
}

type fsImpl struct{}

// New creates a new GhostlineFS.
func New() GhostlineFS {
	return fsImpl{}
}

// UserCacheDir returns the user's cache directory.
func (fsImpl) UserCacheDir() (string, error) { return os.UserCacheDir() }

// MkdirAll creates a directory and all its parents.
func (fsImpl) MkdirAll(path string) error { return os.MkdirAll(path, os.ModePerm) }

// WorkspaceRoot returns the workspace root for the given path.
func (fsImpl) WorkspaceRoot(path string) ([]byte, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = path
	return cmd.Output()
}

// ReadDir reads all the items in a directory (non-recursive)
func (fsImpl) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (fsImpl) DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (fsImpl) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (fsImpl) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (fsImpl) WriteFile(name string, data string) error {
	return os.WriteFile(name, []byte(data), 0644)
}

// WritePrivateFile replaces the file contents, readable and writable by the owner only.
func (fsImpl) WritePrivateFile(name string, data []byte) error {
	if err := os.WriteFile(name, data, 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(name, 0600)
}

// OpenAppend opens the file for appending, creating it if needed.
func (fsImpl) OpenAppend(name string) (*os.File, error) {
	return os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// WalkDir walks the file tree rooted at root in lexical order.
func (fsImpl) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

func (fsImpl) Remove(name string) error {
	return os.Remove(name)
}
