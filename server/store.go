package server

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrDirectoryTraversal indicates a target name that tries to escape the
// storage directory.
var ErrDirectoryTraversal = errors.New("target name contains directory traversal")

// SinkOpener opens the destination sink for a validated target name.
// The returned sink is exclusively owned by one session until closed.
type SinkOpener interface {
	Open(name string) (io.WriteCloser, error)
}

// DirStore opens sinks as files under a fixed root directory.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at the given directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Open creates (or truncates) the target file under the store root. Target
// names referencing parent directories or absolute paths are rejected.
func (d *DirStore) Open(name string) (io.WriteCloser, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || strings.Contains(cleaned, "..") {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"name":     name,
		}).Warn("Rejected target name with path traversal")
		return nil, ErrDirectoryTraversal
	}

	path := filepath.Join(d.root, cleaned)
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Open",
		"path":     path,
	}).Debug("Opened destination file")

	return f, nil
}
