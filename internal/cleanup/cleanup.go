// Package cleanup removes the temporary tree left behind by a generator run.
package cleanup

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// RemoveTree deletes root and everything beneath it, children before parents.
// A failed removal does not stop the walk; every failure is logged and
// collected into the returned error. A missing root is not an error.
func RemoveTree(root string, log logrus.FieldLogger) error {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	var result *multierror.Error
	remove(root, log, &result)
	return result.ErrorOrNil()
}

func remove(path string, log logrus.FieldLogger, result **multierror.Error) {
	info, err := os.Lstat(path)
	if err != nil {
		if !os.IsNotExist(err) {
			*result = multierror.Append(*result, err)
		}
		return
	}

	if info.IsDir() {
		children, err := os.ReadDir(path)
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("Failed to list directory")
			*result = multierror.Append(*result, err)
		}
		for _, c := range children {
			remove(filepath.Join(path, c.Name()), log, result)
		}
	}

	log.WithField("path", path).Trace("Deleting")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("path", path).Debug("Failed to delete")
		*result = multierror.Append(*result, err)
	}
}
