package materialize

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofixpoint/lfsg/internal/plan"
	"github.com/sirupsen/logrus"
)

// DefaultDirPerm is the mode used for every created directory.
const DefaultDirPerm os.FileMode = 0755

// ErrRootExists is returned when the temporary root is left over from another run.
var ErrRootExists = errors.New("temporary root already exists")

// Options contains the options for materializing a plan on disk.
type Options struct {
	Root    string      // Temporary root directory, must not exist yet; its parent must
	Plan    plan.Plan   // Directories to create beneath Root
	DirPerm os.FileMode // Mode for created directories (default 0755)
	Log     logrus.FieldLogger
}

// Path returns the on-disk location of e beneath root.
func Path(root string, e plan.Entry) string {
	return filepath.Join(root, filepath.FromSlash(string(e)))
}

// Run creates the temporary root and one directory per plan entry.
func Run(opts Options) error {
	log := opts.Log
	if log == nil {
		log = discard()
	}
	perm := opts.DirPerm
	if perm == 0 {
		perm = DefaultDirPerm
	}

	// Refuse a stale tree so two runs never share one root
	if _, err := os.Lstat(opts.Root); err == nil {
		return fmt.Errorf("%w: %s (remove it or pass --temp-dir)", ErrRootExists, opts.Root)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat temporary root: %w", err)
	}

	// Only the root itself is created; cleanup removes nothing above it.
	log.WithField("path", opts.Root).Info("Creating temporary root")
	if err := os.Mkdir(opts.Root, perm); err != nil {
		return fmt.Errorf("failed to create temporary root: %w", err)
	}

	for _, e := range opts.Plan.Entries {
		dir := Path(opts.Root, e)
		log.WithField("entry", e).Debug("Creating directory")
		if err := os.MkdirAll(dir, perm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", e, err)
		}
	}
	return nil
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
