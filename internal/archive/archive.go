// Package archive writes a planned directory tree as a gzip-compressed tar
// stream and reads such archives back.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofixpoint/lfsg/internal/materialize"
	"github.com/gofixpoint/lfsg/internal/plan"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// Options contains the options for writing an archive.
type Options struct {
	Output string    // Archive path, truncated if it exists
	Root   string    // Materialized tree the directory metadata is read from
	Plan   plan.Plan // Entries to archive, in order
	Level  int       // gzip level, 0 selects gzip.DefaultCompression
	Log    logrus.FieldLogger
}

// Write creates the archive at opts.Output and returns the number of entries written.
// Archive names come from the plan, not from the temporary root.
func Write(opts Options) (n int, err error) {
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	level := opts.Level
	if level == 0 {
		level = gzip.DefaultCompression
	}

	f, err := os.Create(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	gz, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	// Inner layers must be flushed before the outer ones close.
	defer func() {
		err = errors.Join(err,
			wrapClose("tar stream", tw.Close()),
			wrapClose("gzip stream", gz.Close()),
			wrapClose("archive file", f.Close()),
		)
	}()

	for _, e := range opts.Plan.Entries {
		log.WithField("entry", e).Debug("Adding directory")
		if err := writeDir(tw, opts.Root, e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func writeDir(tw *tar.Writer, root string, e plan.Entry) error {
	info, err := os.Stat(materialize.Path(root, e))
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", e, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", e)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", e, err)
	}
	hdr.Name = string(e) + "/"
	hdr.Format = tar.FormatGNU
	hdr.ModTime = hdr.ModTime.Truncate(time.Second)
	hdr.AccessTime = time.Time{}
	hdr.ChangeTime = time.Time{}
	// Ownership is not modeled; every entry belongs to root.
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", e, err)
	}
	return nil
}

func wrapClose(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to close %s: %w", what, err)
}

// Entry describes one record of an archive.
type Entry struct {
	Name     string // Path without the trailing slash of directory records
	Typeflag byte
	Mode     os.FileMode
	Size     int64
}

// IsDir reports whether the record is a directory.
func (e Entry) IsDir() bool {
	return e.Typeflag == tar.TypeDir
}

// List reads every record of a gzip-compressed tar archive in order.
func List(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read reads every record of a gzip-compressed tar stream in order.
func Read(r io.Reader) ([]Entry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	var entries []Entry
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tarball: %w", err)
		}
		entries = append(entries, Entry{
			Name:     strings.TrimSuffix(hdr.Name, "/"),
			Typeflag: hdr.Typeflag,
			Mode:     hdr.FileInfo().Mode(),
			Size:     hdr.Size,
		})
	}
	return entries, nil
}
