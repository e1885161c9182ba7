// Package pipeline runs the generator stages in order and records how each one ended.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/gofixpoint/lfsg/internal/archive"
	"github.com/gofixpoint/lfsg/internal/cleanup"
	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/gofixpoint/lfsg/internal/image"
	"github.com/gofixpoint/lfsg/internal/materialize"
	"github.com/gofixpoint/lfsg/internal/plan"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Stage names.
const (
	StageMaterialize = "materialize"
	StageArchive     = "archive"
	StageImage       = "image"
	StageCleanup     = "cleanup"
)

// Outcome classifies how a stage ended.
type Outcome int

const (
	OK Outcome = iota
	Skipped
	Recoverable
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Skipped:
		return "skipped"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Stage   string
	Outcome Outcome
	Err     error
}

// Report summarises a run.
type Report struct {
	Plan     plan.Plan
	Archived int
	Stages   []StageResult
}

// Stage returns the result recorded for name, if the stage was reached.
func (r *Report) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Problems returns every non-fatal stage error, combined.
func (r *Report) Problems() error {
	var result *multierror.Error
	for _, s := range r.Stages {
		if s.Outcome == Recoverable {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.Stage, s.Err))
		}
	}
	return result.ErrorOrNil()
}

func (r *Report) record(stage string, outcome Outcome, err error) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Outcome: outcome, Err: err})
}

// Validate reports missing or malformed arguments as a *config.UsageError
// before anything touches the filesystem.
func Validate(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	for _, u := range cfg.Users {
		if err := plan.ValidateUser(u); err != nil {
			return &config.UsageError{Msg: err.Error()}
		}
	}
	return nil
}

// Run materializes, archives and cleans up according to cfg. The returned
// error is non-nil only when a fatal stage failed; recoverable failures are
// logged and listed in the report. Cleanup always runs once the temporary
// root may have been touched.
func Run(cfg config.Config, log logrus.FieldLogger) (*Report, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	log.Info("Generating Linux root file system")
	report := &Report{Plan: plan.New(cfg.Users, plan.NewIgnoreSet(cfg.Exclude))}
	log.WithField("entries", report.Plan.Len()).Info("Done generating plan")

	err := materialize.Run(materialize.Options{
		Root: cfg.TempDir,
		Plan: report.Plan,
		Log:  log,
	})
	if err != nil {
		report.record(StageMaterialize, Fatal, err)
		log.WithError(err).Error("Failed to materialize directory tree")
		if errors.Is(err, materialize.ErrRootExists) {
			// The root belongs to someone else; leave it alone.
			return report, err
		}
		runCleanup(cfg, log, report)
		return report, err
	}
	report.record(StageMaterialize, OK, nil)

	log.WithField("output", cfg.Output).Info("Compressing to output")
	n, err := archive.Write(archive.Options{
		Output: cfg.Output,
		Root:   cfg.TempDir,
		Plan:   report.Plan,
		Log:    log,
	})
	report.Archived = n
	if err != nil {
		report.record(StageArchive, Recoverable, err)
		log.WithError(err).WithFields(logrus.Fields{
			"output":   cfg.Output,
			"archived": n,
			"planned":  report.Plan.Len(),
		}).Error("Failed to write archive")
	} else {
		report.record(StageArchive, OK, nil)
		log.WithField("output", cfg.Output).Info("Done compressing to output")
	}

	switch {
	case cfg.Image == "":
	case err != nil:
		report.record(StageImage, Skipped, nil)
	default:
		exportImage(cfg, log, report)
	}

	runCleanup(cfg, log, report)
	log.Info("Process complete")
	return report, nil
}

func exportImage(cfg config.Config, log logrus.FieldLogger, report *Report) {
	log.WithField("image", cfg.Image).Info("Exporting container image")
	digest, err := image.Export(image.Options{
		Archive: cfg.Output,
		Output:  cfg.Image,
		Tag:     cfg.ImageTag,
		Arch:    runtime.GOARCH,
	})
	if err != nil {
		report.record(StageImage, Recoverable, err)
		log.WithError(err).WithField("image", cfg.Image).Error("Failed to export container image")
		return
	}
	report.record(StageImage, OK, nil)
	log.WithFields(logrus.Fields{"image": cfg.Image, "digest": digest.String()}).Info("Done exporting container image")
}

func runCleanup(cfg config.Config, log logrus.FieldLogger, report *Report) {
	log.WithField("path", cfg.TempDir).Info("Deleting temporary directory")
	if err := cleanup.RemoveTree(cfg.TempDir, log); err != nil {
		report.record(StageCleanup, Recoverable, err)
		log.WithError(err).WithField("path", cfg.TempDir).Warn("Temporary directory was not fully removed")
		return
	}
	report.record(StageCleanup, OK, nil)
	log.Info("Done deleting temporary directory")
}
