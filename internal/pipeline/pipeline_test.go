package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gofixpoint/lfsg/internal/archive"
	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/gofixpoint/lfsg/internal/materialize"
	"github.com/gofixpoint/lfsg/internal/plan"
)

func testConfig(t *testing.T, users ...string) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		Users:    users,
		Output:   filepath.Join(dir, "out.tar.gz"),
		TempDir:  filepath.Join(dir, config.DefaultTempDir),
		ImageTag: config.DefaultImageTag,
	}
}

func entryNames(t *testing.T, path string) []string {
	t.Helper()
	entries, err := archive.List(path)
	if err != nil {
		t.Fatalf("archive.List() error: %v", err)
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestRun_AliceBob(t *testing.T) {
	cfg := testConfig(t, "alice", "bob")

	report, err := Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if report.Archived != 25 {
		t.Errorf("Archived = %d, want 25", report.Archived)
	}
	if err := report.Problems(); err != nil {
		t.Errorf("Problems() = %v, want nil", err)
	}

	names := entryNames(t, cfg.Output)
	if len(names) != 25 {
		t.Fatalf("len(names) = %d, want 25", len(names))
	}
	if names[0] != "bin" || names[22] != "usr/local/lib64" {
		t.Errorf("fixed entries out of order: first=%q last=%q", names[0], names[22])
	}
	if names[23] != "home/alice" || names[24] != "home/bob" {
		t.Errorf("user entries = %v, want [home/alice home/bob]", names[23:])
	}

	if _, err := os.Stat(cfg.TempDir); !os.IsNotExist(err) {
		t.Errorf("temporary root %q still exists", cfg.TempDir)
	}
}

func TestRun_StagesRecorded(t *testing.T) {
	cfg := testConfig(t, "alice")

	report, err := Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	var got []string
	for _, s := range report.Stages {
		if s.Outcome != OK {
			t.Errorf("stage %s outcome = %s, want ok", s.Stage, s.Outcome)
		}
		got = append(got, s.Stage)
	}
	want := []string{StageMaterialize, StageArchive, StageCleanup}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stages = %v, want %v", got, want)
	}
}

func TestRun_Idempotent(t *testing.T) {
	first := testConfig(t, "alice", "bob")
	second := testConfig(t, "alice", "bob")

	if _, err := Run(first, nil); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	if _, err := Run(second, nil); err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	a := entryNames(t, first.Output)
	b := entryNames(t, second.Output)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("entry names differ between runs:\n%v\n%v", a, b)
	}
}

func TestRun_Exclude(t *testing.T) {
	cfg := testConfig(t, "alice")
	cfg.Exclude = []string{"home", "boot"}

	report, err := Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if want := len(plan.RootDirectories) - 2; report.Archived != want {
		t.Errorf("Archived = %d, want %d", report.Archived, want)
	}
	for _, n := range entryNames(t, cfg.Output) {
		if n == "home" || n == "home/alice" || n == "boot" {
			t.Errorf("excluded entry %q was archived", n)
		}
	}
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing users", func(c *config.Config) { c.Users = nil }},
		{"missing output", func(c *config.Config) { c.Output = "" }},
		{"invalid user", func(c *config.Config) { c.Users = []string{"../etc"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "alice")
			tt.mutate(&cfg)

			report, err := Run(cfg, nil)
			var usageErr *config.UsageError
			if !errors.As(err, &usageErr) {
				t.Fatalf("error = %v, want *config.UsageError", err)
			}
			if report != nil {
				t.Errorf("report = %+v, want nil", report)
			}
			if _, err := os.Stat(cfg.TempDir); !os.IsNotExist(err) {
				t.Error("temporary root was created despite a usage error")
			}
			if cfg.Output != "" {
				if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
					t.Error("output was created despite a usage error")
				}
			}
		})
	}
}

func TestRun_ArchiveFailureStillCleansUp(t *testing.T) {
	cfg := testConfig(t, "alice")
	cfg.Output = filepath.Join(t.TempDir(), "missing", "out.tar.gz")
	cfg.Image = filepath.Join(t.TempDir(), "image.tar")

	report, err := Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for a recoverable failure", err)
	}
	s, ok := report.Stage(StageArchive)
	if !ok || s.Outcome != Recoverable || s.Err == nil {
		t.Errorf("archive stage = %+v, want recoverable with error", s)
	}
	if s, _ := report.Stage(StageImage); s.Outcome != Skipped {
		t.Errorf("image stage outcome = %s, want skipped", s.Outcome)
	}
	if report.Problems() == nil {
		t.Error("Problems() = nil, want the archive error")
	}
	if _, err := os.Stat(cfg.TempDir); !os.IsNotExist(err) {
		t.Errorf("temporary root %q still exists", cfg.TempDir)
	}
}

func TestRun_StaleTempRootIsFatal(t *testing.T) {
	cfg := testConfig(t, "alice")
	if err := os.MkdirAll(filepath.Join(cfg.TempDir, "leftover"), 0755); err != nil {
		t.Fatal(err)
	}

	report, err := Run(cfg, nil)
	if !errors.Is(err, materialize.ErrRootExists) {
		t.Fatalf("error = %v, want ErrRootExists", err)
	}
	if s, _ := report.Stage(StageMaterialize); s.Outcome != Fatal {
		t.Errorf("materialize outcome = %s, want fatal", s.Outcome)
	}
	if _, ok := report.Stage(StageArchive); ok {
		t.Error("archive stage should not run after a fatal materialize")
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Error("output should not be created")
	}
	if _, err := os.Stat(filepath.Join(cfg.TempDir, "leftover")); err != nil {
		t.Errorf("existing temporary root was modified: %v", err)
	}
}

func TestRun_NestedTempRootLeavesNothingBehind(t *testing.T) {
	cfg := testConfig(t, "alice")
	parent := filepath.Join(filepath.Dir(cfg.TempDir), "a")
	cfg.TempDir = filepath.Join(parent, "b")

	report, err := Run(cfg, nil)
	if err == nil {
		t.Fatal("expected error when the temporary root's parent does not exist")
	}
	if s, _ := report.Stage(StageMaterialize); s.Outcome != Fatal {
		t.Errorf("materialize outcome = %s, want fatal", s.Outcome)
	}
	if _, err := os.Stat(parent); !os.IsNotExist(err) {
		t.Errorf("%q left behind, stat err = %v", parent, err)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Error("output should not be created")
	}
}

func TestRun_ExportsImage(t *testing.T) {
	cfg := testConfig(t, "alice")
	cfg.Image = filepath.Join(t.TempDir(), "image.tar")

	report, err := Run(cfg, nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if s, _ := report.Stage(StageImage); s.Outcome != OK {
		t.Errorf("image stage = %+v, want ok", s)
	}
	if _, err := os.Stat(cfg.Image); err != nil {
		t.Errorf("image tarball missing: %v", err)
	}
}

func TestOutcomeString(t *testing.T) {
	if got := Outcome(42).String(); got != "outcome(42)" {
		t.Errorf("String() = %q, want %q", got, "outcome(42)")
	}
}
