package config

import (
	"fmt"
	"os"
)

const (
	// DefaultTempDir is the temporary root, relative to the working directory.
	DefaultTempDir = "LFSG_Temp"

	// DefaultLogFile is the persistent log file, relative to the working directory.
	DefaultLogFile = "LFSG.log"

	// DefaultImageTag is the reference recorded in exported image tarballs.
	DefaultImageTag = "lfsg/rootfs:latest"

	// EnvTempDir is the environment variable that overrides DefaultTempDir.
	EnvTempDir = "LFSG_TEMP_DIR"

	// EnvLogFile is the environment variable that overrides DefaultLogFile.
	EnvLogFile = "LFSG_LOG_FILE"
)

// Verbosity controls which log records are reported.
type Verbosity int

const (
	// Normal reports warnings and above.
	Normal Verbosity = iota
	// Silent reports only errors.
	Silent
	// Verbose reports every step.
	Verbose
)

func (v Verbosity) String() string {
	switch v {
	case Silent:
		return "Silent"
	case Verbose:
		return "Verbose"
	default:
		return "Normal"
	}
}

// Config is built once from the parsed flags and passed to the pipeline.
type Config struct {
	Users     []string  // Users that each get a home directory
	Output    string    // Path of the gzip-compressed tar archive
	Verbosity Verbosity // Log verbosity
	Exclude   []string  // Plan entries to skip, with everything beneath them
	TempDir   string    // Temporary root the tree is materialized under
	LogFile   string    // Persistent log file, empty to disable
	Image     string    // Optional container image tarball path
	ImageTag  string    // Reference recorded in the image tarball
}

// UsageError reports a missing or malformed command-line argument.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string {
	return e.Msg
}

// Usagef returns a *UsageError with a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// Validate checks that the required arguments are present.
func (c Config) Validate() error {
	if len(c.Users) == 0 {
		return Usagef("no users specified: pass -u user1,user2")
	}
	if c.Output == "" {
		return Usagef("no output specified: pass -o path/to/rootfs.tar.gz")
	}
	if c.TempDir == "" {
		return Usagef("temporary directory must not be empty")
	}
	if c.ImageTag == "" && c.Image != "" {
		return Usagef("--image-tag must not be empty when --image is set")
	}
	return nil
}

// TempDir returns the default temporary root.
// It checks LFSG_TEMP_DIR first, falling back to LFSG_Temp.
func TempDir() string {
	if dir := os.Getenv(EnvTempDir); dir != "" {
		return dir
	}
	return DefaultTempDir
}

// LogFile returns the default log file path.
// It checks LFSG_LOG_FILE first, falling back to LFSG.log.
func LogFile() string {
	if path, ok := os.LookupEnv(EnvLogFile); ok {
		return path
	}
	return DefaultLogFile
}
