// Package logging builds the logrus logger shared by the generator stages.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/sirupsen/logrus"
)

const timestampFormat = "Jan 02, 2006 3:04:05 PM"

// Options configures a logger.
type Options struct {
	Verbosity config.Verbosity
	Console   io.Writer // defaults to os.Stderr
	LogFile   string    // appended to when non-empty
}

// Level maps a verbosity to the lowest logrus level that is reported.
func Level(v config.Verbosity) logrus.Level {
	switch v {
	case config.Silent:
		return logrus.ErrorLevel
	case config.Verbose:
		return logrus.TraceLevel
	default:
		return logrus.WarnLevel
	}
}

// New returns a logger writing to the console and, if set, the log file.
// The returned closer releases the log file and must be called once logging is done.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	log := logrus.New()
	log.SetFormatter(&Formatter{})
	log.SetLevel(Level(opts.Verbosity))

	if opts.LogFile == "" {
		log.SetOutput(console)
		return log, io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.LogFile, err)
	}
	log.SetOutput(io.MultiWriter(console, f))
	return log, f, nil
}

// Formatter renders records as "[LEVEL  ] - [timestamp] message key=value".
type Formatter struct{}

// Format implements logrus.Formatter.
func (f *Formatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%-7s] - [%s] %s", strings.ToUpper(e.Level.String()), e.Time.Format(timestampFormat), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := e.Data[k]
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		fmt.Fprintf(&b, " %s=%q", k, fmt.Sprint(v))
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
