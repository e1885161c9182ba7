package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/spf13/cobra"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func newRootCmd() *cobra.Command {
	rootCmd := newGenerateCmd()
	rootCmd.AddCommand(newListCmd())
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &config.UsageError{Msg: err.Error()}
	})
	return rootCmd
}

func exitCode(err error) int {
	var usageErr *config.UsageError
	if errors.As(err, &usageErr) {
		return exitUsage
	}
	return exitFailure
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := exitCode(err)
		if code == exitUsage {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		}
		os.Exit(code)
	}
}
