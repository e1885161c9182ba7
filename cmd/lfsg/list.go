package main

import (
	"fmt"

	"github.com/gofixpoint/lfsg/internal/archive"
	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries of a generated archive",
		Long: `List the entries of a gzip-compressed tar archive, one per line, as
"<mode> <name>". Directory names are printed without a trailing slash.

Examples:
  lfsg list rootfs.tar.gz`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &config.UsageError{Msg: err.Error()}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := archive.List(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "%s %s\n", e.Mode, e.Name)
			}
			return nil
		},
	}
}
