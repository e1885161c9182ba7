package main

import (
	"strconv"
	"strings"

	"github.com/gofixpoint/lfsg/internal/config"
	"github.com/gofixpoint/lfsg/internal/logging"
	"github.com/gofixpoint/lfsg/internal/pipeline"
	"github.com/gofixpoint/lfsg/internal/plan"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// verbosityFlag backs both -s and -v so the one given last wins.
type verbosityFlag struct {
	target *config.Verbosity
	level  config.Verbosity
}

var _ pflag.Value = (*verbosityFlag)(nil)

func (f *verbosityFlag) String() string {
	return strconv.FormatBool(f.target != nil && *f.target == f.level)
}

func (f *verbosityFlag) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	switch {
	case on:
		*f.target = f.level
	case *f.target == f.level:
		*f.target = config.Normal
	}
	return nil
}

func (f *verbosityFlag) Type() string { return "bool" }

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lfsg -u <users> -o <output> [flags]",
		Short: "LFSG - Linux root filesystem skeleton generator",
		Long: `Generate a skeletal Linux root filesystem and package it as a gzip-compressed
tar archive, for use as a container or test filesystem base.

The archive contains only directories: the standard top-level tree
(bin, sbin, boot, dev, etc, home, lib, lib64, media, mnt, opt, proc, root,
usr and its usual children) plus home/<user> for every requested user.

The tree is built under a temporary directory (LFSG_Temp by default) which is
removed when the run finishes, even if writing the archive failed. Log records
are appended to LFSG.log in the working directory.

Verbosity:
  (default)    Warnings and errors
  -s           Errors only
  -v           Every step, including each directory
  The last of -s and -v wins. Unrecognized arguments are ignored.

Examples:
  lfsg -u alice,bob -o rootfs.tar.gz
  lfsg -u alice -o rootfs.tar.gz -x boot,media -v
  lfsg -u alice -o rootfs.tar.gz --image rootfs-image.tar --image-tag lfsg/rootfs:dev`,
		// Stray tokens and unknown flags are ignored.
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceUsage:       true,
		SilenceErrors:      true,
		CompletionOptions:  cobra.CompletionOptions{HiddenDefaultCmd: true},
		RunE:               runGenerate,
	}

	verbosity := new(config.Verbosity)
	cmd.Flags().StringP("users", "u", "", "Comma-separated user names, one home directory each (required)")
	cmd.Flags().StringP("output", "o", "", "Path of the archive to write, overwritten if it exists (required)")
	cmd.Flags().VarPF(&verbosityFlag{target: verbosity, level: config.Silent}, "silent", "s", "Only report errors").NoOptDefVal = "true"
	cmd.Flags().VarPF(&verbosityFlag{target: verbosity, level: config.Verbose}, "verbose", "v", "Report every step").NoOptDefVal = "true"
	cmd.Flags().StringP("exclude", "x", "", "Comma-separated entries to leave out, with everything beneath them")
	cmd.Flags().String("temp-dir", config.TempDir(), "Temporary directory the tree is built in (env "+config.EnvTempDir+")")
	cmd.Flags().String("log-file", config.LogFile(), "Log file to append to, empty to disable (env "+config.EnvLogFile+")")
	cmd.Flags().String("image", "", "Also write a single-layer container image tarball to this path")
	cmd.Flags().String("image-tag", config.DefaultImageTag, "Image reference recorded in the --image tarball")
	return cmd
}

func configFromFlags(cmd *cobra.Command) (config.Config, error) {
	users, _ := cmd.Flags().GetString("users")
	output, _ := cmd.Flags().GetString("output")
	exclude, _ := cmd.Flags().GetString("exclude")
	tempDir, _ := cmd.Flags().GetString("temp-dir")
	logFile, _ := cmd.Flags().GetString("log-file")
	image, _ := cmd.Flags().GetString("image")
	imageTag, _ := cmd.Flags().GetString("image-tag")

	cfg := config.Config{
		Users:     plan.ParseUsers(users),
		Output:    output,
		Verbosity: verbosityOf(cmd),
		TempDir:   tempDir,
		LogFile:   logFile,
		Image:     image,
		ImageTag:  imageTag,
	}
	if exclude != "" {
		cfg.Exclude = strings.Split(exclude, ",")
	}

	return cfg, pipeline.Validate(cfg)
}

func verbosityOf(cmd *cobra.Command) config.Verbosity {
	if f := cmd.Flags().Lookup("silent"); f != nil {
		if v, ok := f.Value.(*verbosityFlag); ok {
			return *v.target
		}
	}
	return config.Normal
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Options{
		Verbosity: cfg.Verbosity,
		Console:   cmd.ErrOrStderr(),
		LogFile:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("Starting Linux FS Generator (LFSG)")
	log.Infof("Logger mode: %s", cfg.Verbosity)
	if len(args) > 0 {
		log.WithField("tokens", strings.Join(args, " ")).Warn("Ignoring unrecognized arguments")
	}

	// Archive, image and cleanup failures are reported by the pipeline and
	// do not change the exit status.
	_, err = pipeline.Run(cfg, log)
	return err
}
