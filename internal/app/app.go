// internal/app/app.go
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blastdbbuilder/internal/cli"
	"blastdbbuilder/internal/cmdutil"
	"blastdbbuilder/internal/config"
	"blastdbbuilder/internal/errs"
	"blastdbbuilder/internal/pipeline"
	"blastdbbuilder/internal/summary"
	"blastdbbuilder/internal/tool"
	"blastdbbuilder/internal/version"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitInterrupted = 130
)

// usageError marks command-line mistakes.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err}
}

type application struct {
	stdout, stderr io.Writer
	v              *viper.Viper
	opts           cli.Options
	lookPath       tool.LookPathFunc
}

// RunContext executes the command line argv and returns the process exit code.
func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	outw := bufio.NewWriter(stdout)
	defer func() { _ = outw.Flush() }()

	a := &application{stdout: outw, stderr: stderr, v: config.New()}
	root := a.rootCommand()
	root.SetArgs(argv)
	root.SetOut(outw)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if e := outw.Flush(); e != nil && !cmdutil.IsBrokenPipe(e) && err == nil {
		err = e
	}
	return a.exitCode(ctx, root, err)
}

// Run is RunContext without cancellation.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

func (a *application) exitCode(ctx context.Context, root *cobra.Command, err error) int {
	switch {
	case err == nil:
		if ctx.Err() != nil {
			return ExitInterrupted
		}
		return ExitOK
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		_, _ = fmt.Fprintln(a.stderr, "interrupted")
		return ExitInterrupted
	}
	_, _ = fmt.Fprintf(a.stderr, "%s: %v\n", root.Name(), err)
	var ue usageError
	switch {
	case errors.As(err, &ue):
		_, _ = fmt.Fprintf(a.stderr, "Run '%s --help' for usage.\n", root.Name())
		return ExitUsage
	case errors.Is(err, errs.Config):
		return ExitUsage
	}
	return ExitFailure
}

func (a *application) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   config.Name,
		Short: "Build a nucleotide BLAST database from NCBI RefSeq genomes",
		Long: `
Download RefSeq genome assemblies per taxonomic group, concatenate them into one
FASTA file and index it with makeblastdb. Stages compose:

  ` + config.Name + ` --archaea --virus --concat --build

Every stage is idempotent; re-running skips what is already on disk. Outcomes
are appended to <root>/summary.log.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			return usage(cobra.NoArgs(cmd, args))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan := pipeline.Plan{
				Groups: a.opts.Groups(),
				Concat: a.opts.Concat,
				Build:  a.opts.Build,
				Verify: a.opts.Verify,
			}
			if plan.Empty() {
				return usage(errors.New("nothing to do: select a group (--archaea --bacteria --fungi --virus --plants), --concat or --build"))
			}
			return a.execute(cmd.Context(), plan)
		},
	}
	root.SetVersionTemplate(config.Name + " version {{.Version}}\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usage(err) })

	cli.AddGlobalFlags(root.PersistentFlags(), &a.opts)
	cli.AddStageFlags(root.Flags(), &a.opts)
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.opts.Validate(); err != nil {
			return usage(err)
		}
		return cli.Bind(a.v, cmd.Flags())
	}

	root.AddCommand(a.downloadCommand(), a.concatCommand(), a.buildCommand(), a.versionCommand())
	return root
}

func (a *application) downloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "download group [group...]",
		Short:   "Download the genomes of one or more groups",
		Example: "  " + config.Name + " download bacteria virus --jobs 4",
		Args: func(cmd *cobra.Command, args []string) error {
			return usage(cobra.MinimumNArgs(1)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(cmd.Context(), pipeline.Plan{Groups: a.opts.Groups(args...)})
		},
	}
}

func (a *application) concatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concat",
		Short: "Concatenate downloaded genomes into " + config.Name + "'s combined FASTA file",
		Args: func(cmd *cobra.Command, args []string) error {
			return usage(cobra.NoArgs(cmd, args))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd.Context(), pipeline.Plan{Concat: true, Verify: a.opts.Verify})
		},
	}
	cli.AddVerifyFlag(cmd.Flags(), &a.opts)
	return cmd
}

func (a *application) buildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Build the BLAST database from the combined FASTA file",
		Args: func(cmd *cobra.Command, args []string) error {
			return usage(cobra.NoArgs(cmd, args))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.execute(cmd.Context(), pipeline.Plan{Build: true})
		},
	}
}

func (a *application) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// Skips the root's config binding.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", config.Name, version.Version)
			return err
		},
	}
}

// execute resolves the configuration, checks the required tools and runs plan.
func (a *application) execute(ctx context.Context, plan pipeline.Plan) error {
	cfg, err := config.Load(a.v, a.opts.ConfigFile)
	if err != nil {
		return err
	}
	for _, name := range plan.Groups {
		if _, err := cfg.Group(name); err != nil {
			return err
		}
	}
	if err := tool.Require(a.lookPath, pipeline.Requirements(cfg, plan)...); err != nil {
		return err
	}

	log := cmdutil.NewLogger(a.stderr, a.opts.Quiet, a.opts.Verbose)
	var progress io.Writer
	if !a.opts.Quiet && !a.opts.NoProgress {
		progress = a.stderr
	}
	run := summary.New(summary.OpenLog(cfg.Root))
	entry := log.WithField("run", run.ShortID())
	if cfg.File != "" {
		entry.Debugf("config file %s", cfg.File)
	}
	entry.Debugf("config %s", cfg)
	entry.Infof("stages: %s", strings.Join(plan.Stages(), ", "))

	p := pipeline.New(cfg, entry, progress)
	runErr := p.Run(ctx, plan, run)
	if ctx.Err() == nil {
		a.report(run)
	}
	return runErr
}

// report prints the run's outcome to stdout.
func (a *application) report(run *summary.Run) {
	w := a.stdout
	for _, g := range run.Groups() {
		s := run.Group(g)
		if s.Err != nil {
			_, _ = fmt.Fprintf(w, "%-10s aborted: %v\n", g, s.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%-10s %s\n", g, s)
	}
	if c, ok := run.Concat(); ok && c.Err == nil {
		_, _ = fmt.Fprintf(w, "combined   %s (%d files, %d records)\n", c.Path, c.Files, c.Records)
	}
	if ix, ok := run.Index(); ok && ix.Err == nil {
		_, _ = fmt.Fprintf(w, "database   %s\n", ix.Prefix)
	}
	if failed := run.FailedGroups(); len(failed) > 0 {
		_, _ = fmt.Fprintf(w, "retry with: %s download %s\n", config.Name, strings.Join(failed, " "))
	}
}
