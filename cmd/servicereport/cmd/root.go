// Package cmd provides the CLI commands for servicereport.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/servicereport/internal/catalog"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/history"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/lock"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/dump"
	"github.com/Aman-CERP/servicereport/internal/repair"
	"github.com/Aman-CERP/servicereport/pkg/version"
)

// ErrChecksFailed is returned when a plugin still fails at the end of a
// run. It maps to exit status 1 without an error message.
var ErrChecksFailed = errors.New("one or more checks failed")

// options holds the command line flags.
type options struct {
	plugins     []string
	optional    []string
	all         bool
	repair      bool
	verbose     int
	quiet       bool
	logFile     string
	dump        bool
	list        bool
	jsonOutput  bool
	configPath  string
	showVersion bool
}

// deps are the process-level collaborators, replaced in tests.
type deps struct {
	geteuid    func() int
	newHost    func(root string, logger *slog.Logger) *host.Host
	crash      func(h *host.Host) error
	crashDelay time.Duration
	envFile    string
	now        func() time.Time
}

func defaultDeps() deps {
	return deps{
		geteuid:    os.Geteuid,
		newHost:    defaultHost,
		crash:      (*host.Host).TriggerCrash,
		crashDelay: 5 * time.Second,
		now:        time.Now,
	}
}

// NewRootCmd creates the root command for the servicereport CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "servicereport",
		Short: "Validate and repair host serviceability configuration",
		Long: `ServiceReport checks that a host is set up to produce useful problem
reports: dump capture, error-log daemons, diagnostic packages and
platform services. With --repair it fixes what it can.`,
		Example: `  # Validate every applicable mandatory plugin
  servicereport

  # Validate and repair the dump configuration only
  servicereport -p kdump -r

  # Include optional plugins and show every check
  servicereport -a -v`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), o, d, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&o.plugins, "plugins", "p", nil, "validate the specified plugins only, in order")
	flags.StringSliceVarP(&o.optional, "optional", "o", nil, "enable optional plugins")
	flags.BoolVarP(&o.all, "all", "a", false, "run all applicable plugins, optional ones included")
	flags.BoolVarP(&o.repair, "repair", "r", false, "fix incorrect configuration")
	flags.BoolVarP(&o.dump, "dump", "d", false, "validate only the dump plugin, then trigger a dump")
	flags.BoolVarP(&o.list, "list", "l", false, "list all applicable plugins")
	flags.BoolVarP(&o.showVersion, "version", "V", false, "print the tool version and exit")

	pflags := cmd.PersistentFlags()
	pflags.CountVarP(&o.verbose, "verbose", "v", "increase verbosity (repeatable)")
	pflags.BoolVarP(&o.quiet, "quiet", "q", false, "no output on console")
	pflags.StringVarP(&o.logFile, "file", "f", "", "write logs to this file")
	pflags.BoolVar(&o.jsonOutput, "json", false, "output as JSON")
	pflags.StringVar(&o.configPath, "config", "", "configuration file (default /etc/servicereport/config.yaml)")

	cmd.AddCommand(newListCmd(o, d))
	cmd.AddCommand(newHistoryCmd(o, d))
	cmd.AddCommand(newConfigCmd(o, d))
	cmd.AddCommand(newVersionCmd(o))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err != nil && !errors.Is(err, ErrChecksFailed) {
		printError(cmd.ErrOrStderr(), err)
	}
	return err
}

// runReport validates, optionally repairs, reports and records one run.
func runReport(ctx context.Context, o *options, d deps, stdout, stderr io.Writer) error {
	if o.quiet {
		stdout = io.Discard
	}
	if !o.jsonOutput {
		_, _ = fmt.Fprintf(stdout, "%s\n\n", version.Banner())
	}
	if o.showVersion {
		return nil
	}
	if o.list {
		return runList(o, d, stdout, stderr)
	}

	s, err := openSession(o, d, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	runLock := lock.New(s.cfg.LockPath)
	if err := runLock.Acquire(); err != nil {
		return err
	}
	defer func() { _ = runLock.Release() }()

	started := d.now()
	results := s.validator.Validate(ctx, s.selection(o))
	s.logger.Debug("validation complete", slog.Int("plugins", results.Len()))

	if o.repair {
		repair.NewEngine(catalog.Repair(), repair.WithLogger(s.logger)).RepairAll(ctx, results)
		s.logger.Debug("repair complete")
	}

	if o.jsonOutput {
		if err := s.printer.JSON(results, version.Version, o.repair); err != nil {
			return err
		}
	} else {
		s.printer.Unknown(results.Unknown)
		s.printer.Results(results)
	}

	s.recordHistory(ctx, history.FromResults(results, started, version.Version, o.repair))

	if o.dump {
		if err := s.triggerDump(ctx, d, results, stdout); err != nil {
			return err
		}
	}

	if !results.Passed() {
		return ErrChecksFailed
	}
	return nil
}

// recordHistory stores the run. Failures are logged and never fail the
// run.
func (s *session) recordHistory(ctx context.Context, run history.Run) {
	if !s.cfg.History.Enabled {
		return
	}
	store, err := history.Open(s.cfg.History.Path)
	if err != nil {
		s.logger.Warn("run history unavailable", srerrors.FormatForLog(err)...)
		return
	}
	defer func() { _ = store.Close() }()

	id, err := store.Save(ctx, run)
	if err != nil {
		s.logger.Warn("failed to record run", srerrors.FormatForLog(err)...)
		return
	}
	if removed, err := store.Prune(ctx, s.cfg.History.Keep); err != nil {
		s.logger.Warn("failed to prune run history", srerrors.FormatForLog(err)...)
	} else if removed > 0 {
		s.logger.Debug("run history pruned", slog.Int64("removed", removed))
	}
	s.logger.Info("run recorded", slog.String("run_id", id))
}

// triggerDump crashes the kernel when the host's dump plugin passed, so
// the capture kernel saves a vmcore.
func (s *session) triggerDump(ctx context.Context, d deps, results *plugin.Results, stdout io.Writer) error {
	insts := results.Get(dump.ForHost(s.host))
	if len(insts) == 0 {
		s.logger.Warn("Dump plugin not found, dummy dump not initiated")
		return nil
	}
	for _, inst := range insts {
		if !inst.Passed() {
			return ErrChecksFailed
		}
	}

	_, _ = fmt.Fprintln(stdout, "About to crash the kernel, press Ctrl+c to stop")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.crashDelay):
	}
	if err := d.crash(s.host); err != nil {
		return srerrors.New(srerrors.ErrCodeCommandFailed, "failed to trigger kernel crash", err)
	}
	return nil
}
