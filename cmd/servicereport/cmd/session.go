package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Aman-CERP/servicereport/internal/catalog"
	"github.com/Aman-CERP/servicereport/internal/config"
	srerrors "github.com/Aman-CERP/servicereport/internal/errors"
	"github.com/Aman-CERP/servicereport/internal/host"
	"github.com/Aman-CERP/servicereport/internal/logging"
	"github.com/Aman-CERP/servicereport/internal/plugin"
	"github.com/Aman-CERP/servicereport/internal/plugins/dump"
	"github.com/Aman-CERP/servicereport/internal/report"
	"github.com/Aman-CERP/servicereport/internal/scheme"
	"github.com/Aman-CERP/servicereport/internal/validate"
)

// session is the state shared by one invocation.
type session struct {
	cfg       *config.Config
	logger    *slog.Logger
	host      *host.Host
	validator *validate.Validator
	printer   *report.Printer
	cleanup   func()
}

// loadConfig loads the configuration and applies flag overrides.
func loadConfig(o *options, d deps) (*config.Config, error) {
	cfg, err := config.Load(o.configPath, d.envFile)
	if err != nil {
		return nil, err
	}
	if o.logFile != "" {
		cfg.Log.File = o.logFile
	}
	return cfg, nil
}

// openSession performs the common setup of report and list runs: root
// check, logging, host and plugin discovery.
func openSession(o *options, d deps, stdout, stderr io.Writer) (*session, error) {
	if d.geteuid() != 0 {
		return nil, srerrors.New(srerrors.ErrCodeNotRoot, "Must be root to run the tool", nil)
	}

	cfg, err := loadConfig(o, d)
	if err != nil {
		return nil, err
	}

	console := stderr
	if o.quiet {
		console = io.Discard
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:        cfg.Log.Level,
		FilePath:     cfg.Log.File,
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		MaxFiles:     cfg.Log.MaxFiles,
		Console:      console,
		ConsoleLevel: logging.VerbosityLevel(o.verbose, o.quiet),
	})
	if err != nil {
		logger.Warn("log file unavailable, logging to console only",
			slog.String("path", cfg.Log.File),
			slog.String("error", err.Error()))
	}

	h := d.newHost(cfg.Root, logger)
	resolver := scheme.NewResolver(h.Facts(), logger, scheme.Builtin()...)
	registry := plugin.NewRegistry(plugin.WithLogger(logger), plugin.WithKnownSchemes(resolver.Known))
	loaded := registry.Discover(catalog.Validation()...)
	logger.Debug("plugins loaded", slog.Int("count", loaded))

	env := plugin.Env{Host: h, Logger: logger, Warnings: console}
	styles := report.GetStyles(cfg.Report.Color, stdout)
	return &session{
		cfg:       cfg,
		logger:    logger,
		host:      h,
		validator: validate.New(registry, resolver, env, validate.WithLogger(logger)),
		printer:   report.New(stdout, report.Options{Verbose: o.verbose, Repair: o.repair, Styles: styles}),
		cleanup:   cleanup,
	}, nil
}

// selection merges the configured and flag plugin choices. A dump run
// validates only the dump plugin applicable to the host.
func (s *session) selection(o *options) validate.Selection {
	if o.dump {
		return validate.Selection{Plugins: []string{dump.ForHost(s.host)}}
	}
	sel := validate.Selection{
		Plugins:  s.cfg.Plugins,
		Optional: append(append([]string{}, s.cfg.Optional...), o.optional...),
		All:      s.cfg.All || o.all,
	}
	if len(o.plugins) > 0 {
		sel.Plugins = o.plugins
	}
	return sel
}

func (s *session) close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

// defaultHost returns a host over root executing real commands.
func defaultHost(root string, logger *slog.Logger) *host.Host {
	return host.New(host.WithRoot(root), host.WithLogger(logger))
}

func printError(w io.Writer, err error) {
	_, _ = fmt.Fprint(w, srerrors.FormatForCLI(err))
}
