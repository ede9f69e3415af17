package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"recordcore/internal/config"
)

// Runtime opens the App before a subcommand runs and closes it afterwards.
// Commands reach the App through Runtime.App.
type Runtime struct {
	configPath string
	storage    string
	sqlitePath string
	storeURL   string
	logLevel   string
	metrics    bool

	logOut io.Writer
	app    *App
}

// NewRuntime returns a Runtime that logs to logOut.
func NewRuntime(logOut io.Writer) *Runtime {
	return &Runtime{logOut: logOut}
}

// Bind registers the persistent flags on root and hooks App construction
// into its pre-run.
func (r *Runtime) Bind(root *cobra.Command) {
	flags := root.PersistentFlags()
	flags.StringVar(&r.configPath, "config", "", "YAML configuration file (defaults to $"+config.EnvConfigFile+")")
	flags.StringVar(&r.storage, "storage", "", "storage driver: memory, sqlite, postgres or mongo")
	flags.StringVar(&r.sqlitePath, "sqlite-path", "", "sqlite database file")
	flags.StringVar(&r.storeURL, "store-url", "", "postgres DSN or mongo URI")
	flags.StringVar(&r.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&r.metrics, "metrics", false, "print operation metrics after the command")

	root.SilenceUsage = true
	root.SilenceErrors = true
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		return r.open(cmd.Context())
	}
}

func (r *Runtime) open(ctx context.Context) error {
	cfg, err := config.LoadFile(r.configPath)
	if err != nil {
		return err
	}
	if r.storage != "" && r.storage != cfg.Storage.Driver {
		cfg.Storage.Driver = r.storage
		cfg.Storage.URL = config.DefaultURL(r.storage)
	}
	if r.sqlitePath != "" {
		cfg.Storage.SQLitePath = r.sqlitePath
	}
	if r.storeURL != "" {
		cfg.Storage.URL = r.storeURL
	}
	if r.logLevel != "" {
		cfg.Log.Level = r.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app, err := Open(ctx, cfg, r.logOut)
	if err != nil {
		return err
	}
	r.app = app
	return nil
}

// App returns the opened App. It is nil before the pre-run hook.
func (r *Runtime) App() *App { return r.app }

// Finish prints metrics when requested and closes the App.
func (r *Runtime) Finish(out io.Writer) error {
	if r.app == nil {
		return nil
	}
	var errs []error
	if r.metrics {
		errs = append(errs, r.app.WriteMetrics(out))
	}
	errs = append(errs, r.app.Close())
	r.app = nil
	return errors.Join(errs...)
}

// Execute runs root with args and returns the process exit code.
func Execute(ctx context.Context, root *cobra.Command, rt *Runtime, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if finishErr := rt.Finish(stderr); err == nil {
		err = finishErr
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
