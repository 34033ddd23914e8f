// Package main is the bgs command line tool.
//
// bgs manages a Board Game Studio data directory: member profiles and the
// signed-in session, plus projects, jobs, events, groups and marketplace
// listings. Configuration is read from bgs.yaml in the data directory;
// flags override it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/maruel/bgstudio/internal/storage"
	"github.com/maruel/bgstudio/internal/studio"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := mainImpl(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "bgs: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func mainImpl(ctx context.Context, args []string, out io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}

// app holds the global flags.
type app struct {
	dataDir  string
	logLevel string
	backend  string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "bgs",
		Short:         "Board Game Studio data store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initLogger(a.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "./data", "Data directory")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "Override the storage backend (file, sqlite, badger, memory)")

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.switchCmd(),
		a.updateCmd(),
		a.usersCmd(),
		a.createCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.joinCmd(),
		a.leaveCmd(),
		a.repairCmd(),
		schemaCmd(),
		a.historyCmd(),
		a.watchCmd(),
		versionCmd(),
	)
	return root
}

// open opens the data directory with bgs.yaml and the flag overrides.
func (a *app) open() (*studio.Studio, error) {
	cfg, err := storage.LoadConfig(a.dataDir)
	if err != nil {
		return nil, err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	return studio.Open(a.dataDir, cfg)
}

// run opens the studio, calls fn and closes it, flushing every write.
func (a *app) run(fn func(s *studio.Studio) error) (err error) {
	s, err := a.open()
	if err != nil {
		return err
	}
	defer func() {
		if err2 := s.Close(); err == nil {
			err = err2
		}
	}()
	return fn(s)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initLogger(level string) error {
	ll := &slog.LevelVar{}
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "info":
		ll.Set(slog.LevelInfo)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		return fmt.Errorf("invalid log level %q", level)
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version, goVersion, revision, dirty := getBuildInfo()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "bgs %s\n", version)
			fmt.Fprintf(w, "  Go version: %s\n", goVersion)
			fmt.Fprintf(w, "  Revision:   %s\n", revision)
			if dirty {
				fmt.Fprintf(w, "  Modified:   true\n")
			}
		},
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
