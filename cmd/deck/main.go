package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/logging"
	"github.com/zpdzap/devdeck/internal/machine"
	"github.com/zpdzap/devdeck/internal/probe"
	"github.com/zpdzap/devdeck/internal/scanner"
	"github.com/zpdzap/devdeck/internal/store"
	"github.com/zpdzap/devdeck/internal/supervisor"
	"github.com/zpdzap/devdeck/internal/syncrepo"
	"github.com/zpdzap/devdeck/internal/tui"
	"github.com/zpdzap/devdeck/internal/worker"
)

const startupPullTimeout = 15 * time.Second

var errNotInitialized = errors.New("devdeck is not set up on this machine (run `deck --init` first)")

// env is what every command needs: the data dir, its config and a file logger.
type env struct {
	dir    string
	cfg    *config.Config
	logger *log.Logger
	closer io.Closer
}

func main() {
	var (
		initFlag bool
		debug    bool
	)

	root := &cobra.Command{
		Use:           "deck",
		Short:         "A terminal dashboard for your local dev projects",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(debug)
			if err != nil {
				return err
			}
			defer e.closer.Close()
			if initFlag {
				return runInit(cmd.Context(), e, os.Stdin, os.Stdout)
			}
			return runDashboard(cmd.Context(), e)
		},
	}
	root.Flags().BoolVar(&initFlag, "init", false, "set up gh sync, machine id and the project list")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(exportCmd(&debug), importCmd(&debug), scanCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(debug bool) (*env, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if debug {
		level = log.DebugLevel
	}
	logger, closer, err := logging.Open(filepath.Join(dir, config.LogFile), level)
	if err != nil {
		return nil, err
	}
	logger.Debug("debug logging enabled")
	return &env{dir: dir, cfg: cfg, logger: logger, closer: closer}, nil
}

// openStore loads the synced project list, failing when init has not run.
func openStore(e *env) (*syncrepo.Repo, *store.Store, string, error) {
	id, err := machine.Get(e.dir)
	if err != nil {
		return nil, nil, "", err
	}
	repo := syncrepo.New(filepath.Join(e.dir, config.SyncDir), e.logger)
	if id == "" || !repo.Initialized() {
		return nil, nil, "", errNotInitialized
	}
	st, err := store.Open(repo.StorePath())
	if err != nil {
		return nil, nil, "", err
	}
	return repo, st, id, nil
}

func runDashboard(ctx context.Context, e *env) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("the dashboard needs a terminal; use `deck export` or `deck scan` in scripts")
	}

	repo, st, id, err := openStore(e)
	if err != nil {
		return err
	}

	pullCtx, cancel := context.WithTimeout(ctx, startupPullTimeout)
	if err := repo.Pull(pullCtx); err != nil {
		e.logger.Warn("startup pull failed", "err", err)
	} else if err := st.Reload(); err != nil {
		e.logger.Warn("store reload failed", "err", err)
	}
	cancel()

	opts := []worker.Option{
		worker.WithStaleAfter(e.cfg.StaleAfterDuration()),
		worker.WithLogger(e.logger),
	}
	if disk, err := worker.OpenDiskCache(filepath.Join(e.dir, config.ProbeCacheDir), e.logger); err != nil {
		e.logger.Warn("probe snapshot unavailable, running memory-only", "err", err)
	} else {
		opts = append(opts, worker.WithSnapshot(disk))
	}
	prober := probe.New(e.cfg.GitTimeoutDuration(), e.logger)
	w := worker.New(prober.Probe, opts...)
	defer w.Close()

	sup := supervisor.New(
		supervisor.WithGracePeriod(e.cfg.GracePeriodDuration()),
		supervisor.WithLogger(e.logger),
	)

	return tui.Run(tui.Deps{
		Config:     e.cfg,
		Store:      st,
		Sync:       repo,
		Worker:     w,
		Supervisor: sup,
		MachineID:  id,
		Logger:     e.logger,
	})
}

func exportCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the project list as TOML (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*debug)
			if err != nil {
				return err
			}
			defer e.closer.Close()
			_, st, _, err := openStore(e)
			if err != nil {
				return err
			}

			if args[0] == "-" {
				return st.Export(os.Stdout)
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := st.Export(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("Exported %d projects to %s\n", len(st.List()), args[0])
			return nil
		},
	}
}

func importCmd(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge projects from a TOML file; existing projects are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*debug)
			if err != nil {
				return err
			}
			defer e.closer.Close()
			repo, st, _, err := openStore(e)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			added, err := st.Import(f)
			if err != nil {
				return err
			}
			if err := st.Save(); err != nil {
				return err
			}
			fmt.Printf("Imported %d new projects\n", added)

			if added > 0 {
				if err := repo.Push(cmd.Context(), fmt.Sprintf("Import %d projects", added)); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: sync push failed: %v\n", err)
				}
			}
			return nil
		},
	}
}

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List git repositories found in the usual project directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repos, err := scanHome()
			if err != nil {
				return err
			}
			if len(repos) == 0 {
				fmt.Println("No repositories found.")
				return nil
			}
			for _, r := range repos {
				if r.RemoteURL != "" {
					fmt.Printf("%s\t%s\n", r.Path, r.RemoteURL)
				} else {
					fmt.Println(r.Path)
				}
			}
			return nil
		},
	}
}

// scanHome scans the common roots plus the configured install dir.
func scanHome() ([]scanner.Repo, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	var extra []string
	if dir, err := config.Dir(); err == nil {
		if cfg, err := config.Load(dir); err == nil {
			if install, ok := cfg.InstallDirPath(); ok {
				extra = append(extra, install)
			}
		}
	}
	return scanner.Scan(home, extra...), nil
}
