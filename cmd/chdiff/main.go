package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chdiff/internal/app"
	"chdiff/internal/chdiff"
	"chdiff/internal/config"
	"chdiff/internal/progress"
	"chdiff/internal/report"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, app.ErrDifferences) {
			fmt.Fprintf(os.Stderr, "chdiff: %v\n", err)
		}
		os.Exit(1)
	}
}

// global flags
var (
	configPath string
	method     string
	jobs       int
	quiet      int
	veryQuiet  bool
	verbose    bool
)

func quietLevel() int {
	if veryQuiet {
		return 2
	}
	return quiet
}

// configPathOrDefault returns --config, or the default config location.
func configPathOrDefault() (string, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", nil, fmt.Errorf("getting defaults: %w", err)
	}
	if configPath != "" {
		return configPath, defaults, nil
	}
	return defaults["config_path"], defaults, nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, defaults, err := configPathOrDefault()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path, defaults["base_dir"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("method") {
		cfg.Method = method
	}
	if flags.Changed("jobs") {
		cfg.Jobs = jobs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withApp creates an App for one command, runs fn and records its outcome.
// operation identifies the command in the history database.
func withApp(cmd *cobra.Command, operation string, args []string, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	q := quietLevel()
	a, err := app.NewApp(cfg, operation, args, app.Options{
		Console:      os.Stderr,
		ConsoleLevel: app.ConsoleLevel(q, verbose),
		Progress:     progress.Factory(os.Stderr, progress.Enabled(os.Stderr, q, cfg.ParallelDirs)),
	})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}

	err = fn(cmd.Context(), a)
	a.Finish(err)
	if closeErr := a.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "chdiff: %v\n", closeErr)
	}
	return err
}

var rootCmd = &cobra.Command{
	Use:           "chdiff",
	Short:         "Checksum manifests, tree comparison and incremental snapshots",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// diff command
var diffCmd = &cobra.Command{
	Use:     "diff LEFT RIGHT",
	Aliases: []string{"d"},
	Short:   "Compare two directory trees",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		timestamps, _ := cmd.Flags().GetBool("timestamps")

		return withApp(cmd, "diff", args, func(ctx context.Context, a *app.App) error {
			res, err := a.Diff(ctx, args[0], args[1], timestamps)
			if err != nil {
				return err
			}
			if err := report.WriteEntries(os.Stdout, res.Diff.Entries(), ""); err != nil {
				return err
			}
			report.WriteErrors(os.Stderr, res.Errors)
			if res.Diff.Len() > 0 || len(res.Errors) > 0 {
				return app.ErrDifferences
			}
			return nil
		})
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:     "backup SOURCE DEST",
	Aliases: []string{"b"},
	Short:   "Create a new snapshot of SOURCE below DEST",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")

		return withApp(cmd, "backup", args, func(ctx context.Context, a *app.App) error {
			summary, err := a.Backup(ctx, args[0], args[1], full)
			if summary != nil && summary.Snapshot != "" {
				report.WriteSummary(os.Stdout, summary)
				report.WriteErrors(os.Stderr, summary.Errors)
			}
			if err != nil {
				return fmt.Errorf("backup failed: %w", err)
			}
			if summary.Partial() {
				return fmt.Errorf("%d file(s) could not be backed up", len(summary.Errors))
			}
			return nil
		})
	},
}

// create command
var createCmd = &cobra.Command{
	Use:     "create DIR...",
	Aliases: []string{"c"},
	Short:   "Write a checksum manifest into each directory",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, "create", args, func(ctx context.Context, a *app.App) error {
			outcomes := a.Create(ctx, args)
			unreadable := 0
			for _, o := range outcomes {
				if o.Err != nil {
					continue
				}
				report.WriteErrors(os.Stderr, o.Result.Errors)
				unreadable += len(o.Result.Errors)
			}
			if n := chdiff.FailedCount(outcomes); n > 0 {
				return fmt.Errorf("%d of %d directories failed", n, len(outcomes))
			}
			if unreadable > 0 {
				return app.ErrDifferences
			}
			return nil
		})
	},
}

// verify command
var verifyCmd = &cobra.Command{
	Use:     "verify DIR...",
	Aliases: []string{"v"},
	Short:   "Check each directory against its stored manifest",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, _ := cmd.Flags().GetBool("patch")

		return withApp(cmd, "verify", args, func(ctx context.Context, a *app.App) error {
			outcomes := a.Verify(ctx, args)
			clean := true
			for _, o := range outcomes {
				if o.Err != nil {
					continue
				}
				res := o.Result
				parent := ""
				if len(outcomes) > 1 {
					parent = res.Dir
				}
				if patch {
					err := report.WritePatch(os.Stdout, res.Dir, res.Stored, res.Current)
					if err != nil {
						return err
					}
				} else if err := report.WriteEntries(os.Stdout, res.Diff.Entries(), parent); err != nil {
					return err
				}
				report.WriteErrors(os.Stderr, res.Errors)
				clean = clean && res.OK()
			}
			if n := chdiff.FailedCount(outcomes); n > 0 {
				return fmt.Errorf("%d of %d directories failed", n, len(outcomes))
			}
			if !clean {
				return app.ErrDifferences
			}
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, "history", args, func(_ context.Context, a *app.App) error {
			ops, err := a.GetHistory(limit)
			if err != nil {
				return err
			}

			for _, op := range ops {
				duration := ""
				if op.FinishedAt.Valid {
					d := op.FinishedAt.Time.Sub(op.StartedAt)
					duration = d.Truncate(time.Millisecond).String()
				}
				fmt.Printf("#%d  %-8s  %s  %-11s  %-10s  %s\n",
					op.ID,
					op.Operation,
					op.StartedAt.Local().Format("2006-01-02 15:04:05"),
					op.Status,
					duration,
					op.Parameters,
				)
			}
			return nil
		})
	},
}

// snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots TARGET",
	Short: "List the recorded snapshots of a backup target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, "snapshots", args, func(_ context.Context, a *app.App) error {
			records, err := a.GetSnapshots(args[0], limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No snapshots recorded.")
				return nil
			}

			for _, r := range records {
				previous := r.Previous
				if previous == "" {
					previous = "(full)"
				}
				fmt.Printf("%s  %-15s  %-6s  new:%d same:%d deleted:%d failed:%d\n",
					r.Name, previous, r.Method, r.New, r.Unchanged, r.Deleted, r.Failed)
			}
			return nil
		})
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, defaults, err := configPathOrDefault()
		if err != nil {
			return err
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path, _, err := configPathOrDefault()
		if err != nil {
			return err
		}

		fmt.Printf("# effective configuration (file: %s)\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default $CHDIFF_CONFIG_PATH or ~/.config/chdiff.toml)")
	pf.StringVarP(&method, "method", "m", string(chdiff.DefaultMethod), fmt.Sprintf("Checksum method %v", chdiff.Methods()))
	pf.IntVarP(&jobs, "jobs", "j", 0, "Files digested in parallel (0 = number of CPUs)")
	pf.CountVarP(&quiet, "quiet", "q", "Less output; repeat to show errors only")
	pf.BoolVar(&veryQuiet, "very-quiet", false, "Show errors only")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Show debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().BoolP("timestamps", "t", false, "Also report files that differ only in modification time")
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().BoolP("full", "f", false, "Copy every file instead of reusing the previous snapshot")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().Bool("patch", false, "Show differences as a unified diff of the manifests")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.Flags().IntP("limit", "n", 50, "Maximum number of snapshots to show")
	rootCmd.AddCommand(configCmd)
}
