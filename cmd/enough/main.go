package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/enough/enough/internal/adapter/hostsfile"
	"github.com/enough/enough/internal/adapter/priv"
	"github.com/enough/enough/internal/adapter/process"
	"github.com/enough/enough/internal/adapter/sqlite"
	"github.com/enough/enough/internal/adapter/svc"
	"github.com/enough/enough/internal/adapter/sysclock"
	"github.com/enough/enough/internal/adapter/yamlconf"
	"github.com/enough/enough/internal/adapter/yamlfile"
	"github.com/enough/enough/internal/domain"
	"github.com/enough/enough/internal/port"
	"github.com/enough/enough/internal/tui"
	"github.com/enough/enough/internal/usecase/engine"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps well-known failures to stable codes for scripting.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrAlreadyActive):
		return 2
	case errors.Is(err, domain.ErrNotActive):
		return 3
	case errors.Is(err, domain.ErrStillLocked):
		return 4
	case errors.Is(err, domain.ErrPermissionDenied):
		return 5
	default:
		return 1
	}
}

type rootFlags struct {
	configPath string
	stateDir   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "enough",
		Short:         "Time-boxed website and application blocking",
		Long:          "enough blocks distracting websites and applications for a fixed period.\nOnce a session starts it cannot be ended early without --force.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "profiles file (default: search ./enough.yaml, ~/.config/enough/)")
	root.PersistentFlags().StringVar(&flags.stateDir, "state-dir", "", "session state directory (default: "+defaultStateDir()+")")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newStartCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newStopCmd(flags))
	root.AddCommand(newProfilesCmd(flags))
	root.AddCommand(newHistoryCmd(flags))
	root.AddCommand(newDaemonCmd(flags))
	return root
}

func newLogger(flags *rootFlags) hclog.Logger {
	level := hclog.Info
	if flags.verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "enough",
		Level:  level,
		Output: os.Stderr,
	})
}

func defaultStateDir() string {
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "enough")
		}
		return `C:\ProgramData\enough`
	}
	return "/var/lib/enough"
}

func hostsPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// app bundles everything a command needs once wired.
type app struct {
	engine  *engine.Engine
	history *sqlite.HistoryStore
	log     hclog.Logger
}

func (a *app) close() {
	if a.history != nil {
		_ = a.history.Close()
	}
}

func buildApp(flags *rootFlags) (*app, error) {
	log := newLogger(flags)
	stateDir := flags.stateDir
	if stateDir == "" {
		stateDir = defaultStateDir()
	}

	store := yamlfile.New(stateDir, log.Named("store"))
	history, err := sqlite.NewHistoryStore(filepath.Join(stateDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	appliers := map[domain.TargetKind]port.TargetApplier{
		domain.TargetWebsite:     hostsfile.New(hostsPath(), log.Named("hosts")),
		domain.TargetApplication: process.New(log.Named("process")),
	}

	eng := engine.New(store, appliers, sysclock.New(), priv.New(), history, log.Named("engine"))
	return &app{engine: eng, history: history, log: log}, nil
}

func loadConfig(flags *rootFlags) (*yamlconf.Config, error) {
	return yamlconf.Load(flags.configPath)
}

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter profiles file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := flags.configPath
			if _, err := os.Stat(pathOrDefault(path)); err == nil {
				return fmt.Errorf("config already exists at %s", pathOrDefault(path))
			}
			written, err := yamlconf.GenerateSample(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\nedit it, then run: enough start\n", written)
			return nil
		},
	}
}

func pathOrDefault(path string) string {
	if path == "" {
		return yamlconf.DefaultConfigPath()
	}
	return path
}

func newStartCmd(flags *rootFlags) *cobra.Command {
	var profileName string
	var durationStr string
	var detach bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a blocking session",
		Long:  "Starts a session from a profile and keeps enforcing it until the time is up.\nWithout --detach the watchdog runs in the foreground; interrupting it does\nnot end the session, the next start/daemon run picks it back up.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			profile, err := cfg.Resolve(profileName)
			if err != nil {
				return err
			}
			var override time.Duration
			if durationStr != "" {
				override, err = time.ParseDuration(durationStr)
				if err != nil {
					return fmt.Errorf("invalid --duration %q: %w", durationStr, err)
				}
			}

			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			rec, err := a.engine.Start(ctx, profile, override)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "session started: profile %s, %s until %s\n",
				rec.ProfileName, rec.Duration, rec.ExpiresAt().Local().Format("15:04:05"))

			if detach {
				// Control-only handle; the installed service process does the work.
				d, err := svc.New(func(context.Context) {})
				if err != nil {
					return err
				}
				if err := d.Start(); err != nil {
					return fmt.Errorf("start watchdog service (run `enough daemon install` first): %w", err)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "watchdog service started")
				return nil
			}

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := a.engine.RunWatchdog(sigCtx, engine.DefaultTickInterval); err != nil {
				if errors.Is(err, context.Canceled) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "watchdog interrupted; the session stays enforced, run `enough start` or `enough daemon run` to resume")
					return nil
				}
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "session complete")
			return nil
		},
	}
	cmd.Flags().StringVarP(&profileName, "profile", "p", "", "profile name (default: the config's default-profile)")
	cmd.Flags().StringVarP(&durationStr, "duration", "d", "", "override the profile duration, e.g. 45m")
	cmd.Flags().BoolVar(&detach, "detach", false, "hand enforcement to the installed watchdog service and return")
	return cmd
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	var asJSON, asLine, watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if watch {
				return tui.RunCountdown(a.engine.Status)
			}

			rep, err := a.engine.Status(cmd.Context())
			if err != nil {
				return err
			}
			switch {
			case asJSON:
				return json.NewEncoder(cmd.OutOrStdout()).Encode(statusJSON(rep))
			case asLine:
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), statusLine(rep))
			default:
				_, _ = fmt.Fprint(cmd.OutOrStdout(), tui.RenderStatus(rep))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "machine-readable output")
	cmd.Flags().BoolVar(&asLine, "line", false, "single-line output for status bars")
	cmd.Flags().BoolVar(&watch, "watch", false, "live countdown view")
	cmd.MarkFlagsMutuallyExclusive("json", "line", "watch")
	return cmd
}

func statusJSON(rep engine.StatusReport) map[string]any {
	out := map[string]any{"status": string(rep.Status)}
	if rep.CorruptState {
		out["corrupt_state"] = true
	}
	if rep.Status == engine.StatusNone {
		return out
	}
	out["profile"] = rep.ProfileName
	out["started_at"] = rep.StartedAt.Format(time.RFC3339)
	out["expires_at"] = rep.ExpiresAt.Format(time.RFC3339)
	out["remaining_seconds"] = int(rep.Remaining.Seconds())
	out["websites"] = rep.Websites
	out["applications"] = rep.Applications
	return out
}

func statusLine(rep engine.StatusReport) string {
	switch rep.Status {
	case engine.StatusActive:
		return fmt.Sprintf("%s %s", rep.ProfileName, rep.Remaining.Round(time.Second))
	case engine.StatusExpired:
		return rep.ProfileName + " expired"
	default:
		return "none"
	}
}

func newStopCmd(flags *rootFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "End the session and remove all blocks",
		Long:  "Removes all blocks once the session has run its course. An active session\nis refused unless --force is given; that is the whole point of the tool.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.engine.Stop(cmd.Context(), force); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all blocks removed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "end the session before its time is up")
	return cmd
}

func newProfilesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List configured profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			for _, name := range cfg.Names() {
				spec := cfg.Profiles[name]
				marker := " "
				if name == cfg.DefaultProfile {
					marker = "*"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %-16s %-8s %d websites, %d apps\n",
					marker, name, time.Duration(spec.Duration), len(spec.Websites), len(spec.Apps))
			}
			return nil
		},
	}
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			sessions, err := a.history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no finished sessions")
				return nil
			}
			for _, s := range sessions {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-16s %-8s %-8s %d websites, %d apps\n",
					s.EndedAt.Local().Format("2006-01-02 15:04"),
					s.ProfileName, s.Duration, s.State, s.Websites, s.Applications)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "sessions to show")
	return cmd
}

func newDaemonCmd(flags *rootFlags) *cobra.Command {
	daemon := &cobra.Command{Use: "daemon", Short: "Manage the watchdog service"}

	daemon.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install the watchdog as a system service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newWatchdogDaemon(flags)
			if err != nil {
				return err
			}
			if err := d.Install(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "watchdog service installed")
			return nil
		},
	})

	daemon.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the watchdog service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := newWatchdogDaemon(flags)
			if err != nil {
				return err
			}
			if err := d.Uninstall(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "watchdog service removed")
			return nil
		},
	})

	daemon.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the watchdog in the foreground",
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := newWatchdogDaemon(flags)
			if err != nil {
				return err
			}
			return d.Run()
		},
	})

	return daemon
}

func newWatchdogDaemon(flags *rootFlags) (*svc.Daemon, error) {
	a, err := buildApp(flags)
	if err != nil {
		return nil, err
	}
	run := func(ctx context.Context) {
		defer a.close()
		for {
			if err := a.engine.RunWatchdog(ctx, engine.DefaultTickInterval); err != nil {
				a.log.Error("watchdog stopped", "error", err)
				return
			}
			// No session right now. Keep polling so sessions started
			// while the service is resident get enforced too.
			select {
			case <-ctx.Done():
				return
			case <-time.After(engine.DefaultTickInterval):
			}
		}
	}
	args := []string{"daemon", "run"}
	if flags.stateDir != "" {
		args = append(args, "--state-dir", flags.stateDir)
	}
	return svc.New(run, args...)
}
