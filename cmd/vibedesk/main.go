package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/bootstrap"
	"github.com/comitanigiacomo/vibedesk-engine/internal/config"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
	"github.com/comitanigiacomo/vibedesk-engine/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootFlags struct {
	dataDir   string
	apiURL    string
	ephemeral bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "vibedesk",
		Short:         "Focus timer with streaks, tasks and cloud sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default ~/.vibedesk)")
	root.PersistentFlags().StringVar(&flags.apiURL, "api", "", "API base URL (overrides config)")
	root.PersistentFlags().BoolVar(&flags.ephemeral, "ephemeral", false, "keep device state in memory only")

	root.AddCommand(newTUICmd(flags))
	root.AddCommand(newStartCmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newTasksCmd(flags))
	root.AddCommand(newNotesCmd(flags))
	root.AddCommand(newGoalCmd(flags))
	root.AddCommand(newLoginCmd(flags))
	root.AddCommand(newRegisterCmd(flags))
	root.AddCommand(newLogoutCmd(flags))
	root.AddCommand(newWhoamiCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	return root
}

func loadConfig(flags *rootFlags) (config.DeviceConfig, error) {
	cfg, err := config.LoadDevice(flags.dataDir)
	if err != nil {
		return cfg, err
	}
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	return cfg, cfg.Validate()
}

func loadApp(ctx context.Context, flags *rootFlags, notifier services.Notifier) (*bootstrap.App, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, flags, cfg, notifier)
}

func newApp(ctx context.Context, flags *rootFlags, cfg config.DeviceConfig, notifier services.Notifier) (*bootstrap.App, error) {
	opts := bootstrap.Options{Notifier: notifier}
	if flags.ephemeral {
		opts.Store = local.NewMemoryStore()
	}
	return bootstrap.New(ctx, cfg, opts)
}

// withApp runs fn against a freshly built app and closes it afterwards.
func withApp(flags *rootFlags, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := context.Background()
	app, err := loadApp(ctx, flags, services.NopNotifier{})
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Close(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func newTUICmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the focus desk terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := context.Background()
			notifier := tui.NewNotifier(cfg.Bell)
			app, err := newApp(ctx, flags, cfg, notifier)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(ctx) }()

			if _, err := app.Resume(ctx); err != nil {
				return err
			}
			return bootstrap.RunTUI(ctx, app, notifier)
		},
	}
}

// printNotifier writes notifications to the terminal and reports when a
// session completes.
type printNotifier struct {
	out  io.Writer
	bell bool
	done chan struct{}
	once sync.Once
}

func newPrintNotifier(out io.Writer, bell bool) *printNotifier {
	return &printNotifier{out: out, bell: bell, done: make(chan struct{})}
}

func (n *printNotifier) SessionComplete(minutes int) {
	if n.bell {
		_, _ = fmt.Fprint(n.out, "\a")
	}
	_, _ = fmt.Fprintf(n.out, "session complete: %d min of focus logged\n", minutes)
	n.once.Do(func() { close(n.done) })
}

func (n *printNotifier) LevelUp(level domain.Level) {
	_, _ = fmt.Fprintf(n.out, "level up! you reached %s\n", level)
}

func (n *printNotifier) Message(text string) {
	_, _ = fmt.Fprintln(n.out, text)
}

func newStartCmd(flags *rootFlags) *cobra.Command {
	var minutes int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run one focus session in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			notifier := newPrintNotifier(out, cfg.Bell)
			app, err := newApp(ctx, flags, cfg, notifier)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close(context.Background()) }()

			uc, err := app.Resume(ctx)
			if err != nil {
				return err
			}
			if minutes > 0 {
				if err := app.Timer.SetDuration(ctx, minutes); err != nil {
					return err
				}
			}

			app.Timer.Start(ctx, uc)
			snap := app.Timer.Snapshot()
			_, _ = fmt.Fprintf(out, "focus for %s, ctrl+c to stop early\n", snap.Clock)

			select {
			case <-notifier.done:
				return nil
			case <-ctx.Done():
			}

			result, err := app.Timer.Pause(context.Background(), uc)
			if err != nil {
				return err
			}
			if result != nil {
				_, _ = fmt.Fprintf(out, "\nstopped early, %.1f min logged today\n", result.DayTotal)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 0, "session length in minutes (default from config)")
	return cmd
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show focus totals, streak and level",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days != 7 && days != 30 {
				return fmt.Errorf("--days must be 7 or 30")
			}
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				s, err := app.Stats.Summary(ctx)
				if err != nil {
					return err
				}
				buckets, err := app.Stats.History(ctx, days)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "today: %.1f min\n", s.Today)
				_, _ = fmt.Fprintf(out, "week: %.1f min over %d days (goal %d min, %d%%)\n", s.WeekMinutes, s.WeekActiveDays, s.WeeklyGoal, s.WeeklyGoalProgress)
				_, _ = fmt.Fprintf(out, "month: %d active days\n", s.MonthActiveDays)
				_, _ = fmt.Fprintf(out, "streak: %d days, level %s", s.Streak.Count, s.Level.Level)
				if s.Level.Next != nil {
					_, _ = fmt.Fprintf(out, " (%d%%, %d days to %s)", s.Level.Progress, s.Level.Remaining, *s.Level.Next)
				}
				_, _ = fmt.Fprintln(out)

				for _, b := range buckets {
					_, _ = fmt.Fprintf(out, "%s\t%s\t%.1f\n", b.Date, b.Label, b.Minutes)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "history window: 7 or 30")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset-today",
		Short: "Zero today's focus total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(flags, func(ctx context.Context, app *bootstrap.App) error {
				if err := app.Stats.ResetToday(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "today's total reset")
				return nil
			})
		},
	})
	return cmd
}
