package bootstrap

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/local"
	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/remote"
	"github.com/comitanigiacomo/vibedesk-engine/internal/config"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/workers"
	"github.com/comitanigiacomo/vibedesk-engine/internal/logger"
	"github.com/comitanigiacomo/vibedesk-engine/internal/platform/clock"
	"github.com/comitanigiacomo/vibedesk-engine/internal/tui"
)

// Authenticator exchanges credentials for a signed-in identity.
type Authenticator interface {
	Register(ctx context.Context, email, password, displayName string) (domain.UserContext, error)
	Login(ctx context.Context, email, password string) (domain.UserContext, error)
}

type Store interface {
	domain.LocalStore
	Close() error
}

// App is the composed device: local storage, the remote client and every
// service the CLI and TUI talk to.
type App struct {
	Config config.DeviceConfig
	Logger *zap.Logger

	Stats     *services.StatsService
	Levels    *services.LevelTracker
	Timer     *services.TimerService
	Sync      *services.SyncService
	Workspace *services.WorkspaceService

	auth     Authenticator
	identity identityStore
	store    Store
	queue    *workers.SyncWorker
	stop     context.CancelFunc
}

// Options lets callers replace the adapters New would otherwise build from
// the configuration. A negative TickInterval disables the timer's ticker.
type Options struct {
	Notifier     services.Notifier
	Store        Store
	Remote       services.RemoteDocuments
	Auth         Authenticator
	Logger       *zap.Logger
	Clock        clock.Clock
	TickInterval time.Duration
}

func New(ctx context.Context, cfg config.DeviceConfig, opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		var err error
		log, err = logger.NewFile(cfg.LogPath(), cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("new logger: %w", err)
		}
	}

	store := opts.Store
	if store == nil {
		sqlite, err := local.NewSQLiteStore(ctx, cfg.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		store = sqlite
	}

	docs, auth := opts.Remote, opts.Auth
	if docs == nil || auth == nil {
		client := remote.NewClient(cfg.APIURL, log)
		if docs == nil {
			docs = client
		}
		if auth == nil {
			auth = client
		}
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	interval := opts.TickInterval
	if interval == 0 {
		interval = services.DefaultTickInterval
	}

	workerCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	queue := workers.NewSyncWorker(docs, log.Named("sync"))
	queue.Start(workerCtx)

	levels := services.NewLevelTracker(store, opts.Notifier, log)
	stats := services.NewStatsService(store, queue, levels, clk, log.Named("stats"))
	timer := services.NewTimerService(stats, store, opts.Notifier, interval, log.Named("timer"))
	syncSvc := services.NewSyncService(docs, queue, stats, store, opts.Notifier, log.Named("sync"))
	workspace := services.NewWorkspaceService(store, syncSvc, timer, clk, log)

	app := &App{
		Config:    cfg,
		Logger:    log,
		Stats:     stats,
		Levels:    levels,
		Timer:     timer,
		Sync:      syncSvc,
		Workspace: workspace,
		auth:      auth,
		identity:  identityStore{store: store},
		store:     store,
		queue:     queue,
		stop:      stop,
	}

	if err := app.restore(ctx); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// restore brings back the timer length and the badge band. A configured
// session length only applies on a device that never saved one.
func (a *App) restore(ctx context.Context) error {
	if err := a.Stats.RecordLevel(ctx); err != nil {
		return fmt.Errorf("read streak: %w", err)
	}

	if _, ok, err := a.store.Get(ctx, services.KeyDeskState); err != nil {
		return fmt.Errorf("read desk state: %w", err)
	} else if !ok && a.Config.SessionMinutes != domain.DefaultSessionMinutes {
		return a.Timer.SetDuration(ctx, a.Config.SessionMinutes)
	}
	return a.Timer.Load(ctx)
}

// Close stops the timer, flushes pending writes and closes local storage.
// A running session is left unflushed.
func (a *App) Close(ctx context.Context) error {
	a.Timer.Close(ctx)
	a.Sync.Close()

	a.stop()
	a.queue.Wait()

	err := a.store.Close()
	_ = a.Logger.Sync()
	return err
}

func RunTUI(ctx context.Context, app *App, notifier *tui.Notifier) error {
	ports := tui.Ports{
		Timer:     app.Timer,
		Stats:     app.Stats,
		Workspace: app.Workspace,
	}
	model := tui.NewModel(ports, app.User(ctx), notifier)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
