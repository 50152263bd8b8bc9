// Package app assembles the config, logging, storage, scheduling, calendar
// and HTTP layers into one runnable unit.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"timeblock/internal/config"
	"timeblock/internal/gcal"
	"timeblock/internal/scheduler"
	"timeblock/internal/server"
	"timeblock/internal/storage"
	"timeblock/pkg/logx"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// App owns every long-lived component and their shutdown order.
type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store storage.Store
	sched *scheduler.Service
	cal   *gcal.Service
	http  *server.Server

	mu   sync.Mutex
	cron *cron.Cron

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New loads and validates the config at path and builds the component graph.
// Nothing is started yet.
func New(path string) (*App, error) {
	cfgm := config.NewManager(path)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load config %s: %w", path, err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}

	logSvc, log := logx.New(toLogxConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("component", "config")))
	cfgm.SetValidator(func(ctx context.Context, cfg *config.Config) error {
		return config.Validate(cfg)
	})

	store, err := storage.Open(cfg.Storage, log.With(logx.String("component", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("app: open storage: %w", err)
	}

	sched := scheduler.New(toSchedulerConfig(cfg), store, log.With(logx.String("component", "scheduler")))

	var cal *gcal.Service
	if cfg.Calendar != nil && cfg.Calendar.Enabled {
		cal = gcal.New(*cfg.Calendar, store, log.With(logx.String("component", "gcal")))
	}

	httpSrv := server.New(cfg.Server, store, sched, cal, log.With(logx.String("component", "http")))

	return &App{
		cfgm:   cfgm,
		logSvc: logSvc,
		log:    log,
		store:  store,
		sched:  sched,
		cal:    cal,
		http:   httpSrv,
	}, nil
}

// Start brings the app up: HTTP listener, auto-run trigger, config watcher
// and the reload loop. It returns once everything is running.
func (a *App) Start(ctx context.Context) error {
	a.runCtx, a.cancelRun = context.WithCancel(context.Background())

	if err := a.http.Start(ctx); err != nil {
		return err
	}

	cfg := a.cfgm.Get()
	if err := a.restartCron(cfg); err != nil {
		return err
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(a.runCtx)
	}()

	updates := a.cfgm.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgm.Unsubscribe(updates)
		for {
			select {
			case <-a.runCtx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.applyReload(next)
			}
		}
	}()

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}
	a.log.Info("app started", logx.String("addr", a.http.Addr()))
	return nil
}

// applyReload pushes a validated config into the running components. Server
// address and storage driver changes need a restart and are only logged.
func (a *App) applyReload(cfg *config.Config) {
	a.log.Info("applying config reload")
	a.logSvc.Apply(toLogxConfig(cfg.Logging))
	a.sched.Apply(toSchedulerConfig(cfg))
	if err := a.restartCron(cfg); err != nil {
		a.log.Warn("auto-run reschedule failed", logx.Err(err))
	}
	a.log.Warn("server and storage settings apply on next restart")
}

func (a *App) restartCron(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron != nil {
		a.cron.Stop()
		a.cron = nil
	}
	spec := strings.TrimSpace(cfg.Scheduler.AutoRun)
	if spec == "" {
		return nil
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("app: scheduler.timezone: %w", err)
		}
		loc = l
	}
	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		res, err := a.sched.Run(a.runCtx)
		if err != nil {
			a.log.Error("auto-run failed", logx.Err(err))
			return
		}
		a.log.Info("auto-run finished",
			logx.String("status", res.Status),
			logx.Int("scheduled", len(res.ScheduledEvents)),
			logx.Int("errors", len(res.Errors)))
	})
	if err != nil {
		return fmt.Errorf("app: register auto-run %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	a.log.Info("auto-run scheduled", logx.String("spec", spec), logx.String("timezone", loc.String()))
	return nil
}

// Stop tears everything down in reverse dependency order.
func (a *App) Stop(ctx context.Context) error {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && sent {
		a.log.Debug("sd_notify stopping sent")
	}

	if a.cancelRun != nil {
		a.cancelRun()
	}
	a.mu.Lock()
	if a.cron != nil {
		cronCtx := a.cron.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
		a.cron = nil
	}
	a.mu.Unlock()

	var firstErr error
	if err := a.http.Stop(ctx); err != nil {
		firstErr = err
	}
	a.wg.Wait()
	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.log.Info("app stopped")
	a.logSvc.Close()
	return firstErr
}

func toLogxConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
	}
}

func toSchedulerConfig(c *config.Config) scheduler.Config {
	start, end := c.Workday.Hours()
	return scheduler.Config{
		Window:      scheduler.Window{StartHour: start, EndHour: end},
		HorizonDays: c.Scheduler.HorizonDays,
	}
}
