package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"SignalDesk/internal/handler/api"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/config"
	xhttp "SignalDesk/pkg/http"
	pkgkafka "SignalDesk/pkg/kafka"
	applogger "SignalDesk/pkg/logger"
)

// Components are the long-running parts the App starts and stops. Feed,
// Consumer and AdminHandler are optional.
type Components struct {
	Automation   *usecase.AutomationController
	Dispatcher   *usecase.AdminDispatcher
	Settings     *usecase.SystemSettings
	Feed         *usecase.AdminFeed
	Consumer     *pkgkafka.Consumer
	AdminHandler pkgkafka.MessageHandler
	Hub          *api.EventHub
	Handlers     []xhttp.Handler
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg  *config.Config
	log  *applogger.Logger
	c    Components
	http *xhttp.Server

	wg          sync.WaitGroup
	cancel      context.CancelFunc
	feedRunning bool
}

// New creates the App. Infrastructure clients are closed by whoever built
// them, after Run returns.
func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg: cfg,
		log: log.Component("app"),
		c:   c,
		http: xhttp.NewServer(c.Handlers,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			xhttp.WithSlowRequest(cfg.Server.SlowRequest),
			xhttp.WithLogger(log),
		),
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(sigCtx); err != nil {
		a.Shutdown(context.Background())
		return err
	}

	<-sigCtx.Done()
	a.log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.Shutdown(ctx)
	return nil
}

// Start launches background loops, restores persisted signals and begins
// serving HTTP.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.c.Automation.Bind(runCtx)
	a.goRun(func() { a.c.Dispatcher.Run(runCtx) })
	a.goRun(func() { a.c.Settings.Run(runCtx) })
	a.goRun(func() { a.c.Automation.RunWatchdog(runCtx) })

	if err := a.c.Automation.Restore(ctx); err != nil {
		a.log.Warn("restore failed, starting empty", applogger.Error(err))
	}

	if a.c.Feed != nil {
		if err := a.c.Feed.Start(runCtx); err != nil {
			a.log.Warn("admin feed unavailable, relying on polling", applogger.Error(err))
		} else {
			a.feedRunning = true
			a.log.Info("admin feed started")
		}
	}

	if a.c.Consumer != nil && a.c.AdminHandler != nil {
		a.c.Consumer.RegisterHandler(a.c.AdminHandler)
		if err := a.c.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.c.AdminHandler.Topic()))
		}
	}

	if a.cfg.Automation.AutoStart {
		if !a.c.Settings.IsSystemEnabled(ctx) {
			a.log.Info("auto start skipped, system disabled")
		} else if err := a.c.Automation.Start("", 0, ""); err != nil {
			a.log.Warn("auto start failed", applogger.Error(err))
		}
	}

	return a.http.Start()
}

func (a *App) goRun(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// Shutdown stops intake first, then the background loops.
func (a *App) Shutdown(ctx context.Context) {
	if err := a.http.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.c.Hub != nil {
		a.c.Hub.Close()
	}
	if a.feedRunning {
		if err := a.c.Feed.Shutdown(ctx); err != nil {
			a.log.Warn("admin feed stop error", applogger.Error(err))
		}
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	_ = a.c.Automation.Stop()
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("background loops did not stop in time")
	}
	a.log.Info("shutdown complete")
}
