// Package cli wires the sync subsystem together and exposes it as cobra
// commands for the back-office terminal client.
package cli

import (
	"bytes"
	"context"
	"os"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/client"
	"github.com/dmitrijs2005/tripdesk/internal/client/config"
	"github.com/dmitrijs2005/tripdesk/internal/client/localstore"
	"github.com/dmitrijs2005/tripdesk/internal/client/queue"
	"github.com/dmitrijs2005/tripdesk/internal/client/session"
	"github.com/dmitrijs2005/tripdesk/internal/client/syncengine"
	"github.com/dmitrijs2005/tripdesk/internal/logging"
	"github.com/dmitrijs2005/tripdesk/internal/netx"
)

// App owns every component of the client. Everything is constructed here and
// handed down explicitly; no package-level state anywhere.
type App struct {
	Cfg     *config.Config
	Log     logging.Logger
	Store   *localstore.Store
	Session *session.Store
	Monitor *netx.Monitor
	Queue   *queue.Queue
	Engine  *syncengine.Engine
	Client  *client.Client
}

func NewApp(cfg *config.Config, log logging.Logger) *App {
	store := localstore.New(cfg.DBPath, log)
	sess := session.NewStore()
	monitor := netx.NewMonitor(cfg.APIBaseURL+"/health", log)
	transport := api.NewTransport(cfg.APIBaseURL, sess, log)

	q := queue.New(store, transport, log, queue.Config{
		RetryCeiling:    cfg.RetryCeiling,
		BackoffBase:     cfg.BackoffBase,
		BackoffCap:      cfg.BackoffCap,
		SyncedRetention: cfg.SyncedRetention,
	})
	monitor.OnChange(q.SetOnline)

	engine := syncengine.New(store, transport, sess, monitor, log, cfg.SyncInterval)
	c := client.New(transport, q, engine, store, sess, log)

	app := &App{
		Cfg:     cfg,
		Log:     log,
		Store:   store,
		Session: sess,
		Monitor: monitor,
		Queue:   q,
		Engine:  engine,
		Client:  c,
	}
	app.restoreSession()
	return app
}

// Start launches the background loops: reachability probing and the periodic
// cache pull. They stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go a.Monitor.Run(ctx, a.Cfg.OnlineCheckInterval)
	go a.Engine.Run(ctx)
}

func (a *App) Close() error {
	return a.Store.Close()
}

func (a *App) sessionPath() string {
	return a.Cfg.DBPath + ".session"
}

// restoreSession rehydrates the bearer token saved by a previous login so the
// CLI stays signed in across invocations.
func (a *App) restoreSession() {
	data, err := os.ReadFile(a.sessionPath())
	if err != nil {
		return
	}
	if token := string(bytes.TrimSpace(data)); token != "" {
		a.Session.Set(token)
	}
}

func (a *App) saveSession(token string) error {
	return os.WriteFile(a.sessionPath(), []byte(token), 0o600)
}

func (a *App) dropSession() error {
	err := os.Remove(a.sessionPath())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
