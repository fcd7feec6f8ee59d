package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/idle-bit/idlebit/internal/api"
	"github.com/idle-bit/idlebit/internal/app/game"
	"github.com/idle-bit/idlebit/internal/app/loop"
	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/sqlite"
)

// Daemon owns one game session: the save database, the player, its loop and
// the HTTP control plane.
type Daemon struct {
	Config    Config
	SessionID string

	db     *sqlite.DB
	store  *sqlite.Store
	player *game.Player
	runner *loop.Runner

	listener net.Listener
	server   *http.Server
}

// New opens storage under home and restores the last save. A save that
// cannot be decoded is logged and replaced by a fresh game.
func New(ctx context.Context, home string, cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.StorageDir(home))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store := sqlite.NewStore(db, cfg.Storage.HistoryLimit)

	d := &Daemon{
		Config:    cfg,
		SessionID: uuid.NewString(),
		db:        db,
		store:     store,
		player: game.NewPlayer(game.Options{
			Store:            store,
			AutosaveInterval: cfg.AutosaveInterval(),
		}),
	}

	data, err := store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNoSave):
		log.Printf("[daemon] no save found, starting a new game")
	case errors.Is(err, domain.ErrSaveCorrupted):
		log.Printf("[daemon] save is corrupted, starting a new game: %v", err)
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("load save: %w", err)
	default:
		d.player.LoadSnapshot(*data)
		log.Printf("[daemon] save restored: %s", domain.FormatBits(d.player.TotalBits(), false))
	}

	d.runner = loop.New(loop.Config{TickInterval: cfg.TickInterval()}, d.player)
	return d, nil
}

// Runner returns the game loop.
func (d *Daemon) Runner() *loop.Runner { return d.runner }

// Store returns the save store.
func (d *Daemon) Store() *sqlite.Store { return d.store }

// Listen binds the API address. Run calls it when needed; calling it first
// lets the caller learn the bound address. It returns nil when the API is
// disabled.
func (d *Daemon) Listen() (net.Addr, error) {
	if !d.Config.API.Enabled {
		return nil, nil
	}
	if d.listener == nil {
		ln, err := net.Listen("tcp", d.Config.Addr())
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", d.Config.Addr(), err)
		}
		d.listener = ln
	}
	return d.listener.Addr(), nil
}

// Run serves the game until ctx ends. It returns nil after a clean shutdown,
// the invariant error if the loop stopped on one, or the HTTP server error.
func (d *Daemon) Run(ctx context.Context) error {
	log.Printf("[daemon] session %s", d.SessionID)

	addr, err := d.Listen()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	if addr != nil {
		srv := api.NewServer(d.runner, api.Config{
			MetricsEnabled: d.Config.Metrics.Enabled,
			RateLimitRPS:   d.Config.API.RateLimitRPS,
			RateLimitBurst: d.Config.API.RateLimitBurst,
		})
		d.server = &http.Server{
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Printf("[daemon] API listening on http://%s", addr)
		go func() {
			if err := d.server.Serve(d.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
				cancel()
			}
		}()
	}

	runErr := d.runner.Run(ctx)

	if d.server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[daemon] API shutdown: %v", err)
		}
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("api: %w", err)
	default:
	}
	if runErr != nil {
		return fmt.Errorf("game loop: %w", runErr)
	}
	log.Printf("[daemon] stopped")
	return nil
}

// Close releases the database.
func (d *Daemon) Close() error {
	if d.listener != nil && d.server == nil {
		d.listener.Close()
	}
	return d.db.Close()
}
