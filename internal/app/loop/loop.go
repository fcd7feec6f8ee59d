// Package loop drives a game.Player on a fixed tick and serialises every
// external command onto the same goroutine.
//
// The runner:
//  1. Calls Player.Update at the configured interval
//  2. Applies submitted commands between ticks, in submission order
//  3. Publishes game and loop metrics
//  4. Stops on an invariant violation and reports it from Run
//  5. Saves once more on shutdown
package loop

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/idle-bit/idlebit/internal/app/game"
	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/observability"
)

// Command runs against the player on the loop goroutine.
type Command func(p *game.Player) error

// Config controls runner behavior.
type Config struct {
	TickInterval    time.Duration // default: 20ms
	ShutdownTimeout time.Duration // final save budget (default: 5s)
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:    20 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}

type request struct {
	cmd   Command
	reply chan error
}

// Runner owns a player for the lifetime of Run.
type Runner struct {
	config Config
	player *game.Player
	reqs    chan request
	started chan struct{}
	done    chan struct{}

	mu           sync.RWMutex
	running      bool
	stopped      bool
	ticks        int64
	commands     int64
	saveFailures int64
	lastTick     time.Time
	fatal        error
}

// New creates a runner for player. Zero config fields take their defaults.
func New(cfg Config, player *game.Player) *Runner {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return &Runner{
		config:  cfg,
		player:  player,
		reqs:    make(chan request),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run ticks the player until ctx is done or an invariant breaks. It returns
// nil after a clean shutdown and the invariant error otherwise. Run must be
// called at most once.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	close(r.started)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.stopped = true
		r.mu.Unlock()
		close(r.done)
	}()

	ticker := time.NewTicker(r.config.TickInterval)
	defer ticker.Stop()

	log.Printf("[loop] started, tick=%s", r.config.TickInterval)

	if err := r.tick(ctx); err != nil {
		return r.stop(err)
	}
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil

		case <-ticker.C:
			if err := r.tick(ctx); err != nil {
				return r.stop(err)
			}

		case req := <-r.reqs:
			err := req.cmd(r.player)
			req.reply <- err
			r.mu.Lock()
			r.commands++
			r.mu.Unlock()
			observability.LoopCommands.Inc()
			if errors.Is(err, domain.ErrInvariant) {
				return r.stop(err)
			}
			r.publish()
		}
	}
}

// tick runs one Update. Only invariant violations are returned; autosave
// failures are logged and counted.
func (r *Runner) tick(ctx context.Context) error {
	start := time.Now()
	saved := r.player.LastSave()
	err := r.player.Update(ctx)
	observability.ObserveTick(time.Since(start))

	r.mu.Lock()
	r.ticks++
	r.lastTick = start
	r.mu.Unlock()

	switch {
	case errors.Is(err, domain.ErrInvariant):
		return err
	case err != nil:
		log.Printf("[loop] %v", err)
		observability.RecordAutosave(err)
		r.mu.Lock()
		r.saveFailures++
		r.mu.Unlock()
	case !saved.IsZero() && !r.player.LastSave().Equal(saved):
		observability.RecordAutosave(nil)
	}
	r.publish()
	return nil
}

func (r *Runner) publish() {
	p := r.player
	sample := observability.GameSample{
		TotalBits:     p.TotalBits(),
		BitsPerSecond: p.Stats().BitsPerSecond(),
		MaxStorage:    p.MaxStorage(),
		Disks:         len(p.Disks()),
		Chips:         len(p.Chips()),
	}
	if c := p.Cloud(); c != nil {
		sample.CloudBits = c.Bits()
	}
	observability.RecordGame(sample)
}

func (r *Runner) stop(err error) error {
	log.Printf("[loop] FATAL: %v", err)
	r.mu.Lock()
	r.fatal = err
	r.mu.Unlock()
	return err
}

// shutdown performs the final save.
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ShutdownTimeout)
	defer cancel()
	if err := r.player.Save(ctx); err != nil {
		log.Printf("[loop] final save failed: %v", err)
		observability.RecordAutosave(err)
		return
	}
	log.Printf("[loop] stopped, game saved")
}

// ─── Commands ───────────────────────────────────────────────────────────────

// Do applies cmd on the loop goroutine and returns its error. It blocks
// until the command ran, ctx ends, or the loop stops (domain.ErrLoopStopped).
func (r *Runner) Do(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, reply: make(chan error, 1)}
	select {
	case r.reqs <- req:
	case <-r.done:
		return domain.ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Buy looks up a catalogue entry by key and buys it. It reports whether the
// purchase happened; unaffordable purchases return false with no error.
func (r *Runner) Buy(ctx context.Context, key string) (game.Purchase, bool, error) {
	var (
		purchase game.Purchase
		bought   bool
	)
	err := r.Do(ctx, func(p *game.Player) error {
		var err error
		if purchase, err = p.PurchaseByKey(key); err != nil {
			return err
		}
		bought, err = p.Buy(purchase)
		return err
	})
	if err != nil {
		// The command may still be running on the loop goroutine.
		return game.Purchase{}, false, err
	}
	if bought {
		observability.RecordPurchase(purchase.Item())
	}
	return purchase, bought, nil
}

// Save forces a save on the loop goroutine.
func (r *Runner) Save(ctx context.Context) error {
	return r.Do(ctx, func(p *game.Player) error {
		err := p.Save(ctx)
		observability.RecordAutosave(err)
		return err
	})
}

// Load replaces the player's state with data and saves it.
func (r *Runner) Load(ctx context.Context, data domain.SaveData) error {
	return r.Do(ctx, func(p *game.Player) error {
		p.LoadSnapshot(data)
		if err := p.Save(ctx); err != nil {
			return fmt.Errorf("load: %w", err)
		}
		return nil
	})
}

// Started is closed once Run has begun.
func (r *Runner) Started() <-chan struct{} { return r.started }

// Done is closed when Run returns.
func (r *Runner) Done() <-chan struct{} { return r.done }

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats reports runner counters. A runner that has not started yet is
// neither Running nor Stopped.
type Stats struct {
	Running      bool      `json:"running"`
	Stopped      bool      `json:"stopped"`
	Ticks        int64     `json:"ticks"`
	Commands     int64     `json:"commands"`
	SaveFailures int64     `json:"save_failures"`
	LastTick     time.Time `json:"last_tick"`
	Fatal        string    `json:"fatal,omitempty"`
}

// Stats returns current runner statistics.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Running:      r.running,
		Stopped:      r.stopped,
		Ticks:        r.ticks,
		Commands:     r.commands,
		SaveFailures: r.saveFailures,
		LastTick:     r.lastTick,
	}
	if r.fatal != nil {
		s.Fatal = r.fatal.Error()
	}
	return s
}
