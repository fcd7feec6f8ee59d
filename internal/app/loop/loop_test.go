package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/idle-bit/idlebit/internal/app/game"
	"github.com/idle-bit/idlebit/internal/domain"
)

// memStore is a concurrency-safe in-memory SaveStore.
type memStore struct {
	mu    sync.Mutex
	saves []domain.SaveData
	err   error
}

func (m *memStore) Save(_ context.Context, data domain.SaveData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves = append(m.saves, data)
	return nil
}

func (m *memStore) Load(context.Context) (*domain.SaveData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return nil, domain.ErrNoSave
	}
	last := m.saves[len(m.saves)-1]
	return &last, nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = nil
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func newTestRunner(t *testing.T, store *memStore, autosave time.Duration) *Runner {
	t.Helper()
	p := game.NewPlayer(game.Options{Store: store, AutosaveInterval: autosave})
	return New(Config{TickInterval: time.Millisecond}, p)
}

// start runs r in the background and returns a stop func that cancels it and
// returns Run's error.
func start(t *testing.T, r *Runner) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(func() {
			cancel()
			select {
			case runErr = <-errCh:
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return after cancel")
			}
		})
		return runErr
	}
	t.Cleanup(func() { stop() })
	return stop
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// ─── Config Tests ───────────────────────────────────────────────────────────

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.TickInterval != 20*time.Millisecond {
		t.Errorf("TickInterval = %v, want 20ms", cfg.TickInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}

	r := New(Config{}, game.NewPlayer(game.Options{}))
	if r.config != cfg {
		t.Errorf("New(Config{}) config = %+v, want defaults", r.config)
	}
}

// ─── Runner Tests ───────────────────────────────────────────────────────────

func TestRunner_DoAppliesCommand(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	start(t, r)
	ctx := context.Background()

	if err := r.Do(ctx, func(p *game.Player) error { return p.InteractWithDisk(0) }); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	var total float64
	var sel game.Selection
	r.Do(ctx, func(p *game.Player) error {
		total = p.TotalBits()
		sel = p.Selection()
		return nil
	})
	if total != 1 {
		t.Errorf("TotalBits = %g, want 1", total)
	}
	if sel.Kind != game.SelectDisk {
		t.Errorf("selection = %v, want disk", sel.Kind)
	}

	waitFor(t, "ticks", func() bool { return r.Stats().Ticks > 1 })
	s := r.Stats()
	if !s.Running || s.Commands < 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestRunner_DoSoftError(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	start(t, r)

	err := r.Do(context.Background(), func(p *game.Player) error { return p.InteractWithDisk(9) })
	if !errors.Is(err, domain.ErrUnknownDisk) {
		t.Fatalf("Do() error = %v, want ErrUnknownDisk", err)
	}
	if !r.Stats().Running {
		t.Error("soft command error stopped the loop")
	}
}

func TestRunner_Buy(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	start(t, r)
	ctx := context.Background()

	if _, _, err := r.Buy(ctx, "nope"); !errors.Is(err, domain.ErrUnknownPurchase) {
		t.Errorf("Buy(nope) error = %v, want ErrUnknownPurchase", err)
	}

	purchase, bought, err := r.Buy(ctx, "disk")
	if err != nil {
		t.Fatalf("Buy(disk) error: %v", err)
	}
	if bought {
		t.Error("bought a 10b disk with 0 bits")
	}
	if purchase.Cost() != 10 {
		t.Errorf("disk cost = %g, want 10", purchase.Cost())
	}
}

func TestRunner_ShutdownSaves(t *testing.T) {
	store := &memStore{}
	r := newTestRunner(t, store, time.Hour)
	stop := start(t, r)
	waitFor(t, "first tick", func() bool { return r.Stats().Ticks > 0 })

	if err := stop(); err != nil {
		t.Fatalf("Run() error = %v, want nil after cancel", err)
	}
	if store.count() != 1 {
		t.Errorf("saves = %d, want 1 final save", store.count())
	}
	if r.Stats().Running {
		t.Error("Running still true after Run returned")
	}

	err := r.Do(context.Background(), func(*game.Player) error { return nil })
	if !errors.Is(err, domain.ErrLoopStopped) {
		t.Errorf("Do() after stop error = %v, want ErrLoopStopped", err)
	}
}

func TestRunner_InvariantIsFatal(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	stop := start(t, r)

	broken := &domain.InvariantError{Op: "test", Required: 2, Drained: 1, Err: domain.ErrDrainShortfall}
	err := r.Do(context.Background(), func(*game.Player) error { return broken })
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("Do() error = %v, want invariant error", err)
	}

	<-r.Done()
	if err := stop(); !errors.Is(err, domain.ErrInvariant) {
		t.Errorf("Run() error = %v, want invariant error", err)
	}
	if r.Stats().Fatal == "" {
		t.Error("Stats().Fatal is empty")
	}
}

func TestRunner_AutosaveFailureCounted(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	r := newTestRunner(t, store, 5*time.Millisecond)
	start(t, r)

	waitFor(t, "save failure", func() bool { return r.Stats().SaveFailures > 0 })
	if !r.Stats().Running {
		t.Error("autosave failure stopped the loop")
	}
}

func TestRunner_SaveAndLoad(t *testing.T) {
	store := &memStore{}
	r := newTestRunner(t, store, time.Hour)
	start(t, r)
	ctx := context.Background()

	data := domain.SaveData{
		Version: domain.SaveVersion,
		Disks:   []domain.DiskRecord{{ID: 0, Capacity: 64, Bits: 40}},
	}
	if err := r.Load(ctx, data); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := r.Save(ctx); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if store.count() != 2 {
		t.Errorf("saves = %d, want 2", store.count())
	}

	var total float64
	r.Do(ctx, func(p *game.Player) error { total = p.TotalBits(); return nil })
	if total != 40 {
		t.Errorf("TotalBits after Load = %g, want 40", total)
	}
}

func TestRunner_DoContextCancelled(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Not running: the send can never be accepted.
	if err := r.Do(ctx, func(*game.Player) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestRunner_BuyCancelledReturnsZeroPurchase(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	start(t, r)

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		go cancel()
		purchase, bought, err := r.Buy(ctx, "disk")
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Buy() error = %v, want context.Canceled", err)
		}
		if bought || purchase.Key() != "" || purchase.Cost() != 0 {
			t.Fatalf("Buy() on error = %q cost %g bought %v, want zero values", purchase.Key(), purchase.Cost(), bought)
		}
	}
}

func TestRunner_StartedAndStopped(t *testing.T) {
	r := newTestRunner(t, &memStore{}, 0)
	if s := r.Stats(); s.Running || s.Stopped {
		t.Errorf("Stats() before Run = %+v, want neither running nor stopped", s)
	}
	select {
	case <-r.Started():
		t.Fatal("Started() closed before Run")
	default:
	}

	stop := start(t, r)
	select {
	case <-r.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("Started() not closed after Run")
	}
	if s := r.Stats(); !s.Running || s.Stopped {
		t.Errorf("Stats() while running = %+v", s)
	}

	stop()
	if s := r.Stats(); s.Running || !s.Stopped {
		t.Errorf("Stats() after Run = %+v, want stopped", s)
	}
}
