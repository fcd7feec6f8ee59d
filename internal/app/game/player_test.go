package game

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/idle-bit/idlebit/internal/domain"
)

// fakeClock is a manually advanced wall clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// memStore records saves in memory.
type memStore struct {
	saves []domain.SaveData
	err   error
}

func (m *memStore) Save(_ context.Context, data domain.SaveData) error {
	if m.err != nil {
		return m.err
	}
	m.saves = append(m.saves, data)
	return nil
}

func (m *memStore) Load(context.Context) (*domain.SaveData, error) {
	if len(m.saves) == 0 {
		return nil, domain.ErrNoSave
	}
	last := m.saves[len(m.saves)-1]
	return &last, nil
}

func (m *memStore) Clear(context.Context) error {
	m.saves = nil
	return nil
}

func newTestPlayer(t *testing.T) (*Player, *fakeClock, *memStore) {
	t.Helper()
	clock := &fakeClock{now: epoch}
	store := &memStore{}
	p := NewPlayer(Options{Store: store, Now: clock.Now})
	return p, clock, store
}

func intPtr(v int) *int { return &v }

// ─── Construction ───────────────────────────────────────────────────────────

func TestNewPlayer(t *testing.T) {
	p, _, _ := newTestPlayer(t)

	disks := p.Disks()
	if len(disks) != 1 || disks[0].ID() != 0 || disks[0].Capacity() != 4 {
		t.Fatalf("disks = %+v, want one empty 4b disk with id 0", disks)
	}
	if len(p.Chips()) != 0 || p.Cloud() != nil {
		t.Error("new player owns chips or a cloud")
	}
	if p.TotalBits() != 0 || p.MaxStorage() != 4 {
		t.Errorf("TotalBits = %g, MaxStorage = %g", p.TotalBits(), p.MaxStorage())
	}
	if p.NextDiskCost() != 10 {
		t.Errorf("NextDiskCost() = %g, want 10", p.NextDiskCost())
	}
	if p.NextChipCost() != 100 {
		t.Errorf("NextChipCost() = %g, want 100", p.NextChipCost())
	}
}

// ─── Scenarios ──────────────────────────────────────────────────────────────

func TestScenario_ChipFillsDisk(t *testing.T) {
	p, clock, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 8}},
		Chips: []domain.ChipRecord{{ClockSpeed: 1, Overclock: 1, TargetDiskID: intPtr(0)}},
	})

	ctx := context.Background()
	if err := p.Update(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 14; i++ {
		clock.Advance(250 * time.Millisecond)
		if err := p.Update(ctx); err != nil {
			t.Fatalf("Update() error: %v", err)
		}
	}

	if got := p.Disk(0).Bits(); got != 3 {
		t.Errorf("disk bits after 3.5s = %g, want 3", got)
	}
	if p.TotalBits() != 3 {
		t.Errorf("TotalBits() = %g, want 3", p.TotalBits())
	}
	if got := newChipCost().CostFor(0); got != 100 {
		t.Errorf("chip cost at amount 0 = %g, want 100", got)
	}
}

func TestScenario_PurchaseDrainsTiedDisks(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 4, Bits: 4}, {ID: 1, Capacity: 8, Bits: 8}},
	})

	applied := false
	ok, err := p.Buy(NewPurchase("test", "Six Bits", 6, func(*Player) { applied = true }))
	if err != nil || !ok {
		t.Fatalf("Buy() = %v, %v", ok, err)
	}
	if !applied {
		t.Error("effect not applied")
	}
	if got := p.Disk(0).Stored(); got != 2 {
		t.Errorf("4b disk = %g, want 2", got)
	}
	if got := p.Disk(1).Stored(); got != 4 {
		t.Errorf("8b disk = %g, want 4", got)
	}
	if p.TotalBits() != 6 {
		t.Errorf("TotalBits() = %g, want 6", p.TotalBits())
	}
}

// ─── Purchases ──────────────────────────────────────────────────────────────

func TestBuy_Unaffordable(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	purchase, err := p.PurchaseByKey("disk")
	if err != nil {
		t.Fatal(err)
	}
	ok, err := p.Buy(purchase)
	if ok || err != nil {
		t.Errorf("Buy() = %v, %v, want false, nil", ok, err)
	}
	if len(p.Disks()) != 1 {
		t.Errorf("disks = %d, want 1", len(p.Disks()))
	}
}

func TestBuy_Disk(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{Disks: []domain.DiskRecord{{ID: 0, Capacity: 16, Bits: 12}}})

	purchase, _ := p.PurchaseByKey("disk")
	if purchase.Name() != "Buy 4b Disk" || purchase.Cost() != 10 {
		t.Errorf("purchase = %q at %g", purchase.Name(), purchase.Cost())
	}
	if ok, err := p.Buy(purchase); !ok || err != nil {
		t.Fatalf("Buy() = %v, %v", ok, err)
	}

	disks := p.Disks()
	if len(disks) != 2 || disks[1].ID() != 1 || disks[1].Capacity() != 4 {
		t.Fatalf("disks after purchase = %d", len(disks))
	}
	if p.TotalBits() != 2 {
		t.Errorf("TotalBits() = %g, want 2", p.TotalBits())
	}
	if want := math.Floor(math.Pow(10, 1.15)); p.NextDiskCost() != want {
		t.Errorf("NextDiskCost() = %g, want %g", p.NextDiskCost(), want)
	}
}

func TestBuy_SpendsCloudAfterDisks(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 4, Bits: 4}},
		Cloud: &domain.CloudRecord{Bits: 20, UploadSpeed: 8},
	})

	purchase, _ := p.PurchaseByKey("disk")
	if ok, err := p.Buy(purchase); !ok || err != nil {
		t.Fatalf("Buy() = %v, %v", ok, err)
	}
	if got := p.Disk(0).Stored(); got != 0 {
		t.Errorf("disk = %g, want 0", got)
	}
	if got := p.Cloud().Stored(); got != 14 {
		t.Errorf("cloud = %g, want 14", got)
	}
}

func TestBuy_Chip(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 4, Bits: 4}, {ID: 1, Capacity: 4}},
		Cloud: &domain.CloudRecord{Bits: 200, UploadSpeed: 8},
	})

	purchase, err := p.PurchaseByKey("chip")
	if err != nil {
		t.Fatalf("PurchaseByKey(chip) error: %v", err)
	}
	if purchase.Name() != "Buy 1Hz Chip" || purchase.Item() != ItemChip {
		t.Errorf("purchase = %q (%s)", purchase.Name(), purchase.Item())
	}
	if ok, err := p.Buy(purchase); !ok || err != nil {
		t.Fatalf("Buy() = %v, %v", ok, err)
	}
	chips := p.Chips()
	if len(chips) != 1 {
		t.Fatalf("chips = %d, want 1", len(chips))
	}
	// The purchase drained disk C, so it is the first open disk again.
	if chips[0].Target() != 0 {
		t.Errorf("target = %d, want 0", chips[0].Target())
	}
	if p.Stats().ChipCount() != 1 {
		t.Errorf("ChipCount() = %d, want 1", p.Stats().ChipCount())
	}
	if got := p.Cloud().Stored(); got != 104 {
		t.Errorf("cloud = %g, want 104", got)
	}
}

func TestFirstOpenDisk(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 4, Bits: 4}, {ID: 3, Capacity: 4, Bits: 1}},
	})
	if got := p.firstOpenDisk(); got != 3 {
		t.Errorf("firstOpenDisk() = %d, want 3", got)
	}
	p.InteractWithDisk(3)
	p.InteractWithDisk(3)
	p.InteractWithDisk(3)
	if got := p.firstOpenDisk(); got != NoDisk {
		t.Errorf("firstOpenDisk() with every disk full = %d, want NoDisk", got)
	}
	if got := p.nextDiskID(); got != 4 {
		t.Errorf("nextDiskID() = %d, want 4", got)
	}
}

func TestPurchases_Unlocks(t *testing.T) {
	p, _, _ := newTestPlayer(t)

	keys := func() map[string]bool {
		m := map[string]bool{}
		for _, pu := range p.Purchases() {
			m[pu.Key()] = true
		}
		return m
	}

	got := keys()
	if !got["disk"] || !got["disk/0/capacity"] || got["chip"] || got["cloud"] {
		t.Errorf("fresh catalogue = %v", got)
	}

	p.LoadSnapshot(domain.SaveData{Stats: domain.StatsRecord{MaxBitsEverHeld: 50}})
	if got := keys(); !got["chip"] || got["cloud"] {
		t.Errorf("catalogue at 50 bits = %v", got)
	}

	p.LoadSnapshot(domain.SaveData{Stats: domain.StatsRecord{MaxBitsEverHeld: 256}})
	if got := keys(); !got["cloud"] || got["cloud/speed"] {
		t.Errorf("catalogue at 256 bits = %v", got)
	}

	p.LoadSnapshot(domain.SaveData{
		Chips: []domain.ChipRecord{{ClockSpeed: 1}},
		Cloud: &domain.CloudRecord{UploadSpeed: 8},
	})
	if got := keys(); got["cloud"] || !got["cloud/speed"] || !got["chip/0/clock"] || !got["chip/0/overclock"] {
		t.Errorf("catalogue with cloud and chip = %v", got)
	}
}

func TestPurchaseByKey(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{Chips: []domain.ChipRecord{{ClockSpeed: 1, Overclock: 1}}})

	tests := []struct {
		key  string
		name string
		cost float64
	}{
		{"disk/0/capacity", "x2 Storage", 15},
		{"chip/0/clock", "x2 Clock Speed", 150},
		{"chip/0/overclock", "+1 Overclock Level", 500},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			pu, err := p.PurchaseByKey(tt.key)
			if err != nil {
				t.Fatalf("PurchaseByKey() error: %v", err)
			}
			if pu.Name() != tt.name || pu.Cost() != tt.cost {
				t.Errorf("got %q at %g, want %q at %g", pu.Name(), pu.Cost(), tt.name, tt.cost)
			}
		})
	}

	for _, key := range []string{"disk/9/capacity", "chip/3/clock", "chip/x/clock", "cloud", "nonsense"} {
		if _, err := p.PurchaseByKey(key); !errors.Is(err, domain.ErrUnknownPurchase) {
			t.Errorf("PurchaseByKey(%q) error = %v, want ErrUnknownPurchase", key, err)
		}
	}
}

func TestBuy_ClockUpgradeFlushesOldRate(t *testing.T) {
	p, clock, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 1024}},
		Chips: []domain.ChipRecord{{ClockSpeed: 1, Overclock: 1, TargetDiskID: intPtr(0)}},
		Cloud: &domain.CloudRecord{Bits: 150, UploadSpeed: 8},
	})
	ctx := context.Background()
	p.Update(ctx)
	clock.Advance(4 * time.Second)

	pu, _ := p.PurchaseByKey("chip/0/clock")
	if ok, err := p.Buy(pu); !ok || err != nil {
		t.Fatalf("Buy() = %v, %v", ok, err)
	}
	if got := p.Disk(0).Stored(); got != 4 {
		t.Errorf("disk = %g, want 4 bits from the old rate", got)
	}
	clock.Advance(time.Second)
	p.Update(ctx)
	if got := p.Disk(0).Stored(); got != 6 {
		t.Errorf("disk = %g, want 6", got)
	}
}

// ─── Tick ───────────────────────────────────────────────────────────────────

func TestUpdate_CloudTopUp(t *testing.T) {
	p, clock, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 8, Bits: 8}},
		Cloud: &domain.CloudRecord{UploadSpeed: 8},
	})
	ctx := context.Background()

	if ok, _ := p.StartCloudUpload(); !ok {
		t.Fatal("StartCloudUpload() = false")
	}
	if ok, _ := p.StartCloudUpload(); ok {
		t.Error("second StartCloudUpload() = true")
	}

	clock.Advance(500 * time.Millisecond)
	if err := p.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Cloud().Stored() != 4 || p.Disk(0).Stored() != 4 {
		t.Errorf("at 0.5s cloud = %g, disk = %g, want 4, 4", p.Cloud().Stored(), p.Disk(0).Stored())
	}

	clock.Advance(500 * time.Millisecond)
	if err := p.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Cloud().Stored() != 8 || p.Disk(0).Stored() != 0 {
		t.Errorf("at 1s cloud = %g, disk = %g, want 8, 0", p.Cloud().Stored(), p.Disk(0).Stored())
	}
	if p.Cloud().Uploading() {
		t.Error("window open after the cap was reached")
	}
	if p.TotalBits() != 8 {
		t.Errorf("TotalBits() = %g, want 8", p.TotalBits())
	}
}

func TestUpdate_CloudMovesWholeBitsOnly(t *testing.T) {
	p, clock, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 8, Bits: 2.5}},
		Cloud: &domain.CloudRecord{UploadSpeed: 8},
	})
	p.StartCloudUpload()
	clock.Advance(time.Second)
	if err := p.Update(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.Cloud().Stored() != 2 || p.Disk(0).Stored() != 0.5 {
		t.Errorf("cloud = %g, disk = %g, want 2, 0.5", p.Cloud().Stored(), p.Disk(0).Stored())
	}
}

func TestUpdate_Autosave(t *testing.T) {
	p, clock, store := newTestPlayer(t)
	ctx := context.Background()

	p.Update(ctx)
	if len(store.saves) != 0 {
		t.Fatal("first tick saved")
	}
	if got := p.TimeToAutosave(); got != 3*time.Second {
		t.Errorf("TimeToAutosave() = %v, want 3s", got)
	}

	clock.Advance(2 * time.Second)
	p.Update(ctx)
	if len(store.saves) != 0 {
		t.Error("saved before the interval elapsed")
	}
	if got := p.TimeToAutosave(); got != time.Second {
		t.Errorf("TimeToAutosave() = %v, want 1s", got)
	}

	clock.Advance(time.Second)
	if err := p.Update(ctx); err != nil {
		t.Fatal(err)
	}
	if len(store.saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(store.saves))
	}
	if store.saves[0].Version != domain.SaveVersion {
		t.Errorf("saved version = %d", store.saves[0].Version)
	}
}

func TestUpdate_AutosaveFailureIsSoft(t *testing.T) {
	p, clock, store := newTestPlayer(t)
	store.err = errors.New("disk full")
	ctx := context.Background()

	p.Update(ctx)
	clock.Advance(3 * time.Second)
	err := p.Update(ctx)
	if err == nil {
		t.Fatal("Update() = nil, want autosave error")
	}
	if errors.Is(err, domain.ErrInvariant) {
		t.Errorf("autosave failure reported as invariant violation: %v", err)
	}
}

func TestUpdate_MaxBitsTracked(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	for i := 0; i < 4; i++ {
		p.InteractWithDisk(0)
	}
	p.Buy(NewPurchase("test", "Three", 3, nil))
	if p.Stats().MaxBits() != 4 {
		t.Errorf("MaxBits() = %g, want 4", p.Stats().MaxBits())
	}
	if p.TotalBits() != 1 {
		t.Errorf("TotalBits() = %g, want 1", p.TotalBits())
	}
}

// ─── Commands ───────────────────────────────────────────────────────────────

func TestCommands_UnknownEntities(t *testing.T) {
	p, _, _ := newTestPlayer(t)

	if err := p.InteractWithDisk(5); !errors.Is(err, domain.ErrUnknownDisk) {
		t.Errorf("InteractWithDisk(5) = %v", err)
	}
	if err := p.InteractWithChip(0); !errors.Is(err, domain.ErrUnknownChip) {
		t.Errorf("InteractWithChip(0) = %v", err)
	}
	if err := p.InteractWithCloud(); !errors.Is(err, domain.ErrNoCloud) {
		t.Errorf("InteractWithCloud() = %v", err)
	}
	if _, err := p.ActivateOverclock(0); !errors.Is(err, domain.ErrUnknownChip) {
		t.Errorf("ActivateOverclock(0) = %v", err)
	}
	if _, err := p.StartCloudUpload(); !errors.Is(err, domain.ErrNoCloud) {
		t.Errorf("StartCloudUpload() = %v", err)
	}
	if err := p.AssignChipTarget(0, 0); !errors.Is(err, domain.ErrUnknownChip) {
		t.Errorf("AssignChipTarget(0, 0) = %v", err)
	}
}

func TestCommands_Selection(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Chips: []domain.ChipRecord{{ClockSpeed: 1}},
		Cloud: &domain.CloudRecord{UploadSpeed: 8},
	})

	p.InteractWithDisk(0)
	if s := p.Selection(); s.Kind != SelectDisk || s.Index != 0 {
		t.Errorf("Selection() = %+v, want disk 0", s)
	}
	if p.TotalBits() != 1 {
		t.Errorf("TotalBits() after interact = %g, want 1", p.TotalBits())
	}
	p.InteractWithChip(0)
	if s := p.Selection(); s.Kind != SelectChip || s.Kind.String() != "chip" {
		t.Errorf("Selection() = %+v, want chip", s)
	}
	p.InteractWithCloud()
	if s := p.Selection(); s.Kind != SelectCloud {
		t.Errorf("Selection() = %+v, want cloud", s)
	}
	p.ClearSelection()
	if p.Selection().Kind != SelectNone {
		t.Error("ClearSelection() kept a selection")
	}
}

func TestCommands_AssignChipTarget(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{Chips: []domain.ChipRecord{{ClockSpeed: 1, TargetDiskID: intPtr(0)}}})

	if err := p.AssignChipTarget(0, 7); !errors.Is(err, domain.ErrUnknownDisk) {
		t.Errorf("AssignChipTarget(0, 7) = %v", err)
	}
	if err := p.AssignChipTarget(0, NoDisk); err != nil {
		t.Fatal(err)
	}
	if p.Chips()[0].Target() != NoDisk {
		t.Error("chip still targets a disk")
	}
	if bps, _ := p.ChipBitsPerSecond(0); bps != 0 {
		t.Errorf("idle chip rate = %g, want 0", bps)
	}
	if p.Stats().BitsPerSecond() != 0 {
		t.Errorf("BitsPerSecond() = %g, want 0", p.Stats().BitsPerSecond())
	}
}

func TestCommands_ActivateOverclock(t *testing.T) {
	p, clock, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 64}},
		Chips: []domain.ChipRecord{{ClockSpeed: 1, Overclock: 1, TargetDiskID: intPtr(0)}},
	})
	ctx := context.Background()
	p.Update(ctx)

	clock.Advance(2 * time.Second)
	if ok, err := p.ActivateOverclock(0); !ok || err != nil {
		t.Fatalf("ActivateOverclock() = %v, %v", ok, err)
	}
	if bps, _ := p.ChipBitsPerSecond(0); bps != 2 {
		t.Errorf("overclocked rate = %g, want 2", bps)
	}
	clock.Advance(time.Second)
	p.Update(ctx)
	if got := p.Disk(0).Stored(); got != 4 {
		t.Errorf("disk = %g, want 4 (2 plain + 2 boosted)", got)
	}
	if ok, _ := p.ActivateOverclock(0); ok {
		t.Error("activation during cooldown accepted")
	}
}

func TestEstimateSecondsUntil(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	if got := p.EstimateSecondsUntil(100); got != 0 {
		t.Errorf("EstimateSecondsUntil() with no production = %g, want 0", got)
	}

	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 64, Bits: 10}},
		Chips: []domain.ChipRecord{{ClockSpeed: 2, Overclock: 1, TargetDiskID: intPtr(0)}},
	})
	if got := p.EstimateSecondsUntil(30); got != 10 {
		t.Errorf("EstimateSecondsUntil(30) = %g, want 10", got)
	}
}

func TestCheckDrain(t *testing.T) {
	err := checkDrain("purchase", 10, 7, 7)
	var inv *domain.InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("checkDrain() = %v, want *InvariantError", err)
	}
	if !errors.Is(err, domain.ErrInvariant) || !errors.Is(err, domain.ErrDrainShortfall) {
		t.Errorf("shortfall error = %v", err)
	}
	if err := checkDrain("purchase", 5, 6, 10); !errors.Is(err, domain.ErrDrainOverdraw) {
		t.Errorf("overdraw error = %v", err)
	}
	if err := checkDrain("purchase", 5, 5, 10); err != nil {
		t.Errorf("exact drain error = %v", err)
	}
}

func TestReset(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	p.LoadSnapshot(domain.SaveData{
		Disks: []domain.DiskRecord{{ID: 0, Capacity: 64, Bits: 10}, {ID: 1, Capacity: 4}},
		Cloud: &domain.CloudRecord{Bits: 3},
	})
	p.Reset()
	if len(p.Disks()) != 1 || p.Cloud() != nil || p.TotalBits() != 0 {
		t.Errorf("after Reset: disks = %d, cloud = %v, bits = %g", len(p.Disks()), p.Cloud(), p.TotalBits())
	}
}
