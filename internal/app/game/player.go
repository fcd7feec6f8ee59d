package game

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/idle-bit/idlebit/internal/domain"
)

// Options configures a Player.
type Options struct {
	// Store receives autosaves. Nil disables saving.
	Store domain.SaveStore

	// AutosaveInterval defaults to DefaultAutosaveInterval.
	AutosaveInterval time.Duration

	// Now is the wall clock; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Player owns every resource container and is their only mutator.
// It is not safe for concurrent use: one goroutine drives Update and applies
// commands between ticks.
type Player struct {
	disks []*Disk
	chips []*Chip
	cloud *Cloud // nil until bought

	bits      float64 // floored total, refreshed after every tick and command
	selection Selection
	stats     Stats

	diskCost *CostManager
	chipCost *CostManager

	store            domain.SaveStore
	autosaveInterval time.Duration
	lastSave         time.Time
	now              func() time.Time
}

// NewPlayer creates a fresh game: one empty 4-bit disk, no chips, no cloud.
func NewPlayer(opts Options) *Player {
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Player{
		diskCost:         newDiskCost(),
		chipCost:         newChipCost(),
		store:            opts.Store,
		autosaveInterval: opts.AutosaveInterval,
		now:              opts.Now,
	}
	p.reset()
	return p
}

func (p *Player) reset() {
	p.disks = []*Disk{NewDisk(0, DefaultDiskCapacity)}
	p.chips = nil
	p.cloud = nil
	p.selection = Selection{}
	p.stats = Stats{}
	p.refresh(p.now())
}

// Reset discards all progress and starts a fresh game.
func (p *Player) Reset() { p.reset() }

// ─── Tick ───────────────────────────────────────────────────────────────────

// Update advances the game to the current time: chips produce, surplus disk
// bits move into the cloud, totals and stats refresh, and an autosave runs
// when due.
//
// A returned error matching domain.ErrInvariant is fatal. Any other error is
// an autosave failure; the game state is intact.
func (p *Player) Update(ctx context.Context) error {
	now := p.now()

	for _, c := range p.chips {
		c.Produce(now, p.disk(c.target))
	}

	if p.cloud != nil {
		if err := p.topUpCloud(now); err != nil {
			return err
		}
	}

	p.refresh(now)
	return p.maybeAutosave(ctx, now)
}

// topUpCloud moves as many whole disk bits into the cloud as its open
// window accepts.
func (p *Player) topUpCloud(now time.Time) error {
	available := diskTotal(p.disks)
	offer := math.Min(p.cloud.Allowance(now), math.Floor(available))

	drained := drainDisks(p.disks, offer)
	if err := checkDrain("cloud upload", offer, drained, available); err != nil {
		return err
	}

	accepted := p.cloud.Upload(now, drained)
	if drained-accepted > bitEpsilon {
		return &domain.InvariantError{
			Op: "cloud upload", Required: accepted, Drained: drained,
			Available: available, Err: domain.ErrDrainOverdraw,
		}
	}
	return nil
}

func (p *Player) refresh(now time.Time) {
	p.bits = p.exactTotal()

	if p.bits > p.stats.maxBits {
		p.stats.maxBits = p.bits
	}
	p.stats.chipCount = len(p.chips)
	var bps float64
	for _, c := range p.chips {
		bps += c.BitsPerSecond(now, p.disk(c.target))
	}
	p.stats.bitsPerSecond = bps
}

func (p *Player) exactTotal() float64 {
	total := diskTotal(p.disks)
	if p.cloud != nil {
		total += p.cloud.stored
	}
	return math.Floor(total)
}

// ─── Autosave ───────────────────────────────────────────────────────────────

func (p *Player) maybeAutosave(ctx context.Context, now time.Time) error {
	if p.store == nil {
		return nil
	}
	if p.lastSave.IsZero() {
		p.lastSave = now
		return nil
	}
	if now.Sub(p.lastSave) < p.autosaveInterval {
		return nil
	}
	p.lastSave = now
	if err := p.store.Save(ctx, p.Snapshot()); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	return nil
}

// Save persists a snapshot immediately and restarts the autosave timer.
func (p *Player) Save(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	p.lastSave = p.now()
	if err := p.store.Save(ctx, p.Snapshot()); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// LastSave returns the time of the last save; zero before the first tick.
func (p *Player) LastSave() time.Time { return p.lastSave }

// TimeToAutosave returns the time left until the next autosave.
func (p *Player) TimeToAutosave() time.Duration {
	if p.store == nil || p.lastSave.IsZero() {
		return p.autosaveInterval
	}
	left := p.lastSave.Add(p.autosaveInterval).Sub(p.now())
	if left < 0 {
		return 0
	}
	return left
}

// ─── Spending ───────────────────────────────────────────────────────────────

// CanAfford reports whether the player holds at least cost bits.
func (p *Player) CanAfford(cost float64) bool {
	return p.exactTotal() >= cost
}

// Buy applies purchase if affordable. An unaffordable purchase is a no-op
// returning false. An error is always an invariant violation and is fatal.
func (p *Player) Buy(purchase Purchase) (bool, error) {
	if !p.CanAfford(purchase.cost) {
		return false, nil
	}
	if err := p.spend(purchase.key, purchase.cost); err != nil {
		return false, err
	}
	if purchase.effect != nil {
		purchase.effect(p)
	}
	p.refresh(p.now())
	return true, nil
}

// spend drains amount bits: disks first, in drain-priority order, then the cloud.
func (p *Player) spend(op string, amount float64) error {
	available := diskTotal(p.disks)
	if p.cloud != nil {
		available += p.cloud.stored
	}

	fromDisks := math.Min(amount, diskTotal(p.disks))
	drained := drainDisks(p.disks, fromDisks)
	if drained-fromDisks > bitEpsilon {
		return &domain.InvariantError{
			Op: op, Required: fromDisks, Drained: drained,
			Available: available, Err: domain.ErrDrainOverdraw,
		}
	}

	if rest := amount - drained; rest > bitEpsilon {
		if p.cloud != nil {
			drained += p.cloud.Drain(rest)
		}
	}
	return checkDrain(op, amount, drained, available)
}

func checkDrain(op string, required, drained, available float64) error {
	switch {
	case required-drained > bitEpsilon:
		return &domain.InvariantError{
			Op: op, Required: required, Drained: drained,
			Available: available, Err: domain.ErrDrainShortfall,
		}
	case drained-required > bitEpsilon:
		return &domain.InvariantError{
			Op: op, Required: required, Drained: drained,
			Available: available, Err: domain.ErrDrainOverdraw,
		}
	}
	return nil
}

// ─── Commands ───────────────────────────────────────────────────────────────

// InteractWithDisk selects the disk and writes one bit to it by hand.
func (p *Player) InteractWithDisk(id DiskID) error {
	d := p.disk(id)
	if d == nil {
		return fmt.Errorf("disk %d: %w", id, domain.ErrUnknownDisk)
	}
	p.selection = Selection{Kind: SelectDisk, Index: int(id)}
	d.Produce(1)
	p.refresh(p.now())
	return nil
}

// InteractWithChip selects the chip.
func (p *Player) InteractWithChip(index int) error {
	if p.chip(index) == nil {
		return fmt.Errorf("chip %d: %w", index, domain.ErrUnknownChip)
	}
	p.selection = Selection{Kind: SelectChip, Index: index}
	return nil
}

// InteractWithCloud selects the cloud.
func (p *Player) InteractWithCloud() error {
	if p.cloud == nil {
		return domain.ErrNoCloud
	}
	p.selection = Selection{Kind: SelectCloud}
	return nil
}

// ClearSelection deselects everything.
func (p *Player) ClearSelection() { p.selection = Selection{} }

// AssignChipTarget points a chip at a disk, or at nothing with NoDisk.
func (p *Player) AssignChipTarget(index int, id DiskID) error {
	c := p.chip(index)
	if c == nil {
		return fmt.Errorf("chip %d: %w", index, domain.ErrUnknownChip)
	}
	if id != NoDisk && p.disk(id) == nil {
		return fmt.Errorf("disk %d: %w", id, domain.ErrUnknownDisk)
	}
	c.SetTarget(id)
	p.refresh(p.now())
	return nil
}

// ActivateOverclock overclocks a chip. It returns false while on cooldown.
func (p *Player) ActivateOverclock(index int) (bool, error) {
	c := p.chip(index)
	if c == nil {
		return false, fmt.Errorf("chip %d: %w", index, domain.ErrUnknownChip)
	}
	now := p.now()
	p.flushChip(c)
	ok := c.ActivateOverclock(now)
	p.refresh(now)
	return ok, nil
}

// StartCloudUpload opens an upload window. It returns false when one is
// already open.
func (p *Player) StartCloudUpload() (bool, error) {
	if p.cloud == nil {
		return false, domain.ErrNoCloud
	}
	return p.cloud.BeginUpload(p.now()), nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// TotalBits returns the floored bits held across disks and the cloud.
func (p *Player) TotalBits() float64 { return p.bits }

// MaxStorage returns the summed disk capacity.
func (p *Player) MaxStorage() float64 {
	var total float64
	for _, d := range p.disks {
		total += d.capacity
	}
	return total
}

// Disks returns the disks in creation order.
func (p *Player) Disks() []*Disk { return append([]*Disk(nil), p.disks...) }

// Chips returns the chips in purchase order.
func (p *Player) Chips() []*Chip { return append([]*Chip(nil), p.chips...) }

// Cloud returns the cloud buffer, or nil when not bought.
func (p *Player) Cloud() *Cloud { return p.cloud }

// Disk resolves a disk id; nil when unknown.
func (p *Player) Disk(id DiskID) *Disk { return p.disk(id) }

// Selection returns the current selection.
func (p *Player) Selection() Selection { return p.selection }

// Stats returns the derived statistics.
func (p *Player) Stats() Stats { return p.stats }

// Now returns the player's clock reading.
func (p *Player) Now() time.Time { return p.now() }

// ChipBitsPerSecond returns a chip's effective rate.
func (p *Player) ChipBitsPerSecond(index int) (float64, error) {
	c := p.chip(index)
	if c == nil {
		return 0, fmt.Errorf("chip %d: %w", index, domain.ErrUnknownChip)
	}
	return c.BitsPerSecond(p.now(), p.disk(c.target)), nil
}

// NextDiskCost returns the price of the next disk.
func (p *Player) NextDiskCost() float64 { return math.Floor(p.diskCost.CostFor(len(p.disks))) }

// NextChipCost returns the price of the next chip.
func (p *Player) NextChipCost() float64 { return math.Floor(p.chipCost.CostFor(len(p.chips))) }

// EstimateSecondsUntil returns the seconds until the total reaches goal at
// the current rate, 0 when nothing is produced.
func (p *Player) EstimateSecondsUntil(goal float64) float64 {
	bps := p.stats.bitsPerSecond
	if bps == 0 {
		return 0
	}
	return math.Max(0, (goal-p.bits)/bps)
}

func (p *Player) disk(id DiskID) *Disk {
	if id < 0 {
		return nil
	}
	for _, d := range p.disks {
		if d.id == id {
			return d
		}
	}
	return nil
}

func (p *Player) chip(index int) *Chip {
	if index < 0 || index >= len(p.chips) {
		return nil
	}
	return p.chips[index]
}

func (p *Player) nextDiskID() DiskID {
	next := DiskID(0)
	for _, d := range p.disks {
		if d.id >= next {
			next = d.id + 1
		}
	}
	return next
}

// firstOpenDisk returns the first disk that is not full, or NoDisk.
func (p *Player) firstOpenDisk() DiskID {
	for _, d := range p.disks {
		if !d.IsFull() {
			return d.id
		}
	}
	return NoDisk
}
