// Package game implements the resource-accounting core: disks, chips and the
// cloud buffer, the drain-priority policy used to pay for purchases, and the
// memoised cost recurrences that price every upgrade.
//
// Everything here is single-threaded and synchronous. Production and uploads
// are functions of elapsed wall-clock time, never of how often Update runs.
package game

import (
	"github.com/idle-bit/idlebit/internal/domain"
)

// CostFunc computes the cost of reaching amount given the cost of the
// previous step.
type CostFunc func(amount int, prevCost float64) float64

// StepFunc returns the amount that follows amount. It must be strictly increasing.
type StepFunc func(amount int) int

// CostManager evaluates a monotone cost recurrence with a single-entry cache.
//
// Forward queries continue from the cached (amount, cost) pair, so steady
// progress costs O(1) amortised. A query below the cached amount replays the
// recurrence from the base. The cache is never widened into a table: cost
// functions are not guaranteed pure.
type CostManager struct {
	baseCost   float64
	baseAmount int
	cost       CostFunc
	step       StepFunc

	cached     bool
	lastAmount int // last reached amount
	lastCost   float64
}

// NewCostManager creates a cost manager whose first priced amount is
// baseAmount at baseCost. Amounts advance by one.
func NewCostManager(baseCost float64, baseAmount int, cost CostFunc) *CostManager {
	return NewSteppedCostManager(baseCost, baseAmount, cost, func(a int) int { return a + 1 })
}

// NewSteppedCostManager is NewCostManager with a custom step function.
func NewSteppedCostManager(baseCost float64, baseAmount int, cost CostFunc, step StepFunc) *CostManager {
	return &CostManager{
		baseCost:   baseCost,
		baseAmount: baseAmount,
		cost:       cost,
		step:       step,
	}
}

// CostFor returns the cost of reaching amount.
//
// Amounts at or below the base amount cost the base cost. CostFor panics with
// domain.ErrInvalidAmount when amount is negative.
func (m *CostManager) CostFor(amount int) float64 {
	if amount < 0 {
		panic(domain.ErrInvalidAmount)
	}
	if m.cached && amount == m.lastAmount {
		return m.lastCost
	}

	start, cost := m.baseAmount, m.baseCost
	if m.cached && amount > m.lastAmount {
		start, cost = m.lastAmount, m.lastCost
	}

	for next := m.step(start); next <= amount; next = m.step(start) {
		cost = m.cost(next, cost)
		start = next
	}

	m.cached = true
	m.lastAmount = start
	m.lastCost = cost
	return cost
}

// ─── Cost Curves ────────────────────────────────────────────────────────────
// Exponents and bases carried over from the browser game's balance.

// steepening raises the previous cost to 1.15 for the first four units and
// to 1.9 after that.
func steepening(amount int, prev float64) float64 {
	if amount < 4 {
		return pow(prev, 1.15)
	}
	return pow(prev, 1.9)
}

func newDiskCost() *CostManager { return NewCostManager(10, 1, steepening) }

func newChipCost() *CostManager { return NewCostManager(100, 0, steepening) }

// newCapacityCost prices capacity doublings keyed by log2(capacity). Later
// disks are three times as expensive to grow as the one before.
func newCapacityCost(id DiskID) *CostManager {
	base := 3.75 * DefaultDiskCapacity * pow(3, float64(id))
	return NewCostManager(base, log2Floor(DefaultDiskCapacity), func(_ int, prev float64) float64 {
		return prev * 2
	})
}

// newClockCost prices clock doublings keyed by log2(clockSpeed).
func newClockCost() *CostManager {
	return NewCostManager(150, 0, func(_ int, prev float64) float64 {
		return pow(prev, 1.1)
	})
}

// newOverclockCost prices overclock levels keyed by the level itself.
func newOverclockCost() *CostManager {
	return NewCostManager(500, 1, func(_ int, prev float64) float64 {
		return prev * 4
	})
}

// newUploadCost prices upload-speed doublings keyed by log2(uploadSpeed).
func newUploadCost() *CostManager {
	return NewCostManager(1024, log2Floor(DefaultUploadSpeed), func(_ int, prev float64) float64 {
		return prev * 3
	})
}
