package game

import (
	"fmt"
	"math"
	"time"
)

// Chip produces bits onto its target disk at its clock speed.
//
// Output is a function of elapsed wall-clock time only: each Produce call
// flushes the time since the previous call, and the part of that interval
// covered by an active overclock is boosted exactly. Calling Produce more
// often changes granularity, never totals.
type Chip struct {
	clockSpeed     float64 // Hz, > 0
	overclockLevel int     // ≥ 0
	lastOverclock  time.Time
	target         DiskID
	lastProduction time.Time

	clockCost     *CostManager
	overclockCost *CostManager
}

// NewChip creates a 1 Hz chip at the default overclock level.
func NewChip(target DiskID) *Chip {
	return &Chip{
		clockSpeed:     DefaultClockSpeed,
		overclockLevel: DefaultOverclockLevel,
		target:         target,
		clockCost:      newClockCost(),
		overclockCost:  newOverclockCost(),
	}
}

// Name returns the display name, e.g. "1Hz Chip".
func (c *Chip) Name() string {
	return fmt.Sprintf("%.0fHz Chip", c.clockSpeed)
}

// ClockSpeed returns the base clock speed in Hz.
func (c *Chip) ClockSpeed() float64 { return c.clockSpeed }

// OverclockLevel returns the overclock exponent.
func (c *Chip) OverclockLevel() int { return c.overclockLevel }

// LastOverclock returns the last activation time; zero when never activated.
func (c *Chip) LastOverclock() time.Time { return c.lastOverclock }

// Target returns the target disk, or NoDisk.
func (c *Chip) Target() DiskID { return c.target }

// SetTarget points the chip at a disk. Production restarts from the next call.
func (c *Chip) SetTarget(id DiskID) {
	if id < 0 {
		id = NoDisk
	}
	if id != c.target {
		c.lastProduction = time.Time{}
	}
	c.target = id
}

// Multiplier returns the overclock multiplier in effect at now.
func (c *Chip) Multiplier(now time.Time) float64 {
	if c.IsOverclocked(now) {
		return math.Pow(OverclockBase, float64(c.overclockLevel))
	}
	return 1
}

// IsOverclocked reports whether an activation is active at now.
func (c *Chip) IsOverclocked(now time.Time) bool {
	if c.lastOverclock.IsZero() {
		return false
	}
	return !now.Before(c.lastOverclock) && now.Before(c.lastOverclock.Add(OverclockDuration))
}

// OverclockRemaining returns how long the active overclock still lasts.
func (c *Chip) OverclockRemaining(now time.Time) time.Duration {
	if !c.IsOverclocked(now) {
		return 0
	}
	return c.lastOverclock.Add(OverclockDuration).Sub(now)
}

// CooldownRemaining returns the time until ActivateOverclock succeeds again.
func (c *Chip) CooldownRemaining(now time.Time) time.Duration {
	if c.lastOverclock.IsZero() {
		return 0
	}
	left := c.lastOverclock.Add(OverclockCooldown).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ActivateOverclock starts an overclock. While on cooldown it does nothing
// and returns false.
func (c *Chip) ActivateOverclock(now time.Time) bool {
	if c.CooldownRemaining(now) > 0 {
		return false
	}
	c.lastOverclock = now
	return true
}

// Produce flushes the time elapsed since the previous call onto target and
// returns the bits offered. A nil target leaves the chip idle.
func (c *Chip) Produce(now time.Time, target *Disk) float64 {
	if target == nil {
		c.lastProduction = now
		return 0
	}
	last := c.lastProduction
	if last.IsZero() {
		c.lastProduction = now
		return 0
	}
	if !now.After(last) {
		return 0
	}
	c.lastProduction = now

	elapsed := now.Sub(last).Seconds()
	var boosted float64
	if !c.lastOverclock.IsZero() {
		window := overlap(last, now, c.lastOverclock, c.lastOverclock.Add(OverclockDuration))
		boosted = window.Seconds()
	}
	mult := math.Pow(OverclockBase, float64(c.overclockLevel))
	bits := c.clockSpeed * (elapsed + (mult-1)*boosted)

	target.Produce(bits)
	return bits
}

// BitsPerSecond returns the current effective rate onto target; 0 when the
// target is absent or full.
func (c *Chip) BitsPerSecond(now time.Time, target *Disk) float64 {
	if target == nil || target.IsFull() {
		return 0
	}
	return c.clockSpeed * c.Multiplier(now)
}

// UpgradeClockSpeed doubles the clock speed.
func (c *Chip) UpgradeClockSpeed() { c.clockSpeed *= 2 }

// ClockUpgradeCost prices the next doubling, keyed by log2(clockSpeed).
func (c *Chip) ClockUpgradeCost() float64 {
	return c.clockCost.CostFor(log2Floor(c.clockSpeed))
}

// UpgradeOverclock raises the overclock level by one.
func (c *Chip) UpgradeOverclock() { c.overclockLevel++ }

// OverclockUpgradeCost prices the next level.
func (c *Chip) OverclockUpgradeCost() float64 {
	return c.overclockCost.CostFor(c.overclockLevel)
}
