package game

import (
	"math"
	"time"

	"github.com/idle-bit/idlebit/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	DefaultDiskCapacity   = domain.DefaultDiskCapacity
	DefaultClockSpeed     = domain.DefaultClockSpeed
	DefaultOverclockLevel = domain.DefaultOverclockLevel
	DefaultUploadSpeed    = domain.DefaultCloudUploadRate

	// OverclockBase is raised to the chip's overclock level while overclocking.
	OverclockBase = 2.0

	// OverclockDuration is how long an activation lasts.
	OverclockDuration = 10 * time.Second

	// OverclockCooldown is the minimum time between activations.
	OverclockCooldown = 60 * time.Second

	// UploadWindow is the length of one cloud upload window.
	UploadWindow = time.Second

	// DefaultAutosaveInterval is the autosave cadence when none is configured.
	DefaultAutosaveInterval = 3 * time.Second

	// CloudUnlockCost is the price of the cloud buffer.
	CloudUnlockCost = 512

	// ChipsUnlockBits and CloudUnlockBits gate the purchases in the catalogue.
	ChipsUnlockBits = 50
	CloudUnlockBits = 256

	// ratioEpsilon is the tolerance for comparing fill ratios.
	ratioEpsilon = 1e-9

	// bitEpsilon absorbs float error when comparing bit totals.
	bitEpsilon = 1e-6
)

func pow(x, y float64) float64 { return math.Pow(x, y) }

// log2Floor returns floor(log2(v)) for v ≥ 1, and 0 otherwise.
func log2Floor(v float64) int {
	if v < 1 {
		return 0
	}
	return int(math.Floor(math.Log2(v)))
}

// overlap returns the length of the intersection of [aStart, aEnd) and [bStart, bEnd).
func overlap(aStart, aEnd, bStart, bEnd time.Time) time.Duration {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
