package game

import (
	"fmt"
	"math"
)

// DiskID identifies a disk. Chips hold a DiskID, never a *Disk.
type DiskID int

// NoDisk is the target of a chip that produces nothing.
const NoDisk DiskID = -1

// Letter returns the drive letter shown for the disk: 0 → "C", 23 → "Z",
// 24 → "AA".
func (id DiskID) Letter() string {
	if id < 0 {
		return ""
	}
	n := int(id) + 3 // A=1, B=2 are reserved
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

// Disk is a bounded bit accumulator. Overflow is discarded silently.
type Disk struct {
	id       DiskID
	capacity float64
	stored   float64 // 0 ≤ stored ≤ capacity

	capacityCost *CostManager
}

// NewDisk creates an empty disk. Non-positive capacities fall back to the default.
func NewDisk(id DiskID, capacity float64) *Disk {
	if capacity <= 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		capacity = DefaultDiskCapacity
	}
	return &Disk{
		id:           id,
		capacity:     capacity,
		capacityCost: newCapacityCost(id),
	}
}

// ID returns the disk identifier.
func (d *Disk) ID() DiskID { return d.id }

// Name returns the display name, e.g. "4b Disk (C:)".
func (d *Disk) Name() string {
	return fmt.Sprintf("%.0fb Disk (%s:)", d.capacity, d.id.Letter())
}

// Capacity returns the maximum number of bits the disk holds.
func (d *Disk) Capacity() float64 { return d.capacity }

// Bits returns the stored bits, floored.
func (d *Disk) Bits() float64 { return math.Floor(d.stored) }

// Stored returns the exact, possibly fractional, stored amount.
func (d *Disk) Stored() float64 { return d.stored }

// IsFull reports whether the disk has reached capacity.
func (d *Disk) IsFull() bool { return d.stored >= d.capacity }

// FillRatio returns stored/capacity in [0, 1].
func (d *Disk) FillRatio() float64 { return d.stored / d.capacity }

// Produce adds amount bits, clamped at capacity.
func (d *Disk) Produce(amount float64) {
	if !(amount > 0) {
		return
	}
	d.setStored(d.stored + amount)
}

// Drain removes up to requested bits and returns how many were removed.
func (d *Disk) Drain(requested float64) float64 {
	if !(requested > 0) {
		return 0
	}
	drained := math.Min(requested, d.stored)
	d.setStored(d.stored - drained)
	return drained
}

// UpgradeCapacity doubles the capacity.
func (d *Disk) UpgradeCapacity() {
	d.capacity *= 2
}

// CapacityUpgradeCost prices the next doubling, keyed by log2(capacity).
func (d *Disk) CapacityUpgradeCost() float64 {
	return d.capacityCost.CostFor(log2Floor(d.capacity))
}

func (d *Disk) setStored(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > d.capacity:
		v = d.capacity
	}
	d.stored = v
}
