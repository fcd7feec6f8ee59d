package game

import (
	"math"
	"sort"
)

// ─── Drain Priority ─────────────────────────────────────────────────────────
// Bits are taken from the fullest disks first, in fill-ratio lockstep:
//
//  1. Only disks holding bits take part; empty disks are dropped each round.
//  2. The disks tied for the highest fill ratio form the round's group,
//     ordered by capacity, largest first.
//  3. Every disk in the group loses the same ratio delta (delta × capacity
//     bits). The delta stops at the next-highest fill ratio, so that disk
//     joins the group next round, or at the remaining requirement.
//  4. Repeat until the requirement is met or every disk is empty.
//
// Repeated drains therefore equalise fill ratios instead of emptying disks
// in index order.

// drainDisks removes up to amount bits from disks and returns the total removed.
func drainDisks(disks []*Disk, amount float64) float64 {
	if !(amount > 0) {
		return 0
	}

	remaining := amount
	var drained float64
	active := make([]*Disk, 0, len(disks))

	for round := 0; remaining > bitEpsilon && round <= 2*len(disks)+1; round++ {
		active = active[:0]
		for _, d := range disks {
			if d.stored > 0 {
				active = append(active, d)
			}
		}
		if len(active) == 0 {
			break
		}

		sort.SliceStable(active, func(i, j int) bool {
			ri, rj := active[i].FillRatio(), active[j].FillRatio()
			if math.Abs(ri-rj) > ratioEpsilon {
				return ri > rj
			}
			return active[i].capacity > active[j].capacity
		})

		top := active[0].FillRatio()
		n := 1
		for n < len(active) && top-active[n].FillRatio() <= ratioEpsilon {
			n++
		}
		group := active[:n]

		next := 0.0
		if n < len(active) {
			next = active[n].FillRatio()
		}

		var groupCap float64
		for _, d := range group {
			groupCap += d.capacity
		}

		roundBits := math.Min(remaining, (top-next)*groupCap)
		delta := roundBits / groupCap
		for _, d := range group {
			got := d.Drain(delta * d.capacity)
			drained += got
			remaining -= got
		}
	}
	return drained
}

// diskTotal returns the exact bits stored across disks.
func diskTotal(disks []*Disk) float64 {
	var total float64
	for _, d := range disks {
		total += d.stored
	}
	return total
}
