package game

import (
	"math"
	"time"

	"github.com/idle-bit/idlebit/internal/domain"
)

// ─── Snapshot ───────────────────────────────────────────────────────────────

// Snapshot records the persistent state of the player.
func (p *Player) Snapshot() domain.SaveData {
	data := domain.SaveData{
		Version: domain.SaveVersion,
		Disks:   make([]domain.DiskRecord, 0, len(p.disks)),
		Chips:   make([]domain.ChipRecord, 0, len(p.chips)),
		Stats:   domain.StatsRecord{MaxBitsEverHeld: p.stats.maxBits},
	}
	for _, d := range p.disks {
		data.Disks = append(data.Disks, domain.DiskRecord{
			ID:       int(d.id),
			Capacity: d.capacity,
			Bits:     d.stored,
		})
	}
	for _, c := range p.chips {
		rec := domain.ChipRecord{
			ClockSpeed:        c.clockSpeed,
			Overclock:         c.overclockLevel,
			LastOverclockTime: unixMilli(c.lastOverclock),
		}
		if c.target != NoDisk {
			id := int(c.target)
			rec.TargetDiskID = &id
		}
		data.Chips = append(data.Chips, rec)
	}
	if p.cloud != nil {
		data.Cloud = &domain.CloudRecord{
			Bits:                   p.cloud.stored,
			UploadSpeed:            p.cloud.uploadSpeed,
			UploadStartTime:        unixMilli(p.cloud.windowStart),
			BitsUploadedThisWindow: p.cloud.uploaded,
		}
	}
	return data
}

// LoadSnapshot replaces the player's state with data. It never fails:
// malformed fields take their defaults, duplicate or negative disk ids are
// reassigned, and chip targets that name no disk leave the chip idle.
func (p *Player) LoadSnapshot(data domain.SaveData) {
	p.disks = loadDisks(data.Disks)

	p.chips = make([]*Chip, 0, len(data.Chips))
	for _, rec := range data.Chips {
		c := NewChip(NoDisk)
		if valid(rec.ClockSpeed) && rec.ClockSpeed > 0 {
			c.clockSpeed = rec.ClockSpeed
		}
		if rec.Overclock >= 0 {
			c.overclockLevel = rec.Overclock
		}
		c.lastOverclock = fromUnixMilli(rec.LastOverclockTime)
		if rec.TargetDiskID != nil && p.disk(DiskID(*rec.TargetDiskID)) != nil {
			c.target = DiskID(*rec.TargetDiskID)
		}
		p.chips = append(p.chips, c)
	}

	p.cloud = nil
	if rec := data.Cloud; rec != nil {
		cl := NewCloud()
		if valid(rec.UploadSpeed) && rec.UploadSpeed > 0 {
			cl.uploadSpeed = rec.UploadSpeed
		}
		if valid(rec.Bits) && rec.Bits > 0 {
			cl.stored = rec.Bits
		}
		cl.windowStart = fromUnixMilli(rec.UploadStartTime)
		if !cl.windowStart.IsZero() && valid(rec.BitsUploadedThisWindow) {
			cl.uploaded = math.Max(0, math.Min(rec.BitsUploadedThisWindow, cl.uploadSpeed))
		}
		p.cloud = cl
	}

	p.selection = Selection{}
	p.stats = Stats{}
	if valid(data.Stats.MaxBitsEverHeld) && data.Stats.MaxBitsEverHeld > 0 {
		p.stats.maxBits = data.Stats.MaxBitsEverHeld
	}
	p.refresh(p.now())
}

func loadDisks(records []domain.DiskRecord) []*Disk {
	if len(records) == 0 {
		return []*Disk{NewDisk(0, DefaultDiskCapacity)}
	}

	seen := make(map[int]bool, len(records))
	next := 0
	for _, rec := range records {
		if rec.ID >= next {
			next = rec.ID + 1
		}
	}

	disks := make([]*Disk, 0, len(records))
	for _, rec := range records {
		id := rec.ID
		if id < 0 || seen[id] {
			id = next
			next++
		}
		seen[id] = true

		capacity := float64(DefaultDiskCapacity)
		if valid(rec.Capacity) && rec.Capacity > 0 {
			capacity = rec.Capacity
		}
		d := NewDisk(DiskID(id), capacity)
		if valid(rec.Bits) {
			d.setStored(rec.Bits)
		}
		disks = append(disks, d)
	}
	return disks
}

func valid(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func unixMilli(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromUnixMilli(ms *int64) time.Time {
	if ms == nil || *ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(*ms)
}
