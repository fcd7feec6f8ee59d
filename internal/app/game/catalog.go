package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/idle-bit/idlebit/internal/domain"
)

// Purchase families, used as the metrics label.
const (
	ItemDisk       = "disk"
	ItemChip       = "chip"
	ItemCapacity   = "capacity"
	ItemClock      = "clock"
	ItemOverclock  = "overclock"
	ItemCloud      = "cloud"
	ItemCloudSpeed = "cloud_speed"
)

func newItemPurchase(item, key, name string, cost float64, effect func(*Player)) Purchase {
	p := NewPurchase(key, name, cost, effect)
	p.item = item
	return p
}

// Purchases lists everything currently for sale, affordable or not, in a
// stable order: disk, chip, cloud, then per-entity upgrades.
func (p *Player) Purchases() []Purchase {
	out := []Purchase{p.diskPurchase()}
	if p.stats.ChipsUnlocked() {
		out = append(out, p.chipPurchase())
	}
	if p.cloud == nil && p.CloudUnlocked() {
		out = append(out, newItemPurchase(ItemCloud, "cloud", "Unlock Cloud", CloudUnlockCost, func(pl *Player) {
			pl.cloud = NewCloud()
		}))
	}
	if p.cloud != nil {
		out = append(out, newItemPurchase(ItemCloudSpeed, "cloud/speed", "x2 Upload Speed", p.cloud.SpeedUpgradeCost(), func(pl *Player) {
			pl.cloud.UpgradeSpeed()
		}))
	}
	for _, d := range p.disks {
		out = append(out, p.capacityPurchase(d))
	}
	for i, c := range p.chips {
		out = append(out, p.clockPurchase(i, c), p.overclockPurchase(i, c))
	}
	return out
}

// PurchaseByKey resolves a catalogue key such as "disk/0/capacity".
func (p *Player) PurchaseByKey(key string) (Purchase, error) {
	parts := strings.Split(key, "/")
	switch {
	case key == "disk":
		return p.diskPurchase(), nil
	case key == "chip" && p.stats.ChipsUnlocked():
		return p.chipPurchase(), nil
	case key == "cloud" || key == "cloud/speed":
		for _, pu := range p.Purchases() {
			if pu.key == key {
				return pu, nil
			}
		}
	case len(parts) == 3 && parts[0] == "disk" && parts[2] == "capacity":
		id, err := strconv.Atoi(parts[1])
		if err == nil {
			if d := p.disk(DiskID(id)); d != nil {
				return p.capacityPurchase(d), nil
			}
		}
	case len(parts) == 3 && parts[0] == "chip":
		i, err := strconv.Atoi(parts[1])
		if err != nil {
			break
		}
		c := p.chip(i)
		if c == nil {
			break
		}
		switch parts[2] {
		case "clock":
			return p.clockPurchase(i, c), nil
		case "overclock":
			return p.overclockPurchase(i, c), nil
		}
	}
	return Purchase{}, fmt.Errorf("purchase %q: %w", key, domain.ErrUnknownPurchase)
}

// CloudUnlocked reports whether the cloud is owned or may be bought.
func (p *Player) CloudUnlocked() bool {
	return p.cloud != nil || p.stats.CloudUnlocked()
}

func (p *Player) diskPurchase() Purchase {
	name := fmt.Sprintf("Buy %.0fb Disk", float64(DefaultDiskCapacity))
	return newItemPurchase(ItemDisk, "disk", name, p.NextDiskCost(), func(pl *Player) {
		pl.disks = append(pl.disks, NewDisk(pl.nextDiskID(), DefaultDiskCapacity))
	})
}

func (p *Player) chipPurchase() Purchase {
	name := fmt.Sprintf("Buy %.0fHz Chip", float64(DefaultClockSpeed))
	return newItemPurchase(ItemChip, "chip", name, p.NextChipCost(), func(pl *Player) {
		pl.chips = append(pl.chips, NewChip(pl.firstOpenDisk()))
	})
}

func (p *Player) capacityPurchase(d *Disk) Purchase {
	id := d.id
	key := fmt.Sprintf("disk/%d/capacity", id)
	return newItemPurchase(ItemCapacity, key, "x2 Storage", d.CapacityUpgradeCost(), func(pl *Player) {
		if d := pl.disk(id); d != nil {
			d.UpgradeCapacity()
		}
	})
}

func (p *Player) clockPurchase(i int, c *Chip) Purchase {
	key := fmt.Sprintf("chip/%d/clock", i)
	return newItemPurchase(ItemClock, key, "x2 Clock Speed", c.ClockUpgradeCost(), func(pl *Player) {
		if c := pl.chip(i); c != nil {
			pl.flushChip(c)
			c.UpgradeClockSpeed()
		}
	})
}

func (p *Player) overclockPurchase(i int, c *Chip) Purchase {
	key := fmt.Sprintf("chip/%d/overclock", i)
	return newItemPurchase(ItemOverclock, key, "+1 Overclock Level", c.OverclockUpgradeCost(), func(pl *Player) {
		if c := pl.chip(i); c != nil {
			pl.flushChip(c)
			c.UpgradeOverclock()
		}
	})
}

// flushChip settles a chip's production at its current rate before the rate
// changes.
func (p *Player) flushChip(c *Chip) {
	c.Produce(p.now(), p.disk(c.target))
}
