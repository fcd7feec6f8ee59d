package game

import "math"

// Purchase describes a state transition bought with bits. It is a value:
// the cost is fixed (floored) when the purchase is described.
type Purchase struct {
	key    string
	item   string
	name   string
	cost   float64
	effect func(*Player)
}

// NewPurchase builds a purchase. The cost is floored.
func NewPurchase(key, name string, cost float64, effect func(*Player)) Purchase {
	return Purchase{
		key:    key,
		item:   key,
		name:   name,
		cost:   math.Floor(cost),
		effect: effect,
	}
}

// Key identifies the purchase within a player's catalogue, e.g. "chip/0/clock".
func (p Purchase) Key() string { return p.key }

// Item is the purchase family, e.g. "clock" for "chip/0/clock".
func (p Purchase) Item() string { return p.item }

// Name is the display name, e.g. "x2 Clock Speed".
func (p Purchase) Name() string { return p.name }

// Cost is the integer price in bits.
func (p Purchase) Cost() float64 { return p.cost }

// ─── Selection ──────────────────────────────────────────────────────────────

// SelectionKind is the closed set of things a player can select.
type SelectionKind int

const (
	SelectNone SelectionKind = iota
	SelectDisk
	SelectChip
	SelectCloud
)

// String returns a human-readable selection kind.
func (k SelectionKind) String() string {
	switch k {
	case SelectNone:
		return "none"
	case SelectDisk:
		return "disk"
	case SelectChip:
		return "chip"
	case SelectCloud:
		return "cloud"
	default:
		return "unknown"
	}
}

// Selection is the currently selected entity. Index is the disk id for
// SelectDisk and the chip index for SelectChip; it is unused otherwise.
type Selection struct {
	Kind  SelectionKind
	Index int
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// Stats holds derived statistics refreshed after every tick and command.
type Stats struct {
	maxBits       float64
	chipCount     int
	bitsPerSecond float64
}

// MaxBits is the highest total ever held. It is persisted.
func (s Stats) MaxBits() float64 { return s.maxBits }

// ChipCount is the number of owned chips.
func (s Stats) ChipCount() int { return s.chipCount }

// BitsPerSecond is the summed effective rate of every chip.
func (s Stats) BitsPerSecond() float64 { return s.bitsPerSecond }

// ChipsUnlocked reports whether chips may be bought.
func (s Stats) ChipsUnlocked() bool {
	return s.chipCount > 0 || s.maxBits >= ChipsUnlockBits
}

// CloudUnlocked reports whether the cloud may be bought.
func (s Stats) CloudUnlocked() bool {
	return s.maxBits >= CloudUnlockBits
}
