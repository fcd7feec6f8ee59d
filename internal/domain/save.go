// Package domain contains pure game types with ZERO infrastructure imports.
// This is the innermost ring; the game core, codecs and stores all depend on it.
package domain

// ─── Save Data ──────────────────────────────────────────────────────────────
// SaveData is the persisted snapshot of a player. Times are Unix milliseconds.
// Field names follow the save strings the browser game exported, so old
// exports keep importing.

// SaveVersion is the current snapshot format version.
//
// Version 1 is the legacy format: disks carry a bit width ("storage") instead
// of a capacity and chips carry only their clock speed.
const SaveVersion = 2

// SaveData is a versioned player snapshot.
type SaveData struct {
	Version int          `json:"version"`
	Disks   []DiskRecord `json:"disks"`
	Chips   []ChipRecord `json:"chips"`
	Cloud   *CloudRecord `json:"cloud"`
	Stats   StatsRecord  `json:"stats"`
}

// DiskRecord persists one disk.
type DiskRecord struct {
	ID       int     `json:"id"`
	Capacity float64 `json:"capacity"`
	Bits     float64 `json:"bits"`
}

// ChipRecord persists one chip. TargetDiskID refers to DiskRecord.ID.
type ChipRecord struct {
	ClockSpeed        float64 `json:"clockSpeed"`
	Overclock         int     `json:"overclock"`
	LastOverclockTime *int64  `json:"lastOverclockTime"`
	TargetDiskID      *int    `json:"targetDiskId"`
}

// CloudRecord persists the cloud upload buffer.
type CloudRecord struct {
	Bits                   float64 `json:"bits"`
	UploadSpeed            float64 `json:"uploadSpeed"`
	UploadStartTime        *int64  `json:"uploadStartTime"`
	BitsUploadedThisWindow float64 `json:"bitsUploadedThisWindow"`
}

// StatsRecord persists long-lived statistics.
type StatsRecord struct {
	MaxBitsEverHeld float64 `json:"maxBitsEverHeld"`
}

// ─── Defaults ───────────────────────────────────────────────────────────────
// Applied for any field that is absent or malformed in a snapshot.

const (
	DefaultDiskCapacity    = 4
	DefaultClockSpeed      = 1
	DefaultOverclockLevel  = 1
	DefaultCloudUploadRate = 8
)
