// Package savefile encodes player snapshots: JSON for the wire and exports,
// and a compressed, digested form for the save store.
package savefile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/idle-bit/idlebit/internal/domain"
)

// ─── JSON Codec ─────────────────────────────────────────────────────────────

// Marshal encodes a snapshot as JSON.
func Marshal(data domain.SaveData) ([]byte, error) {
	if data.Version == 0 {
		data.Version = domain.SaveVersion
	}
	if data.Disks == nil {
		data.Disks = []domain.DiskRecord{}
	}
	if data.Chips == nil {
		data.Chips = []domain.ChipRecord{}
	}
	return json.Marshal(data)
}

// Unmarshal decodes a JSON snapshot of any known version.
//
// Only input that is not a JSON object fails (ErrSaveCorrupted). Malformed
// fields decode as absent so the game core applies its defaults, and
// malformed list entries are dropped.
func Unmarshal(b []byte) (domain.SaveData, error) {
	if isNull(b) {
		return domain.SaveData{}, fmt.Errorf("decode save: %w: empty document", domain.ErrSaveCorrupted)
	}
	var raw rawSave
	if err := json.Unmarshal(b, &raw); err != nil {
		return domain.SaveData{}, fmt.Errorf("decode save: %w: %v", domain.ErrSaveCorrupted, err)
	}

	legacy := raw.Version.ok && raw.Version.v < 2
	out := domain.SaveData{Version: domain.SaveVersion}

	for i, elem := range rawList(raw.Disks) {
		var d rawDisk
		if json.Unmarshal(elem, &d) != nil {
			continue
		}
		if !raw.Version.ok && d.Storage.ok && !d.Capacity.ok {
			legacy = true
		}
		rec := domain.DiskRecord{ID: i, Bits: d.Bits.v}
		if d.ID.ok {
			rec.ID = int(d.ID.v)
		}
		switch {
		case d.Capacity.ok:
			rec.Capacity = d.Capacity.v
		case legacy && d.Storage.ok:
			rec.Capacity = math.Pow(2, d.Storage.v) - 1
		}
		out.Disks = append(out.Disks, rec)
	}

	for _, elem := range rawList(raw.Chips) {
		var c rawChip
		if json.Unmarshal(elem, &c) != nil {
			continue
		}
		rec := domain.ChipRecord{
			ClockSpeed: c.ClockSpeed.v,
			Overclock:  domain.DefaultOverclockLevel,
		}
		if c.Overclock.ok {
			rec.Overclock = int(c.Overclock.v)
		}
		if c.LastOverclockTime.ok {
			ms := int64(c.LastOverclockTime.v)
			rec.LastOverclockTime = &ms
		}
		if c.TargetDiskID.ok {
			id := int(c.TargetDiskID.v)
			rec.TargetDiskID = &id
		}
		out.Chips = append(out.Chips, rec)
	}

	if raw.Cloud != nil {
		var c rawCloud
		if json.Unmarshal(*raw.Cloud, &c) == nil {
			rec := &domain.CloudRecord{
				Bits:                   c.Bits.v,
				UploadSpeed:            c.UploadSpeed.v,
				BitsUploadedThisWindow: c.BitsUploadedThisWindow.v,
			}
			if c.UploadStartTime.ok {
				ms := int64(c.UploadStartTime.v)
				rec.UploadStartTime = &ms
			}
			out.Cloud = rec
		}
	}

	var stats rawStats
	if raw.Stats != nil && json.Unmarshal(raw.Stats, &stats) == nil {
		out.Stats.MaxBitsEverHeld = stats.MaxBitsEverHeld.v
	}
	return out, nil
}

// ─── Lenient Decoding ───────────────────────────────────────────────────────

type rawSave struct {
	Version number           `json:"version"`
	Disks   json.RawMessage  `json:"disks"`
	Chips   json.RawMessage  `json:"chips"`
	Cloud   *json.RawMessage `json:"cloud"`
	Stats   json.RawMessage  `json:"stats"`
}

type rawDisk struct {
	ID       number `json:"id"`
	Capacity number `json:"capacity"`
	Bits     number `json:"bits"`
	Storage  number `json:"storage"` // version 1: bit width
}

type rawChip struct {
	ClockSpeed        number `json:"clockSpeed"`
	Overclock         number `json:"overclock"`
	LastOverclockTime number `json:"lastOverclockTime"`
	TargetDiskID      number `json:"targetDiskId"`
}

type rawCloud struct {
	Bits                   number `json:"bits"`
	UploadSpeed            number `json:"uploadSpeed"`
	UploadStartTime        number `json:"uploadStartTime"`
	BitsUploadedThisWindow number `json:"bitsUploadedThisWindow"`
}

type rawStats struct {
	MaxBitsEverHeld number `json:"maxBitsEverHeld"`
}

// number accepts a JSON number or a numeric string. Anything else, null
// included, leaves it unset without failing the surrounding object.
type number struct {
	v  float64
	ok bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}
	if isNull(b) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.set(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			n.set(f)
		}
	}
	return nil
}

func (n *number) set(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return
	}
	n.v, n.ok = f, true
}

// rawList splits a JSON array into its elements; anything else is empty.
func rawList(b json.RawMessage) []json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	var list []json.RawMessage
	if json.Unmarshal(b, &list) != nil {
		return nil
	}
	return list
}

func isNull(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}
