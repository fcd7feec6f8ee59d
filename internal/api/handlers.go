package api

import (
	"encoding/json"
	"fmt"
	"math"
	"math/bits"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/idle-bit/idlebit/internal/app/game"
	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/savefile"
)

// ─── Views ──────────────────────────────────────────────────────────────────

type diskView struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Capacity  float64 `json:"capacity"`
	Bits      float64 `json:"bits"`
	Formatted string  `json:"formatted"`
	Binary    string  `json:"binary"`
	Full      bool    `json:"full"`
}

type chipView struct {
	Index               int     `json:"index"`
	Name                string  `json:"name"`
	ClockSpeed          float64 `json:"clock_speed"`
	OverclockLevel      int     `json:"overclock_level"`
	TargetDiskID        *int    `json:"target_disk_id"`
	BitsPerSecond       float64 `json:"bits_per_second"`
	Overclocked         bool    `json:"overclocked"`
	OverclockRemainingS float64 `json:"overclock_remaining_s"`
	CooldownRemainingS  float64 `json:"cooldown_remaining_s"`
}

type cloudView struct {
	Bits           float64 `json:"bits"`
	UploadSpeed    float64 `json:"upload_speed"`
	Uploading      bool    `json:"uploading"`
	WindowProgress float64 `json:"window_progress"`
}

type selectionView struct {
	Kind  string `json:"kind"`
	Index int    `json:"index"`
}

type stateView struct {
	TotalBits     float64         `json:"total_bits"`
	Formatted     string          `json:"formatted"`
	MaxStorage    float64         `json:"max_storage"`
	MaxBitsEver   float64         `json:"max_bits_ever_held"`
	BitsPerSecond float64         `json:"bits_per_second"`
	NextDiskCost  float64         `json:"next_disk_cost"`
	NextChipCost  float64         `json:"next_chip_cost"`
	ChipsUnlocked bool            `json:"chips_unlocked"`
	CloudUnlocked bool            `json:"cloud_unlocked"`
	AutosaveInS   float64         `json:"autosave_in_s"`
	Selection     selectionView   `json:"selection"`
	Disks         []diskView      `json:"disks"`
	Chips         []chipView      `json:"chips"`
	Cloud         *cloudView      `json:"cloud"`
	Snapshot      domain.SaveData `json:"snapshot"`
}

type purchaseView struct {
	Key        string  `json:"key"`
	Item       string  `json:"item"`
	Name       string  `json:"name"`
	Cost       float64 `json:"cost"`
	Affordable bool    `json:"affordable"`
	ETA        string  `json:"eta,omitempty"` // time until affordable at the current rate
}

// binaryView renders a disk's bits padded to its capacity width. Disks too
// large for 64 bits have no binary view.
func binaryView(stored, capacity float64) string {
	if !(capacity < math.Ldexp(1, 64)) {
		return ""
	}
	return domain.FormatBinary(uint64(stored), bits.Len64(uint64(capacity)))
}

func newStateView(p *game.Player) stateView {
	now := p.Now()
	stats := p.Stats()
	sel := p.Selection()
	v := stateView{
		TotalBits:     p.TotalBits(),
		Formatted:     domain.FormatBits(p.TotalBits(), false),
		MaxStorage:    p.MaxStorage(),
		MaxBitsEver:   stats.MaxBits(),
		BitsPerSecond: stats.BitsPerSecond(),
		NextDiskCost:  p.NextDiskCost(),
		NextChipCost:  p.NextChipCost(),
		ChipsUnlocked: stats.ChipsUnlocked(),
		CloudUnlocked: p.CloudUnlocked(),
		AutosaveInS:   p.TimeToAutosave().Seconds(),
		Selection:     selectionView{Kind: sel.Kind.String(), Index: sel.Index},
		Disks:         []diskView{},
		Chips:         []chipView{},
		Snapshot:      p.Snapshot(),
	}

	for _, d := range p.Disks() {
		v.Disks = append(v.Disks, diskView{
			ID:        int(d.ID()),
			Name:      d.Name(),
			Capacity:  d.Capacity(),
			Bits:      d.Bits(),
			Formatted: domain.FormatBits(d.Bits(), true),
			Binary:    binaryView(d.Bits(), d.Capacity()),
			Full:      d.IsFull(),
		})
	}

	for i, c := range p.Chips() {
		cv := chipView{
			Index:               i,
			Name:                c.Name(),
			ClockSpeed:          c.ClockSpeed(),
			OverclockLevel:      c.OverclockLevel(),
			Overclocked:         c.IsOverclocked(now),
			OverclockRemainingS: c.OverclockRemaining(now).Seconds(),
			CooldownRemainingS:  c.CooldownRemaining(now).Seconds(),
		}
		cv.BitsPerSecond, _ = p.ChipBitsPerSecond(i)
		if t := c.Target(); t != game.NoDisk {
			id := int(t)
			cv.TargetDiskID = &id
		}
		v.Chips = append(v.Chips, cv)
	}

	if c := p.Cloud(); c != nil {
		v.Cloud = &cloudView{
			Bits:           c.Bits(),
			UploadSpeed:    c.UploadSpeed(),
			Uploading:      c.Uploading(),
			WindowProgress: c.WindowProgress(now),
		}
	}
	return v
}

// ─── State Handlers ─────────────────────────────────────────────────────────

// GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var v stateView
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		v = newStateView(p)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GET /api/loop
func (s *Server) handleLoopStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Stats())
}

// ─── Purchase Handlers ──────────────────────────────────────────────────────

// GET /api/purchases
func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	var list []purchaseView
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		for _, pu := range p.Purchases() {
			v := purchaseView{
				Key:        pu.Key(),
				Item:       pu.Item(),
				Name:       pu.Name(),
				Cost:       pu.Cost(),
				Affordable: p.CanAfford(pu.Cost()),
			}
			if !v.Affordable {
				v.ETA = domain.FormatTime(p.EstimateSecondsUntil(pu.Cost()))
			}
			list = append(list, v)
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": list})
}

// POST /api/purchases/{key}, where key may contain slashes ("disk/0/capacity").
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	purchase, bought, err := s.runner.Buy(r.Context(), key)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !bought {
		writeError(w, http.StatusConflict, fmt.Sprintf("cannot afford %s (%g bits)", purchase.Name(), purchase.Cost()))
		return
	}
	writeJSON(w, http.StatusOK, purchaseView{
		Key:  purchase.Key(),
		Item: purchase.Item(),
		Name: purchase.Name(),
		Cost: purchase.Cost(),
	})
}

// ─── Entity Handlers ────────────────────────────────────────────────────────

// POST /api/disks/{id}/interact
func (s *Server) handleDiskInteract(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}
	s.command(w, r, func(p *game.Player) error {
		return p.InteractWithDisk(game.DiskID(id))
	})
}

// POST /api/chips/{index}/interact
func (s *Server) handleChipInteract(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	s.command(w, r, func(p *game.Player) error {
		return p.InteractWithChip(index)
	})
}

// POST /api/chips/{index}/overclock
func (s *Server) handleOverclock(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	var activated bool
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		var err error
		activated, err = p.ActivateOverclock(index)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !activated {
		writeError(w, http.StatusConflict, "overclock is active or cooling down")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"overclocked": true})
}

// POST /api/chips/{index}/target  {"disk_id": n | null}
func (s *Server) handleChipTarget(w http.ResponseWriter, r *http.Request) {
	index, ok := intParam(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		DiskID *int `json:"disk_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	target := game.NoDisk
	if req.DiskID != nil {
		target = game.DiskID(*req.DiskID)
	}
	s.command(w, r, func(p *game.Player) error {
		return p.AssignChipTarget(index, target)
	})
}

// POST /api/cloud/interact
func (s *Server) handleCloudInteract(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(p *game.Player) error {
		return p.InteractWithCloud()
	})
}

// POST /api/cloud/upload
func (s *Server) handleCloudUpload(w http.ResponseWriter, r *http.Request) {
	var started bool
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		var err error
		started, err = p.StartCloudUpload()
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !started {
		writeError(w, http.StatusConflict, "upload window already open")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"uploading": true})
}

// DELETE /api/selection
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, func(p *game.Player) error {
		p.ClearSelection()
		return nil
	})
}

// ─── Save Handlers ──────────────────────────────────────────────────────────

// POST /api/save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := s.runner.Save(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"saved": true})
}

// GET /api/save/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var data domain.SaveData
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		data = p.Snapshot()
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	str, err := savefile.Export(data)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"save": str})
}

// POST /api/save/import  {"save": "<save string>"}
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Save string `json:"save"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	data, err := savefile.Import(req.Save)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.runner.Load(r.Context(), data); err != nil {
		writeDomainError(w, err)
		return
	}
	s.handleState(w, r)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// command runs fn on the loop and answers with the resulting state.
func (s *Server) command(w http.ResponseWriter, r *http.Request, fn func(*game.Player) error) {
	var v stateView
	err := s.runner.Do(r.Context(), func(p *game.Player) error {
		if err := fn(p); err != nil {
			return err
		}
		v = newStateView(p)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", name, chi.URLParam(r, name)))
		return 0, false
	}
	return v, true
}
