package game

import (
	"math"
	"time"
)

// Cloud is an unbounded bit buffer fed through bandwidth-limited upload
// windows. Within one window at most uploadSpeed bits are accepted, released
// linearly over UploadWindow.
type Cloud struct {
	stored      float64
	uploadSpeed float64 // bits per window

	windowStart time.Time // zero when idle
	uploaded    float64   // accepted in the current window

	uploadCost *CostManager
}

// NewCloud creates an empty, idle cloud buffer.
func NewCloud() *Cloud {
	return &Cloud{
		uploadSpeed: DefaultUploadSpeed,
		uploadCost:  newUploadCost(),
	}
}

// Bits returns the stored bits, floored.
func (c *Cloud) Bits() float64 { return math.Floor(c.stored) }

// Stored returns the exact stored amount.
func (c *Cloud) Stored() float64 { return c.stored }

// UploadSpeed returns the per-window cap.
func (c *Cloud) UploadSpeed() float64 { return c.uploadSpeed }

// Uploading reports whether a window is open.
func (c *Cloud) Uploading() bool { return !c.windowStart.IsZero() }

// WindowStart returns the open window's start, zero when idle.
func (c *Cloud) WindowStart() time.Time { return c.windowStart }

// UploadedThisWindow returns the bits accepted in the open window, 0 when idle.
func (c *Cloud) UploadedThisWindow() float64 { return c.uploaded }

// BeginUpload opens a window. It returns false while another window is
// still running; a window whose time has elapsed is replaced.
func (c *Cloud) BeginUpload(now time.Time) bool {
	if c.Uploading() && now.Sub(c.windowStart) < UploadWindow {
		return false
	}
	c.windowStart = now
	c.uploaded = 0
	return true
}

// Allowance returns how many bits the open window accepts at now. An expired
// window keeps its unused cap until the next Upload closes it.
func (c *Cloud) Allowance(now time.Time) float64 {
	if !c.Uploading() {
		return 0
	}
	progress := now.Sub(c.windowStart).Seconds() / UploadWindow.Seconds()
	progress = math.Max(0, math.Min(progress, 1))
	allowed := math.Floor(progress*c.uploadSpeed) - c.uploaded
	return math.Max(allowed, 0)
}

// Upload accepts up to offered bits within the open window's allowance and
// returns the accepted amount. The window closes when its cap is reached or
// its time has elapsed.
func (c *Cloud) Upload(now time.Time, offered float64) float64 {
	if !c.Uploading() {
		return 0
	}
	accepted := math.Max(0, math.Min(offered, c.Allowance(now)))
	c.stored += accepted
	c.uploaded += accepted

	if c.uploaded >= c.uploadSpeed || now.Sub(c.windowStart) >= UploadWindow {
		c.windowStart = time.Time{}
		c.uploaded = 0
	}
	return accepted
}

// Drain removes up to requested bits and returns how many were removed.
func (c *Cloud) Drain(requested float64) float64 {
	if !(requested > 0) {
		return 0
	}
	drained := math.Min(requested, c.stored)
	c.stored -= drained
	return drained
}

// UpgradeSpeed doubles the upload speed.
func (c *Cloud) UpgradeSpeed() { c.uploadSpeed *= 2 }

// SpeedUpgradeCost prices the next doubling, keyed by log2(uploadSpeed).
func (c *Cloud) SpeedUpgradeCost() float64 {
	return c.uploadCost.CostFor(log2Floor(c.uploadSpeed))
}

// WindowProgress returns the elapsed fraction of the open window, 0 when idle.
func (c *Cloud) WindowProgress(now time.Time) float64 {
	if !c.Uploading() {
		return 0
	}
	return math.Min(now.Sub(c.windowStart).Seconds()/UploadWindow.Seconds(), 1)
}
