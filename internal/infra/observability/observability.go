// Package observability exposes the daemon's Prometheus metrics:
// game state gauges, purchase counters, loop timings and API traffic.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Game Metrics
// ═══════════════════════════════════════════════════════════════════════════

// GameSample is a point-in-time reading of the player's state.
type GameSample struct {
	TotalBits     float64
	BitsPerSecond float64
	MaxStorage    float64
	CloudBits     float64
	Disks         int
	Chips         int
}

// GameTotalBits tracks bits held across disks and the cloud.
var GameTotalBits = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "total_bits",
	Help:      "Bits currently held across disks and the cloud.",
})

// GameBitsPerSecond tracks the summed chip production rate.
var GameBitsPerSecond = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "bits_per_second",
	Help:      "Summed effective production rate of all chips.",
})

// GameMaxStorage tracks the summed disk capacity.
var GameMaxStorage = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "max_storage_bits",
	Help:      "Summed capacity of all disks.",
})

// GameDisks tracks the number of owned disks.
var GameDisks = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "disks",
	Help:      "Number of owned disks.",
})

// GameChips tracks the number of owned chips.
var GameChips = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "chips",
	Help:      "Number of owned chips.",
})

// GameCloudBits tracks bits stored in the cloud buffer.
var GameCloudBits = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "idlebit",
	Subsystem: "game",
	Name:      "cloud_bits",
	Help:      "Bits stored in the cloud buffer.",
})

// Purchases counts completed purchases by item family.
var Purchases = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlebit",
	Name:      "purchases_total",
	Help:      "Total completed purchases by item.",
}, []string{"item"})

// RecordGame publishes a game sample to the gauges.
func RecordGame(s GameSample) {
	GameTotalBits.Set(s.TotalBits)
	GameBitsPerSecond.Set(s.BitsPerSecond)
	GameMaxStorage.Set(s.MaxStorage)
	GameCloudBits.Set(s.CloudBits)
	GameDisks.Set(float64(s.Disks))
	GameChips.Set(float64(s.Chips))
}

// RecordPurchase counts one purchase of item.
func RecordPurchase(item string) {
	Purchases.WithLabelValues(item).Inc()
}

// ═══════════════════════════════════════════════════════════════════════════
// Loop Metrics
// ═══════════════════════════════════════════════════════════════════════════

// LoopTickDuration tracks how long one Update takes.
var LoopTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "idlebit",
	Subsystem: "loop",
	Name:      "tick_seconds",
	Help:      "Duration of one game tick.",
	Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
})

// LoopAutosaves counts autosave attempts by result.
var LoopAutosaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlebit",
	Subsystem: "loop",
	Name:      "autosaves_total",
	Help:      "Total autosave attempts by result.",
}, []string{"result"})

// LoopCommands counts commands applied by the loop.
var LoopCommands = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlebit",
	Subsystem: "loop",
	Name:      "commands_total",
	Help:      "Total commands applied between ticks.",
})

// ObserveTick records one tick's duration.
func ObserveTick(d time.Duration) {
	LoopTickDuration.Observe(d.Seconds())
}

// RecordAutosave counts an autosave attempt.
func RecordAutosave(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	LoopAutosaves.WithLabelValues(result).Inc()
}

// ═══════════════════════════════════════════════════════════════════════════
// API Metrics
// ═══════════════════════════════════════════════════════════════════════════

// APIRequests counts HTTP requests by route pattern and status code.
var APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "idlebit",
	Subsystem: "api",
	Name:      "requests_total",
	Help:      "Total HTTP requests by route and status.",
}, []string{"route", "status"})

// APIRateLimited counts requests rejected by the rate limiter.
var APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "idlebit",
	Subsystem: "api",
	Name:      "rate_limited_total",
	Help:      "Total requests rejected by the per-client rate limiter.",
})
