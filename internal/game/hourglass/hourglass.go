// Package hourglass implements the Hour-Glass Initiative resource store:
// integer sand grains regenerated in real time through a clamped
// precision timer, spent by card plays, and bounded by a hard capacity cap.
package hourglass

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/timing"
)

// AbsoluteCap is the hard upper bound on sand capacity. Capacity buffs can
// never raise max sand past it.
const AbsoluteCap = 8

// HourGlass holds current and maximum sand and converts elapsed time into
// discrete grain regeneration via its owned PrecisionTimer.
//
// It is not safe for concurrent use; the caller must serialise access.
// The host loop calls Update once per frame; gameplay calls CanAfford,
// Spend, and Set between frames on the same goroutine.
//
// Invariant: 0 <= current <= maxSand <= AbsoluteCap.
// Invariant: fraction is in [0, 1) and never carries current past maxSand.
type HourGlass struct {
	current  int
	maxSand  int
	fraction float64
	timer    *timing.PrecisionTimer
	onChange func(current int)
	logger   *zap.Logger

	dynamicRegen   bool
	momentumStacks int
	lastCardCost   int
	divineFavor    int
	healthPct      float64
	blessed        bool
}

// New creates an HourGlass with the given capacity, owning timer.
// logger may be nil to disable regeneration diagnostics.
//
// Precondition: 1 <= maxSand <= AbsoluteCap; timer must be non-nil.
// Postcondition: Returns an HourGlass with zero sand and an empty fraction.
func New(maxSand int, timer *timing.PrecisionTimer, logger *zap.Logger) (*HourGlass, error) {
	if maxSand < 1 || maxSand > AbsoluteCap {
		return nil, fmt.Errorf("hourglass: max sand must be 1-%d, got %d", AbsoluteCap, maxSand)
	}
	if timer == nil {
		return nil, fmt.Errorf("hourglass: timer must not be nil")
	}
	return &HourGlass{
		maxSand:   maxSand,
		timer:     timer,
		logger:    logger,
		healthPct: 1.0,
	}, nil
}

// SetOnChange registers the single change subscriber, invoked synchronously
// with the new current value after every committed mutation of current.
// Passing nil removes the subscriber.
func (h *HourGlass) SetOnChange(fn func(current int)) {
	h.onChange = fn
}

// Current returns the current sand amount.
func (h *HourGlass) Current() int { return h.current }

// MaxSand returns the current sand capacity.
func (h *HourGlass) MaxSand() int { return h.maxSand }

// Timer exposes the owned precision timer for stats and rate changes.
// Ownership stays with the HourGlass; callers must not pause it concurrently.
func (h *HourGlass) Timer() *timing.PrecisionTimer { return h.timer }

// Update pulls the clamped frame delta and converts it into grain
// regeneration. One change notification fires per whole grain gained, in
// increasing order. Fractional progress left over when capacity is reached
// is discarded rather than banked against future spending.
//
// Postcondition: current is unchanged or increased, never above MaxSand.
func (h *HourGlass) Update() {
	if h.current >= h.maxSand {
		return
	}

	dt := h.timer.GetDeltaTime()
	if dt <= 0 {
		return
	}

	h.fraction += dt.Seconds() * h.effectiveRate()

	for h.fraction >= 1.0 && h.current < h.maxSand {
		h.fraction -= 1.0
		h.current++
		if h.logger != nil {
			h.logger.Debug("sand regenerated", zap.Int("current", h.current))
		}
		h.notify()
	}

	if h.current >= h.maxSand {
		// At capacity the remaining progress is excess, not credit.
		h.fraction = 0
	}
}

// CanAfford reports whether the hourglass holds at least cost grains.
// Negative costs are a precondition violation and report false.
func (h *HourGlass) CanAfford(cost int) bool {
	return cost >= 0 && h.current >= cost
}

// Spend removes cost grains if affordable.
//
// It returns false without mutation when cost is negative, exceeds MaxSand,
// or exceeds the current sand. On success the change subscriber is notified
// with the new total.
func (h *HourGlass) Spend(cost int) bool {
	if cost < 0 || cost > h.maxSand {
		if h.logger != nil {
			h.logger.Warn("invalid sand cost", zap.Int("cost", cost), zap.Int("max_sand", h.maxSand))
		}
		return false
	}
	if !h.CanAfford(cost) {
		return false
	}
	h.current -= cost
	h.notify()
	return true
}

// Set assigns current sand directly, clamped into [0, MaxSand]. The change
// subscriber is notified unconditionally, even when the value is unchanged.
// Intended for encounter initialization and testing.
func (h *HourGlass) Set(amount int) {
	if amount < 0 {
		amount = 0
	}
	if amount > h.maxSand {
		amount = h.maxSand
	}
	h.current = amount
	h.notify()
}

// IncreaseCapacity raises MaxSand by delta for buff effects. Current sand is
// not adjusted.
//
// It returns false without mutation when delta is negative or the new
// capacity would exceed AbsoluteCap.
func (h *HourGlass) IncreaseCapacity(delta int) bool {
	if delta < 0 {
		return false
	}
	if h.maxSand+delta > AbsoluteCap {
		return false
	}
	h.maxSand += delta
	return true
}

// TimeToNextGrain estimates how long until the next grain arrives at the
// current effective rate, assuming no pause. Returns 0 at capacity.
func (h *HourGlass) TimeToNextGrain() time.Duration {
	if h.current >= h.maxSand {
		return 0
	}
	rate := h.effectiveRate()
	if rate <= 0 {
		return 0
	}
	remaining := (1.0 - h.fraction) / rate
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(remaining * float64(time.Second))
}

// Pause halts regeneration, typically around cutscenes and card animations.
func (h *HourGlass) Pause() {
	h.timer.Pause()
}

// Resume restarts regeneration without crediting paused time.
func (h *HourGlass) Resume() {
	h.timer.Resume()
}

// SetTimeScale forwards the debug time-scale multiplier to the owned timer.
func (h *HourGlass) SetTimeScale(scale float64) error {
	return h.timer.SetTimeScale(scale)
}

func (h *HourGlass) notify() {
	if h.onChange != nil {
		h.onChange(h.current)
	}
}
