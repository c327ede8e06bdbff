// Package timing provides the clamped delta-time source that drives sand
// regeneration. The timer is frame-rate independent: raw deltas are capped
// at a configurable clamp so a stalled host loop never awards bulk time.
package timing

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// frameWindow is the number of recent raw frame deltas kept for FPS stats.
const frameWindow = 60

// largeCorrectionThreshold is the discarded-delta size above which a clamp
// event is logged as a timing anomaly.
const largeCorrectionThreshold = 50 * time.Millisecond

// Options configures a PrecisionTimer.
type Options struct {
	// RegenerationRate is the regeneration rate in grains per second.
	RegenerationRate float64
	// MaxDeltaClamp caps any single reported delta.
	MaxDeltaClamp time.Duration
	// TimingPrecision is the diagnostic micro-frame threshold. Zero disables
	// micro-frame counting. It never affects the reported delta.
	TimingPrecision time.Duration
	// TimeScale multiplies every clamped delta. Zero means 1.0.
	TimeScale float64
}

// DefaultOptions returns the options used when the host supplies none.
func DefaultOptions() Options {
	return Options{
		RegenerationRate: 1.0,
		MaxDeltaClamp:    50 * time.Millisecond,
		TimingPrecision:  time.Millisecond,
		TimeScale:        1.0,
	}
}

// Stats is a snapshot of timer diagnostics.
type Stats struct {
	// AverageFPS is derived from the last frameWindow raw deltas; 0 if no
	// frames have been sampled.
	AverageFPS float64
	// Frames is the total number of deltas sampled while running.
	Frames int
	// ClampEvents counts frames whose raw delta exceeded the clamp.
	ClampEvents int
	// MaxClampError is the largest single discarded delta.
	MaxClampError time.Duration
	// MicroFrames counts frames whose raw delta was below the precision
	// threshold, indicating the host loop is spinning faster than useful.
	MicroFrames int
}

// PrecisionTimer is a monotonic delta-time source with clamping, pause and
// resume, and a debug time-scale multiplier.
//
// It is not safe for concurrent use; the caller must serialise access.
//
// Invariant: GetDeltaTime always returns a value in [0, MaxDeltaClamp * TimeScale].
type PrecisionTimer struct {
	clock      Clock
	regenRate  float64
	clamp      time.Duration
	precision  time.Duration
	timeScale  float64
	lastSample time.Time
	paused     bool
	logger     *zap.Logger

	frames      [frameWindow]time.Duration
	frameCount  int
	frameCursor int
	clampEvents int
	maxClampErr time.Duration
	microFrames int
}

// NewPrecisionTimer creates a running PrecisionTimer reading from clock.
// logger may be nil to disable timing diagnostics.
//
// Precondition: clock must be non-nil; opts.RegenerationRate > 0;
// opts.MaxDeltaClamp > 0; opts.TimeScale >= 0.
// Postcondition: Returns a timer whose first delta is measured from now.
func NewPrecisionTimer(clock Clock, opts Options, logger *zap.Logger) (*PrecisionTimer, error) {
	if clock == nil {
		return nil, fmt.Errorf("timing: clock must not be nil")
	}
	if opts.RegenerationRate <= 0 {
		return nil, fmt.Errorf("timing: regeneration rate must be > 0, got %v", opts.RegenerationRate)
	}
	if opts.MaxDeltaClamp <= 0 {
		return nil, fmt.Errorf("timing: max delta clamp must be > 0, got %v", opts.MaxDeltaClamp)
	}
	if opts.TimingPrecision < 0 {
		return nil, fmt.Errorf("timing: timing precision must be >= 0, got %v", opts.TimingPrecision)
	}
	scale := opts.TimeScale
	if scale == 0 {
		scale = 1.0
	}
	if scale < 0 {
		return nil, fmt.Errorf("timing: time scale must be positive, got %v", scale)
	}
	return &PrecisionTimer{
		clock:      clock,
		regenRate:  opts.RegenerationRate,
		clamp:      opts.MaxDeltaClamp,
		precision:  opts.TimingPrecision,
		timeScale:  scale,
		lastSample: clock.Now(),
		logger:     logger,
	}, nil
}

// GetDeltaTime reports the time elapsed since the previous call, clamped to
// the configured maximum and scaled by the time-scale multiplier.
//
// While paused it returns 0 without touching the reference sample; Resume
// resets the reference so paused wall time is never credited.
//
// Postcondition: The returned delta is in [0, MaxDeltaClamp * TimeScale].
func (t *PrecisionTimer) GetDeltaTime() time.Duration {
	if t.paused {
		return 0
	}

	now := t.clock.Now()
	raw := now.Sub(t.lastSample)
	t.lastSample = now
	if raw < 0 {
		// A rewound clock yields no elapsed time rather than reversing it.
		raw = 0
	}

	t.recordFrame(raw)

	clamped := raw
	if clamped > t.clamp {
		clamped = t.clamp
		discarded := raw - t.clamp
		t.clampEvents++
		if discarded > t.maxClampErr {
			t.maxClampErr = discarded
		}
		if t.logger != nil && discarded > largeCorrectionThreshold {
			t.logger.Warn("large timing correction",
				zap.Duration("raw_delta", raw),
				zap.Duration("discarded", discarded),
			)
		}
	}

	if t.timeScale != 1.0 {
		clamped = time.Duration(float64(clamped) * t.timeScale)
	}
	return clamped
}

// Pause stops delta reporting. Idempotent.
func (t *PrecisionTimer) Pause() {
	t.paused = true
}

// Resume restarts delta reporting and resets the reference sample so the
// next GetDeltaTime does not report idle time as elapsed.
func (t *PrecisionTimer) Resume() {
	t.paused = false
	t.lastSample = t.clock.Now()
}

// Paused reports whether the timer is paused.
func (t *PrecisionTimer) Paused() bool { return t.paused }

// SetTimeScale sets the debug time-scale multiplier.
//
// Precondition: scale > 0. Non-positive scales are rejected so time never
// stops or reverses through this hook.
func (t *PrecisionTimer) SetTimeScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("timing: time scale must be positive, got %v", scale)
	}
	t.timeScale = scale
	return nil
}

// TimeScale returns the current time-scale multiplier.
func (t *PrecisionTimer) TimeScale() float64 { return t.timeScale }

// RegenerationRate returns the configured rate in grains per second.
func (t *PrecisionTimer) RegenerationRate() float64 { return t.regenRate }

// SetRegenerationRate replaces the regeneration rate.
//
// Precondition: rate > 0.
func (t *PrecisionTimer) SetRegenerationRate(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("timing: regeneration rate must be > 0, got %v", rate)
	}
	t.regenRate = rate
	return nil
}

// Stats returns a snapshot of timer diagnostics.
func (t *PrecisionTimer) Stats() Stats {
	return Stats{
		AverageFPS:    t.averageFPS(),
		Frames:        t.frameCount,
		ClampEvents:   t.clampEvents,
		MaxClampError: t.maxClampErr,
		MicroFrames:   t.microFrames,
	}
}

func (t *PrecisionTimer) recordFrame(raw time.Duration) {
	t.frames[t.frameCursor] = raw
	t.frameCursor = (t.frameCursor + 1) % frameWindow
	t.frameCount++
	if t.precision > 0 && raw > 0 && raw < t.precision {
		t.microFrames++
	}
}

func (t *PrecisionTimer) averageFPS() float64 {
	n := t.frameCount
	if n > frameWindow {
		n = frameWindow
	}
	if n == 0 {
		return 0
	}
	var total time.Duration
	for i := 0; i < n; i++ {
		total += t.frames[i]
	}
	if total <= 0 {
		return 0
	}
	return float64(n) / total.Seconds()
}
