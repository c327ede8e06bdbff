// Package encounter hosts one combat encounter: it owns the hourglass,
// drives regeneration from a frame loop, and resolves card plays with
// momentum, resonance, and divine judgment.
package encounter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/card"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/hourglass"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/scripting"
)

// PlayResult describes the outcome of one card play attempt.
type PlayResult struct {
	// Played reports whether the card resolved. False means the sand on
	// hand could not cover the effective cost; nothing was mutated.
	Played bool
	// CardID is the id of the attempted card.
	CardID string
	// EffectiveCost is the sand actually charged after momentum reduction.
	EffectiveCost int
	// Resonance is the cost-to-sand harmony evaluated before spending.
	Resonance hourglass.Resonance
	// Remaining is the sand left after the play (or the untouched amount
	// on failure).
	Remaining int
}

// Encounter is the single-threaded host for one combat session.
//
// It is not safe for concurrent use: Run drives Tick from one goroutine, and
// PlayCard must be called from the same goroutine (in practice, from the
// host's input handling between frames).
type Encounter struct {
	id            uuid.UUID
	glass         *hourglass.HourGlass
	cards         *card.Registry
	scripts       *scripting.Manager
	logger        *zap.Logger
	frameInterval time.Duration

	// StatsInterval, when positive, makes Run log timer diagnostics and the
	// sand level at that period. Set before calling Run.
	StatsInterval time.Duration
}

// New creates an Encounter owning glass.
//
// scripts may be nil to disable card-effect scripting.
//
// Precondition: glass, cards, and logger must be non-nil; frameInterval > 0.
// Postcondition: Returns an Encounter with a fresh unique ID.
func New(glass *hourglass.HourGlass, cards *card.Registry, scripts *scripting.Manager, frameInterval time.Duration, logger *zap.Logger) (*Encounter, error) {
	if glass == nil {
		return nil, fmt.Errorf("encounter: hourglass must not be nil")
	}
	if cards == nil {
		return nil, fmt.Errorf("encounter: card registry must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("encounter: logger must not be nil")
	}
	if frameInterval <= 0 {
		return nil, fmt.Errorf("encounter: frame interval must be > 0, got %v", frameInterval)
	}

	e := &Encounter{
		id:            uuid.New(),
		glass:         glass,
		cards:         cards,
		scripts:       scripts,
		logger:        logger,
		frameInterval: frameInterval,
	}
	if scripts != nil {
		scripts.QuerySand = e.sandState
	}
	return e, nil
}

// ID returns the encounter's unique identifier.
func (e *Encounter) ID() uuid.UUID { return e.id }

// Glass exposes the owned hourglass for host queries and subscriptions.
func (e *Encounter) Glass() *hourglass.HourGlass { return e.glass }

// Tick advances regeneration by one frame.
func (e *Encounter) Tick() {
	e.glass.Update()
}

// Run drives Tick at the configured frame interval until ctx is cancelled.
//
// Postcondition: Returns ctx.Err() once the context is done.
func (e *Encounter) Run(ctx context.Context) error {
	e.logger.Info("encounter started",
		zap.String("encounter_id", e.id.String()),
		zap.Duration("frame_interval", e.frameInterval),
	)

	ticker := time.NewTicker(e.frameInterval)
	defer ticker.Stop()

	// The stats ticker shares this goroutine so diagnostics never race the
	// single-threaded hourglass.
	var statsC <-chan time.Time
	if e.StatsInterval > 0 {
		statsTicker := time.NewTicker(e.StatsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("encounter stopped",
				zap.String("encounter_id", e.id.String()),
				zap.Int("sand", e.glass.Current()),
			)
			return ctx.Err()
		case <-ticker.C:
			e.Tick()
		case <-statsC:
			e.logStats()
		}
	}
}

func (e *Encounter) logStats() {
	stats := e.glass.Timer().Stats()
	e.logger.Info("timer stats",
		zap.Int("sand", e.glass.Current()),
		zap.Int("max_sand", e.glass.MaxSand()),
		zap.Float64("avg_fps", stats.AverageFPS),
		zap.Int("clamp_events", stats.ClampEvents),
		zap.Duration("max_clamp_error", stats.MaxClampError),
		zap.Int("micro_frames", stats.MicroFrames),
		zap.Duration("next_grain", e.glass.TimeToNextGrain()),
	)
}

// Pause halts regeneration around cutscenes and card animations.
func (e *Encounter) Pause() {
	e.glass.Pause()
}

// Resume restarts regeneration without crediting paused time.
func (e *Encounter) Resume() {
	e.glass.Resume()
}

// PlayCard attempts to resolve the card with the given id.
//
// The card's cost is discounted by temporal momentum, resonance is evaluated
// against the discounted cost, and on success the sand is spent, momentum
// and divine favor are updated from the card, and its Lua effect hook is
// dispatched. An unaffordable card is a quiet failure (Played false, no
// mutation); an unknown card id is an error.
func (e *Encounter) PlayCard(id string) (PlayResult, error) {
	c, ok := e.cards.Get(id)
	if !ok {
		return PlayResult{}, fmt.Errorf("encounter: unknown card %q", id)
	}

	cost := c.SandCost - e.glass.MomentumReduction()
	if cost < 0 {
		cost = 0
	}
	res := PlayResult{
		CardID:        id,
		EffectiveCost: cost,
		Resonance:     e.glass.CheckResonance(cost),
	}

	if !e.glass.Spend(cost) {
		res.Remaining = e.glass.Current()
		e.logger.Debug("card unaffordable",
			zap.String("card_id", id),
			zap.Int("effective_cost", cost),
			zap.Int("sand", res.Remaining),
		)
		return res, nil
	}

	// Momentum tracks the printed cost, not the discounted one, so discounts
	// do not feed back into themselves.
	e.glass.RecordCardPlay(c.SandCost)
	e.glass.ApplyDivineJudgment(c.ParsedAlignment())

	if e.scripts != nil {
		if _, err := e.scripts.CallOnPlay(c.LuaOnPlay, c.ID, cost, string(res.Resonance)); err != nil {
			// Script failure never rolls back a resolved card.
			e.logger.Warn("card effect failed",
				zap.String("card_id", id),
				zap.Error(err),
			)
		}
	}

	res.Played = true
	res.Remaining = e.glass.Current()
	e.logger.Info("card played",
		zap.String("encounter_id", e.id.String()),
		zap.String("card_id", id),
		zap.Int("effective_cost", cost),
		zap.String("resonance", string(res.Resonance)),
		zap.Int("sand", res.Remaining),
	)
	return res, nil
}

func (e *Encounter) sandState() scripting.SandState {
	return scripting.SandState{
		Current:         e.glass.Current(),
		Max:             e.glass.MaxSand(),
		MomentumStacks:  e.glass.MomentumStacks(),
		DivineFavor:     e.glass.DivineFavor(),
		TimeToNextGrain: e.glass.TimeToNextGrain().Seconds(),
	}
}
