package hourglass

import "fmt"

// Alignment is the moral alignment of a card or action, feeding divine favor.
type Alignment string

const (
	AlignmentOrder   Alignment = "order"
	AlignmentChaos   Alignment = "chaos"
	AlignmentBalance Alignment = "balance"
)

// ParseAlignment validates s as an Alignment. The empty string parses as
// balance, since most cards carry no moral weight.
func ParseAlignment(s string) (Alignment, error) {
	switch Alignment(s) {
	case AlignmentOrder, AlignmentChaos, AlignmentBalance:
		return Alignment(s), nil
	case "":
		return AlignmentBalance, nil
	default:
		return "", fmt.Errorf("hourglass: alignment must be one of [order, chaos, balance], got %q", s)
	}
}

// Resonance is the harmony between a card's cost and the sand on hand.
type Resonance string

const (
	ResonanceNone    Resonance = "none"
	ResonanceMinor   Resonance = "minor"
	ResonancePerfect Resonance = "perfect"
)

// maxMomentumStacks caps temporal momentum accumulation.
const maxMomentumStacks = 5

// maxMomentumReduction caps the sand discount momentum can grant.
const maxMomentumReduction = 3

// favorBound clamps divine favor to [-favorBound, favorBound].
const favorBound = 10

// RecordCardPlay feeds a played card's cost into temporal momentum.
// Momentum builds on strictly decreasing costs and resets otherwise.
//
// Postcondition: MomentumStacks() <= 5.
func (h *HourGlass) RecordCardPlay(cardCost int) {
	if cardCost < h.lastCardCost {
		h.momentumStacks++
		if h.momentumStacks > maxMomentumStacks {
			h.momentumStacks = maxMomentumStacks
		}
	} else {
		h.momentumStacks = 0
	}
	h.lastCardCost = cardCost
}

// MomentumStacks returns the current temporal momentum stack count.
func (h *HourGlass) MomentumStacks() int { return h.momentumStacks }

// MomentumReduction returns the sand discount earned by momentum, at most 3.
func (h *HourGlass) MomentumReduction() int {
	if h.momentumStacks > maxMomentumReduction {
		return maxMomentumReduction
	}
	return h.momentumStacks
}

// CheckResonance compares a card's cost against current sand: equal cost is
// perfect resonance, within one grain is minor, anything else is none.
func (h *HourGlass) CheckResonance(cardCost int) Resonance {
	diff := cardCost - h.current
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff == 0:
		return ResonancePerfect
	case diff <= 1:
		return ResonanceMinor
	default:
		return ResonanceNone
	}
}

// ApplyDivineJudgment shifts divine favor for an action's alignment:
// order +1, chaos -1, balance unchanged. Favor clamps at +/-10.
func (h *HourGlass) ApplyDivineJudgment(alignment Alignment) {
	switch alignment {
	case AlignmentOrder:
		if h.divineFavor < favorBound {
			h.divineFavor++
		}
	case AlignmentChaos:
		if h.divineFavor > -favorBound {
			h.divineFavor--
		}
	}
}

// DivineFavor returns the current favor in [-10, 10].
func (h *HourGlass) DivineFavor() int { return h.divineFavor }

// SetVitals records the player state that modulates regeneration.
//
// Precondition: healthPct should be in [0, 1]; out-of-range values are
// clamped.
func (h *HourGlass) SetVitals(healthPct float64, blessed bool) {
	if healthPct < 0 {
		healthPct = 0
	}
	if healthPct > 1 {
		healthPct = 1
	}
	h.healthPct = healthPct
	h.blessed = blessed
}

// SetDynamicRegen toggles the strategic-depth regeneration modifiers. While
// disabled (the default), regeneration runs at the timer's base rate and is
// exactly predictable from elapsed time.
func (h *HourGlass) SetDynamicRegen(enabled bool) {
	h.dynamicRegen = enabled
}

// effectiveRate is the base regeneration rate, scaled when dynamic
// regeneration is enabled by the strategic-depth modifiers: desperation at
// low health, damping near capacity, divine blessing, and divine favor.
func (h *HourGlass) effectiveRate() float64 {
	rate := h.timer.RegenerationRate()
	if !h.dynamicRegen {
		return rate
	}

	// Desperation: low health regenerates faster.
	switch {
	case h.healthPct < 0.3:
		rate *= 1.5
	case h.healthPct < 0.6:
		rate *= 1.2
	}

	// Damp near capacity so topping off is not free tempo.
	if h.current >= h.maxSand-1 {
		rate *= 0.5
	}

	if h.blessed {
		rate *= 1.25
	}

	switch {
	case h.divineFavor > 5:
		rate *= 1.3
	case h.divineFavor < -5:
		rate *= 0.7
	}

	return rate
}

// EffectiveRate exposes the modified regeneration rate for UI display.
func (h *HourGlass) EffectiveRate() float64 { return h.effectiveRate() }
