package encounter_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/card"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/encounter"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/hourglass"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/game/timing"
	"github.com/Noquela/Sands-of-Duat-sub008/internal/scripting"
)

func testRegistry() *card.Registry {
	reg := card.NewRegistry()
	reg.Register(&card.Card{ID: "khopesh-strike", Name: "Khopesh Strike", SandCost: 2, Alignment: "order", LuaOnPlay: "on_khopesh_strike"})
	reg.Register(&card.Card{ID: "chaos-surge", Name: "Chaos Surge", SandCost: 5, Alignment: "chaos"})
	reg.Register(&card.Card{ID: "sand-veil", Name: "Sand Veil", SandCost: 1})
	return reg
}

func newEncounter(t *testing.T, maxSand int) (*encounter.Encounter, *timing.ManualClock) {
	t.Helper()
	clock := timing.NewManualClock(time.Unix(1000, 0))
	timer, err := timing.NewPrecisionTimer(clock, timing.Options{
		RegenerationRate: 1.0,
		MaxDeltaClamp:    time.Hour,
	}, nil)
	require.NoError(t, err)
	hg, err := hourglass.New(maxSand, timer, nil)
	require.NoError(t, err)
	enc, err := encounter.New(hg, testRegistry(), nil, 16*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	return enc, clock
}

func TestNew_Validation(t *testing.T) {
	clock := timing.NewManualClock(time.Unix(0, 0))
	timer, err := timing.NewPrecisionTimer(clock, timing.DefaultOptions(), nil)
	require.NoError(t, err)
	hg, err := hourglass.New(6, timer, nil)
	require.NoError(t, err)

	_, err = encounter.New(nil, testRegistry(), nil, time.Millisecond, zap.NewNop())
	assert.Error(t, err)
	_, err = encounter.New(hg, nil, nil, time.Millisecond, zap.NewNop())
	assert.Error(t, err)
	_, err = encounter.New(hg, testRegistry(), nil, time.Millisecond, nil)
	assert.Error(t, err)
	_, err = encounter.New(hg, testRegistry(), nil, 0, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_UniqueIDs(t *testing.T) {
	a, _ := newEncounter(t, 6)
	b, _ := newEncounter(t, 6)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestPlayCard_SpendsAndReportsResonance(t *testing.T) {
	enc, _ := newEncounter(t, 6)
	enc.Glass().Set(2)

	res, err := enc.PlayCard("khopesh-strike")
	require.NoError(t, err)
	assert.True(t, res.Played)
	assert.Equal(t, 2, res.EffectiveCost)
	assert.Equal(t, hourglass.ResonancePerfect, res.Resonance)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 1, enc.Glass().DivineFavor()) // order card
}

func TestPlayCard_UnaffordableIsQuietFailure(t *testing.T) {
	enc, _ := newEncounter(t, 6)
	enc.Glass().Set(1)

	res, err := enc.PlayCard("chaos-surge")
	require.NoError(t, err)
	assert.False(t, res.Played)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 1, enc.Glass().Current())
	assert.Equal(t, 0, enc.Glass().DivineFavor()) // no judgment on failure
}

func TestPlayCard_UnknownCard(t *testing.T) {
	enc, _ := newEncounter(t, 6)
	_, err := enc.PlayCard("scarab-swarm")
	assert.Error(t, err)
}

func TestPlayCard_MomentumDiscountsLaterCards(t *testing.T) {
	enc, _ := newEncounter(t, 8)
	enc.Glass().Set(8)

	// 5 then 2: the drop in printed cost builds one momentum stack.
	res, err := enc.PlayCard("chaos-surge")
	require.NoError(t, err)
	require.True(t, res.Played)
	require.Equal(t, 5, res.EffectiveCost)

	res, err = enc.PlayCard("khopesh-strike")
	require.NoError(t, err)
	require.True(t, res.Played)
	require.Equal(t, 2, res.EffectiveCost)
	require.Equal(t, 1, enc.Glass().MomentumStacks())

	// 1-cost card now discounted to 0.
	res, err = enc.PlayCard("sand-veil")
	require.NoError(t, err)
	assert.True(t, res.Played)
	assert.Equal(t, 0, res.EffectiveCost)
	assert.Equal(t, 1, enc.Glass().Current())
}

func TestTick_RegeneratesThroughEncounter(t *testing.T) {
	enc, clock := newEncounter(t, 6)
	enc.Glass().Set(0)

	clock.Advance(2 * time.Second)
	enc.Tick()
	assert.Equal(t, 2, enc.Glass().Current())
}

func TestPauseResume_GateRegeneration(t *testing.T) {
	enc, clock := newEncounter(t, 6)
	enc.Glass().Set(0)

	enc.Pause()
	clock.Advance(time.Minute)
	enc.Tick()
	assert.Equal(t, 0, enc.Glass().Current())

	enc.Resume()
	clock.Advance(time.Second)
	enc.Tick()
	assert.Equal(t, 1, enc.Glass().Current())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	enc, _ := newEncounter(t, 6)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := enc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPlayCard_DispatchesLuaEffect(t *testing.T) {
	dir := t.TempDir()
	script := `
played = nil
function on_khopesh_strike(card_id, cost, resonance)
  played = card_id
  hourglass.log("strike resolved with " .. hourglass.current() .. " sand left")
  return played
end
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "effects.lua"), []byte(script), 0o644))

	scripts := scripting.NewManager(zap.NewNop())
	t.Cleanup(scripts.Close)
	require.NoError(t, scripts.Load(dir, 0))

	clock := timing.NewManualClock(time.Unix(1000, 0))
	timer, err := timing.NewPrecisionTimer(clock, timing.Options{
		RegenerationRate: 1.0,
		MaxDeltaClamp:    time.Hour,
	}, nil)
	require.NoError(t, err)
	hg, err := hourglass.New(6, timer, nil)
	require.NoError(t, err)
	enc, err := encounter.New(hg, testRegistry(), scripts, 16*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	enc.Glass().Set(3)
	res, err := enc.PlayCard("khopesh-strike")
	require.NoError(t, err)
	assert.True(t, res.Played)

	// The hook ran inside the same VM: query its side effect.
	ret, err := scripts.CallOnPlay("on_khopesh_strike", "probe", 0, "none")
	require.NoError(t, err)
	assert.NotNil(t, ret)
}
