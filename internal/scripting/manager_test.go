package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/Noquela/Sands-of-Duat-sub008/internal/scripting"
)

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func loadedManager(t *testing.T, script string) *scripting.Manager {
	t.Helper()
	dir := t.TempDir()
	writeScript(t, dir, "effects.lua", script)

	m := scripting.NewManager(zap.NewNop())
	t.Cleanup(m.Close)
	require.NoError(t, m.Load(dir, 0))
	return m
}

func TestLoad_MissingDir(t *testing.T) {
	m := scripting.NewManager(zap.NewNop())
	assert.Error(t, m.Load(filepath.Join(t.TempDir(), "nope"), 0))
}

func TestLoad_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "bad.lua", "function broken(")

	m := scripting.NewManager(zap.NewNop())
	assert.Error(t, m.Load(dir, 0))
}

func TestCallOnPlay_HookReceivesArgs(t *testing.T) {
	m := loadedManager(t, `
seen = nil
function on_khopesh_strike(card_id, cost, resonance)
  seen = card_id .. "/" .. cost .. "/" .. resonance
  return seen
end
`)

	ret, err := m.CallOnPlay("on_khopesh_strike", "khopesh-strike", 2, "perfect")
	require.NoError(t, err)
	assert.Equal(t, "khopesh-strike/2/perfect", lua.LVAsString(ret))
}

func TestCallOnPlay_UndefinedHookIsNoOp(t *testing.T) {
	m := loadedManager(t, `-- no hooks defined`)

	ret, err := m.CallOnPlay("on_missing", "card", 1, "none")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestCallOnPlay_EmptyHookNameIsNoOp(t *testing.T) {
	m := loadedManager(t, `-- no hooks defined`)

	ret, err := m.CallOnPlay("", "card", 1, "none")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestCallOnPlay_RuntimeErrorIsReportedNotFatal(t *testing.T) {
	m := loadedManager(t, `
function on_explode()
  error("boom")
end
`)

	_, err := m.CallOnPlay("on_explode", "card", 1, "none")
	assert.Error(t, err)

	// The VM survives a failed hook.
	ret, err := m.CallOnPlay("on_missing", "card", 1, "none")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestHourglassModule_ExposesSandState(t *testing.T) {
	m := loadedManager(t, `
function on_query()
  return hourglass.current() .. "/" .. hourglass.max() .. "/" ..
    hourglass.momentum() .. "/" .. hourglass.favor()
end
function on_afford()
  return hourglass.can_afford(3)
end
`)
	m.QuerySand = func() scripting.SandState {
		return scripting.SandState{Current: 4, Max: 6, MomentumStacks: 2, DivineFavor: -1}
	}

	ret, err := m.CallOnPlay("on_query", "card", 0, "none")
	require.NoError(t, err)
	assert.Equal(t, "4/6/2/-1", lua.LVAsString(ret))

	ret, err = m.CallOnPlay("on_afford", "card", 0, "none")
	require.NoError(t, err)
	assert.Equal(t, lua.LTrue, ret)
}

func TestHourglassModule_NoQueryCallbackReturnsZeros(t *testing.T) {
	m := loadedManager(t, `
function on_query()
  return hourglass.current() + hourglass.max()
end
`)

	ret, err := m.CallOnPlay("on_query", "card", 0, "none")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(0), ret)
}

func TestSandbox_DangerousGlobalsStripped(t *testing.T) {
	m := loadedManager(t, `
function on_probe()
  return tostring(dofile) .. "/" .. tostring(loadfile) .. "/" .. tostring(require)
end
`)

	ret, err := m.CallOnPlay("on_probe", "card", 0, "none")
	require.NoError(t, err)
	assert.Equal(t, "nil/nil/nil", lua.LVAsString(ret))
}

func TestSandbox_InstructionLimitTerminatesRunaway(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "loop.lua", `
function on_spin()
  while true do end
end
`)

	m := scripting.NewManager(zap.NewNop())
	t.Cleanup(m.Close)
	require.NoError(t, m.Load(dir, 10_000))

	_, err := m.CallOnPlay("on_spin", "card", 0, "none")
	assert.Error(t, err)
}
