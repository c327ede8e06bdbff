package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// SandState is a snapshot of the hourglass passed to Lua callbacks.
type SandState struct {
	Current         int
	Max             int
	MomentumStacks  int
	DivineFavor     int
	TimeToNextGrain float64 // seconds; 0 at capacity
}

// Manager owns one sandboxed LState holding every card-effect script and
// exposes hook dispatch to the encounter.
//
// Manager is safe for concurrent CallOnPlay after Load completes; the mutex
// serialises access to the single-threaded LState.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	cancel func()
	logger *zap.Logger

	// Injected after construction. nil = the hourglass module returns zeros.
	QuerySand func() SandState
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

// Load creates the sandboxed VM, registers the hourglass module, then
// executes every *.lua file in scriptDir in lexicographic order. Loading
// again replaces the previous VM.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: The VM is ready for CallOnPlay; returns error on Lua load failure.
func (m *Manager) Load(scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.registerModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}

	m.mu.Lock()
	if m.state != nil {
		if m.cancel != nil {
			m.cancel()
		}
		m.state.Close()
	}
	m.state = L
	m.cancel = cancel
	m.mu.Unlock()
	return nil
}

// Close releases the VM. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		if m.cancel != nil {
			m.cancel()
		}
		m.state.Close()
		m.state = nil
	}
}

// CallOnPlay calls the named Lua global hook with the played card's id, its
// effective cost, and the resonance level. Returns (LNil, nil) if the hook is
// not defined or no VM is loaded. Lua runtime errors are logged at Warn level
// and returned; card resolution never aborts on a script failure.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallOnPlay(hook, cardID string, cost int, resonance string) (lua.LValue, error) {
	if hook == "" {
		return lua.LNil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return lua.LNil, nil
	}

	fn := m.state.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	err := m.state.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(cardID), lua.LNumber(cost), lua.LString(resonance))
	if err != nil {
		m.logger.Warn("card effect hook failed",
			zap.String("hook", hook),
			zap.String("card_id", cardID),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: hook %q: %w", hook, err)
	}

	ret := m.state.Get(-1)
	m.state.Pop(1)
	return ret, nil
}

// registerModules defines the hourglass.* table in L:
//
//	hourglass.current()        -> current sand
//	hourglass.max()            -> sand capacity
//	hourglass.can_afford(cost) -> boolean
//	hourglass.momentum()       -> momentum stacks
//	hourglass.favor()          -> divine favor
//	hourglass.time_to_next()   -> seconds until the next grain
//	hourglass.log(msg)         -> debug log line tagged with the script origin
func (m *Manager) registerModules(L *lua.LState) {
	tbl := L.NewTable()

	snapshot := func() SandState {
		if m.QuerySand == nil {
			return SandState{}
		}
		return m.QuerySand()
	}

	L.SetField(tbl, "current", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(snapshot().Current))
		return 1
	}))
	L.SetField(tbl, "max", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(snapshot().Max))
		return 1
	}))
	L.SetField(tbl, "can_afford", L.NewFunction(func(ls *lua.LState) int {
		cost := int(ls.CheckNumber(1))
		s := snapshot()
		ls.Push(lua.LBool(cost >= 0 && s.Current >= cost))
		return 1
	}))
	L.SetField(tbl, "momentum", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(snapshot().MomentumStacks))
		return 1
	}))
	L.SetField(tbl, "favor", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(snapshot().DivineFavor))
		return 1
	}))
	L.SetField(tbl, "time_to_next", L.NewFunction(func(ls *lua.LState) int {
		ls.Push(lua.LNumber(snapshot().TimeToNextGrain))
		return 1
	}))
	L.SetField(tbl, "log", L.NewFunction(func(ls *lua.LState) int {
		msg := ls.CheckString(1)
		m.logger.Debug("card script", zap.String("message", msg))
		return 0
	}))

	L.SetGlobal("hourglass", tbl)
}
