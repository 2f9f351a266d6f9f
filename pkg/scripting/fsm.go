package scripting

import (
	"github.com/remud/remud/pkg/world"
	lua "github.com/yuin/gopher-lua"
)

const fsmBuilderTypeName = "remud.fsm_builder"

// fsmState mirrors world.State but keeps its callbacks as raw Lua closures,
// since a state's OnEnter/OnExit/Decide/Act run on a later tick, each time
// from a brand-new *lua.LState; the fresh-scope-per-run rule applies to
// FSM callbacks exactly as it does to hooks.
type fsmState struct {
	id      world.StateId
	onEnter *lua.LFunction
	onExit  *lua.LFunction
	decide  *lua.LFunction
	act     *lua.LFunction
}

// fsmBuilder accumulates states for one push_fsm(builder) call. It is
// registered as Lua userdata so `fsm_builder():add_state(...):add_state(...)`
// reads as a fluent chain.
type fsmBuilder struct {
	name   string
	start  world.StateId
	states []*fsmState
}

// registerFSM installs the global `fsm_builder` constructor and the
// `transition_to`/`transition_push`/`transition_pop`/`transition_none`
// helpers a state's `decide` callback returns.
func registerFSM(L *lua.LState) {
	mt := L.NewTypeMetatable(fsmBuilderTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add_state": fsmBuilderAddState,
	}))

	L.SetGlobal("fsm_builder", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		start := L.CheckString(2)
		ud := L.NewUserData()
		ud.Value = &fsmBuilder{name: name, start: world.StateId(start)}
		ud.Metatable = mt
		L.Push(ud)
		return 1
	}))

	L.SetGlobal("transition_to", L.NewFunction(func(L *lua.LState) int {
		to := L.CheckString(1)
		out := L.NewTable()
		out.RawSetString("__kind", lua.LString("to"))
		out.RawSetString("to", lua.LString(to))
		L.Push(out)
		return 1
	}))
	L.SetGlobal("transition_push", L.NewFunction(func(L *lua.LState) int {
		builder := checkFSMBuilder(L, 1)
		out := L.NewTable()
		out.RawSetString("__kind", lua.LString("push"))
		ud := L.NewUserData()
		ud.Value = builder
		ud.Metatable = mt
		out.RawSetString("push", ud)
		L.Push(out)
		return 1
	}))
	L.SetGlobal("transition_pop", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		out.RawSetString("__kind", lua.LString("pop"))
		L.Push(out)
		return 1
	}))
	L.SetGlobal("transition_none", L.NewFunction(func(L *lua.LState) int {
		out := L.NewTable()
		out.RawSetString("__kind", lua.LString("none"))
		L.Push(out)
		return 1
	}))
}

// fsmBuilderAddState implements builder:add_state{id=..., on_enter=fn,
// on_exit=fn, decide=fn, act=fn}. Every callback field is optional.
func fsmBuilderAddState(L *lua.LState) int {
	builder := checkFSMBuilder(L, 1)
	spec := L.CheckTable(2)

	state := &fsmState{}
	if id, ok := spec.RawGetString("id").(lua.LString); ok {
		state.id = world.StateId(id)
	}
	state.onEnter = asFunction(spec.RawGetString("on_enter"))
	state.onExit = asFunction(spec.RawGetString("on_exit"))
	state.decide = asFunction(spec.RawGetString("decide"))
	state.act = asFunction(spec.RawGetString("act"))

	builder.states = append(builder.states, state)
	L.Push(L.Get(1))
	return 1
}

func asFunction(v lua.LValue) *lua.LFunction {
	if fn, ok := v.(*lua.LFunction); ok {
		return fn
	}
	return nil
}

// checkFSMBuilder extracts the *fsmBuilder userdata at stack position n.
func checkFSMBuilder(L *lua.LState, n int) *fsmBuilder {
	ud := L.CheckUserData(n)
	b, ok := ud.Value.(*fsmBuilder)
	if !ok {
		L.ArgError(n, "fsm_builder expected")
		return nil
	}
	return b
}

// build realizes the accumulated Lua-backed states into a world.FSM whose
// callbacks re-enter the script host on a fresh *lua.LState each time they
// are invoked by the engine on a later tick.
func (b *fsmBuilder) build(rc *RunContext) *world.FSM {
	wb := world.NewFSMBuilder(b.name, b.start)
	for _, s := range b.states {
		st := &world.State{Id: s.id}
		if s.onEnter != nil {
			fn := s.onEnter
			st.OnEnter = func() { runCallback(b.name, rc, fn, nil) }
		}
		if s.onExit != nil {
			fn := s.onExit
			st.OnExit = func() { runCallback(b.name, rc, fn, nil) }
		}
		if s.act != nil {
			fn := s.act
			st.Act = func() { runCallback(b.name, rc, fn, nil) }
		}
		if s.decide != nil {
			fn := s.decide
			st.Decide = func() world.TransitionResult { return runDecide(b.name, rc, fn) }
		}
		wb.AddState(st)
	}
	return wb.Build()
}
