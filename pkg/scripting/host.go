package scripting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/world"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Host compiles and runs author scripts. It is stateless beyond the time
// limit applied to every run, so a single Host is shared across every
// concurrent script run the action pipeline dispatches in one tick.
type Host struct {
	TimeLimit time.Duration
}

// NewHost creates a Host that bounds every run to limit.
func NewHost(limit time.Duration) *Host {
	return &Host{TimeLimit: limit}
}

// Compile parses and compiles source into a *lua.FunctionProto, satisfying
// storage.ScriptCompiler so pkg/storage's loader can call it directly
// without importing pkg/scripting itself (pkg/storage only needs the
// narrow interface, not this package's gopher-lua dependency).
func (h *Host) Compile(name, source string) (any, error) {
	chunkName := "<" + name + ">"
	chunk, err := parse.Parse(strings.NewReader(source), chunkName)
	if err != nil {
		return nil, fmt.Errorf("scripting: parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, chunkName)
	if err != nil {
		return nil, fmt.Errorf("scripting: compile %s: %w", name, err)
	}
	return proto, nil
}

// Run executes script's compiled body in a freshly constructed *lua.LState,
// bound to rc for the duration of this single call. It returns an error
// only for a script that failed to run at all (bad proto, runtime panic,
// timeout); a script that runs to completion but sets allow_action=false is
// not an error, it's reported back through rc.AllowAction.
func (h *Host) Run(ctx context.Context, script *world.Script, rc *RunContext) error {
	proto, ok := script.Compiled.(*lua.FunctionProto)
	if !ok || proto == nil {
		return fmt.Errorf("scripting: %s has no compiled body", script.Name)
	}

	L := lua.NewState()
	defer L.Close()

	runCtx, cancel := context.WithTimeout(ctx, h.limit())
	defer cancel()
	L.SetContext(runCtx)

	bindModules(L, rc)

	fn := L.NewFunctionFromProto(proto)
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		return fmt.Errorf("scripting: %s: %w", script.Name, err)
	}

	if rc.AllowAction != nil {
		*rc.AllowAction = lua.LVAsBool(L.GetGlobal("allow_action"))
	}
	return nil
}

func (h *Host) limit() time.Duration {
	if h.TimeLimit <= 0 {
		return defaultCallbackTimeout
	}
	return h.TimeLimit
}

// bindModules registers every module table and scoped global a single
// script run sees: the `self`/`world`/`time`/`rand` module tables, the
// uppercase `SELF`/`WORLD`/`EVENT` aliases, and the `allow_action` veto
// cell.
func bindModules(L *lua.LState, rc *RunContext) {
	registerSelf(L, rc)
	registerWorld(L, rc)
	registerTime(L)
	registerRand(L)
	registerFSM(L)

	L.SetGlobal("SELF", lua.LNumber(rc.Self))
	L.SetGlobal("WORLD", L.GetGlobal("world"))
	L.SetGlobal("EVENT", eventTable(L, rc.Event))
	L.SetGlobal("allow_action", lua.LTrue)
}

// eventTable projects a world.Event into the table scripts read as EVENT.
// For Init/Timer runs (rc.Event == nil) it returns an empty table rather
// than nil, so `EVENT.is_move` etc. read as false instead of erroring.
func eventTable(L *lua.LState, e *world.Event) *lua.LTable {
	t := L.NewTable()
	if e == nil {
		t.RawSetString("is_move", lua.LFalse)
		t.RawSetString("is_emote", lua.LFalse)
		return t
	}
	t.RawSetString("actor", lua.LNumber(e.Actor))
	t.RawSetString("kind", lua.LString(e.Kind))
	t.RawSetString("direction", lua.LString(e.Direction))
	t.RawSetString("emote", lua.LString(e.Emote))
	t.RawSetString("is_move", lua.LBool(e.IsMove()))
	t.RawSetString("is_emote", lua.LBool(e.IsEmote()))
	return t
}

// runCallback invokes an FSM state's on_enter/on_exit/act closure on a
// fresh *lua.LState. The closure's own Env (captured when the owning
// script first ran and called push_fsm) still resolves self/world/time/
// rand/SELF to the rc bound at that moment, so no re-registration happens
// here: gopher-lua resolves global access through the function's captured
// environment table, not the state executing it. The new LState supplies
// only a fresh call stack, matching the "fresh scope per run" rule without
// losing the closure's bound world access.
func runCallback(fsmName string, rc *RunContext, fn *lua.LFunction, args []lua.LValue) {
	L := lua.NewState()
	defer L.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rc.timeout())
	defer cancel()
	L.SetContext(ctx)

	L.Push(fn)
	for _, a := range args {
		L.Push(a)
	}
	if err := L.PCall(len(args), 0, nil); err != nil {
		logger := log.WithScript(fsmName)
		logger.Warn().Err(err).Msg("fsm callback failed")
	}
}

// runDecide invokes a state's decide closure the same way runCallback does,
// and decodes its single tagged-table return value into a
// world.TransitionResult.
func runDecide(fsmName string, rc *RunContext, fn *lua.LFunction) world.TransitionResult {
	L := lua.NewState()
	defer L.Close()

	ctx, cancel := context.WithTimeout(context.Background(), rc.timeout())
	defer cancel()
	L.SetContext(ctx)

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		logger := log.WithScript(fsmName)
		logger.Warn().Err(err).Msg("fsm decide failed")
		return world.TransitionResult{Kind: world.TransitionNone}
	}

	ret := L.Get(-1)
	L.Pop(1)
	return decodeTransitionResult(ret, rc)
}

// decodeTransitionResult reads the __kind-tagged table produced by
// transition_to/transition_push/transition_pop/transition_none.
func decodeTransitionResult(v lua.LValue, rc *RunContext) world.TransitionResult {
	t, ok := v.(*lua.LTable)
	if !ok {
		return world.TransitionResult{Kind: world.TransitionNone}
	}
	kind, _ := t.RawGetString("__kind").(lua.LString)
	switch kind {
	case "to":
		to, _ := t.RawGetString("to").(lua.LString)
		return world.TransitionResult{Kind: world.TransitionTo, To: world.StateId(to)}
	case "push":
		ud, ok := t.RawGetString("push").(*lua.LUserData)
		if !ok {
			return world.TransitionResult{Kind: world.TransitionNone}
		}
		builder, ok := ud.Value.(*fsmBuilder)
		if !ok {
			return world.TransitionResult{Kind: world.TransitionNone}
		}
		return world.TransitionResult{Kind: world.TransitionPush, Push: builder.build(rc)}
	case "pop":
		return world.TransitionResult{Kind: world.TransitionPop}
	default:
		return world.TransitionResult{Kind: world.TransitionNone}
	}
}
