package scripting

import (
	lua "github.com/yuin/gopher-lua"
)

// luaToGo converts a Lua value reachable from script-data get/set into a
// plain Go value: nil, bool, float64, string, []any, or map[string]any.
// Anything else (functions, userdata) converts to nil since script data is
// meant to be simple author-facing state, not a channel for passing
// callables around; those go through the FSM builder API instead.
func luaToGo(lv lua.LValue) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if isArray(v) {
			out := make([]any, 0, v.Len())
			v.ForEach(func(_, val lua.LValue) {
				out = append(out, luaToGo(val))
			})
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(key, val lua.LValue) {
			out[key.String()] = luaToGo(val)
		})
		return out
	default:
		return nil
	}
}

// isArray reports whether t looks like a 1-based contiguous sequence
// rather than a string-keyed map, by comparing its length to its raw key
// count.
func isArray(t *lua.LTable) bool {
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	return count == t.Len()
}

// goToLua converts a Go value produced by DataMap storage (or by the
// scripting package's own helpers) back into a Lua value.
func goToLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	case []string:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
