/*
Package scripting is the script host: it
compiles author scripts to Lua bytecode via github.com/yuin/gopher-lua,
and executes them, one fresh *lua.LState per run, with the `SELF`, `WORLD`,
`EVENT`, and `allow_action` names bound for that run alone.

A Host owns nothing but the script time limit; all world access happens
through a *RunContext supplied by pkg/action, which carries the component
tables, the world.Lock readers-writer guard, and the entity a run is
scoped to. An FSM pushed by a script keeps the RunContext of that run, and
its state callbacks use it whenever pkg/action later steps the FSM. Host itself never touches pkg/action so the dependency runs
one way: pkg/action depends on pkg/scripting, never the reverse.
*/
package scripting
