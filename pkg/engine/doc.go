// Package engine wires the ECS, storage, action, scripting, messaging,
// and session packages together into the fixed tick order. It owns the
// process-lifetime tick loop and the TCP accept loop; nothing downstream
// of pkg/engine knows about either one.
package engine
