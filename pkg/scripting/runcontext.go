package scripting

import (
	"time"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

// defaultCallbackTimeout bounds an FSM state callback run when the caller
// leaves RunContext.ScriptTimeout unset.
const defaultCallbackTimeout = 50 * time.Millisecond

// Scheduler lets a script run enqueue an action for a future tick (the
// self.say_after/emote_after/... family); pkg/action implements it over
// its own timed-action queue.
type Scheduler interface {
	Schedule(after time.Duration, kind world.EventKind, actor ecs.Entity, payload map[string]any)
}

// RunContext is everything one script run needs: the component tables to
// query and mutate, the lock guarding them, which entity SELF is bound to,
// and (for Pre/Post runs) the event being handled and the allow_action
// cell the handler systems will consult afterward.
type RunContext struct {
	Store      *ecs.Store
	Rooms      *ecs.Table[*world.Room]
	Objects    *ecs.Table[*world.Object]
	Prototypes *ecs.Table[*world.Prototype]
	Players    *ecs.Table[*world.Player]
	Lock       *world.Lock
	IdAlloc    *world.IdAllocator
	Scheduler  Scheduler

	// QueueUpdate hands a durable mutation to the persistence bus;
	// supplied by pkg/action so pkg/scripting never imports pkg/storage.
	QueueUpdate func(op world.UpdateOp, payload any)

	Self  ecs.Entity
	Event *world.Event // nil for Init/Timer runs

	// AllowAction is non-nil only for Pre-trigger runs; the script sets it
	// to false via the `allow_action` global to veto the action.
	AllowAction *bool

	// ScriptTimeout bounds a single script run, including an FSM state
	// callback invoked on a later tick. Zero means defaultCallbackTimeout.
	ScriptTimeout time.Duration
}

// read runs fn under the world lock's shared mode. Every read-only API
// call body goes through here so concurrent script runs for the same
// phase can query the world in parallel.
func (rc *RunContext) read(fn func()) {
	if rc.Lock != nil {
		rc.Lock.RLock()
		defer rc.Lock.RUnlock()
	}
	fn()
}

// write runs fn under the world lock's exclusive mode, held for exactly
// the duration of the one API call that needed it, never across a call
// back into script execution.
func (rc *RunContext) write(fn func()) {
	if rc.Lock != nil {
		rc.Lock.Lock()
		defer rc.Lock.Unlock()
	}
	fn()
}

// timeout returns the configured ScriptTimeout, or defaultCallbackTimeout
// if unset.
func (rc *RunContext) timeout() time.Duration {
	if rc.ScriptTimeout <= 0 {
		return defaultCallbackTimeout
	}
	return rc.ScriptTimeout
}

// kindOf reports which component table currently holds Self, trying
// rooms, then objects, then players, the only three kinds that can own
// script-visible per-entity state.
func (rc *RunContext) kindOf(e ecs.Entity) world.Kind {
	if rc.Rooms.Has(e) {
		return world.KindRoom
	}
	if rc.Objects.Has(e) {
		return world.KindObject
	}
	if rc.Players.Has(e) {
		return world.KindPlayer
	}
	return -1
}

// dataMap returns the DataMap backing e, regardless of whether e is a
// room, object, or player.
func (rc *RunContext) dataMap(e ecs.Entity) (world.DataMap, bool) {
	if room, ok := rc.Rooms.Get(e); ok {
		return room.Data, true
	}
	if obj, ok := rc.Objects.Get(e); ok {
		return obj.Data, true
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.Data, true
	}
	return nil, false
}

// timerSet returns the TimerSet backing e.
func (rc *RunContext) timerSet(e ecs.Entity) (world.TimerSet, bool) {
	if room, ok := rc.Rooms.Get(e); ok {
		return room.Timers, true
	}
	if obj, ok := rc.Objects.Get(e); ok {
		return obj.Timers, true
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.Timers, true
	}
	return nil, false
}

// pushFSM pushes f onto e's FSM stack. Rooms have no FSM stack.
func (rc *RunContext) pushFSM(e ecs.Entity, f *world.FSM) bool {
	if obj, ok := rc.Objects.Get(e); ok {
		obj.FSMs.Push(f)
		return true
	}
	if player, ok := rc.Players.Get(e); ok {
		player.FSMs.Push(f)
		return true
	}
	return false
}

// popFSM pops the top FSM off e's stack, returning whether one was popped.
func (rc *RunContext) popFSM(e ecs.Entity) bool {
	if obj, ok := rc.Objects.Get(e); ok {
		return obj.FSMs.Pop() != nil
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.FSMs.Pop() != nil
	}
	return false
}

// sendToPlayer appends line to e's outbox if e is a player; otherwise it
// is a no-op, since only players have a session to deliver messages to.
func (rc *RunContext) sendToPlayer(e ecs.Entity, line string) {
	if player, ok := rc.Players.Get(e); ok {
		player.Send(line)
	}
}

// roomOf returns the room entity e is located in, whether e is an object
// or a player.
func (rc *RunContext) roomOf(e ecs.Entity) (ecs.Entity, bool) {
	if obj, ok := rc.Objects.Get(e); ok && obj.ContainerKind == world.ContainerRoom {
		return obj.Container, true
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.Room, true
	}
	return 0, false
}

// broadcastToRoom sends line to every player in room except optionally
// excluding one entity (e.g. the speaker, who gets their own phrasing).
func (rc *RunContext) broadcastToRoom(room ecs.Entity, exclude ecs.Entity, line string) {
	r, ok := rc.Rooms.Get(room)
	if !ok {
		return
	}
	for playerEntity := range r.Players {
		if playerEntity == exclude {
			continue
		}
		rc.sendToPlayer(playerEntity, line)
	}
}
