package world

import "github.com/remud/remud/pkg/ecs"

// EventKind names one of the closed set of action verbs a script can hook
// into via Pre/Post triggers. It mirrors the Action tags the action
// pipeline dispatches; kept here (rather than in pkg/action) so pkg/world
// does not depend on pkg/action.
type EventKind string

const (
	EventMove      EventKind = "move"
	EventLook      EventKind = "look"
	EventSay       EventKind = "say"
	EventEmote     EventKind = "emote"
	EventGet       EventKind = "get"
	EventDrop      EventKind = "drop"
	EventUse       EventKind = "use"
	EventWhisper   EventKind = "whisper"
	EventSend      EventKind = "send"
	EventLogin     EventKind = "login"
	EventStats     EventKind = "stats"
	EventWho       EventKind = "who"
	EventInventory EventKind = "inventory"
	EventImmortal  EventKind = "immortal"
	EventShutdown  EventKind = "shutdown"
	EventRestart   EventKind = "restart"
)

// TriggerClass is the family of trigger a Script belongs to.
type TriggerClass int

const (
	TriggerInit TriggerClass = iota
	TriggerPre
	TriggerPost
	TriggerTimer
)

// Trigger identifies exactly when a Script runs: on entity init, before or
// after a given event kind, or when a named timer fires.
type Trigger struct {
	Class     TriggerClass
	Event     EventKind // meaningful for TriggerPre/TriggerPost
	TimerName string    // meaningful for TriggerTimer
}

func (t Trigger) String() string {
	switch t.Class {
	case TriggerInit:
		return "Init"
	case TriggerPre:
		return "Pre(" + string(t.Event) + ")"
	case TriggerPost:
		return "Post(" + string(t.Event) + ")"
	case TriggerTimer:
		return "Timer(" + t.TimerName + ")"
	default:
		return "Unknown"
	}
}

// Script is a unit of author-supplied behavior: a name, the trigger it
// fires on, its source text, and (if compilation succeeded) a compiled
// representation opaque to this package. Scripts are identified by Name
// alone; the relational store's scripts table keys on it directly,
// unlike every other entity kind, which carries a monotone integer Id.
type Script struct {
	Name      string
	Trigger   Trigger
	Source    string
	Compiled  any // *lua.FunctionProto, set by pkg/scripting on successful compile
	LastError string
}

// Broken reports whether the script failed to compile (or has never been
// compiled) and should be skipped by the action pipeline.
func (s *Script) Broken() bool {
	return s.Compiled == nil
}

// Event is the read-only view of an in-flight action exposed to pre/post
// event script runs as the Lua `EVENT` global (§4.4.1's "event" module).
// Only the fields meaningful to Kind carry anything; the rest are zero.
// It is a deliberately thin projection of the action pipeline's own Action
// type so pkg/world (and pkg/scripting, which depends on it) never needs
// to import pkg/action.
type Event struct {
	Actor     ecs.Entity
	Kind      EventKind
	Direction Direction // meaningful for EventMove
	Emote     string    // meaningful for EventEmote
}

// IsMove reports whether the event is a move action.
func (e Event) IsMove() bool { return e.Kind == EventMove }

// IsEmote reports whether the event is an emote action.
func (e Event) IsEmote() bool { return e.Kind == EventEmote }

// Hook attaches one Script, identified by name, to one entity under one
// Trigger.
type Hook struct {
	Script  string
	Trigger Trigger
}

// HookList is a deduplicated collection of hooks attached to a single
// entity, keyed on (script, trigger) as spec requires.
type HookList []Hook

// Add appends h unless an equal (script, trigger) pair is already present.
func (l *HookList) Add(h Hook) {
	for _, existing := range *l {
		if existing.Script == h.Script && existing.Trigger == h.Trigger {
			return
		}
	}
	*l = append(*l, h)
}

// Remove deletes every hook matching (script, trigger).
func (l *HookList) Remove(script string, trigger Trigger) {
	filtered := (*l)[:0]
	for _, h := range *l {
		if h.Script == script && h.Trigger == trigger {
			continue
		}
		filtered = append(filtered, h)
	}
	*l = filtered
}

// Matching returns every hook in l whose trigger equals t.
func (l HookList) Matching(t Trigger) []Hook {
	var out []Hook
	for _, h := range l {
		if h.Trigger == t {
			out = append(out, h)
		}
	}
	return out
}
