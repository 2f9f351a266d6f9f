// Package action implements the tick pipeline that dispatches actions to
// handler systems, bracketed by parallel pre-event and post-event script
// runs.
package action

import (
	"time"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

// Kind is the closed set of action verbs; it is the same
// enum pkg/world uses for hook triggers, so a hook attached to
// Pre(world.EventSay) matches exactly the actions this package dispatches
// as EventSay.
type Kind = world.EventKind

// Action is a single in-flight instance of one of the closed verb set.
// Rather than a tagged union per kind, it is one flat struct with the
// fields the handler systems need populated per Kind and an Args overflow
// map for the long tail of admin/info verbs that carry no typed payload of
// their own (stats/who/inventory/immortal/shutdown/restart); idiomatic Go
// favors a discriminated struct over a sum type here.
type Action struct {
	Actor ecs.Entity
	Kind  Kind

	// Direction is meaningful for EventMove.
	Direction world.Direction

	// Message carries the spoken/emoted/whispered/sent text.
	Message string

	// Target is the addressed entity for whisper/send/get/drop/use.
	Target ecs.Entity

	// TargetName is a keyword the handler resolves against the actor's room
	// or inventory when Target is not already a resolved handle (typed
	// commands name things by keyword, not by entity number).
	TargetName string

	// LoginName carries the EventLogin payload's attempted username.
	LoginName string

	// Args holds anything else a less common verb needs (e.g. the flag
	// name an immortal edit toggles).
	Args map[string]any

	dueAt time.Time
}

// Due reports whether a timed action's delay has elapsed as of now.
func (a Action) Due(now time.Time) bool {
	return !a.dueAt.After(now)
}

// fromSchedulerPayload builds an Action from the map[string]any shape
// pkg/scripting's self.*_after family hands to Schedule: "msg" for
// say/emote text, "target" (a float64-encoded entity handle) for
// send/whisper.
func fromSchedulerPayload(kind Kind, actor ecs.Entity, payload map[string]any, dueAt time.Time) Action {
	a := Action{Actor: actor, Kind: kind, dueAt: dueAt, Args: payload}
	if msg, ok := payload["msg"].(string); ok {
		a.Message = msg
	}
	if target, ok := payload["target"].(float64); ok {
		a.Target = ecs.Entity(target)
	}
	return a
}
