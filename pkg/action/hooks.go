package action

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

// hookMatch pairs a matched Hook with the entity it is attached to, so a
// script run knows which entity SELF is bound to.
type hookMatch struct {
	Entity ecs.Entity
	Hook   world.Hook
}

// roomOf returns the room entity actor currently occupies, whether actor
// is a player or a room-contained object. Every Action's actor is a
// player in practice (only players issue commands), but objects are
// resolved too since script-issued actions may name an object as actor.
func (p *Pipeline) roomOf(actor ecs.Entity) (ecs.Entity, bool) {
	if pl, ok := p.Players.Get(actor); ok {
		return pl.Room, true
	}
	if o, ok := p.Objects.Get(actor); ok && o.ContainerKind == world.ContainerRoom {
		return o.Container, true
	}
	return 0, false
}

// collectHooks gathers every hook matching trigger from the actor's
// current room, the room's objects (honouring inherit_scripts), the
// room's players, and those players' inventory objects. Only hooks that
// actually match the in-flight action's trigger are returned, so an
// inventory item with unrelated hooks never runs just because its owner
// is in the room.
func (p *Pipeline) collectHooks(actor ecs.Entity, trigger world.Trigger) []hookMatch {
	room, ok := p.roomOf(actor)
	if !ok {
		return nil
	}
	r, ok := p.Rooms.Get(room)
	if !ok {
		return nil
	}

	var out []hookMatch
	for _, h := range r.Hooks.Matching(trigger) {
		out = append(out, hookMatch{room, h})
	}
	for objEntity := range r.Contents {
		out = append(out, p.matchObjectHooks(objEntity, trigger)...)
	}
	for playerEntity := range r.Players {
		player, ok := p.Players.Get(playerEntity)
		if !ok {
			continue
		}
		for _, h := range player.Hooks.Matching(trigger) {
			out = append(out, hookMatch{playerEntity, h})
		}
		for itemEntity := range player.Inventory {
			out = append(out, p.matchObjectHooks(itemEntity, trigger)...)
		}
	}
	return out
}

func (p *Pipeline) matchObjectHooks(objEntity ecs.Entity, trigger world.Trigger) []hookMatch {
	obj, ok := p.Objects.Get(objEntity)
	if !ok {
		return nil
	}
	proto, _ := p.Prototypes.Get(obj.Prototype)
	var out []hookMatch
	for _, h := range world.EffectiveHooks(obj, proto).Matching(trigger) {
		out = append(out, hookMatch{objEntity, h})
	}
	return out
}

// runPreEvent runs tick order item 4's script half: for every action in
// batch, collect and run every matching pre-event hook in parallel. If
// any pre-event hook on a given action set allow_action=false, that
// action is dropped from the returned survivor set; everything else is
// committed onward.
func (p *Pipeline) runPreEvent(ctx context.Context, batch []Action) []Action {
	if len(batch) == 0 {
		return nil
	}

	forbidden := make([]atomic.Bool, len(batch))
	type job struct {
		actionIdx int
		match     hookMatch
		script    *world.Script
	}
	var jobs []job
	for i, a := range batch {
		trigger := world.Trigger{Class: world.TriggerPre, Event: a.Kind}
		for _, m := range p.collectHooks(a.Actor, trigger) {
			p.ScriptsMu.RLock()
			script := p.Scripts[m.Hook.Script]
			p.ScriptsMu.RUnlock()
			if script == nil {
				warnBrokenScript(m.Hook.Script)
				continue
			}
			if script.Broken() {
				continue
			}
			jobs = append(jobs, job{i, m, script})
		}
	}

	p.runInGroup(ctx, len(jobs), func(i int, runID string) error {
		j := jobs[i]
		event := p.eventFor(batch[j.actionIdx])
		allow := true
		rc := p.newRunContext(j.match.Entity, &event, &allow)
		err := p.Runner.Run(ctx, j.script, rc)
		if err != nil {
			p.recordScriptError(j.script, runID, err)
			return err
		}
		if !allow {
			forbidden[j.actionIdx].Store(true)
		}
		return nil
	})

	var survivors []Action
	for i, a := range batch {
		if !forbidden[i].Load() {
			survivors = append(survivors, a)
		}
	}
	return survivors
}

// runPostEvent runs tick order item 6: the same hook-collection shape as
// runPreEvent, but post-event hooks have no veto power; they run purely
// for their side effects, after the action has already applied.
func (p *Pipeline) runPostEvent(ctx context.Context, batch []Action) {
	if len(batch) == 0 {
		return
	}
	type job struct {
		actionIdx int
		match     hookMatch
		script    *world.Script
	}
	var jobs []job
	for i, a := range batch {
		trigger := world.Trigger{Class: world.TriggerPost, Event: a.Kind}
		for _, m := range p.collectHooks(a.Actor, trigger) {
			p.ScriptsMu.RLock()
			script := p.Scripts[m.Hook.Script]
			p.ScriptsMu.RUnlock()
			if script == nil {
				warnBrokenScript(m.Hook.Script)
				continue
			}
			if script.Broken() {
				continue
			}
			jobs = append(jobs, job{i, m, script})
		}
	}

	p.runInGroup(ctx, len(jobs), func(i int, runID string) error {
		j := jobs[i]
		event := p.eventFor(batch[j.actionIdx])
		rc := p.newRunContext(j.match.Entity, &event, nil)
		err := p.Runner.Run(ctx, j.script, rc)
		if err != nil {
			p.recordScriptError(j.script, runID, err)
		}
		return err
	})
}

// recordScriptError stores err as script's latest runtime error, tagged
// with the same run id the failure log line carries, where an immortal's
// `<target> errors <script>` query can surface it. A run that errors is
// abandoned without affecting sibling runs.
func (p *Pipeline) recordScriptError(script *world.Script, runID string, err error) {
	p.ScriptsMu.Lock()
	script.LastError = fmt.Sprintf("run %s: %v", runID, err)
	p.ScriptsMu.Unlock()
}

// eventFor projects an in-flight Action into the read-only world.Event
// view script runs see as EVENT.
func (p *Pipeline) eventFor(a Action) world.Event {
	return world.Event{
		Actor:     a.Actor,
		Kind:      a.Kind,
		Direction: a.Direction,
		Emote:     a.Message,
	}
}
