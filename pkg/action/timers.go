package action

import (
	"context"
	"time"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/scripting"
	"github.com/remud/remud/pkg/world"
)

// timerOwner names an entity that carries a TimerSet alongside the
// TimerSet itself, so reapTimers/advanceTimers/runTimerHooks can walk
// rooms, objects, and players uniformly.
type timerOwner struct {
	entity ecs.Entity
	timers world.TimerSet
	hooks  world.HookList
}

func (p *Pipeline) timerOwners() []timerOwner {
	var owners []timerOwner
	p.Rooms.Each(func(e ecs.Entity, r *world.Room) bool {
		if r.Timers != nil {
			owners = append(owners, timerOwner{e, r.Timers, r.Hooks})
		}
		return true
	})
	p.Objects.Each(func(e ecs.Entity, o *world.Object) bool {
		if o.Timers != nil {
			proto, _ := p.Prototypes.Get(o.Prototype)
			owners = append(owners, timerOwner{e, o.Timers, world.EffectiveHooks(o, proto)})
		}
		return true
	})
	p.Players.Each(func(e ecs.Entity, pl *world.Player) bool {
		if pl.Timers != nil {
			owners = append(owners, timerOwner{e, pl.Timers, pl.Hooks})
		}
		return true
	})
	return owners
}

// reapTimers runs tick order item 1: clear every one-shot timer already
// marked Finished, before this tick's clock advance, so an immortal's info
// query can still observe a timer that fired last tick right up until
// this reap.
func (p *Pipeline) reapTimers() {
	for _, owner := range p.timerOwners() {
		owner.timers.ReapFinished()
	}
}

// advanceTimers runs tick order item 2, advancing every timer by dt and
// returning, per owning entity, the names of timers that finished this
// tick.
func (p *Pipeline) advanceTimers(dt time.Duration) map[ecs.Entity][]string {
	fired := make(map[ecs.Entity][]string)
	if dt <= 0 {
		return fired
	}
	for _, owner := range p.timerOwners() {
		names := owner.timers.Tick(dt)
		if len(names) > 0 {
			fired[owner.entity] = names
		}
	}
	return fired
}

// runTimerHooks runs tick order item 3's script-side half: every
// Timer(name) hook attached to an entity whose named timer just finished
// runs once, outside the pre/post-event machinery since a timer firing is
// not itself a dispatched Action.
func (p *Pipeline) runTimerHooks(ctx context.Context, fired map[ecs.Entity][]string) {
	if len(fired) == 0 {
		return
	}
	type job struct {
		entity ecs.Entity
		script *world.Script
	}
	var jobs []job
	for entity, names := range fired {
		hooks := p.hooksFor(entity)
		for _, name := range names {
			trigger := world.Trigger{Class: world.TriggerTimer, TimerName: name}
			for _, h := range hooks.Matching(trigger) {
				p.ScriptsMu.RLock()
				script := p.Scripts[h.Script]
				p.ScriptsMu.RUnlock()
				if script == nil || script.Broken() {
					continue
				}
				jobs = append(jobs, job{entity, script})
			}
		}
	}

	p.runInGroup(ctx, len(jobs), func(i int, runID string) error {
		j := jobs[i]
		rc := p.newRunContext(j.entity, nil, nil)
		err := p.Runner.Run(ctx, j.script, rc)
		if err != nil {
			p.recordScriptError(j.script, runID, err)
		}
		return err
	})
}

// hooksFor returns the effective hook list governing entity, whether it
// is a room, an object (honouring inherit_scripts), or a player.
func (p *Pipeline) hooksFor(entity ecs.Entity) world.HookList {
	if r, ok := p.Rooms.Get(entity); ok {
		return r.Hooks
	}
	if o, ok := p.Objects.Get(entity); ok {
		proto, _ := p.Prototypes.Get(o.Prototype)
		return world.EffectiveHooks(o, proto)
	}
	if pl, ok := p.Players.Get(entity); ok {
		return pl.Hooks
	}
	return nil
}

// newRunContext builds the scripting.RunContext for one script run bound
// to self, optionally carrying event and an allow_action veto cell.
func (p *Pipeline) newRunContext(self ecs.Entity, event *world.Event, allowAction *bool) *scripting.RunContext {
	return &scripting.RunContext{
		Store:         p.Store,
		Rooms:         p.Rooms,
		Objects:       p.Objects,
		Prototypes:    p.Prototypes,
		Players:       p.Players,
		Lock:          p.Lock,
		IdAlloc:       p.IdAlloc,
		Scheduler:     p,
		QueueUpdate:   p.QueueUpdate,
		Self:          self,
		Event:         event,
		AllowAction:   allowAction,
		ScriptTimeout: p.ScriptTimeout,
	}
}

// RunInitScripts runs every Init-trigger hook on the given entities,
// called once by the engine after boot (the loader's PendingInit set)
// and again per newly logged-in player with Init hooks.
func (p *Pipeline) RunInitScripts(ctx context.Context, entities []ecs.Entity) {
	trigger := world.Trigger{Class: world.TriggerInit}
	type job struct {
		entity ecs.Entity
		script *world.Script
	}
	var jobs []job
	for _, entity := range entities {
		for _, h := range p.hooksFor(entity).Matching(trigger) {
			p.ScriptsMu.RLock()
			script := p.Scripts[h.Script]
			p.ScriptsMu.RUnlock()
			if script == nil || script.Broken() {
				continue
			}
			jobs = append(jobs, job{entity, script})
		}
	}
	p.runInGroup(ctx, len(jobs), func(i int, runID string) error {
		j := jobs[i]
		rc := p.newRunContext(j.entity, nil, nil)
		err := p.Runner.Run(ctx, j.script, rc)
		if err != nil {
			p.recordScriptError(j.script, runID, err)
		}
		return err
	})
}

// warnBrokenScript logs that a matched hook named a script which is
// missing or failed to compile; attempts to run a missing script surface
// as a per-hook error, never a crash.
func warnBrokenScript(name string) {
	logger := log.WithScript(name)
	logger.Warn().Msg("action: hook names broken or missing script, skipped")
}
