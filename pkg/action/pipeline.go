package action

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/metrics"
	"github.com/remud/remud/pkg/scripting"
	"github.com/remud/remud/pkg/world"
)

// ScriptRunner executes one compiled script run. *scripting.Host satisfies
// this directly; kept as an interface so tests can supply a stub that
// never touches gopher-lua.
type ScriptRunner interface {
	Run(ctx context.Context, script *world.Script, rc *scripting.RunContext) error
}

// Messenger flushes every player's queued outgoing lines to its session,
// once per tick (tick order item 7). pkg/messaging supplies the
// concrete implementation; this package only needs the seam so it never
// imports pkg/messaging.
type Messenger interface {
	Flush(players *ecs.Table[*world.Player])
}

// Persister hands a tick's accumulated durable mutations off to the
// persistence bus for asynchronous draining (tick order item 8).
type Persister interface {
	Enqueue(group world.UpdateGroup)
}

// Pipeline is the tick-driven action dispatcher. One Pipeline is built
// per running World and shared by every tick for the life of the process.
type Pipeline struct {
	Store      *ecs.Store
	Rooms      *ecs.Table[*world.Room]
	Objects    *ecs.Table[*world.Object]
	Prototypes *ecs.Table[*world.Prototype]
	Players    *ecs.Table[*world.Player]
	Scripts    map[string]*world.Script
	ScriptsMu  *sync.RWMutex

	Lock    *world.Lock
	IdAlloc *world.IdAllocator
	Runner  ScriptRunner

	// logger is this pipeline's component-scoped logger (pkg/log.WithComponent).
	logger zerolog.Logger

	Messenger Messenger
	Persister Persister

	// WorkerPool bounds how many hook script runs execute concurrently for
	// a single pre/post-event phase; zero means unbounded (errgroup.SetLimit
	// is skipped).
	WorkerPool int

	// ScriptTimeout bounds a single script run; propagated into every
	// RunContext this pipeline builds.
	ScriptTimeout time.Duration

	// queue is the pre-event bus tick order item 1 drains: Submit sends into
	// it from any goroutine (a session's connection task, typically), and it
	// is double-buffered exactly per pkg/ecs.Bus's contract: an action
	// submitted during tick T is not pulled into a batch until tick T+1's
	// Tick call Swaps it in, and it is never delivered twice.
	queue *ecs.Bus[Action]

	mu    sync.Mutex
	timed []timedAction

	reloadMu sync.Mutex
	reloads  map[ecs.Entity]world.PrototypeEdit

	updatesMu sync.Mutex
	updates   []world.Update

	// Now is the tick clock; overridable in tests. lastTick tracks the
	// previous call's timestamp so Δt can be computed deterministically.
	Now      func() time.Time
	lastTick time.Time
}

type timedAction struct {
	action Action
	dueAt  time.Time
}

// NewPipeline wires a Pipeline over the given ECS tables and dependencies.
// The caller supplies the component tables (from pkg/storage's Load
// result) rather than this package constructing them, so pkg/action never
// needs to know how the World was hydrated.
func NewPipeline(store *ecs.Store, rooms *ecs.Table[*world.Room], objects *ecs.Table[*world.Object], prototypes *ecs.Table[*world.Prototype], players *ecs.Table[*world.Player], scripts map[string]*world.Script, idAlloc *world.IdAllocator, runner ScriptRunner, messenger Messenger, persister Persister) *Pipeline {
	return &Pipeline{
		Store:      store,
		Rooms:      rooms,
		Objects:    objects,
		Prototypes: prototypes,
		Players:    players,
		Scripts:    scripts,
		ScriptsMu:  &sync.RWMutex{},
		Lock:       &world.Lock{},
		IdAlloc:    idAlloc,
		Runner:     runner,
		Messenger:  messenger,
		Persister:  persister,
		WorkerPool: 4,
		queue:      ecs.Events[Action](store),
		logger:     log.WithComponent("action"),
		reloads:    make(map[ecs.Entity]world.PrototypeEdit),
		Now:        time.Now,
	}
}

// Submit enqueues an action for processing on the next tick's pre-event
// phase. Safe to call from any goroutine, including
// a connection's session task delivering client input.
func (p *Pipeline) Submit(a Action) {
	p.queue.Send(a)
}

// Schedule implements scripting.Scheduler: the self.*_after family calls
// this to enqueue an action due after a delay. Entries become eligible
// for the queued-action bus once their delay elapses, never before, so a
// script run during tick T cannot have its scheduled follow-up processed
// earlier than tick T+1.
func (p *Pipeline) Schedule(after time.Duration, kind world.EventKind, actor ecs.Entity, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dueAt := p.Now().Add(after)
	p.timed = append(p.timed, timedAction{
		action: fromSchedulerPayload(kind, actor, payload, dueAt),
		dueAt:  dueAt,
	})
}

// QueuePrototypeReload stages edit against protoEntity, applied once at
// the start of the reload step (tick order item 9) rather than
// immediately, so objects read mid-tick never see a half-applied
// prototype.
func (p *Pipeline) QueuePrototypeReload(protoEntity ecs.Entity, edit world.PrototypeEdit) {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()
	p.reloads[protoEntity] = mergeEdits(p.reloads[protoEntity], edit)
}

func mergeEdits(base, next world.PrototypeEdit) world.PrototypeEdit {
	if next.Name != nil {
		base.Name = next.Name
	}
	if next.Description != nil {
		base.Description = next.Description
	}
	if next.FlagsSet {
		base.Flags = next.Flags
		base.FlagsSet = true
	}
	if next.KeywordsSet {
		base.Keywords = next.Keywords
		base.KeywordsSet = true
	}
	if next.Hooks != nil {
		base.Hooks = next.Hooks
	}
	return base
}

// DespawnPlayer removes a disconnected player from the live world: it
// leaves the player's inventory objects in place (still attached to the
// player entity, so a reconnect via storage.LoadPlayer finds them again),
// drops the player from its room's Players set, and despawns the entity
// itself. Durable state is untouched; the player's row and inventory rows
// already reflect the last state the engine persisted.
func (p *Pipeline) DespawnPlayer(entity ecs.Entity) {
	pl, ok := p.Players.Get(entity)
	if !ok {
		return
	}
	if room, ok := p.Rooms.Get(pl.Room); ok {
		delete(room.Players, entity)
	}
	p.Players.Remove(entity)
	p.Store.Despawn(entity)
}

// QueueUpdate appends one durable mutation to the current tick's pending
// UpdateGroup; it is the function pkg/scripting's RunContext.QueueUpdate
// seam calls, and handler systems call it directly.
func (p *Pipeline) QueueUpdate(op world.UpdateOp, payload any) {
	p.updatesMu.Lock()
	defer p.updatesMu.Unlock()
	p.updates = append(p.updates, world.NewUpdate(op, payload))
}

// TickResult reports what a single Tick observed, for the engine's outer
// loop to act on (shutdown/restart is tick order item 10, deliberately
// outside Tick itself so Pipeline stays ignorant of process lifecycle).
type TickResult struct {
	ShutdownRequested bool
	RestartRequested  bool
}

// Tick runs tick order items 1 through 9. Item 10
// (shutdown/restart) is signalled back via TickResult for the caller to
// act on between ticks.
func (p *Pipeline) Tick(ctx context.Context) TickResult {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.TickDuration)
		metrics.TicksTotal.Inc()
	}()

	now := p.Now()
	dt := p.deltaT(now)

	// 1. Timer cleanup (reap finished one-shots from the previous tick).
	p.reapTimers()

	// 2. Advance clocks; collect every timer that finishes this tick.
	fired := p.advanceTimers(dt)

	// 3. Due-date scheduler: run Timer(name) hooks for everything that
	// just fired, promote due timed actions into this tick's batch, and
	// give every entity's active FSM its per-tick decide/act.
	p.runTimerHooks(ctx, fired)
	p.stepFSMs()
	due := p.dueTimedActions(now)

	// 4. Swap and drain the pre-event bus (submitted last tick, visible as
	// of this one) plus due actions; run pre-event hooks; commit survivors.
	batch := p.drainQueued()
	batch = append(batch, due...)
	survivors := p.runPreEvent(ctx, batch)

	// 5. Apply surviving actions via their handler systems.
	result := p.applyActions(ctx, survivors)

	// 6. Post-event hooks for the applied action set; a vetoed action never
	// happened, so nothing reacts to it after the fact.
	p.runPostEvent(ctx, survivors)

	// 7. Flush per-player message batches.
	if p.Messenger != nil {
		p.Messenger.Flush(p.Players)
	}

	// 8. Flush durable updates (async; Persister itself backgrounds it).
	p.flushUpdates()

	// 9. Execute prototype reloads.
	p.runReloads()

	return result
}

func (p *Pipeline) deltaT(now time.Time) time.Duration {
	if p.lastTick.IsZero() {
		p.lastTick = now
		return 0
	}
	dt := now.Sub(p.lastTick)
	p.lastTick = now
	return dt
}

func (p *Pipeline) drainQueued() []Action {
	p.queue.Swap()
	return p.queue.Drain()
}

func (p *Pipeline) dueTimedActions(now time.Time) []Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	var due []Action
	remaining := p.timed[:0]
	for _, t := range p.timed {
		if t.action.Due(now) {
			due = append(due, t.action)
		} else {
			remaining = append(remaining, t)
		}
	}
	p.timed = remaining
	return due
}

func (p *Pipeline) flushUpdates() {
	p.updatesMu.Lock()
	updates := p.updates
	p.updates = nil
	p.updatesMu.Unlock()

	if len(updates) == 0 || p.Persister == nil {
		return
	}
	p.Persister.Enqueue(world.UpdateGroup{Updates: updates})
}

func (p *Pipeline) runReloads() {
	p.reloadMu.Lock()
	reloads := p.reloads
	p.reloads = make(map[ecs.Entity]world.PrototypeEdit)
	p.reloadMu.Unlock()

	for protoEntity, edit := range reloads {
		proto, ok := p.Prototypes.Get(protoEntity)
		if !ok {
			continue
		}
		world.ApplyPrototypeEdit(proto, edit)
		world.ReloadInheritingObjects(p.Objects, protoEntity)
		logger := log.WithEntity(uint64(protoEntity))
		logger.Debug().Msg("action: prototype reload applied")
	}
}

// runInGroup runs fn over a concurrency-bounded worker pool, collecting
// and logging (never propagating) any error a single run returns: a
// script that panics or errors is caught, its error stored, and the run
// abandoned without affecting other runs. Each run is assigned a run id,
// handed to fn and carried on the failure log line, so the error an
// immortal later inspects can be matched back to the exact run that
// produced it.
func (p *Pipeline) runInGroup(ctx context.Context, n int, fn func(i int, runID string) error) {
	if n == 0 {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	if p.WorkerPool > 0 {
		g.SetLimit(p.WorkerPool)
	}
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			runID := uuid.NewString()
			if err := fn(i, runID); err != nil {
				p.logger.Warn().Str("run_id", runID).Err(err).Msg("action: script run failed")
			}
			return nil
		})
	}
	_ = gctx
	_ = g.Wait()
}
