package action

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/scripting"
	"github.com/remud/remud/pkg/world"
)

// capturePersister records every enqueued UpdateGroup so tests can assert
// on what a tick would have written durably.
type capturePersister struct {
	mu     sync.Mutex
	groups []world.UpdateGroup
}

func (c *capturePersister) Enqueue(g world.UpdateGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = append(c.groups, g)
}

func (c *capturePersister) ops() []world.UpdateOp {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []world.UpdateOp
	for _, g := range c.groups {
		for _, u := range g.Updates {
			out = append(out, u.Op)
		}
	}
	return out
}

type fixture struct {
	t *testing.T

	pipeline  *Pipeline
	host      *scripting.Host
	persisted *capturePersister

	voidEntity ecs.Entity
	roomEntity ecs.Entity

	playerEntity ecs.Entity

	now time.Time
}

// newFixture builds a pipeline over a two-room world (the void plus one
// spawn room) with one player standing in the spawn room.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ecs.NewStore()
	rooms := ecs.Components[*world.Room](store)
	objects := ecs.Components[*world.Object](store)
	prototypes := ecs.Components[*world.Prototype](store)
	players := ecs.Components[*world.Player](store)

	voidEntity := store.Spawn()
	rooms.Insert(voidEntity, world.NewRoom(world.VoidRoomID, "The Void", "Nothing here."))

	roomEntity := store.Spawn()
	rooms.Insert(roomEntity, world.NewRoom(1, "Town Square", "A busy square."))

	playerEntity := store.Spawn()
	player := world.NewPlayer(1, "Aria", "hash", roomEntity)
	players.Insert(playerEntity, player)
	room, _ := rooms.Get(roomEntity)
	room.Players[playerEntity] = struct{}{}

	host := scripting.NewHost(100 * time.Millisecond)
	persisted := &capturePersister{}
	idAlloc := world.NewIdAllocator(map[world.Kind]world.Id{
		world.KindRoom:   1,
		world.KindPlayer: 1,
	})
	p := NewPipeline(store, rooms, objects, prototypes, players, map[string]*world.Script{}, idAlloc, host, nil, persisted)

	f := &fixture{
		t:            t,
		pipeline:     p,
		host:         host,
		persisted:    persisted,
		voidEntity:   voidEntity,
		roomEntity:   roomEntity,
		playerEntity: playerEntity,
		now:          time.Unix(1000, 0),
	}
	p.Now = func() time.Time { return f.now }
	return f
}

// tick advances the fixture clock by dt and runs one pipeline tick.
func (f *fixture) tick(dt time.Duration) TickResult {
	f.now = f.now.Add(dt)
	return f.pipeline.Tick(context.Background())
}

func (f *fixture) player() *world.Player {
	pl, ok := f.pipeline.Players.Get(f.playerEntity)
	require.True(f.t, ok)
	return pl
}

// addScript compiles source and registers it under name.
func (f *fixture) addScript(name string, trigger world.Trigger, source string) {
	f.t.Helper()
	compiled, err := f.host.Compile(name, source)
	require.NoError(f.t, err)
	f.pipeline.ScriptsMu.Lock()
	f.pipeline.Scripts[name] = &world.Script{Name: name, Trigger: trigger, Source: source, Compiled: compiled}
	f.pipeline.ScriptsMu.Unlock()
}

// addObject spawns a prototype and one inheriting instance of it into the
// fixture's spawn room, returning both entities.
func (f *fixture) addObject(protoID, objID world.Id, protoName string) (protoEntity, objEntity ecs.Entity) {
	f.t.Helper()
	protoEntity = f.pipeline.Store.Spawn()
	f.pipeline.Prototypes.Insert(protoEntity, world.NewPrototype(protoID, protoName, "A "+protoName+"."))

	objEntity = f.pipeline.Store.Spawn()
	obj := world.NewObject(objID, protoEntity, true)
	obj.ContainerKind = world.ContainerRoom
	obj.Container = f.roomEntity
	f.pipeline.Objects.Insert(objEntity, obj)
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)
	room.Contents[objEntity] = struct{}{}
	return protoEntity, objEntity
}

func outboxJoined(pl *world.Player) string {
	return strings.Join(pl.Outbox, "\n")
}

func TestSayReachesActorAndRoom(t *testing.T) {
	f := newFixture(t)

	otherEntity := f.pipeline.Store.Spawn()
	f.pipeline.Players.Insert(otherEntity, world.NewPlayer(2, "Bram", "hash", f.roomEntity))
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)
	room.Players[otherEntity] = struct{}{}

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventSay, Message: "hello"})
	f.tick(15 * time.Millisecond)

	assert.Contains(t, outboxJoined(f.player()), `You say, "hello"`)
	other, _ := f.pipeline.Players.Get(otherEntity)
	assert.Contains(t, outboxJoined(other), `Aria says, "hello"`)
}

func TestPreEventHookVetoesSay(t *testing.T) {
	f := newFixture(t)
	protoEntity, _ := f.addObject(1, 1, "statue")

	f.addScript("shush", world.Trigger{Class: world.TriggerPre, Event: world.EventSay}, `
		if world.is_player(EVENT.actor) then
			allow_action = false
			self.say("shh...")
		end
	`)
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "shush", Trigger: world.Trigger{Class: world.TriggerPre, Event: world.EventSay}})

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventSay, Message: "hello"})
	f.tick(15 * time.Millisecond)

	out := outboxJoined(f.player())
	assert.NotContains(t, out, "You say")
	assert.Contains(t, out, `statue says, "shh..."`)
}

func TestBrokenHookScriptDoesNotVeto(t *testing.T) {
	f := newFixture(t)
	protoEntity, _ := f.addObject(1, 1, "statue")

	// Hook names a script that was never registered; the action must
	// apply normally.
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "missing", Trigger: world.Trigger{Class: world.TriggerPre, Event: world.EventSay}})

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventSay, Message: "hello"})
	f.tick(15 * time.Millisecond)

	assert.Contains(t, outboxJoined(f.player()), `You say, "hello"`)
}

func TestTimerChainFromPostHook(t *testing.T) {
	f := newFixture(t)
	protoEntity, _ := f.addObject(1, 1, "gargoyle")

	f.addScript("arm", world.Trigger{Class: world.TriggerPost, Event: world.EventSay},
		`self.timer("react", time.ms(100))`)
	f.addScript("react", world.Trigger{Class: world.TriggerTimer, TimerName: "react"},
		`self.say("What's all this?")`)
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "arm", Trigger: world.Trigger{Class: world.TriggerPost, Event: world.EventSay}})
	proto.Hooks.Add(world.Hook{Script: "react", Trigger: world.Trigger{Class: world.TriggerTimer, TimerName: "react"}})

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventSay, Message: "hello"})
	f.tick(15 * time.Millisecond) // post hook arms the timer

	f.tick(60 * time.Millisecond) // 60ms elapsed, timer still pending
	assert.NotContains(t, outboxJoined(f.player()), "What's all this?")

	f.tick(60 * time.Millisecond) // 120ms elapsed, timer fires
	assert.Contains(t, outboxJoined(f.player()), `gargoyle says, "What's all this?"`)
}

func TestScheduledActionFiresAfterDelay(t *testing.T) {
	f := newFixture(t)

	f.pipeline.Schedule(50*time.Millisecond, world.EventSay, f.playerEntity, map[string]any{"msg": "later"})

	f.tick(15 * time.Millisecond)
	assert.NotContains(t, outboxJoined(f.player()), "later")

	f.tick(60 * time.Millisecond)
	assert.Contains(t, outboxJoined(f.player()), `You say, "later"`)
}

func TestMoveUpdatesBothRoomsAndQueuesPlayerRow(t *testing.T) {
	f := newFixture(t)

	northEntity := f.pipeline.Store.Spawn()
	f.pipeline.Rooms.Insert(northEntity, world.NewRoom(2, "North Road", "A dusty road."))
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)
	room.Exits[world.North] = northEntity

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventMove, Direction: world.North})
	f.tick(15 * time.Millisecond)

	pl := f.player()
	assert.Equal(t, northEntity, pl.Room)
	north, _ := f.pipeline.Rooms.Get(northEntity)
	_, inNorth := north.Players[f.playerEntity]
	assert.True(t, inNorth)
	_, inOld := room.Players[f.playerEntity]
	assert.False(t, inOld)
	assert.Contains(t, f.persisted.ops(), world.OpUpsertPlayer)
}

func TestMoveWithoutExitReportsError(t *testing.T) {
	f := newFixture(t)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventMove, Direction: world.Down})
	f.tick(15 * time.Millisecond)

	assert.Contains(t, outboxJoined(f.player()), "You can't go that way.")
}

func TestGetAndDropKeepExactlyOneContainer(t *testing.T) {
	f := newFixture(t)
	protoEntity, objEntity := f.addObject(1, 1, "lantern")
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Keywords = []string{"lantern"}

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventGet, TargetName: "lantern"})
	f.tick(15 * time.Millisecond)

	pl := f.player()
	obj, _ := f.pipeline.Objects.Get(objEntity)
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)
	_, inInventory := pl.Inventory[objEntity]
	_, inRoom := room.Contents[objEntity]
	assert.True(t, inInventory)
	assert.False(t, inRoom)
	assert.Equal(t, world.ContainerPlayer, obj.ContainerKind)
	assert.Equal(t, f.playerEntity, obj.Container)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventDrop, TargetName: "lantern"})
	f.tick(15 * time.Millisecond)

	_, inInventory = pl.Inventory[objEntity]
	_, inRoom = room.Contents[objEntity]
	assert.False(t, inInventory)
	assert.True(t, inRoom)
	assert.Equal(t, world.ContainerRoom, obj.ContainerKind)
	assert.Equal(t, f.roomEntity, obj.Container)
}

func TestPrototypeReloadAppliesOncePerTick(t *testing.T) {
	f := newFixture(t)
	protoEntity, objEntity := f.addObject(1, 1, "statue")

	detachedEntity := f.pipeline.Store.Spawn()
	detached := world.NewObject(2, protoEntity, true)
	detached.SetDescription("An object rests here.")
	detached.ContainerKind = world.ContainerRoom
	detached.Container = f.roomEntity
	f.pipeline.Objects.Insert(detachedEntity, detached)

	newDesc := "A fancy prototype."
	f.pipeline.QueuePrototypeReload(protoEntity, world.PrototypeEdit{Description: &newDesc})

	// Not yet applied: reloads run at the end of the next tick.
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	assert.NotEqual(t, newDesc, proto.Description)

	f.tick(15 * time.Millisecond)

	assert.Equal(t, newDesc, proto.Description)
	obj, _ := f.pipeline.Objects.Get(objEntity)
	assert.Equal(t, newDesc, world.EffectiveDescription(obj, proto))
	// The instance that overrode its description keeps its own value.
	assert.Equal(t, "An object rests here.", world.EffectiveDescription(detached, proto))
}

func TestPrototypeFlagSetUnsetRoundTrips(t *testing.T) {
	f := newFixture(t)
	protoEntity, _ := f.addObject(1, 1, "statue")
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.SetFlag("heavy")
	before := map[string]struct{}{"heavy": {}}

	proto.SetFlag("glowing")
	proto.UnsetFlag("glowing")

	assert.Equal(t, before, proto.Flags)
}

func TestRoomRemoveRelocatesEverythingToVoid(t *testing.T) {
	f := newFixture(t)
	pl := f.player()
	pl.SetFlag(world.FlagImmortal)

	_, obj1 := f.addObject(1, 1, "crate")
	_, obj2 := f.addObject(2, 2, "barrel")
	_, obj3 := f.addObject(3, 3, "sack")

	otherEntity := f.pipeline.Store.Spawn()
	f.pipeline.Players.Insert(otherEntity, world.NewPlayer(2, "Bram", "hash", f.roomEntity))
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)
	room.Players[otherEntity] = struct{}{}

	// Another room with an exit into the doomed one.
	sideEntity := f.pipeline.Store.Spawn()
	side := world.NewRoom(5, "Side Street", "A narrow street.")
	side.Exits[world.East] = f.roomEntity
	f.pipeline.Rooms.Insert(sideEntity, side)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventImmortal, Args: map[string]any{"op": "room_remove"}})
	f.tick(15 * time.Millisecond)

	void, _ := f.pipeline.Rooms.Get(f.voidEntity)
	for _, e := range []ecs.Entity{obj1, obj2, obj3} {
		_, inVoid := void.Contents[e]
		assert.True(t, inVoid, "object should be relocated to the void")
	}
	for _, e := range []ecs.Entity{f.playerEntity, otherEntity} {
		_, inVoid := void.Players[e]
		assert.True(t, inVoid, "player should be relocated to the void")
		moved, _ := f.pipeline.Players.Get(e)
		assert.Equal(t, f.voidEntity, moved.Room)
	}

	assert.False(t, f.pipeline.Rooms.Has(f.roomEntity))
	assert.Empty(t, side.Exits, "inbound exits must be stripped")

	ops := f.persisted.ops()
	assert.Contains(t, ops, world.OpDeleteRoom)
	assert.Contains(t, ops, world.OpDeleteExit)
	assert.Contains(t, ops, world.OpUpsertPlayer)
	// All of one tick's updates travel as a single group.
	assert.Len(t, f.persisted.groups, 1)
}

func TestRoomRemoveRefusesVoid(t *testing.T) {
	f := newFixture(t)
	pl := f.player()
	pl.SetFlag(world.FlagImmortal)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventImmortal,
		Args: map[string]any{"op": "room_remove", "room": f.voidEntity}})
	f.tick(15 * time.Millisecond)

	assert.True(t, f.pipeline.Rooms.Has(f.voidEntity))
	assert.Contains(t, outboxJoined(pl), "cannot be removed")
}

func TestImmortalCommandsRequireFlag(t *testing.T) {
	f := newFixture(t)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventImmortal, Args: map[string]any{"op": "room_remove"}})
	f.tick(15 * time.Millisecond)

	assert.True(t, f.pipeline.Rooms.Has(f.roomEntity))
	assert.Contains(t, outboxJoined(f.player()), "not permitted")
}

func TestShutdownAndRestartSignalled(t *testing.T) {
	f := newFixture(t)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventShutdown})
	result := f.tick(15 * time.Millisecond)
	assert.True(t, result.ShutdownRequested)
	assert.False(t, result.RestartRequested)

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventRestart})
	result = f.tick(15 * time.Millisecond)
	assert.True(t, result.RestartRequested)
}

func TestFSMTopSteppedOncePerTick(t *testing.T) {
	f := newFixture(t)
	_, objEntity := f.addObject(1, 1, "automaton")
	obj, _ := f.pipeline.Objects.Get(objEntity)

	acts := 0
	fsm := world.NewFSMBuilder("patrol", "idle").
		AddState(&world.State{
			Id:  "idle",
			Act: func() { acts++ },
		}).
		Build()
	obj.FSMs.Push(fsm)

	f.tick(15 * time.Millisecond)
	f.tick(15 * time.Millisecond)
	assert.Equal(t, 2, acts)
}

func TestFSMPopResultShrinksStack(t *testing.T) {
	f := newFixture(t)
	_, objEntity := f.addObject(1, 1, "automaton")
	obj, _ := f.pipeline.Objects.Get(objEntity)

	fsm := world.NewFSMBuilder("once", "done").
		AddState(&world.State{
			Id:     "done",
			Decide: func() world.TransitionResult { return world.TransitionResult{Kind: world.TransitionPop} },
		}).
		Build()
	obj.FSMs.Push(fsm)

	f.tick(15 * time.Millisecond)
	assert.Nil(t, obj.FSMs.Top())
}

func TestInitScriptsRunOnDemand(t *testing.T) {
	f := newFixture(t)
	protoEntity, objEntity := f.addObject(1, 1, "beacon")

	f.addScript("light", world.Trigger{Class: world.TriggerInit}, `self.set("lit", true)`)
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "light", Trigger: world.Trigger{Class: world.TriggerInit}})

	f.pipeline.RunInitScripts(context.Background(), []ecs.Entity{objEntity})

	obj, _ := f.pipeline.Objects.Get(objEntity)
	lit, ok := obj.Data.Get("lit")
	require.True(t, ok)
	assert.Equal(t, true, lit)
}

func TestRoomTimersTickAndFireHooks(t *testing.T) {
	f := newFixture(t)
	room, _ := f.pipeline.Rooms.Get(f.roomEntity)

	f.addScript("chill", world.Trigger{Class: world.TriggerTimer, TimerName: "chill"},
		`self.set("cold", true)`)
	room.Hooks.Add(world.Hook{Script: "chill", Trigger: world.Trigger{Class: world.TriggerTimer, TimerName: "chill"}})
	room.Timers.Set("chill", world.OneShot, 50*time.Millisecond)

	f.tick(0) // prime the tick clock; the first tick always observes dt 0
	f.tick(60 * time.Millisecond)

	cold, ok := room.Data.Get("cold")
	require.True(t, ok)
	assert.Equal(t, true, cold)
}

func TestRuntimeScriptErrorRecordedOnScript(t *testing.T) {
	f := newFixture(t)
	protoEntity, _ := f.addObject(1, 1, "statue")

	f.addScript("explode", world.Trigger{Class: world.TriggerPre, Event: world.EventSay},
		`error("boom")`)
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "explode", Trigger: world.Trigger{Class: world.TriggerPre, Event: world.EventSay}})

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventSay, Message: "hello"})
	f.tick(15 * time.Millisecond)

	// The failed run is abandoned without vetoing the action.
	assert.Contains(t, outboxJoined(f.player()), `You say, "hello"`)
	f.pipeline.ScriptsMu.RLock()
	lastErr := f.pipeline.Scripts["explode"].LastError
	f.pipeline.ScriptsMu.RUnlock()
	assert.True(t, strings.HasPrefix(lastErr, "run "), "error carries its run id: %q", lastErr)
	assert.Contains(t, lastErr, "boom")
}

func TestImmortalObjectInfoMarksBrokenHooks(t *testing.T) {
	f := newFixture(t)
	pl := f.player()
	pl.SetFlag(world.FlagImmortal)
	protoEntity, objEntity := f.addObject(1, 1, "statue")
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "missing", Trigger: world.Trigger{Class: world.TriggerInit}})

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventImmortal,
		Args: map[string]any{"op": "object_info", "object": objEntity}})
	f.tick(15 * time.Millisecond)

	out := outboxJoined(pl)
	assert.Contains(t, out, "Name: statue")
	assert.Contains(t, out, "missing (error)")
}

func TestImmortalScriptErrorsQuery(t *testing.T) {
	f := newFixture(t)
	pl := f.player()
	pl.SetFlag(world.FlagImmortal)

	f.addScript("fine", world.Trigger{Class: world.TriggerInit}, `local x = 1`)
	f.pipeline.ScriptsMu.Lock()
	f.pipeline.Scripts["fine"].LastError = "runtime: boom"
	f.pipeline.ScriptsMu.Unlock()

	f.pipeline.Submit(Action{Actor: f.playerEntity, Kind: world.EventImmortal,
		Args: map[string]any{"op": "script_errors", "script": "fine"}})
	f.tick(15 * time.Millisecond)

	assert.Contains(t, outboxJoined(pl), "runtime: boom")
}

func TestRepeatingTimerFiresEveryInterval(t *testing.T) {
	f := newFixture(t)
	protoEntity, objEntity := f.addObject(1, 1, "bell")

	f.addScript("toll", world.Trigger{Class: world.TriggerTimer, TimerName: "toll"},
		`self.say("Dong.")`)
	proto, _ := f.pipeline.Prototypes.Get(protoEntity)
	proto.Hooks.Add(world.Hook{Script: "toll", Trigger: world.Trigger{Class: world.TriggerTimer, TimerName: "toll"}})
	obj, _ := f.pipeline.Objects.Get(objEntity)
	obj.Timers.Set("toll", world.Repeating, 50*time.Millisecond)

	f.tick(0) // prime the tick clock; the first tick always observes dt 0
	f.tick(60 * time.Millisecond)
	f.tick(60 * time.Millisecond)

	out := outboxJoined(f.player())
	assert.Equal(t, 2, strings.Count(out, "Dong."))
}
