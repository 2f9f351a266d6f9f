package scripting

import (
	"math/rand/v2"
	"time"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
	lua "github.com/yuin/gopher-lua"
)

// registerWorld installs the read-only `world` module:
// entity introspection helpers that take an entity handle (a plain Lua
// number) and answer questions about it without mutating anything. Every
// body runs under the world lock's shared mode, so concurrent runs for
// the same phase read in parallel and only serialize against writers.
// Entity equality needs no binding of its own since entity handles are
// bare Lua numbers and native `==` already compares them correctly.
func registerWorld(L *lua.LState, rc *RunContext) {
	t := L.NewTable()

	t.RawSetString("is_room", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var ok bool
		rc.read(func() { ok = rc.Rooms.Has(e) })
		L.Push(lua.LBool(ok))
		return 1
	}))
	t.RawSetString("is_object", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var ok bool
		rc.read(func() { ok = rc.Objects.Has(e) })
		L.Push(lua.LBool(ok))
		return 1
	}))
	t.RawSetString("is_player", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var ok bool
		rc.read(func() { ok = rc.Players.Has(e) })
		L.Push(lua.LBool(ok))
		return 1
	}))

	t.RawSetString("name", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var name string
		rc.read(func() { name = rc.effectiveName(e) })
		L.Push(lua.LString(name))
		return 1
	}))
	t.RawSetString("description", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var desc string
		rc.read(func() { desc = rc.effectiveDescription(e) })
		L.Push(lua.LString(desc))
		return 1
	}))
	t.RawSetString("keywords", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var words []string
		rc.read(func() { words = rc.effectiveKeywords(e) })
		out := L.NewTable()
		for i, w := range words {
			out.RawSetInt(i+1, lua.LString(w))
		}
		L.Push(out)
		return 1
	}))

	t.RawSetString("location", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var room ecs.Entity
		var ok bool
		rc.read(func() { room, ok = rc.roomOf(e) })
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LNumber(room))
		return 1
	}))

	t.RawSetString("contents", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var contained []ecs.Entity
		rc.read(func() {
			if room, ok := rc.Rooms.Get(e); ok {
				for c := range room.Contents {
					contained = append(contained, c)
				}
			} else if player, ok := rc.Players.Get(e); ok {
				for held := range player.Inventory {
					contained = append(contained, held)
				}
			}
		})
		out := L.NewTable()
		for i, c := range contained {
			out.RawSetInt(i+1, lua.LNumber(c))
		}
		L.Push(out)
		return 1
	}))

	t.RawSetString("players", L.NewFunction(func(L *lua.LState) int {
		e := ecs.Entity(L.CheckNumber(1))
		var players []ecs.Entity
		rc.read(func() {
			if room, ok := rc.Rooms.Get(e); ok {
				for p := range room.Players {
					players = append(players, p)
				}
			}
		})
		out := L.NewTable()
		for i, p := range players {
			out.RawSetInt(i+1, lua.LNumber(p))
		}
		L.Push(out)
		return 1
	}))

	t.RawSetString("contains", L.NewFunction(func(L *lua.LState) int {
		container := ecs.Entity(L.CheckNumber(1))
		item := ecs.Entity(L.CheckNumber(2))
		found := false
		rc.read(func() {
			if room, ok := rc.Rooms.Get(container); ok {
				_, found = room.Contents[item]
			} else if player, ok := rc.Players.Get(container); ok {
				_, found = player.Inventory[item]
			}
		})
		L.Push(lua.LBool(found))
		return 1
	}))

	L.SetGlobal("world", t)
}

// effectiveName/effectiveDescription/effectiveKeywords resolve an entity's
// displayed fields, following prototype inheritance for objects and
// returning the stored value directly for rooms and players. Callers hold
// at least the shared world lock.
func (rc *RunContext) effectiveName(e ecs.Entity) string {
	if room, ok := rc.Rooms.Get(e); ok {
		return room.Name
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.Name
	}
	if obj, ok := rc.Objects.Get(e); ok {
		if proto, ok := rc.Prototypes.Get(obj.Prototype); ok {
			return world.EffectiveName(obj, proto)
		}
	}
	return ""
}

func (rc *RunContext) effectiveDescription(e ecs.Entity) string {
	if room, ok := rc.Rooms.Get(e); ok {
		return room.Description
	}
	if player, ok := rc.Players.Get(e); ok {
		return player.Description
	}
	if obj, ok := rc.Objects.Get(e); ok {
		if proto, ok := rc.Prototypes.Get(obj.Prototype); ok {
			return world.EffectiveDescription(obj, proto)
		}
	}
	return ""
}

func (rc *RunContext) effectiveKeywords(e ecs.Entity) []string {
	if obj, ok := rc.Objects.Get(e); ok {
		if proto, ok := rc.Prototypes.Get(obj.Prototype); ok {
			return world.EffectiveKeywords(obj, proto)
		}
	}
	return nil
}

// registerTime installs the `time` module: unit constructors that turn a
// plain number into a time.Duration value (a count of nanoseconds), used
// anywhere a script schedules a timer or an _after call.
func registerTime(L *lua.LState) {
	t := L.NewTable()
	t.RawSetString("ms", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckNumber(1)
		L.Push(lua.LNumber(time.Duration(n) * time.Millisecond))
		return 1
	}))
	t.RawSetString("secs", L.NewFunction(func(L *lua.LState) int {
		n := L.CheckNumber(1)
		L.Push(lua.LNumber(time.Duration(n) * time.Second))
		return 1
	}))
	L.SetGlobal("time", t)
}

// registerRand installs the `rand` module over math/rand/v2, whose
// package-level functions are already auto-seeded, so no seed plumbing is
// needed.
func registerRand(L *lua.LState) {
	t := L.NewTable()
	t.RawSetString("chance", L.NewFunction(func(L *lua.LState) int {
		p := float64(L.CheckNumber(1))
		L.Push(lua.LBool(rand.Float64() < p))
		return 1
	}))
	t.RawSetString("range", L.NewFunction(func(L *lua.LState) int {
		lo := int(L.CheckNumber(1))
		hi := int(L.CheckNumber(2))
		if hi <= lo {
			L.Push(lua.LNumber(lo))
			return 1
		}
		L.Push(lua.LNumber(lo + rand.IntN(hi-lo+1)))
		return 1
	}))
	t.RawSetString("choose", L.NewFunction(func(L *lua.LState) int {
		arr := L.CheckTable(1)
		n := arr.Len()
		if n == 0 {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(arr.RawGetInt(rand.IntN(n) + 1))
		return 1
	}))
	L.SetGlobal("rand", t)
}

// registerSelf installs the `self` module: every mutating action a script
// can take on the entity it is bound to, plus the `_after` family that
// schedules the same effect for a future tick via rc.Scheduler instead of
// running it immediately. Mutating bodies run under the world lock's
// exclusive mode for exactly the duration of the one call; the lock is
// released before the API function returns to the script, so a held guard
// never spans a call back into script code.
func registerSelf(L *lua.LState, rc *RunContext) {
	t := L.NewTable()

	t.RawSetString("entity", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(rc.Self))
		return 1
	}))

	t.RawSetString("say", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		rc.write(func() { rc.doSay(rc.Self, msg) })
		return 0
	}))
	t.RawSetString("emote", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		rc.write(func() { rc.doEmote(rc.Self, msg) })
		return 0
	}))
	t.RawSetString("message", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		rc.write(func() { rc.sendToPlayer(rc.Self, msg) })
		return 0
	}))
	t.RawSetString("send", L.NewFunction(func(L *lua.LState) int {
		target := ecs.Entity(L.CheckNumber(1))
		msg := L.CheckString(2)
		rc.write(func() { rc.sendToPlayer(target, msg) })
		return 0
	}))
	t.RawSetString("whisper", L.NewFunction(func(L *lua.LState) int {
		target := ecs.Entity(L.CheckNumber(1))
		msg := L.CheckString(2)
		rc.write(func() {
			rc.sendToPlayer(target, rc.effectiveName(rc.Self)+" whispers, \""+msg+"\"")
		})
		return 0
	}))

	t.RawSetString("say_after", L.NewFunction(func(L *lua.LState) int {
		delay := time.Duration(L.CheckNumber(1))
		msg := L.CheckString(2)
		rc.Scheduler.Schedule(delay, world.EventSay, rc.Self, map[string]any{"msg": msg})
		return 0
	}))
	t.RawSetString("emote_after", L.NewFunction(func(L *lua.LState) int {
		delay := time.Duration(L.CheckNumber(1))
		msg := L.CheckString(2)
		rc.Scheduler.Schedule(delay, world.EventEmote, rc.Self, map[string]any{"msg": msg})
		return 0
	}))
	t.RawSetString("message_after", L.NewFunction(func(L *lua.LState) int {
		delay := time.Duration(L.CheckNumber(1))
		msg := L.CheckString(2)
		rc.Scheduler.Schedule(delay, world.EventSend, rc.Self, map[string]any{"target": float64(rc.Self), "msg": msg})
		return 0
	}))
	t.RawSetString("send_after", L.NewFunction(func(L *lua.LState) int {
		delay := time.Duration(L.CheckNumber(1))
		target := float64(ecs.Entity(L.CheckNumber(2)))
		msg := L.CheckString(3)
		rc.Scheduler.Schedule(delay, world.EventSend, rc.Self, map[string]any{"target": target, "msg": msg})
		return 0
	}))
	t.RawSetString("whisper_after", L.NewFunction(func(L *lua.LState) int {
		delay := time.Duration(L.CheckNumber(1))
		target := float64(ecs.Entity(L.CheckNumber(2)))
		msg := L.CheckString(3)
		rc.Scheduler.Schedule(delay, world.EventWhisper, rc.Self, map[string]any{"target": target, "msg": msg})
		return 0
	}))

	t.RawSetString("get", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		var value any
		var ok bool
		rc.read(func() {
			var data world.DataMap
			if data, ok = rc.dataMap(rc.Self); ok {
				value, _ = data.Get(key)
			}
		})
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(goToLua(L, value))
		return 1
	}))
	t.RawSetString("set", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		value := luaToGo(L.CheckAny(2))
		rc.write(func() {
			if data, ok := rc.dataMap(rc.Self); ok {
				data.Set(key, value)
			}
		})
		return 0
	}))
	t.RawSetString("remove", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		var removed any
		var ok bool
		rc.write(func() {
			var data world.DataMap
			if data, ok = rc.dataMap(rc.Self); ok {
				removed = data.Remove(key)
			}
		})
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(goToLua(L, removed))
		return 1
	}))

	t.RawSetString("timer", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		dur := time.Duration(L.CheckNumber(2))
		rc.write(func() {
			if timers, ok := rc.timerSet(rc.Self); ok {
				timers.Set(name, world.OneShot, dur)
			}
		})
		return 0
	}))
	t.RawSetString("timer_repeating", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		dur := time.Duration(L.CheckNumber(2))
		rc.write(func() {
			if timers, ok := rc.timerSet(rc.Self); ok {
				timers.Set(name, world.Repeating, dur)
			}
		})
		return 0
	}))

	t.RawSetString("push_fsm", L.NewFunction(func(L *lua.LState) int {
		builder := checkFSMBuilder(L, 1)
		fsm := builder.build(rc)
		rc.write(func() { rc.pushFSM(rc.Self, fsm) })
		return 0
	}))
	t.RawSetString("pop_fsm", L.NewFunction(func(L *lua.LState) int {
		rc.write(func() { rc.popFSM(rc.Self) })
		return 0
	}))

	t.RawSetString("object_new", L.NewFunction(func(L *lua.LState) int {
		protoEntity := ecs.Entity(L.CheckNumber(1))
		var e ecs.Entity
		rc.write(func() { e = rc.newObject(protoEntity) })
		L.Push(lua.LNumber(e))
		return 1
	}))
	t.RawSetString("object_remove", L.NewFunction(func(L *lua.LState) int {
		target := ecs.Entity(L.CheckNumber(1))
		rc.write(func() { rc.removeObject(target) })
		return 0
	}))

	L.SetGlobal("self", t)
}

// doSay broadcasts a spoken line to speaker's room, phrased differently for
// the speaker than for onlookers. Callers hold the exclusive world lock.
func (rc *RunContext) doSay(speaker ecs.Entity, msg string) {
	room, ok := rc.roomOf(speaker)
	if !ok {
		return
	}
	name := rc.effectiveName(speaker)
	rc.sendToPlayer(speaker, "You say, \""+msg+"\"")
	rc.broadcastToRoom(room, speaker, name+" says, \""+msg+"\"")
}

// doEmote broadcasts a third-person action line to the actor's room,
// including the actor themselves. Callers hold the exclusive world lock.
func (rc *RunContext) doEmote(actor ecs.Entity, msg string) {
	room, ok := rc.roomOf(actor)
	if !ok {
		return
	}
	name := rc.effectiveName(actor)
	line := name + " " + msg
	rc.sendToPlayer(actor, line)
	rc.broadcastToRoom(room, actor, line)
}

// newObject spawns a fresh object instance from protoEntity, attaches it to
// self's room, and queues its durable row. It mirrors the instance creation
// the world loader performs at boot (pkg/storage/loader.go), just driven
// from script code instead of a stored row. Callers hold the exclusive
// world lock.
func (rc *RunContext) newObject(protoEntity ecs.Entity) ecs.Entity {
	proto, ok := rc.Prototypes.Get(protoEntity)
	if !ok {
		return 0
	}
	e := rc.Store.Spawn()
	id := rc.IdAlloc.Next(world.KindObject)
	obj := world.NewObject(id, protoEntity, true)

	room, ok := rc.roomOf(rc.Self)
	if ok {
		obj.ContainerKind = world.ContainerRoom
		obj.Container = room
		if r, ok := rc.Rooms.Get(room); ok {
			r.Contents[e] = struct{}{}
		}
	}
	rc.Objects.Insert(e, obj)

	if rc.QueueUpdate != nil {
		rc.QueueUpdate(world.OpUpsertObject, world.ObjectRow{
			Id:             id,
			PrototypeId:    proto.Id,
			InheritScripts: obj.InheritScripts,
			ContainerKind:  "room",
			ContainerId:    idOfRoom(rc, room),
		})
	}
	return e
}

// removeObject detaches target from whatever contains it and despawns it,
// queuing the matching delete. Callers hold the exclusive world lock.
func (rc *RunContext) removeObject(target ecs.Entity) {
	obj, ok := rc.Objects.Get(target)
	if !ok {
		return
	}
	if obj.ContainerKind == world.ContainerRoom {
		if r, ok := rc.Rooms.Get(obj.Container); ok {
			delete(r.Contents, target)
		}
	} else if player, ok := rc.Players.Get(obj.Container); ok {
		delete(player.Inventory, target)
	}
	rc.Store.Despawn(target)
	if rc.QueueUpdate != nil {
		rc.QueueUpdate(world.OpDeleteObject, world.ObjectRow{Id: obj.Id})
	}
}

// idOfRoom returns room's durable Id, or 0 if room is not a valid room
// entity (an object with no current location).
func idOfRoom(rc *RunContext, room ecs.Entity) world.Id {
	if r, ok := rc.Rooms.Get(room); ok {
		return r.Id
	}
	return 0
}
