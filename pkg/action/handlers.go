package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/metrics"
	"github.com/remud/remud/pkg/world"
)

// errTag prefixes single-line command-failure diagnostics.
const errTag = "|red|"

// applyActions runs tick order item 5: one handler system per action
// kind, synchronously and in submission order, mutating the ECS and
// appending per-player messages/durable updates as it goes. Handler
// systems report missing entities as messages to the actor; they never
// despawn collaterally.
func (p *Pipeline) applyActions(ctx context.Context, actions []Action) TickResult {
	var result TickResult
	for _, a := range actions {
		outcome := "ok"
		switch a.Kind {
		case world.EventMove:
			p.handleMove(a)
		case world.EventLook:
			p.handleLook(a)
		case world.EventSay:
			p.handleSay(a)
		case world.EventEmote:
			p.handleEmote(a)
		case world.EventGet:
			p.handleGet(a)
		case world.EventDrop:
			p.handleDrop(a)
		case world.EventUse:
			p.handleUse(a)
		case world.EventWhisper:
			p.handleWhisper(a)
		case world.EventSend:
			p.handleSend(a)
		case world.EventLogin:
			p.handleLogin(ctx, a)
		case world.EventStats:
			p.handleStats(a)
		case world.EventWho:
			p.handleWho(a)
		case world.EventInventory:
			p.handleInventory(a)
		case world.EventImmortal:
			p.handleImmortal(a)
		case world.EventShutdown:
			result.ShutdownRequested = true
		case world.EventRestart:
			result.RestartRequested = true
		default:
			outcome = "unknown"
		}
		metrics.ActionsProcessedTotal.WithLabelValues(string(a.Kind), outcome).Inc()
	}
	return result
}

func (p *Pipeline) sendErr(actor ecs.Entity, format string, args ...any) {
	if pl, ok := p.Players.Get(actor); ok {
		pl.Send(errTag + fmt.Sprintf(format, args...))
	}
}

func (p *Pipeline) broadcastToRoom(room ecs.Entity, exclude ecs.Entity, line string) {
	r, ok := p.Rooms.Get(room)
	if !ok {
		return
	}
	for playerEntity := range r.Players {
		if playerEntity == exclude {
			continue
		}
		if pl, ok := p.Players.Get(playerEntity); ok {
			pl.Send(line)
		}
	}
}

func (p *Pipeline) effectiveName(e ecs.Entity) string {
	if pl, ok := p.Players.Get(e); ok {
		return pl.Name
	}
	if r, ok := p.Rooms.Get(e); ok {
		return r.Name
	}
	if o, ok := p.Objects.Get(e); ok {
		proto, _ := p.Prototypes.Get(o.Prototype)
		return world.EffectiveName(o, proto)
	}
	return ""
}

// handleMove relocates the actor's player between rooms across an exit,
// updating both rooms' Players sets and the durable player row.
func (p *Pipeline) handleMove(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		p.sendErr(a.Actor, "Player not found")
		return
	}
	fromRoom, ok := p.Rooms.Get(pl.Room)
	if !ok {
		p.sendErr(a.Actor, "Room not found")
		return
	}
	toEntity, ok := fromRoom.Exits[a.Direction]
	if !ok {
		p.sendErr(a.Actor, "You can't go that way.")
		return
	}
	toRoom, ok := p.Rooms.Get(toEntity)
	if !ok {
		p.sendErr(a.Actor, "Room not found")
		return
	}

	name := p.effectiveName(a.Actor)
	p.broadcastToRoom(pl.Room, a.Actor, name+" leaves "+string(a.Direction)+".")
	delete(fromRoom.Players, a.Actor)
	toRoom.Players[a.Actor] = struct{}{}
	pl.Room = toEntity
	p.broadcastToRoom(toEntity, a.Actor, name+" arrives.")
	pl.Send(p.describeRoom(toRoom))

	if r, ok := p.Rooms.Get(pl.Room); ok {
		p.QueueUpdate(world.OpUpsertPlayer, world.PlayerRow{
			Id: pl.Id, Name: pl.Name, PasswordHash: pl.PasswordHash,
			RoomId: r.Id, Description: pl.Description, Flags: flagNames(pl),
		})
	}
}

func (p *Pipeline) describeRoom(r *world.Room) string {
	var b strings.Builder
	b.WriteString(r.Name + "\n")
	b.WriteString(r.Description)
	var exits []string
	for _, d := range world.Directions {
		if _, ok := r.Exits[d]; ok {
			exits = append(exits, string(d))
		}
	}
	if len(exits) > 0 {
		b.WriteString("\nExits: " + strings.Join(exits, ", "))
	}
	for obj := range r.Contents {
		b.WriteString("\n" + p.effectiveName(obj) + " is here.")
	}
	return b.String()
}

func (p *Pipeline) handleLook(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		p.sendErr(a.Actor, "Player not found")
		return
	}
	room, ok := p.Rooms.Get(pl.Room)
	if !ok {
		p.sendErr(a.Actor, "Room not found")
		return
	}
	pl.Send(p.describeRoom(room))
}

func (p *Pipeline) handleSay(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	name := p.effectiveName(a.Actor)
	pl.Send(fmt.Sprintf("You say, %q", a.Message))
	p.broadcastToRoom(pl.Room, a.Actor, fmt.Sprintf("%s says, %q", name, a.Message))
}

func (p *Pipeline) handleEmote(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	name := p.effectiveName(a.Actor)
	line := name + " " + a.Message
	pl.Send(line)
	p.broadcastToRoom(pl.Room, a.Actor, line)
}

func (p *Pipeline) handleWhisper(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	target, ok := p.resolveTarget(a)
	if !ok {
		p.sendErr(a.Actor, "They aren't here.")
		return
	}
	targetPl, ok := p.Players.Get(target)
	if !ok {
		p.sendErr(a.Actor, "They aren't here.")
		return
	}
	name := p.effectiveName(a.Actor)
	pl.Send(fmt.Sprintf("You whisper to %s, %q", targetPl.Name, a.Message))
	targetPl.Send(fmt.Sprintf("%s whispers, %q", name, a.Message))
}

// handleLogin runs once per successful authentication, after pkg/session
// has already hydrated and attached the player entity; it exists purely
// so Pre(login)/Post(login) hooks have an action to hang off (a prototype
// script gating room entry, a welcome announcement), separate from the
// authentication flow itself which never enters the tick pipeline.
func (p *Pipeline) handleLogin(ctx context.Context, a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	name := p.effectiveName(a.Actor)
	pl.Send("Welcome, " + name + ".")
	p.broadcastToRoom(pl.Room, a.Actor, name+" has entered the game.")
}

func (p *Pipeline) handleSend(a Action) {
	target, ok := p.resolveTarget(a)
	if !ok {
		p.sendErr(a.Actor, "Player not found")
		return
	}
	if targetPl, ok := p.Players.Get(target); ok {
		targetPl.Send(a.Message)
	}
}

// resolveTarget returns a.Target directly if already a resolved handle,
// else resolves a.TargetName against the actor's room.
func (p *Pipeline) resolveTarget(a Action) (ecs.Entity, bool) {
	if a.Target != 0 {
		return a.Target, true
	}
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return 0, false
	}
	room, ok := p.Rooms.Get(pl.Room)
	if !ok {
		return 0, false
	}
	for playerEntity := range room.Players {
		target, ok := p.Players.Get(playerEntity)
		if ok && strings.EqualFold(target.Name, a.TargetName) {
			return playerEntity, true
		}
	}
	return 0, false
}

func (p *Pipeline) resolveKeyword(container map[ecs.Entity]struct{}, keyword string) (ecs.Entity, bool) {
	for e := range container {
		for _, kw := range p.effectiveKeywords(e) {
			if strings.EqualFold(kw, keyword) {
				return e, true
			}
		}
	}
	return 0, false
}

func (p *Pipeline) effectiveKeywords(e ecs.Entity) []string {
	o, ok := p.Objects.Get(e)
	if !ok {
		return nil
	}
	proto, _ := p.Prototypes.Get(o.Prototype)
	return world.EffectiveKeywords(o, proto)
}

func (p *Pipeline) handleGet(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	room, ok := p.Rooms.Get(pl.Room)
	if !ok {
		return
	}
	target := a.Target
	if target == 0 {
		var found bool
		target, found = p.resolveKeyword(room.Contents, a.TargetName)
		if !found {
			p.sendErr(a.Actor, "You don't see that here.")
			return
		}
	}
	obj, ok := p.Objects.Get(target)
	if !ok || obj.ContainerKind != world.ContainerRoom || obj.Container != pl.Room {
		p.sendErr(a.Actor, "You don't see that here.")
		return
	}
	delete(room.Contents, target)
	obj.ContainerKind = world.ContainerPlayer
	obj.Container = a.Actor
	pl.Inventory[target] = struct{}{}
	pl.Send("You pick up " + p.effectiveName(target) + ".")
	p.broadcastToRoom(pl.Room, a.Actor, p.effectiveName(a.Actor)+" picks up "+p.effectiveName(target)+".")
	p.queueObjectContainer(obj, world.Id(0), "player", pl.Id)
}

func (p *Pipeline) handleDrop(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	target := a.Target
	if target == 0 {
		var found bool
		target, found = p.resolveKeyword(pl.Inventory, a.TargetName)
		if !found {
			p.sendErr(a.Actor, "You aren't carrying that.")
			return
		}
	}
	obj, ok := p.Objects.Get(target)
	if !ok || obj.ContainerKind != world.ContainerPlayer || obj.Container != a.Actor {
		p.sendErr(a.Actor, "You aren't carrying that.")
		return
	}
	room, ok := p.Rooms.Get(pl.Room)
	if !ok {
		return
	}
	delete(pl.Inventory, target)
	obj.ContainerKind = world.ContainerRoom
	obj.Container = pl.Room
	room.Contents[target] = struct{}{}
	pl.Send("You drop " + p.effectiveName(target) + ".")
	p.broadcastToRoom(pl.Room, a.Actor, p.effectiveName(a.Actor)+" drops "+p.effectiveName(target)+".")
	p.queueObjectContainer(obj, room.Id, "room", 0)
}

func (p *Pipeline) queueObjectContainer(obj *world.Object, roomId world.Id, kind string, playerId world.Id) {
	containerId := roomId
	if kind == "player" {
		containerId = playerId
	}
	p.QueueUpdate(world.OpUpsertObject, world.ObjectRow{
		Id: obj.Id, PrototypeId: p.protoIdOf(obj), InheritScripts: obj.InheritScripts,
		ContainerKind: kind, ContainerId: containerId, Name: obj.Name, Description: obj.Description,
	})
}

func (p *Pipeline) protoIdOf(obj *world.Object) world.Id {
	if proto, ok := p.Prototypes.Get(obj.Prototype); ok {
		return proto.Id
	}
	return 0
}

// handleUse is deliberately unopinionated: "use" has no built-in effect
// of its own, attached scripts (pre/post hooks) do the actual work; the
// handler itself only reports when the used object cannot be found.
func (p *Pipeline) handleUse(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	target := a.Target
	if target == 0 {
		room, _ := p.Rooms.Get(pl.Room)
		var found bool
		if room != nil {
			target, found = p.resolveKeyword(room.Contents, a.TargetName)
		}
		if !found {
			target, found = p.resolveKeyword(pl.Inventory, a.TargetName)
		}
		if !found {
			p.sendErr(a.Actor, "You don't see that here.")
			return
		}
	}
	if _, ok := p.Objects.Get(target); !ok {
		p.sendErr(a.Actor, "You don't see that here.")
		return
	}
	pl.Send("You use " + p.effectiveName(target) + ".")
}

func flagNames(pl *world.Player) []string {
	out := make([]string, 0, len(pl.Flags))
	for f := range pl.Flags {
		out = append(out, string(f))
	}
	return out
}

func (p *Pipeline) handleStats(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	pl.Send(fmt.Sprintf("Name: %s\nInventory: %d items\nImmortal: %v", pl.Name, len(pl.Inventory), pl.Immortal()))
}

func (p *Pipeline) handleWho(a Action) {
	var names []string
	p.Players.Each(func(_ ecs.Entity, other *world.Player) bool {
		names = append(names, other.Name)
		return true
	})
	if pl, ok := p.Players.Get(a.Actor); ok {
		pl.Send("Online: " + strings.Join(names, ", "))
	}
}

func (p *Pipeline) handleInventory(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok {
		return
	}
	if len(pl.Inventory) == 0 {
		pl.Send("You are carrying nothing.")
		return
	}
	var names []string
	for e := range pl.Inventory {
		names = append(names, p.effectiveName(e))
	}
	pl.Send("You are carrying: " + strings.Join(names, ", "))
}

// handleImmortal implements the immortal command surface: prototype
// description and flag edits, room removal, and the object info and
// script errors queries. Args carries the specific
// sub-operation; unrecognized ones are reported rather than silently
// ignored.
func (p *Pipeline) handleImmortal(a Action) {
	pl, ok := p.Players.Get(a.Actor)
	if !ok || !pl.Immortal() {
		p.sendErr(a.Actor, "You are not permitted to do that.")
		return
	}
	op, _ := a.Args["op"].(string)
	switch op {
	case "prototype_desc":
		p.immortalPrototypeDesc(a, pl)
	case "prototype_set_flag":
		p.immortalPrototypeFlag(a, pl, true)
	case "prototype_unset_flag":
		p.immortalPrototypeFlag(a, pl, false)
	case "room_remove":
		p.immortalRoomRemove(a, pl)
	case "object_info":
		p.immortalObjectInfo(a, pl)
	case "script_errors":
		p.immortalScriptErrors(a, pl)
	default:
		p.sendErr(a.Actor, "Unrecognized immortal command.")
	}
}

// immortalObjectInfo reports an object's effective fields and hook list,
// marking hooks whose script is broken or missing with "(error)".
func (p *Pipeline) immortalObjectInfo(a Action, pl *world.Player) {
	objEntity, _ := a.Args["object"].(ecs.Entity)
	obj, ok := p.Objects.Get(objEntity)
	if !ok {
		p.sendErr(a.Actor, "Object not found")
		return
	}
	proto, ok := p.Prototypes.Get(obj.Prototype)
	if !ok {
		p.sendErr(a.Actor, "Prototype not found")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Object %d (prototype %d)\n", obj.Id, proto.Id)
	fmt.Fprintf(&b, "Name: %s\n", world.EffectiveName(obj, proto))
	fmt.Fprintf(&b, "Description: %s\n", world.EffectiveDescription(obj, proto))
	fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(world.EffectiveKeywords(obj, proto), ", "))
	fmt.Fprintf(&b, "Inherit scripts: %v", obj.InheritScripts)
	for _, h := range world.EffectiveHooks(obj, proto) {
		p.ScriptsMu.RLock()
		script := p.Scripts[h.Script]
		broken := script == nil || script.Broken()
		p.ScriptsMu.RUnlock()
		marker := ""
		if broken {
			marker = " (error)"
		}
		fmt.Fprintf(&b, "\nHook: %s -> %s%s", h.Trigger, h.Script, marker)
	}
	pl.Send(b.String())
}

// immortalScriptErrors surfaces a script's latest compile or runtime
// error; script errors never reach ordinary players, only this query.
func (p *Pipeline) immortalScriptErrors(a Action, pl *world.Player) {
	name, _ := a.Args["script"].(string)
	p.ScriptsMu.RLock()
	script := p.Scripts[name]
	p.ScriptsMu.RUnlock()
	if script == nil {
		p.sendErr(a.Actor, "Script %q not found", name)
		return
	}
	if script.LastError == "" {
		pl.Send(fmt.Sprintf("Script %q has no recorded errors.", name))
		return
	}
	pl.Send(fmt.Sprintf("Script %q latest error: %s", name, script.LastError))
}

func (p *Pipeline) immortalPrototypeDesc(a Action, pl *world.Player) {
	protoEntity, _ := a.Args["prototype"].(ecs.Entity)
	desc, _ := a.Args["description"].(string)
	if _, ok := p.Prototypes.Get(protoEntity); !ok {
		p.sendErr(a.Actor, "Prototype not found")
		return
	}
	p.QueuePrototypeReload(protoEntity, world.PrototypeEdit{Description: &desc})
	pl.Send("Prototype description queued for reload.")
}

func (p *Pipeline) immortalPrototypeFlag(a Action, pl *world.Player, set bool) {
	protoEntity, _ := a.Args["prototype"].(ecs.Entity)
	flag, _ := a.Args["flag"].(string)
	proto, ok := p.Prototypes.Get(protoEntity)
	if !ok {
		p.sendErr(a.Actor, "Prototype not found")
		return
	}
	flags := make(map[string]struct{}, len(proto.Flags))
	for f := range proto.Flags {
		flags[f] = struct{}{}
	}
	if set {
		flags[flag] = struct{}{}
	} else {
		delete(flags, flag)
	}
	p.QueuePrototypeReload(protoEntity, world.PrototypeEdit{Flags: flags, FlagsSet: true})
	pl.Send("Prototype flags queued for reload.")
}

// immortalRoomRemove removes a room from the world: relocate every
// player and object currently in the room to the void room, strip every
// inbound exit to it elsewhere in the graph, in one atomic durable group.
func (p *Pipeline) immortalRoomRemove(a Action, pl *world.Player) {
	roomEntity, _ := a.Args["room"].(ecs.Entity)
	if roomEntity == 0 {
		roomEntity = pl.Room
	}
	room, ok := p.Rooms.Get(roomEntity)
	if !ok {
		p.sendErr(a.Actor, "Room not found")
		return
	}
	voidEntity, ok := p.roomByID(world.VoidRoomID)
	if !ok {
		p.sendErr(a.Actor, "Void room missing")
		return
	}
	if roomEntity == voidEntity {
		p.sendErr(a.Actor, "The void room cannot be removed.")
		return
	}
	voidRoom, _ := p.Rooms.Get(voidEntity)

	for playerEntity := range room.Players {
		if mover, ok := p.Players.Get(playerEntity); ok {
			mover.Room = voidEntity
			voidRoom.Players[playerEntity] = struct{}{}
			mover.Send("The room around you dissolves; you are cast into the void.")
			p.QueueUpdate(world.OpUpsertPlayer, world.PlayerRow{
				Id: mover.Id, Name: mover.Name, PasswordHash: mover.PasswordHash,
				RoomId: world.VoidRoomID, Description: mover.Description, Flags: flagNames(mover),
			})
		}
	}
	room.Players = make(map[ecs.Entity]struct{})

	for objEntity := range room.Contents {
		if obj, ok := p.Objects.Get(objEntity); ok {
			obj.ContainerKind = world.ContainerRoom
			obj.Container = voidEntity
			voidRoom.Contents[objEntity] = struct{}{}
			p.queueObjectContainer(obj, world.VoidRoomID, "room", 0)
		}
	}
	room.Contents = make(map[ecs.Entity]struct{})

	p.Rooms.Each(func(e ecs.Entity, other *world.Room) bool {
		if e == roomEntity {
			return true
		}
		for dir, target := range other.Exits {
			if target == roomEntity {
				delete(other.Exits, dir)
				p.QueueUpdate(world.OpDeleteExit, world.ExitRow{RoomId: other.Id, Dir: dir, ToId: room.Id})
			}
		}
		return true
	})

	p.QueueUpdate(world.OpDeleteRoom, world.RoomRow{Id: room.Id})
	p.Store.Despawn(roomEntity)
	pl.Send("Room removed.")
}

func (p *Pipeline) roomByID(id world.Id) (ecs.Entity, bool) {
	var found ecs.Entity
	var ok bool
	p.Rooms.Each(func(e ecs.Entity, r *world.Room) bool {
		if r.Id == id {
			found, ok = e, true
			return false
		}
		return true
	})
	return found, ok
}
