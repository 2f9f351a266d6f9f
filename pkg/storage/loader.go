package storage

import (
	"context"
	"fmt"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/world"
)

// ScriptCompiler compiles script source during boot; pkg/scripting
// supplies the concrete implementation. Kept as an interface here so
// pkg/storage does not import pkg/scripting.
type ScriptCompiler interface {
	Compile(name, source string) (compiled any, err error)
}

// World is the hydrated result of Load: a fresh ecs.Store plus the id
// indexes the rest of the engine needs to translate between durable Ids
// and live ecs.Entity handles.
type World struct {
	Store *ecs.Store

	Rooms      *ecs.Table[*world.Room]
	Prototypes *ecs.Table[*world.Prototype]
	Objects    *ecs.Table[*world.Object]
	Players    *ecs.Table[*world.Player]

	Scripts map[string]*world.Script

	RoomByID      map[world.Id]ecs.Entity
	PrototypeByID map[world.Id]ecs.Entity
	ObjectByID    map[world.Id]ecs.Entity
	PlayerByID    map[world.Id]ecs.Entity

	SpawnRoom ecs.Entity
	IdAlloc   *world.IdAllocator

	// PendingInit holds every object entity whose effective hook list
	// carries an Init trigger, queued for the script host to run once on
	// first tick after boot.
	PendingInit []ecs.Entity
}

// Load runs the fixed, ordered, abort-on-first-failure boot sequence:
// configuration, rooms, exits, prototypes, room-object instances, scripts,
// then room/prototype/object hooks, honouring inherit_scripts and queuing
// Init-hook runs. Any missing referenced id anywhere in this sequence is a
// fatal DeserializeError/MissingReferenceError that aborts boot.
func Load(ctx context.Context, store Store, compiler ScriptCompiler) (*World, error) {
	ecsStore := ecs.NewStore()
	w := &World{
		Store:         ecsStore,
		Rooms:         ecs.Components[*world.Room](ecsStore),
		Prototypes:    ecs.Components[*world.Prototype](ecsStore),
		Objects:       ecs.Components[*world.Object](ecsStore),
		Players:       ecs.Components[*world.Player](ecsStore),
		Scripts:       make(map[string]*world.Script),
		RoomByID:      make(map[world.Id]ecs.Entity),
		PrototypeByID: make(map[world.Id]ecs.Entity),
		ObjectByID:    make(map[world.Id]ecs.Entity),
		PlayerByID:    make(map[world.Id]ecs.Entity),
		IdAlloc: world.NewIdAllocator(map[world.Kind]world.Id{
			world.KindRoom:      0,
			world.KindObject:    0,
			world.KindPrototype: 0,
			world.KindPlayer:    0,
		}),
	}

	cfg, err := store.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load config: %w", err)
	}
	spawnRoomID, err := parseSpawnRoom(cfg)
	if err != nil {
		return nil, err
	}

	if err := loadRooms(ctx, store, w); err != nil {
		return nil, err
	}
	if err := loadExits(ctx, store, w); err != nil {
		return nil, err
	}
	if err := loadPrototypes(ctx, store, w); err != nil {
		return nil, err
	}
	if err := loadObjects(ctx, store, w); err != nil {
		return nil, err
	}
	if err := loadScripts(ctx, store, w, compiler); err != nil {
		return nil, err
	}
	if err := loadHooks(ctx, store, w); err != nil {
		return nil, err
	}
	queueInitRuns(w)

	spawnRoom, ok := w.RoomByID[spawnRoomID]
	if !ok {
		return nil, &MissingReferenceError{Kind: "spawn room", Id: spawnRoomID}
	}
	w.SpawnRoom = spawnRoom

	return w, nil
}

func parseSpawnRoom(cfg map[string]string) (world.Id, error) {
	raw, ok := cfg["spawn_room"]
	if !ok {
		return 0, &DeserializeError{Row: "config", Err: fmt.Errorf("spawn_room is required")}
	}
	var id world.Id
	if _, err := fmt.Sscanf(raw, "%d", &id); err != nil {
		return 0, &DeserializeError{Row: "config", Err: fmt.Errorf("spawn_room %q is not an id: %w", raw, err)}
	}
	return id, nil
}

func loadRooms(ctx context.Context, store Store, w *World) error {
	rows, err := store.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("storage: load rooms: %w", err)
	}
	regions, err := store.RoomRegions(ctx)
	if err != nil {
		return fmt.Errorf("storage: load room regions: %w", err)
	}

	for _, row := range rows {
		entity := w.Store.Spawn()
		room := world.NewRoom(row.Id, row.Name, row.Description)
		for _, region := range regions[row.Id] {
			room.Regions[region] = struct{}{}
		}
		w.Rooms.Insert(entity, room)
		w.RoomByID[row.Id] = entity
		w.IdAlloc.Observe(world.KindRoom, row.Id)
	}
	return nil
}

func loadExits(ctx context.Context, store Store, w *World) error {
	exits, err := store.Exits(ctx)
	if err != nil {
		return fmt.Errorf("storage: load exits: %w", err)
	}
	for _, e := range exits {
		fromEntity, ok := w.RoomByID[e.RoomId]
		if !ok {
			return &MissingReferenceError{Kind: "room", Id: e.RoomId}
		}
		toEntity, ok := w.RoomByID[e.ToId]
		if !ok {
			return &MissingReferenceError{Kind: "room", Id: e.ToId}
		}
		room, _ := w.Rooms.Get(fromEntity)
		room.Exits[e.Dir] = toEntity
	}
	return nil
}

func loadPrototypes(ctx context.Context, store Store, w *World) error {
	rows, err := store.Prototypes(ctx)
	if err != nil {
		return fmt.Errorf("storage: load prototypes: %w", err)
	}
	for _, row := range rows {
		entity := w.Store.Spawn()
		proto := world.NewPrototype(row.Id, row.Name, row.Description)
		for _, f := range row.Flags {
			proto.SetFlag(f)
		}
		proto.Keywords = row.Keywords
		w.Prototypes.Insert(entity, proto)
		w.PrototypeByID[row.Id] = entity
		w.IdAlloc.Observe(world.KindPrototype, row.Id)
	}
	return nil
}

func loadObjects(ctx context.Context, store Store, w *World) error {
	rows, err := store.Objects(ctx)
	if err != nil {
		return fmt.Errorf("storage: load objects: %w", err)
	}
	roomObjects, err := store.RoomObjects(ctx)
	if err != nil {
		return fmt.Errorf("storage: load room objects: %w", err)
	}

	objectRoom := make(map[world.Id]world.Id)
	for roomID, objIDs := range roomObjects {
		for _, objID := range objIDs {
			objectRoom[objID] = roomID
		}
	}

	for _, row := range rows {
		protoEntity, ok := w.PrototypeByID[row.PrototypeId]
		if !ok {
			return &MissingReferenceError{Kind: "prototype", Id: row.PrototypeId}
		}

		entity := w.Store.Spawn()
		obj := world.NewObject(row.Id, protoEntity, row.InheritScripts)
		obj.Name = row.Name
		obj.Description = row.Description
		if row.Flags != nil {
			obj.Flags = toSet(row.Flags)
		}
		obj.Keywords = row.Keywords

		roomID, inRoom := objectRoom[row.Id]
		if inRoom {
			roomEntity, ok := w.RoomByID[roomID]
			if !ok {
				return &MissingReferenceError{Kind: "room", Id: roomID}
			}
			obj.ContainerKind = world.ContainerRoom
			obj.Container = roomEntity
			room, _ := w.Rooms.Get(roomEntity)
			room.Contents[entity] = struct{}{}
		}

		w.Objects.Insert(entity, obj)
		w.ObjectByID[row.Id] = entity
		w.IdAlloc.Observe(world.KindObject, row.Id)
	}
	return nil
}

func loadScripts(ctx context.Context, store Store, w *World, compiler ScriptCompiler) error {
	rows, err := store.Scripts(ctx)
	if err != nil {
		return fmt.Errorf("storage: load scripts: %w", err)
	}
	for _, row := range rows {
		script := &world.Script{Name: row.Name, Trigger: row.Trigger, Source: row.Code}
		compiled, err := compiler.Compile(row.Name, row.Code)
		if err != nil {
			script.LastError = err.Error()
			log.Logger.Warn().Str("script", row.Name).Err(err).Msg("storage: script failed to compile, kept broken")
		} else {
			script.Compiled = compiled
		}
		w.Scripts[row.Name] = script
	}
	return nil
}

func loadHooks(ctx context.Context, store Store, w *World) error {
	hooks, err := store.Hooks(ctx)
	if err != nil {
		return fmt.Errorf("storage: load hooks: %w", err)
	}
	for _, h := range hooks {
		hook := world.Hook{Script: h.Script, Trigger: h.Trigger}
		switch h.EntityKind {
		case world.KindRoom:
			entity, ok := w.RoomByID[h.EntityId]
			if !ok {
				return &MissingReferenceError{Kind: "room", Id: h.EntityId}
			}
			room, _ := w.Rooms.Get(entity)
			room.Hooks.Add(hook)
		case world.KindPrototype:
			entity, ok := w.PrototypeByID[h.EntityId]
			if !ok {
				return &MissingReferenceError{Kind: "prototype", Id: h.EntityId}
			}
			proto, _ := w.Prototypes.Get(entity)
			proto.Hooks.Add(hook)
		case world.KindObject:
			entity, ok := w.ObjectByID[h.EntityId]
			if !ok {
				return &MissingReferenceError{Kind: "object", Id: h.EntityId}
			}
			obj, _ := w.Objects.Get(entity)
			obj.Hooks.Add(hook)
		default:
			return &MissingReferenceError{Kind: "hook owner kind", Id: h.EntityKind}
		}
	}
	return nil
}

// queueInitRuns walks every loaded object's effective hook list (honouring
// inherit_scripts) and queues one PendingInit entry per object carrying an
// Init trigger, whether that hook lives on the object itself or is
// inherited wholesale from its prototype.
func queueInitRuns(w *World) {
	initTrigger := world.Trigger{Class: world.TriggerInit}
	w.Objects.Each(func(entity ecs.Entity, obj *world.Object) bool {
		protoEntity := obj.Prototype
		proto, ok := w.Prototypes.Get(protoEntity)
		if !ok {
			return true
		}
		if len(world.EffectiveHooks(obj, proto).Matching(initTrigger)) > 0 {
			w.PendingInit = append(w.PendingInit, entity)
		}
		return true
	})
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}
