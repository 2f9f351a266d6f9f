package storage

import (
	"context"
	"fmt"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/world"
)

// LoadPlayer hydrates one player entity into w by username, attaching its
// inventory objects and their hooks; a player not yet represented by any
// ecs.Entity (the first login of a session) gets one spawned here. A
// repeat call for a player already loaded returns the existing entity
// rather than spawning a duplicate, since a session can reconnect without
// the engine ever having unloaded the player in between.
//
// A missing inventory object (the object row was deleted out from under a
// stale player_objects row) is logged and skipped rather than aborting the
// login, unlike the fatal-on-missing-reference discipline Load enforces
// at boot: a dangling inventory reference should not lock a player out of
// their own character.
func LoadPlayer(ctx context.Context, store Store, w *World, username string) (ecs.Entity, error) {
	row, err := store.PlayerByUsername(ctx, username)
	if err != nil {
		return 0, err
	}

	if entity, ok := w.PlayerByID[row.Id]; ok {
		return entity, nil
	}

	roomEntity, ok := w.RoomByID[row.RoomId]
	if !ok {
		log.Logger.Warn().Str("player", row.Name).Uint64("room", uint64(row.RoomId)).
			Msg("storage: player's room missing, placing in spawn room")
		roomEntity = w.SpawnRoom
	}

	entity := w.Store.Spawn()
	pl := world.NewPlayer(row.Id, row.Name, row.PasswordHash, roomEntity)
	pl.Description = row.Description
	for _, f := range row.Flags {
		pl.SetFlag(world.PlayerFlag(f))
	}

	objectIDs, err := store.PlayerObjects(ctx, row.Id)
	if err != nil {
		return 0, fmt.Errorf("storage: load player objects: %w", err)
	}
	for _, objID := range objectIDs {
		objEntity, ok := w.ObjectByID[objID]
		if !ok {
			log.Logger.Warn().Str("player", row.Name).Uint64("object", uint64(objID)).
				Msg("storage: player inventory object missing, skipped")
			continue
		}
		obj, ok := w.Objects.Get(objEntity)
		if !ok {
			continue
		}
		obj.ContainerKind = world.ContainerPlayer
		obj.Container = entity
		pl.Inventory[objEntity] = struct{}{}
	}

	hooks, err := store.PlayerHooks(ctx, row.Id)
	if err != nil {
		return 0, fmt.Errorf("storage: load player hooks: %w", err)
	}
	for _, h := range hooks {
		pl.Hooks.Add(world.Hook{Script: h.Script, Trigger: h.Trigger})
	}

	w.Players.Insert(entity, pl)
	w.PlayerByID[row.Id] = entity
	w.IdAlloc.Observe(world.KindPlayer, row.Id)

	if room, ok := w.Rooms.Get(roomEntity); ok {
		room.Players[entity] = struct{}{}
	}

	return entity, nil
}

// PlayerInitHooks returns the entity itself if it (or its inventory
// objects, honouring inherit_scripts) carries any Init-trigger hook, for
// the caller to feed straight into action.Pipeline.RunInitScripts on
// login.
func PlayerInitHooks(w *World, entity ecs.Entity) []ecs.Entity {
	pl, ok := w.Players.Get(entity)
	if !ok {
		return nil
	}
	initTrigger := world.Trigger{Class: world.TriggerInit}
	var out []ecs.Entity
	if len(pl.Hooks.Matching(initTrigger)) > 0 {
		out = append(out, entity)
	}
	for objEntity := range pl.Inventory {
		obj, ok := w.Objects.Get(objEntity)
		if !ok {
			continue
		}
		proto, _ := w.Prototypes.Get(obj.Prototype)
		if len(world.EffectiveHooks(obj, proto).Matching(initTrigger)) > 0 {
			out = append(out, objEntity)
		}
	}
	return out
}
