package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remud/remud/pkg/world"
)

func TestLoadPlayerHydratesInventoryAndHooks(t *testing.T) {
	store := baseStore()
	store.prototypes = []world.PrototypeRow{{Id: 1, Name: "lamp", Description: "A lamp."}}
	store.objects = []world.ObjectRow{{Id: 1, PrototypeId: 1, InheritScripts: true}}
	store.scripts = []world.ScriptRow{{Name: "greet", Trigger: world.Trigger{Class: world.TriggerInit}, Code: "init()"}}
	store.players = []world.PlayerRow{{Id: 1, Name: "Aria", PasswordHash: "x", RoomId: 1, Flags: []string{"immortal"}}}
	store.playerObjects = map[world.Id][]world.Id{1: {1}}
	store.playerHooks = map[world.Id][]world.HookRow{
		1: {{EntityId: 1, EntityKind: world.KindPlayer, Script: "greet", Trigger: world.Trigger{Class: world.TriggerInit}}},
	}

	w, err := Load(context.Background(), store, &fakeCompiler{})
	require.NoError(t, err)

	entity, err := LoadPlayer(context.Background(), store, w, "Aria")
	require.NoError(t, err)

	pl, ok := w.Players.Get(entity)
	require.True(t, ok)
	assert.Equal(t, "Aria", pl.Name)
	assert.True(t, pl.Immortal())
	assert.Contains(t, pl.Inventory, w.ObjectByID[1])

	obj, ok := w.Objects.Get(w.ObjectByID[1])
	require.True(t, ok)
	assert.Equal(t, world.ContainerPlayer, obj.ContainerKind)
	assert.Equal(t, entity, obj.Container)

	room, ok := w.Rooms.Get(w.RoomByID[1])
	require.True(t, ok)
	assert.Contains(t, room.Players, entity)

	assert.Contains(t, PlayerInitHooks(w, entity), entity)
}

func TestLoadPlayerIsIdempotent(t *testing.T) {
	store := baseStore()
	store.players = []world.PlayerRow{{Id: 1, Name: "Aria", PasswordHash: "x", RoomId: 1}}

	w, err := Load(context.Background(), store, &fakeCompiler{})
	require.NoError(t, err)

	first, err := LoadPlayer(context.Background(), store, w, "Aria")
	require.NoError(t, err)
	second, err := LoadPlayer(context.Background(), store, w, "Aria")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadPlayerReturnsNotFoundForUnknownUsername(t *testing.T) {
	store := baseStore()

	w, err := Load(context.Background(), store, &fakeCompiler{})
	require.NoError(t, err)

	_, err = LoadPlayer(context.Background(), store, w, "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadPlayerSkipsMissingInventoryObject(t *testing.T) {
	store := baseStore()
	store.players = []world.PlayerRow{{Id: 1, Name: "Aria", PasswordHash: "x", RoomId: 1}}
	store.playerObjects = map[world.Id][]world.Id{1: {99}}

	w, err := Load(context.Background(), store, &fakeCompiler{})
	require.NoError(t, err)

	entity, err := LoadPlayer(context.Background(), store, w, "Aria")
	require.NoError(t, err)

	pl, ok := w.Players.Get(entity)
	require.True(t, ok)
	assert.Empty(t, pl.Inventory)
}
