package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*RunContext, ecs.Entity, ecs.Entity) {
	t.Helper()
	store := ecs.NewStore()
	rooms := ecs.Components[*world.Room](store)
	objects := ecs.Components[*world.Object](store)
	prototypes := ecs.Components[*world.Prototype](store)
	players := ecs.Components[*world.Player](store)

	roomEntity := store.Spawn()
	rooms.Insert(roomEntity, world.NewRoom(1, "Hollow", "An empty hollow."))

	playerEntity := store.Spawn()
	player := world.NewPlayer(1, "Aria", "hash", roomEntity)
	players.Insert(playerEntity, player)
	if r, ok := rooms.Get(roomEntity); ok {
		r.Players[playerEntity] = struct{}{}
	}

	rc := &RunContext{
		Store:       store,
		Rooms:       rooms,
		Objects:     objects,
		Prototypes:  prototypes,
		Players:     players,
		Lock:        &world.Lock{},
		IdAlloc:     world.NewIdAllocator(nil),
		Self:        playerEntity,
		QueueUpdate: func(world.UpdateOp, any) {},
	}
	return rc, roomEntity, playerEntity
}

func compile(t *testing.T, h *Host, name, source string) *world.Script {
	t.Helper()
	compiled, err := h.Compile(name, source)
	require.NoError(t, err)
	return &world.Script{Name: name, Source: source, Compiled: compiled}
}

func TestHostCompileRejectsSyntaxError(t *testing.T) {
	h := NewHost(100 * time.Millisecond)
	_, err := h.Compile("broken", "this is not lua {{{")
	assert.Error(t, err)
}

func TestHostRunSelfMessageFillsOutbox(t *testing.T) {
	rc, _, playerEntity := newTestContext(t)
	h := NewHost(100 * time.Millisecond)
	script := compile(t, h, "greet", `self.message("hello there")`)

	err := h.Run(context.Background(), script, rc)
	require.NoError(t, err)

	player, _ := rc.Players.Get(playerEntity)
	assert.Equal(t, []string{"hello there"}, player.Outbox)
}

func TestHostRunAllowActionVeto(t *testing.T) {
	rc, _, _ := newTestContext(t)
	allow := true
	rc.AllowAction = &allow
	h := NewHost(100 * time.Millisecond)
	script := compile(t, h, "veto", `allow_action = false`)

	err := h.Run(context.Background(), script, rc)
	require.NoError(t, err)
	assert.False(t, allow)
}

func TestHostRunSayReachesRoommateNotSelf(t *testing.T) {
	rc, roomEntity, playerEntity := newTestContext(t)

	other := rc.Store.Spawn()
	rc.Players.Insert(other, world.NewPlayer(2, "Bram", "hash", roomEntity))
	if r, ok := rc.Rooms.Get(roomEntity); ok {
		r.Players[other] = struct{}{}
	}

	h := NewHost(100 * time.Millisecond)
	script := compile(t, h, "say-hi", `self.say("hi")`)

	err := h.Run(context.Background(), script, rc)
	require.NoError(t, err)

	speaker, _ := rc.Players.Get(playerEntity)
	listener, _ := rc.Players.Get(other)
	require.Len(t, speaker.Outbox, 1)
	require.Len(t, listener.Outbox, 1)
	assert.Contains(t, speaker.Outbox[0], "You say")
	assert.Contains(t, listener.Outbox[0], "Aria says")
}

func TestHostRunScriptDataRoundTrips(t *testing.T) {
	rc, _, _ := newTestContext(t)
	h := NewHost(100 * time.Millisecond)
	script := compile(t, h, "counter", `
		local n = self.get("count")
		if n == nil then n = 0 end
		self.set("count", n + 1)
	`)

	require.NoError(t, h.Run(context.Background(), script, rc))
	require.NoError(t, h.Run(context.Background(), script, rc))

	data, ok := rc.dataMap(rc.Self)
	require.True(t, ok)
	count, ok := data.Get("count")
	require.True(t, ok)
	assert.Equal(t, float64(2), count)
}

func TestHostRunTimeoutOnInfiniteLoop(t *testing.T) {
	rc, _, _ := newTestContext(t)
	h := NewHost(20 * time.Millisecond)
	script := compile(t, h, "spin", `while true do end`)

	err := h.Run(context.Background(), script, rc)
	assert.Error(t, err)
}

func TestHostRunPushFSMDrivesDecide(t *testing.T) {
	rc, _, _ := newTestContext(t)
	h := NewHost(100 * time.Millisecond)
	script := compile(t, h, "patrol", `
		local b = fsm_builder("patrol", "waiting")
		b:add_state({
			id = "waiting",
			decide = function() return transition_to("done") end,
		})
		b:add_state({ id = "done" })
		self.push_fsm(b)
	`)

	require.NoError(t, h.Run(context.Background(), script, rc))

	player, _ := rc.Players.Get(rc.Self)
	require.Len(t, player.FSMs, 1)
	fsm := player.FSMs.Top()
	assert.Equal(t, world.StateId("waiting"), fsm.Current)

	result := fsm.Step()
	assert.Equal(t, world.TransitionNone, result.Kind)
	assert.Equal(t, world.StateId("done"), fsm.Current)
}
