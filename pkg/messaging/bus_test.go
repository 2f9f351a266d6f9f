package messaging

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/world"
)

type fakeStore struct {
	mu     sync.Mutex
	groups []world.UpdateGroup
	fail   bool
}

func (f *fakeStore) Config(context.Context) (map[string]string, error) { return nil, nil }
func (f *fakeStore) Rooms(context.Context) ([]world.RoomRow, error)    { return nil, nil }
func (f *fakeStore) RoomRegions(context.Context) (map[world.Id][]string, error) {
	return nil, nil
}
func (f *fakeStore) Exits(context.Context) ([]world.ExitRow, error)           { return nil, nil }
func (f *fakeStore) Prototypes(context.Context) ([]world.PrototypeRow, error) { return nil, nil }
func (f *fakeStore) Objects(context.Context) ([]world.ObjectRow, error)       { return nil, nil }
func (f *fakeStore) RoomObjects(context.Context) (map[world.Id][]world.Id, error) {
	return nil, nil
}
func (f *fakeStore) Scripts(context.Context) ([]world.ScriptRow, error) { return nil, nil }
func (f *fakeStore) Hooks(context.Context) ([]world.HookRow, error)     { return nil, nil }
func (f *fakeStore) Players(context.Context) ([]world.PlayerRow, error) { return nil, nil }
func (f *fakeStore) PlayerByUsername(context.Context, string) (*world.PlayerRow, error) {
	return nil, nil
}
func (f *fakeStore) PlayerObjects(context.Context, world.Id) ([]world.Id, error) { return nil, nil }
func (f *fakeStore) PlayerHooks(context.Context, world.Id) ([]world.HookRow, error) {
	return nil, nil
}
func (f *fakeStore) ApplyGroup(ctx context.Context, g world.UpdateGroup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, g)
	if f.fail {
		return assertErr("boom")
	}
	return nil
}
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) groupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.groups)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

type fakeSession struct {
	mu      sync.Mutex
	delivered [][]Output
}

func (s *fakeSession) Deliver(outputs []Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, outputs)
	return nil
}

func (s *fakeSession) last() []Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delivered) == 0 {
		return nil
	}
	return s.delivered[len(s.delivered)-1]
}

func TestBusFlushDeliversOutboxToAttachedSession(t *testing.T) {
	store := &fakeStore{}
	bus := NewBus(store, 1)
	defer bus.Close()

	ecsStore := ecs.NewStore()
	players := ecs.Components[*world.Player](ecsStore)
	entity := ecsStore.Spawn()
	pl := world.NewPlayer(1, "Aria", "hash", 0)
	pl.Send("Hello.")
	players.Insert(entity, pl)

	session := &fakeSession{}
	bus.Attach(entity, session)

	bus.Flush(players)

	last := session.last()
	require.Len(t, last, 2)
	assert.Equal(t, Message("Hello."), last[0])
	assert.Empty(t, pl.DrainOutbox())
}

func TestBusFlushDropsUnattachedPlayerOutbox(t *testing.T) {
	store := &fakeStore{}
	bus := NewBus(store, 1)
	defer bus.Close()

	ecsStore := ecs.NewStore()
	players := ecs.Components[*world.Player](ecsStore)
	entity := ecsStore.Spawn()
	pl := world.NewPlayer(1, "Aria", "hash", 0)
	pl.Send("Hello.")
	players.Insert(entity, pl)

	assert.NotPanics(t, func() { bus.Flush(players) })
	assert.Empty(t, pl.Outbox)
}

func TestBusEnqueueDrainsToStore(t *testing.T) {
	store := &fakeStore{}
	bus := NewBus(store, 2)
	defer bus.Close()

	bus.Enqueue(world.UpdateGroup{Updates: []world.Update{world.NewUpdate(world.OpUpsertRoom, world.RoomRow{Id: 1})}})

	require.Eventually(t, func() bool { return store.groupCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBusDetachStopsDelivery(t *testing.T) {
	store := &fakeStore{}
	bus := NewBus(store, 1)
	defer bus.Close()

	ecsStore := ecs.NewStore()
	players := ecs.Components[*world.Player](ecsStore)
	entity := ecsStore.Spawn()
	pl := world.NewPlayer(1, "Aria", "hash", 0)
	players.Insert(entity, pl)

	session := &fakeSession{}
	bus.Attach(entity, session)
	bus.Detach(entity)

	pl.Send("Gone.")
	bus.Flush(players)

	assert.Empty(t, session.last())
}
