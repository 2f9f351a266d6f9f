package ecs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type position struct{ X, Y int }
type tag struct{ Name string }

func TestSpawnDespawnRemovesAllComponents(t *testing.T) {
	s := NewStore()
	e := s.Spawn()
	require.True(t, s.Alive(e))

	Components[position](s).Insert(e, position{1, 2})
	Components[tag](s).Insert(e, tag{"goblin"})

	s.Despawn(e)

	assert.False(t, s.Alive(e))
	_, ok := Components[position](s).Get(e)
	assert.False(t, ok)
	_, ok = Components[tag](s).Get(e)
	assert.False(t, ok)
}

func TestDespawnIsIdempotent(t *testing.T) {
	s := NewStore()
	e := s.Spawn()
	s.Despawn(e)
	assert.NotPanics(t, func() { s.Despawn(e) })
}

func TestTableMutateRequiresExistingComponent(t *testing.T) {
	s := NewStore()
	e := s.Spawn()
	table := Components[position](s)

	ok := table.Mutate(e, func(p *position) { p.X = 9 })
	assert.False(t, ok, "mutate on an entity with no component must report false")

	table.Insert(e, position{})
	ok = table.Mutate(e, func(p *position) { p.X = 9 })
	require.True(t, ok)

	got, _ := table.Get(e)
	assert.Equal(t, 9, got.X)
}

func TestResourceSingleWriter(t *testing.T) {
	s := NewStore()
	counter := Resources[int](s)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.With(func(v *int) { *v++ })
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter.Get())
}

func TestEventBusDoubleBuffering(t *testing.T) {
	s := NewStore()
	bus := Events[string](s)

	bus.Send("sent-during-tick-1")
	assert.Empty(t, bus.Drain(), "events must not be readable during the tick they were sent")

	bus.Swap() // start of tick 2
	got := bus.Drain()
	assert.Equal(t, []string{"sent-during-tick-1"}, got)
	assert.Empty(t, bus.Drain(), "draining twice must not redeliver")

	bus.Send("sent-during-tick-2-but-never-drained")
	bus.Swap() // start of tick 3: promotes it to readable
	bus.Swap() // start of tick 4: must clear it even though nobody drained
	assert.Empty(t, bus.Drain())
}
