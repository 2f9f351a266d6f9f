package messaging

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/metrics"
	"github.com/remud/remud/pkg/storage"
	"github.com/remud/remud/pkg/world"
)

// Session is the write side of a live connection, implemented by
// pkg/session. Bus never reads from it; it only delivers.
type Session interface {
	Deliver(outputs []Output) error
}

// Bus is the per-tick message flush and the background persistence
// drain. One Bus is shared by the tick loop (as an
// action.Messenger/action.Persister) and by pkg/session (which attaches
// and detaches live connections as players log in and out).
type Bus struct {
	mu       sync.RWMutex
	sessions map[ecs.Entity]Session

	store storage.Store

	groups  chan world.UpdateGroup
	workers int
	wg      sync.WaitGroup
	stop    chan struct{}

	logger zerolog.Logger
}

// NewBus wires a Bus over store, with workers background goroutines
// draining persistence groups concurrently; persistence writes, unlike
// event broadcast, must not be dropped under load, so the channel is
// buffered and drained by a small pool rather than a single loop.
func NewBus(store storage.Store, workers int) *Bus {
	if workers <= 0 {
		workers = 1
	}
	b := &Bus{
		sessions: make(map[ecs.Entity]Session),
		store:    store,
		groups:   make(chan world.UpdateGroup, 256),
		workers:  workers,
		stop:     make(chan struct{}),
		logger:   log.WithComponent("messaging"),
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.drain()
	}
	return b
}

// Attach binds a live session to a player entity, replacing any previous
// one (a reconnect races the old connection's teardown).
func (b *Bus) Attach(entity ecs.Entity, session Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[entity] = session
}

// Detach removes a player's live session, e.g. on disconnect. Lines sent to
// the player afterwards are still drained by Flush each tick and, with no
// session to deliver to, discarded.
func (b *Bus) Detach(entity ecs.Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, entity)
}

func (b *Bus) sessionFor(entity ecs.Entity) (Session, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sessions[entity]
	return s, ok
}

// Attached reports whether entity currently has a live session attached,
// for pkg/session's already-logged-in check at the password prompt.
func (b *Bus) Attached(entity ecs.Entity) bool {
	_, ok := b.sessionFor(entity)
	return ok
}

// Flush implements action.Messenger: tick order item 7. Every player's
// Outbox is drained, whether or not a live session is attached; a player
// with no attached session has nowhere to deliver to and its lines are
// simply discarded, since pkg/session is the sole owner of re-delivery
// semantics for a reconnecting client.
func (b *Bus) Flush(players *ecs.Table[*world.Player]) {
	var depth int
	players.Each(func(entity ecs.Entity, pl *world.Player) bool {
		lines := pl.DrainOutbox()
		depth += len(lines)
		if len(lines) == 0 {
			return true
		}
		session, ok := b.sessionFor(entity)
		if !ok {
			return true
		}
		outputs := make([]Output, 0, len(lines)+1)
		for _, line := range lines {
			outputs = append(outputs, Message(line))
		}
		outputs = append(outputs, Prompt("> ", false))
		if err := session.Deliver(outputs); err != nil {
			logger := log.WithEntity(uint64(pl.Id))
			logger.Warn().Err(err).Msg("messaging: deliver failed")
		}
		return true
	})
	metrics.MessageQueueDepth.Set(float64(depth))
}

// Enqueue implements action.Persister: tick order item 8. The group is
// hashed off to the worker pool; Enqueue itself never blocks on a full
// channel longer than necessary to keep the tick loop's wall-clock bounded
// by persistence, not the other way around.
func (b *Bus) Enqueue(group world.UpdateGroup) {
	select {
	case b.groups <- group:
		metrics.PersistenceQueueDepth.Set(float64(len(b.groups)))
	case <-b.stop:
	}
}

func (b *Bus) drain() {
	defer b.wg.Done()
	for {
		select {
		case group := <-b.groups:
			b.apply(group)
			metrics.PersistenceQueueDepth.Set(float64(len(b.groups)))
		case <-b.stop:
			return
		}
	}
}

func (b *Bus) apply(group world.UpdateGroup) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PersistenceDuration)

	if err := b.store.ApplyGroup(context.Background(), group); err != nil {
		metrics.PersistenceFailuresTotal.Inc()
		b.logger.Error().Err(err).Int("updates", len(group.Updates)).Msg("messaging: update group failed")
	}
}

// Close stops every drain worker and waits for in-flight groups to finish.
func (b *Bus) Close() {
	close(b.stop)
	b.wg.Wait()
}
