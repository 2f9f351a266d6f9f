package session

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remud/remud/pkg/action"
	"github.com/remud/remud/pkg/messaging"
	"github.com/remud/remud/pkg/scripting"
	"github.com/remud/remud/pkg/storage"
	"github.com/remud/remud/pkg/world"
)

// fakeConn is a scripted Transport: ReadLine pops from a canned input
// list and Deliver captures everything the session sends.
type fakeConn struct {
	lines  []string
	out    []messaging.Output
	closed bool
}

func (c *fakeConn) ReadLine() (string, error) {
	if len(c.lines) == 0 {
		return "", io.EOF
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, nil
}

func (c *fakeConn) Deliver(outputs []messaging.Output) error {
	c.out = append(c.out, outputs...)
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func (c *fakeConn) messages() string {
	var b strings.Builder
	for _, o := range c.out {
		if m, ok := o.(messaging.TextMessage); ok {
			b.WriteString(m.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (c *fakeConn) sensitivePrompts() int {
	n := 0
	for _, o := range c.out {
		if p, ok := o.(messaging.PromptOutput); ok && p.Sensitive {
			n++
		}
	}
	return n
}

// memStore is an in-memory storage.Store whose ApplyGroup actually upserts
// player rows, so a registration flow's freshly created player can be read
// back by SpawnPlayer's LoadPlayer call.
type memStore struct {
	mu      sync.Mutex
	players []world.PlayerRow
}

func (m *memStore) Config(context.Context) (map[string]string, error) {
	return map[string]string{"spawn_room": "1"}, nil
}
func (m *memStore) Rooms(context.Context) ([]world.RoomRow, error) {
	return []world.RoomRow{
		{Id: world.VoidRoomID, Name: "The Void", Description: "Nothing here."},
		{Id: 1, Name: "The Square", Description: "A square."},
	}, nil
}
func (m *memStore) RoomRegions(context.Context) (map[world.Id][]string, error) { return nil, nil }
func (m *memStore) Exits(context.Context) ([]world.ExitRow, error)             { return nil, nil }
func (m *memStore) Prototypes(context.Context) ([]world.PrototypeRow, error)   { return nil, nil }
func (m *memStore) Objects(context.Context) ([]world.ObjectRow, error)         { return nil, nil }
func (m *memStore) RoomObjects(context.Context) (map[world.Id][]world.Id, error) {
	return nil, nil
}
func (m *memStore) Scripts(context.Context) ([]world.ScriptRow, error) { return nil, nil }
func (m *memStore) Hooks(context.Context) ([]world.HookRow, error)     { return nil, nil }
func (m *memStore) Players(context.Context) ([]world.PlayerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]world.PlayerRow(nil), m.players...), nil
}
func (m *memStore) PlayerByUsername(ctx context.Context, username string) (*world.PlayerRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if strings.EqualFold(p.Name, username) {
			row := p
			return &row, nil
		}
	}
	return nil, storage.ErrNotFound
}
func (m *memStore) PlayerObjects(context.Context, world.Id) ([]world.Id, error) { return nil, nil }
func (m *memStore) PlayerHooks(context.Context, world.Id) ([]world.HookRow, error) {
	return nil, nil
}
func (m *memStore) ApplyGroup(ctx context.Context, g world.UpdateGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range g.Updates {
		if u.Op != world.OpUpsertPlayer {
			continue
		}
		var row world.PlayerRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		replaced := false
		for i := range m.players {
			if m.players[i].Id == row.Id {
				m.players[i] = row
				replaced = true
			}
		}
		if !replaced {
			m.players = append(m.players, row)
		}
	}
	return nil
}
func (m *memStore) Close() error { return nil }

type sessionFixture struct {
	store    *memStore
	w        *storage.World
	pipeline *action.Pipeline
	bus      *messaging.Bus
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := &memStore{}
	host := scripting.NewHost(100 * time.Millisecond)
	w, err := storage.Load(context.Background(), store, host)
	require.NoError(t, err)

	pipeline := action.NewPipeline(w.Store, w.Rooms, w.Objects, w.Prototypes, w.Players, w.Scripts, w.IdAlloc, host, nil, nil)
	bus := messaging.NewBus(store, 1)
	t.Cleanup(bus.Close)

	return &sessionFixture{store: store, w: w, pipeline: pipeline, bus: bus}
}

func (f *sessionFixture) session(conn Transport) *Session {
	s := New(conn, f.store, f.w, f.pipeline, f.bus)
	s.stack.Push(s.buildLoginFSM())
	s.enterTop()
	return s
}

// step mirrors one iteration of Session.Run's loop without the teardown,
// so tests can inspect live state between transitions.
func step(s *Session) {
	top := s.stack.Top()
	if top == nil {
		return
	}
	switch result := top.Step(); result.Kind {
	case world.TransitionPush:
		s.stack.Push(result.Push)
		s.enterTop()
	case world.TransitionPop:
		s.stack.Pop()
	}
}

// driveUntil steps the session until its active FSM reaches target,
// failing the test if it never does within a bounded number of steps.
func driveUntil(t *testing.T, s *Session, target world.StateId) {
	t.Helper()
	for i := 0; i < 50; i++ {
		top := s.stack.Top()
		require.NotNil(t, top, "FSM stack drained before reaching %s", target)
		if top.Current == target {
			return
		}
		require.False(t, s.disconnected, "disconnected before reaching %s", target)
		step(s)
	}
	t.Fatalf("never reached state %s (stuck at %s)", target, s.stack.Top().Current)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return hash
}

func TestRegistrationNegotiation(t *testing.T) {
	f := newSessionFixture(t)
	conn := &fakeConn{lines: []string{
		"alice",   // unknown name
		"hunter2", // create password
		"wrong2",  // verify mismatch -> back to create
		"hunter2", // create again
		"hunter2", // verify match -> create player -> spawn
	}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)

	assert.Contains(t, conn.messages(), msgMismatch)
	assert.GreaterOrEqual(t, conn.sensitivePrompts(), 4, "password prompts must suppress echo")

	rows, _ := f.store.Players(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Name)
	assert.Equal(t, world.Id(1), rows[0].Id)
	assert.Contains(t, rows[0].Flags, string(world.FlagImmortal), "player 1 is immortal by default")
	assert.True(t, VerifyPassword("hunter2", rows[0].PasswordHash))

	// Login then Look, in that order, on the next tick.
	f.pipeline.Tick(context.Background())
	pl, ok := f.w.Players.Get(s.playerEntity)
	require.True(t, ok)
	require.NotEmpty(t, pl.Outbox)
	assert.Contains(t, pl.Outbox[0], "Welcome, alice.")
	assert.Contains(t, strings.Join(pl.Outbox, "\n"), "The Square")
}

func TestLoginKnownPlayer(t *testing.T) {
	f := newSessionFixture(t)
	f.store.players = []world.PlayerRow{{Id: 1, Name: "Bram", PasswordHash: mustHash(t, "secret"), RoomId: 1}}

	conn := &fakeConn{lines: []string{"Bram", "secret"}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)
	assert.True(t, f.bus.Attached(s.playerEntity))
}

func TestLoginNameLookupIsCaseInsensitive(t *testing.T) {
	f := newSessionFixture(t)
	f.store.players = []world.PlayerRow{{Id: 1, Name: "Bram", PasswordHash: mustHash(t, "secret"), RoomId: 1}}

	conn := &fakeConn{lines: []string{"BRAM", "secret"}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)

	// The existing row is reused; no second "bram" registration happened.
	rows, _ := f.store.Players(context.Background())
	assert.Len(t, rows, 1)
}

func TestLoginWrongPasswordKeepsFixedError(t *testing.T) {
	f := newSessionFixture(t)
	f.store.players = []world.PlayerRow{{Id: 1, Name: "Bram", PasswordHash: mustHash(t, "secret"), RoomId: 1}}

	conn := &fakeConn{lines: []string{"Bram", "nope1"}}
	s := f.session(conn)

	driveUntil(t, s, StateLoginPassword)
	step(s) // prompt + failed verify
	step(s)

	assert.Contains(t, conn.messages(), msgPasswordError)
	assert.Equal(t, StateLoginPassword, s.stack.Top().Current)
}

func TestSecondLoginWhileOnlineIsRejected(t *testing.T) {
	f := newSessionFixture(t)
	f.store.players = []world.PlayerRow{{Id: 1, Name: "Bram", PasswordHash: mustHash(t, "secret"), RoomId: 1}}

	first := f.session(&fakeConn{lines: []string{"Bram", "secret"}})
	driveUntil(t, first, StateInGame)

	conn := &fakeConn{lines: []string{"Bram", "secret"}}
	second := f.session(conn)
	driveUntil(t, second, StateLoginPassword)
	step(second)
	step(second)

	assert.Contains(t, conn.messages(), msgAlreadyOnline)
	assert.Equal(t, StateLoginName, second.stack.Top().Current)
}

func TestBadNameIsRejectedAtPrompt(t *testing.T) {
	f := newSessionFixture(t)
	conn := &fakeConn{lines: []string{"x", "no|pipes", "ok_name", "hunter2", "hunter2"}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)

	assert.Equal(t, 2, strings.Count(conn.messages(), "Names are"))
	rows, _ := f.store.Players(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "ok_name", rows[0].Name)
}

func TestShortPasswordRejectedDuringRegistration(t *testing.T) {
	f := newSessionFixture(t)
	conn := &fakeConn{lines: []string{"alice", "abc", "hunter2", "hunter2"}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)
	assert.Contains(t, conn.messages(), msgBadLength)
}

func TestUpdatePasswordPushedFromInGame(t *testing.T) {
	f := newSessionFixture(t)
	f.store.players = []world.PlayerRow{{Id: 1, Name: "Bram", PasswordHash: mustHash(t, "secret"), RoomId: 1}}

	conn := &fakeConn{lines: []string{
		"Bram", "secret", // log in
		"password",               // push the update-password FSM
		"secret",                 // current password
		"newsecret1", "newsecret1", // new + confirm
	}}
	s := f.session(conn)

	driveUntil(t, s, StateInGame)
	step(s) // reads "password", pushes the secondary FSM
	require.Equal(t, "update_password", s.stack.Top().Name)

	driveUntil(t, s, StateUpdatePasswordConfirm)
	step(s) // confirm matches, hash persists, FSM pops

	assert.Equal(t, "login", s.stack.Top().Name)
	assert.True(t, VerifyPassword("newsecret1", s.playerRow.PasswordHash))
	assert.Contains(t, conn.messages(), "Password updated.")
}

func TestParseCommandCoversVerbsAndAliases(t *testing.T) {
	cases := []struct {
		line string
		kind world.EventKind
	}{
		{"north", world.EventMove},
		{"n", world.EventMove},
		{"look", world.EventLook},
		{"say hello there", world.EventSay},
		{"get lantern", world.EventGet},
		{"drop lantern", world.EventDrop},
		{"whisper bram psst", world.EventWhisper},
		{"inventory", world.EventInventory},
		{"who", world.EventWho},
		{"stats", world.EventStats},
		{"shutdown", world.EventShutdown},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			a, err := parseCommand(1, tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, a.Kind)
		})
	}

	_, err := parseCommand(1, "frobnicate the widget")
	assert.Error(t, err)
}
