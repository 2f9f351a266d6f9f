package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/remud/remud/pkg/action"
	"github.com/remud/remud/pkg/ecs"
	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/messaging"
	"github.com/remud/remud/pkg/metrics"
	"github.com/remud/remud/pkg/storage"
	"github.com/remud/remud/pkg/world"
)

// Session drives one connection's login/registration/in-game pushdown
// FSM. It owns the FSM stack; it reaches into the live World
// only through the handles a successful login resolves, never before.
type Session struct {
	conn     Transport
	store    storage.Store
	w        *storage.World
	pipeline *action.Pipeline
	bus      *messaging.Bus
	limiter  *rate.Limiter

	stack world.FSMStack

	// logger is a per-connection child logger (pkg/log.WithConnID), so every
	// line this session emits can be correlated back to one connection
	// without threading a connection id through every call site by hand.
	logger zerolog.Logger

	username        string
	pendingPassword string
	attempts        int

	playerEntity ecs.Entity
	playerRow    *world.PlayerRow

	disconnected bool
}

// New builds a Session ready to Run over conn, against the hydrated world
// w and its pipeline/message bus. Each session is assigned a fresh
// connection id for log correlation; remote addresses repeat across
// reconnects, so the transport's peer address only rides along as its own
// field when the Transport exposes one.
func New(conn Transport, store storage.Store, w *storage.World, pipeline *action.Pipeline, bus *messaging.Bus) *Session {
	logger := log.WithConnID(uuid.NewString())
	if addr, ok := conn.(interface{ RemoteAddr() string }); ok {
		logger = logger.With().Str("remote_addr", addr.RemoteAddr()).Logger()
	}
	return &Session{
		conn:     conn,
		store:    store,
		w:        w,
		pipeline: pipeline,
		bus:      bus,
		limiter:  newAttemptLimiter(),
		logger:   logger,
	}
}

// Run drives the FSM stack until the connection closes or the player
// quits. It always pushes the primary login FSM first.
func (s *Session) Run(ctx context.Context) {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	defer s.teardown()

	s.stack.Push(s.buildLoginFSM())
	s.enterTop()

	for {
		if ctx.Err() != nil || s.disconnected {
			return
		}
		top := s.stack.Top()
		if top == nil {
			return
		}
		result := top.Step()
		switch result.Kind {
		case world.TransitionPush:
			s.logger.Debug().
				Str("from_fsm", top.Name).
				Str("to_fsm", result.Push.Name).
				Msg("session: fsm push")
			s.stack.Push(result.Push)
			s.enterTop()
		case world.TransitionPop:
			s.logger.Debug().
				Str("from_fsm", top.Name).
				Msg("session: fsm pop")
			s.stack.Pop()
			if s.stack.Top() == nil {
				return
			}
		}
	}
}

// enterTop runs the newly-active FSM's current state's OnEnter, mirroring
// world.FSM.Step's own TransitionTo handling for the initial push.
func (s *Session) enterTop() {
	top := s.stack.Top()
	if top == nil {
		return
	}
	if st, ok := top.States[top.Current]; ok && st.OnEnter != nil {
		st.OnEnter()
	}
}

func (s *Session) teardown() {
	if s.playerEntity != 0 {
		s.bus.Detach(s.playerEntity)
		if s.pipeline != nil {
			s.pipeline.DespawnPlayer(s.playerEntity)
		}
		if s.playerRow != nil {
			delete(s.w.PlayerByID, s.playerRow.Id)
		}
	}
	s.conn.Close()
}

func (s *Session) send(text string) {
	_ = s.conn.Deliver([]messaging.Output{messaging.Message(text)})
}

func (s *Session) prompt(format string, sensitive bool) {
	_ = s.conn.Deliver([]messaging.Output{messaging.Prompt(format, sensitive)})
}

func (s *Session) readLine() (string, bool) {
	line, err := s.conn.ReadLine()
	if err != nil {
		s.disconnected = true
		return "", false
	}
	return line, true
}

// buildLoginFSM assembles the nine-state primary login FSM.
// Registration threads through the same machine as login: an unknown name
// goes straight to CreatePassword, a verified password pair reaches
// CreateNewPlayer (which persists the row), and both paths converge on
// SpawnPlayer.
func (s *Session) buildLoginFSM() *world.FSM {
	b := world.NewFSMBuilder("login", StateNotConnected)

	b.AddState(&world.State{
		Id: StateNotConnected,
		Decide: func() world.TransitionResult {
			// Run is only started once the transport is accepted, which is
			// this machine's Ready signal.
			return world.TransitionResult{Kind: world.TransitionTo, To: StateConnectionReady}
		},
	})

	b.AddState(&world.State{
		Id: StateConnectionReady,
		Act: func() {
			s.send(msgWelcome)
		},
		Decide: func() world.TransitionResult {
			return world.TransitionResult{Kind: world.TransitionTo, To: StateLoginName}
		},
	})

	b.AddState(&world.State{
		Id: StateLoginName,
		Act: func() {
			s.prompt("Name: ", false)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			name := strings.TrimSpace(line)
			if !ValidateName(name) {
				s.send(msgBadName)
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.username = name
			row, err := s.store.PlayerByUsername(context.Background(), name)
			if err != nil {
				if err != storage.ErrNotFound {
					s.logger.Warn().Err(err).Msg("session: lookup failed")
				}
				return world.TransitionResult{Kind: world.TransitionTo, To: StateCreatePassword}
			}
			s.playerRow = row
			return world.TransitionResult{Kind: world.TransitionTo, To: StateLoginPassword}
		},
	})

	b.AddState(&world.State{
		Id: StateLoginPassword,
		Act: func() {
			s.prompt("Password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			if !s.limiter.Allow() {
				s.send(msgTooManyTries)
				s.disconnected = true
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			if s.isOnline(s.playerRow.Id) {
				s.send(msgAlreadyOnline)
				return world.TransitionResult{Kind: world.TransitionTo, To: StateLoginName}
			}
			if !VerifyPassword(line, s.playerRow.PasswordHash) {
				s.attempts++
				metrics.LoginFailuresTotal.Inc()
				s.send(msgPasswordError)
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			return world.TransitionResult{Kind: world.TransitionTo, To: StateSpawnPlayer}
		},
	})

	b.AddState(&world.State{
		Id: StateCreatePassword,
		Act: func() {
			s.prompt("Choose a password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			if !ValidatePasswordLength(line) {
				s.send(msgBadLength)
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.pendingPassword = line
			return world.TransitionResult{Kind: world.TransitionTo, To: StateVerifyPassword}
		},
	})

	b.AddState(&world.State{
		Id: StateVerifyPassword,
		Act: func() {
			s.prompt("Confirm password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			if line != s.pendingPassword {
				s.send(msgMismatch)
				s.pendingPassword = ""
				return world.TransitionResult{Kind: world.TransitionTo, To: StateCreatePassword}
			}
			return world.TransitionResult{Kind: world.TransitionTo, To: StateCreateNewPlayer}
		},
	})

	b.AddState(&world.State{
		Id: StateCreateNewPlayer,
		Decide: func() world.TransitionResult {
			hash, err := HashPassword(s.pendingPassword)
			s.pendingPassword = ""
			if err != nil {
				s.logger.Error().Err(err).Msg("session: hash password")
				s.disconnected = true
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			row, err := s.createPlayer(context.Background(), s.username, hash)
			if err != nil {
				s.logger.Error().Err(err).Msg("session: create player")
				s.disconnected = true
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.playerRow = row
			return world.TransitionResult{Kind: world.TransitionTo, To: StateSpawnPlayer}
		},
	})

	b.AddState(&world.State{
		Id: StateSpawnPlayer,
		Decide: func() world.TransitionResult {
			entity, err := storage.LoadPlayer(context.Background(), s.store, s.w, s.playerRow.Name)
			if err != nil {
				s.logger.Error().Err(err).Msg("session: load player")
				s.disconnected = true
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.playerEntity = entity
			s.bus.Attach(entity, s.conn)
			if s.pipeline != nil {
				s.pipeline.Submit(action.Action{Actor: entity, Kind: world.EventLogin})
				s.pipeline.Submit(action.Action{Actor: entity, Kind: world.EventLook})
				s.pipeline.RunInitScripts(context.Background(), storage.PlayerInitHooks(s.w, entity))
			}
			return world.TransitionResult{Kind: world.TransitionTo, To: StateInGame}
		},
	})

	b.AddState(&world.State{
		Id: StateInGame,
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			trimmed := strings.TrimSpace(line)
			switch strings.ToLower(trimmed) {
			case "quit":
				s.send("Goodbye.")
				s.disconnected = true
				return world.TransitionResult{Kind: world.TransitionNone}
			case "password":
				return world.TransitionResult{Kind: world.TransitionPush, Push: s.buildUpdatePasswordFSM()}
			}
			act, err := parseCommand(s.playerEntity, trimmed)
			if err != nil {
				s.send("|red|Unrecognized command.|-|")
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.pipeline.Submit(act)
			return world.TransitionResult{Kind: world.TransitionNone}
		},
	})

	return b.Build()
}

// buildUpdatePasswordFSM assembles the secondary stackable FSM pushed
// from StateInGame.
func (s *Session) buildUpdatePasswordFSM() *world.FSM {
	b := world.NewFSMBuilder("update_password", StateUpdatePasswordOld)
	var newHash string

	b.AddState(&world.State{
		Id: StateUpdatePasswordOld,
		Act: func() {
			s.prompt("Current password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionPop}
			}
			if !VerifyPassword(line, s.playerRow.PasswordHash) {
				s.send(msgPasswordError)
				return world.TransitionResult{Kind: world.TransitionPop}
			}
			return world.TransitionResult{Kind: world.TransitionTo, To: StateUpdatePasswordNew}
		},
	})

	b.AddState(&world.State{
		Id: StateUpdatePasswordNew,
		Act: func() {
			s.prompt("New password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionPop}
			}
			if !ValidatePasswordLength(line) {
				s.send(msgBadLength)
				return world.TransitionResult{Kind: world.TransitionNone}
			}
			s.pendingPassword = line
			return world.TransitionResult{Kind: world.TransitionTo, To: StateUpdatePasswordConfirm}
		},
	})

	b.AddState(&world.State{
		Id: StateUpdatePasswordConfirm,
		Act: func() {
			s.prompt("Confirm new password: ", true)
		},
		Decide: func() world.TransitionResult {
			line, ok := s.readLine()
			if !ok {
				return world.TransitionResult{Kind: world.TransitionPop}
			}
			if line != s.pendingPassword {
				s.send(msgMismatch)
				s.pendingPassword = ""
				return world.TransitionResult{Kind: world.TransitionTo, To: StateUpdatePasswordNew}
			}
			hash, err := HashPassword(s.pendingPassword)
			s.pendingPassword = ""
			if err != nil {
				s.logger.Error().Err(err).Msg("session: hash new password")
				return world.TransitionResult{Kind: world.TransitionPop}
			}
			newHash = hash
			s.playerRow.PasswordHash = newHash
			s.pipeline.QueueUpdate(world.OpUpsertPlayer, world.PlayerRow{
				Id: s.playerRow.Id, Name: s.playerRow.Name, PasswordHash: newHash,
				RoomId: s.playerRow.RoomId, Description: s.playerRow.Description, Flags: s.playerRow.Flags,
			})
			s.send("Password updated.")
			return world.TransitionResult{Kind: world.TransitionPop}
		},
	})

	return b.Build()
}

// isOnline reports whether id already has a live, attached connection.
func (s *Session) isOnline(id world.Id) bool {
	entity, ok := s.w.PlayerByID[id]
	if !ok {
		return false
	}
	return s.bus.Attached(entity)
}

// createPlayer allocates a fresh player row in the spawn room and persists
// it; player 1 is immortal by default. It does not hydrate the player into
// the live world: StateSpawnPlayer's LoadPlayer call does that.
func (s *Session) createPlayer(ctx context.Context, username, passwordHash string) (*world.PlayerRow, error) {
	id := s.w.IdAlloc.Next(world.KindPlayer)
	spawnRoom, ok := s.w.Rooms.Get(s.w.SpawnRoom)
	if !ok {
		return nil, fmt.Errorf("session: spawn room missing")
	}
	row := world.PlayerRow{Id: id, Name: username, PasswordHash: passwordHash, RoomId: spawnRoom.Id}
	if id == 1 {
		row.Flags = []string{string(world.FlagImmortal)}
	}
	if err := s.store.ApplyGroup(ctx, world.UpdateGroup{Updates: []world.Update{world.NewUpdate(world.OpUpsertPlayer, row)}}); err != nil {
		return nil, fmt.Errorf("session: persist new player: %w", err)
	}
	return &row, nil
}
