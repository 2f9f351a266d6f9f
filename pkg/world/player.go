package world

import "github.com/remud/remud/pkg/ecs"

// PlayerFlag names a boolean trait attached to a player, independent of
// the general-purpose Flags set used by rooms/objects/prototypes, since a
// closed set of built-in player flags (immortal status chief among them)
// gates core command authorization rather than script-defined behavior.
type PlayerFlag string

const (
	// FlagImmortal grants access to building and admin commands.
	FlagImmortal PlayerFlag = "immortal"
)

// Player is the component attached to every connected or stored player
// entity. PasswordHash holds an Argon2id digest, never the raw password.
type Player struct {
	Id           Id
	Name         string
	PasswordHash string

	Room        ecs.Entity
	Description string

	Flags     map[PlayerFlag]struct{}
	Inventory map[ecs.Entity]struct{}

	Hooks  HookList
	Data   DataMap
	Timers TimerSet
	FSMs   FSMStack

	// Outbox holds lines queued for delivery to the connected session this
	// tick; pkg/messaging drains it during the message-flush pipeline step.
	// It is drained every tick whether or not a session is attached; lines
	// for a player with no live connection are discarded.
	Outbox []string
}

// NewPlayer creates a player instance at room with every collection
// initialized and no flags set.
func NewPlayer(id Id, name string, passwordHash string, room ecs.Entity) *Player {
	return &Player{
		Id:           id,
		Name:         name,
		PasswordHash: passwordHash,
		Room:         room,
		Flags:        make(map[PlayerFlag]struct{}),
		Inventory:    make(map[ecs.Entity]struct{}),
		Data:         make(DataMap),
		Timers:       make(TimerSet),
	}
}

// HasFlag reports whether f is set.
func (p *Player) HasFlag(f PlayerFlag) bool {
	_, ok := p.Flags[f]
	return ok
}

// SetFlag sets f, idempotently.
func (p *Player) SetFlag(f PlayerFlag) {
	p.Flags[f] = struct{}{}
}

// UnsetFlag clears f, idempotently.
func (p *Player) UnsetFlag(f PlayerFlag) {
	delete(p.Flags, f)
}

// Immortal reports whether p holds the immortal flag.
func (p *Player) Immortal() bool {
	return p.HasFlag(FlagImmortal)
}

// Send appends line to the player's outbox for delivery on the next
// message-flush pipeline step.
func (p *Player) Send(line string) {
	p.Outbox = append(p.Outbox, line)
}

// DrainOutbox returns and clears the player's queued output lines.
func (p *Player) DrainOutbox() []string {
	lines := p.Outbox
	p.Outbox = nil
	return lines
}
