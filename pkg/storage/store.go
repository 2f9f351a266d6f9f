package storage

import (
	"context"
	"errors"

	"github.com/remud/remud/pkg/world"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("storage: not found")

// Store is the full relational contract the world loader and durable
// writer depend on. PostgresStore is the only production implementation;
// pkg/engine depends on this interface, not on PostgresStore directly, so
// tests can supply an in-memory fake.
type Store interface {
	// Config returns every config(key,value) row as a map.
	Config(ctx context.Context) (map[string]string, error)

	Rooms(ctx context.Context) ([]world.RoomRow, error)
	RoomRegions(ctx context.Context) (map[world.Id][]string, error)
	Exits(ctx context.Context) ([]world.ExitRow, error)

	Prototypes(ctx context.Context) ([]world.PrototypeRow, error)
	Objects(ctx context.Context) ([]world.ObjectRow, error)
	RoomObjects(ctx context.Context) (map[world.Id][]world.Id, error)

	Scripts(ctx context.Context) ([]world.ScriptRow, error)
	Hooks(ctx context.Context) ([]world.HookRow, error)

	Players(ctx context.Context) ([]world.PlayerRow, error)
	PlayerByUsername(ctx context.Context, username string) (*world.PlayerRow, error)

	// PlayerObjects returns the object ids carried in playerID's inventory.
	PlayerObjects(ctx context.Context, playerID world.Id) ([]world.Id, error)
	// PlayerHooks returns the hooks attached directly to playerID (a
	// player's own script surface, separate from its inventory objects'
	// hooks, which ride with those objects' own rows).
	PlayerHooks(ctx context.Context, playerID world.Id) ([]world.HookRow, error)

	// ApplyGroup persists every Update in g inside one transaction, but
	// logs and continues past an individual Update's failure rather than
	// rolling the whole group back; it returns the first error
	// encountered, if any, after attempting every member.
	ApplyGroup(ctx context.Context, g world.UpdateGroup) error

	Close() error
}

// AdminScripts is the script CRUD contract an out-of-scope external admin
// surface would call into; it is exposed here as a plain Go interface
// rather than wired to any transport this module owns.
type AdminScripts interface {
	CreateScript(ctx context.Context, row world.ScriptRow) error
	UpdateScript(ctx context.Context, row world.ScriptRow) error
	DeleteScript(ctx context.Context, name string) error
	GetScript(ctx context.Context, name string) (*world.ScriptRow, error)
	ListScripts(ctx context.Context) ([]world.ScriptRow, error)
}
