package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rs/zerolog"

	"github.com/remud/remud/pkg/log"
	"github.com/remud/remud/pkg/world"
)

// PostgresStore is the production Store implementation, backed by a pgx
// connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresStore opens a pool against dsn, applies any pending
// migrations, and returns a ready Store.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage: postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool, logger: log.WithComponent("storage")}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Config(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, fmt.Errorf("storage: config: %w", err)
	}
	defer rows.Close()

	cfg := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("storage: scan config: %w", err)
		}
		cfg[k] = v
	}
	return cfg, rows.Err()
}

func (s *PostgresStore) Rooms(ctx context.Context) ([]world.RoomRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: rooms: %w", err)
	}
	defer rows.Close()

	var out []world.RoomRow
	for rows.Next() {
		var r world.RoomRow
		if err := rows.Scan(&r.Id, &r.Name, &r.Description); err != nil {
			return nil, fmt.Errorf("storage: scan room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RoomRegions(ctx context.Context) (map[world.Id][]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rr.room_id, r.name
		FROM room_regions rr
		JOIN regions r ON r.id = rr.region_id
		ORDER BY rr.room_id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: room_regions: %w", err)
	}
	defer rows.Close()

	out := make(map[world.Id][]string)
	for rows.Next() {
		var roomID world.Id
		var name string
		if err := rows.Scan(&roomID, &name); err != nil {
			return nil, fmt.Errorf("storage: scan room_region: %w", err)
		}
		out[roomID] = append(out[roomID], name)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Exits(ctx context.Context) ([]world.ExitRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_from, room_to, direction FROM exits`)
	if err != nil {
		return nil, fmt.Errorf("storage: exits: %w", err)
	}
	defer rows.Close()

	var out []world.ExitRow
	for rows.Next() {
		var e world.ExitRow
		var dir string
		if err := rows.Scan(&e.RoomId, &e.ToId, &dir); err != nil {
			return nil, fmt.Errorf("storage: scan exit: %w", err)
		}
		e.Dir = world.Direction(dir)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Prototypes(ctx context.Context) ([]world.PrototypeRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, description, flags, keywords FROM prototypes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: prototypes: %w", err)
	}
	defer rows.Close()

	var out []world.PrototypeRow
	for rows.Next() {
		var p world.PrototypeRow
		if err := rows.Scan(&p.Id, &p.Name, &p.Description, &p.Flags, &p.Keywords); err != nil {
			return nil, fmt.Errorf("storage: scan prototype: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Objects reads every object row as stored. Inheritable columns are not
// resolved against the prototype here (the query applies no COALESCE): a
// NULL column reads back as a nil field, which the Effective* functions in
// pkg/world resolve against the prototype.
func (s *PostgresStore) Objects(ctx context.Context) ([]world.ObjectRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.prototype_id, o.inherit_scripts, o.name, o.description, o.flags, o.keywords
		FROM objects o
		ORDER BY o.id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: objects: %w", err)
	}
	defer rows.Close()

	var out []world.ObjectRow
	for rows.Next() {
		var o world.ObjectRow
		if err := rows.Scan(&o.Id, &o.PrototypeId, &o.InheritScripts, &o.Name, &o.Description, &o.Flags, &o.Keywords); err != nil {
			return nil, fmt.Errorf("storage: scan object: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RoomObjects(ctx context.Context) (map[world.Id][]world.Id, error) {
	rows, err := s.pool.Query(ctx, `SELECT room_id, object_id FROM room_objects ORDER BY room_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: room_objects: %w", err)
	}
	defer rows.Close()

	out := make(map[world.Id][]world.Id)
	for rows.Next() {
		var roomID, objID world.Id
		if err := rows.Scan(&roomID, &objID); err != nil {
			return nil, fmt.Errorf("storage: scan room_object: %w", err)
		}
		out[roomID] = append(out[roomID], objID)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Scripts(ctx context.Context) ([]world.ScriptRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, trigger, code FROM scripts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("storage: scripts: %w", err)
	}
	defer rows.Close()

	var out []world.ScriptRow
	for rows.Next() {
		var sc world.ScriptRow
		var trigger string
		if err := rows.Scan(&sc.Name, &trigger, &sc.Code); err != nil {
			return nil, fmt.Errorf("storage: scan script: %w", err)
		}
		sc.Trigger = parseTrigger(trigger)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Hooks reads all three owner-kind hook tables and tags each row with its
// owning entity's Kind.
func (s *PostgresStore) Hooks(ctx context.Context) ([]world.HookRow, error) {
	var out []world.HookRow
	tables := []struct {
		name string
		kind world.Kind
	}{
		{"room_scripts", world.KindRoom},
		{"prototype_scripts", world.KindPrototype},
		{"object_scripts", world.KindObject},
	}
	for _, t := range tables {
		rows, err := s.pool.Query(ctx, fmt.Sprintf(`SELECT owner_id, script, trigger FROM %s`, t.name))
		if err != nil {
			return nil, fmt.Errorf("storage: %s: %w", t.name, err)
		}
		for rows.Next() {
			var h world.HookRow
			var trigger string
			if err := rows.Scan(&h.EntityId, &h.Script, &trigger); err != nil {
				rows.Close()
				return nil, fmt.Errorf("storage: scan %s: %w", t.name, err)
			}
			h.EntityKind = t.kind
			h.Trigger = parseTrigger(trigger)
			out = append(out, h)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("storage: %s rows: %w", t.name, err)
		}
	}
	return out, nil
}

func (s *PostgresStore) Players(ctx context.Context) ([]world.PlayerRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, username, password, room, description, flags FROM players ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: players: %w", err)
	}
	defer rows.Close()

	var out []world.PlayerRow
	for rows.Next() {
		var p world.PlayerRow
		if err := rows.Scan(&p.Id, &p.Name, &p.PasswordHash, &p.RoomId, &p.Description, &p.Flags); err != nil {
			return nil, fmt.Errorf("storage: scan player: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PlayerByUsername looks up one player row, folding case on both sides:
// names are case-insensitively unique (enforced by the players_username_folded
// index), so "Alice" at the login prompt finds the row stored as "alice".
func (s *PostgresStore) PlayerByUsername(ctx context.Context, username string) (*world.PlayerRow, error) {
	var p world.PlayerRow
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password, room, description, flags
		FROM players WHERE LOWER(username) = LOWER($1)
	`, username).Scan(&p.Id, &p.Name, &p.PasswordHash, &p.RoomId, &p.Description, &p.Flags)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: player by username: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) PlayerObjects(ctx context.Context, playerID world.Id) ([]world.Id, error) {
	rows, err := s.pool.Query(ctx, `SELECT object_id FROM player_objects WHERE player_id = $1 ORDER BY object_id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("storage: player_objects: %w", err)
	}
	defer rows.Close()

	var out []world.Id
	for rows.Next() {
		var objID world.Id
		if err := rows.Scan(&objID); err != nil {
			return nil, fmt.Errorf("storage: scan player_object: %w", err)
		}
		out = append(out, objID)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PlayerHooks(ctx context.Context, playerID world.Id) ([]world.HookRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT script, trigger FROM player_scripts WHERE owner_id = $1`, playerID)
	if err != nil {
		return nil, fmt.Errorf("storage: player_scripts: %w", err)
	}
	defer rows.Close()

	var out []world.HookRow
	for rows.Next() {
		var h world.HookRow
		var trigger string
		if err := rows.Scan(&h.Script, &trigger); err != nil {
			return nil, fmt.Errorf("storage: scan player_script: %w", err)
		}
		h.EntityId = playerID
		h.EntityKind = world.KindPlayer
		h.Trigger = parseTrigger(trigger)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ApplyGroup runs every update in one transaction, but wraps each member
// in its own SAVEPOINT: once a Postgres statement errors, the enclosing
// transaction is aborted and every subsequent statement (including the
// final COMMIT) fails with it, so a plain per-group transaction would
// silently roll back every sibling update behind a single bad one. The
// SAVEPOINT gives each Update its own rollback boundary: a failing
// member is rolled back to its savepoint and logged, a clean one is
// released and its effect survives the group's eventual COMMIT, matching
// UpdateGroup's independently-failing guarantee (pkg/world/update.go).
func (s *PostgresStore) ApplyGroup(ctx context.Context, g world.UpdateGroup) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin update group: %w", err)
	}
	defer tx.Rollback(ctx)

	var firstErr error
	for i, u := range g.Updates {
		savepoint := fmt.Sprintf("update_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return fmt.Errorf("storage: savepoint %s: %w", savepoint, err)
		}
		if err := applyUpdate(ctx, tx, u); err != nil {
			s.logger.Error().Err(err).Str("op", string(u.Op)).Msg("storage: update failed, skipping")
			if firstErr == nil {
				firstErr = err
			}
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return fmt.Errorf("storage: rollback to savepoint %s: %w", savepoint, rbErr)
			}
			continue
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return fmt.Errorf("storage: release savepoint %s: %w", savepoint, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit update group: %w", err)
	}
	return firstErr
}

func parseTrigger(s string) world.Trigger {
	var t world.Trigger
	switch {
	case s == "init":
		t.Class = world.TriggerInit
	case len(s) > 5 && s[:4] == "pre:":
		t.Class = world.TriggerPre
		t.Event = world.EventKind(s[4:])
	case len(s) > 6 && s[:5] == "post:":
		t.Class = world.TriggerPost
		t.Event = world.EventKind(s[5:])
	case len(s) > 6 && s[:6] == "timer:":
		t.Class = world.TriggerTimer
		t.TimerName = s[6:]
	}
	return t
}

func formatTrigger(t world.Trigger) string {
	switch t.Class {
	case world.TriggerInit:
		return "init"
	case world.TriggerPre:
		return "pre:" + string(t.Event)
	case world.TriggerPost:
		return "post:" + string(t.Event)
	case world.TriggerTimer:
		return "timer:" + t.TimerName
	default:
		return ""
	}
}
