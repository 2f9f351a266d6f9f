package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/remud/remud/pkg/world"
)

// applyUpdate executes a single Update inside tx, dispatching on Op.
func applyUpdate(ctx context.Context, tx pgx.Tx, u world.Update) error {
	switch u.Op {
	case world.OpUpsertRoom:
		var row world.RoomRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (id, name, description) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description
		`, row.Id, row.Name, row.Description)
		return err

	case world.OpDeleteRoom:
		var row world.RoomRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, row.Id)
		return err

	case world.OpUpsertExit:
		var row world.ExitRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO exits (room_from, room_to, direction) VALUES ($1, $2, $3)
			ON CONFLICT (room_from, direction) DO UPDATE SET room_to = EXCLUDED.room_to
		`, row.RoomId, row.ToId, string(row.Dir))
		return err

	case world.OpDeleteExit:
		var row world.ExitRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM exits WHERE room_from = $1 AND direction = $2`, row.RoomId, string(row.Dir))
		return err

	case world.OpUpsertRoomRegion:
		var row world.RoomRegionRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO regions (id, name) VALUES (hashtext($1), $1)
			ON CONFLICT (id) DO NOTHING
		`, row.Region)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO room_regions (room_id, region_id)
			SELECT $1, id FROM regions WHERE name = $2
			ON CONFLICT DO NOTHING
		`, row.RoomId, row.Region)
		return err

	case world.OpDeleteRoomRegion:
		var row world.RoomRegionRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			DELETE FROM room_regions WHERE room_id = $1
			AND region_id = (SELECT id FROM regions WHERE name = $2)
		`, row.RoomId, row.Region)
		return err

	case world.OpUpsertPrototype:
		var row world.PrototypeRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO prototypes (id, name, description, flags, keywords) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
				flags = EXCLUDED.flags, keywords = EXCLUDED.keywords
		`, row.Id, row.Name, row.Description, row.Flags, row.Keywords)
		return err

	case world.OpDeletePrototype:
		var row world.PrototypeRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM prototypes WHERE id = $1`, row.Id)
		return err

	case world.OpUpsertObject:
		var row world.ObjectRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO objects (id, prototype_id, inherit_scripts, name, description, flags, keywords)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET prototype_id = EXCLUDED.prototype_id,
				inherit_scripts = EXCLUDED.inherit_scripts, name = EXCLUDED.name,
				description = EXCLUDED.description, flags = EXCLUDED.flags, keywords = EXCLUDED.keywords
		`, row.Id, row.PrototypeId, row.InheritScripts, row.Name, row.Description, row.Flags, row.Keywords)
		if err != nil {
			return err
		}
		switch row.ContainerKind {
		case "room":
			_, err = tx.Exec(ctx, `DELETE FROM room_objects WHERE object_id = $1`, row.Id)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO room_objects (room_id, object_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, row.ContainerId, row.Id)
		}
		return err

	case world.OpDeleteObject:
		var row world.ObjectRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM objects WHERE id = $1`, row.Id)
		return err

	case world.OpUpsertPlayer:
		var row world.PlayerRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO players (id, username, password, room, description, flags)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, password = EXCLUDED.password,
				room = EXCLUDED.room, description = EXCLUDED.description, flags = EXCLUDED.flags
		`, row.Id, row.Name, row.PasswordHash, row.RoomId, row.Description, row.Flags)
		return err

	case world.OpUpsertScript:
		var row world.ScriptRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO scripts (name, trigger, code) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET trigger = EXCLUDED.trigger, code = EXCLUDED.code
		`, row.Name, formatTrigger(row.Trigger), row.Code)
		return err

	case world.OpDeleteScript:
		var row world.ScriptRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM scripts WHERE name = $1`, row.Name)
		return err

	case world.OpUpsertHook:
		var row world.HookRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		table, err := hookTable(row.EntityKind)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (owner_id, script, trigger) VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, table), row.EntityId, row.Script, formatTrigger(row.Trigger))
		return err

	case world.OpDeleteHook:
		var row world.HookRow
		if err := json.Unmarshal(u.Data, &row); err != nil {
			return err
		}
		table, err := hookTable(row.EntityKind)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE owner_id = $1 AND script = $2 AND trigger = $3
		`, table), row.EntityId, row.Script, formatTrigger(row.Trigger))
		return err

	default:
		return fmt.Errorf("storage: unknown update op %q", u.Op)
	}
}

func hookTable(kind world.Kind) (string, error) {
	switch kind {
	case world.KindRoom:
		return "room_scripts", nil
	case world.KindPrototype:
		return "prototype_scripts", nil
	case world.KindObject:
		return "object_scripts", nil
	default:
		return "", fmt.Errorf("storage: hooks not supported for entity kind %s", kind)
	}
}
