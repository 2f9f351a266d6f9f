package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/remud/remud/pkg/world"
)

// PostgresStore also satisfies AdminScripts directly against the pool,
// bypassing the Update/UpdateGroup queue: script CRUD is an
// administrative action, not simulation-produced state, so it writes
// synchronously rather than joining the async durable-write path.
var _ AdminScripts = (*PostgresStore)(nil)

func (s *PostgresStore) CreateScript(ctx context.Context, row world.ScriptRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scripts (name, trigger, code) VALUES ($1, $2, $3)
	`, row.Name, formatTrigger(row.Trigger), row.Code)
	if err != nil {
		return fmt.Errorf("storage: create script: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateScript(ctx context.Context, row world.ScriptRow) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE scripts SET trigger = $2, code = $3 WHERE name = $1
	`, row.Name, formatTrigger(row.Trigger), row.Code)
	if err != nil {
		return fmt.Errorf("storage: update script: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteScript(ctx context.Context, name string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM scripts WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("storage: delete script: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetScript(ctx context.Context, name string) (*world.ScriptRow, error) {
	var row world.ScriptRow
	var trigger string
	err := s.pool.QueryRow(ctx, `SELECT name, trigger, code FROM scripts WHERE name = $1`, name).
		Scan(&row.Name, &trigger, &row.Code)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get script: %w", err)
	}
	row.Trigger = parseTrigger(trigger)
	return &row, nil
}

func (s *PostgresStore) ListScripts(ctx context.Context) ([]world.ScriptRow, error) {
	return s.Scripts(ctx)
}
