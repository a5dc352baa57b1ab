package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/staged/internal/content"
	"github.com/roach88/staged/internal/entity"
)

// Save replaces the stored snapshot with c in a single transaction.
func (s *Store) Save(ctx context.Context, c *content.Content) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"circuit_edges", "cable_edges", "stage_diffs", "entities"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save: clear %s: %w", table, err)
		}
	}

	all := c.All()
	for _, e := range all {
		if err := writeEntity(ctx, tx, e); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}

	circuits := c.Circuit().All()
	for _, edge := range circuits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO circuit_edges (from_id, to_id, from_port, to_port, channel)
			VALUES (?, ?, ?, ?, ?)
		`,
			string(edge.From.ID()),
			string(edge.To.ID()),
			int(edge.FromPort),
			int(edge.ToPort),
			int(edge.Channel),
		)
		if err != nil {
			return fmt.Errorf("save: write circuit edge %s: %w", edge, err)
		}
	}

	cables := c.Cable().All()
	for _, pair := range cables {
		_, err := tx.ExecContext(ctx, `INSERT INTO cable_edges (a_id, b_id) VALUES (?, ?)`,
			string(pair.A.ID()), string(pair.B.ID()))
		if err != nil {
			return fmt.Errorf("save: write cable %s-%s: %w", pair.A.ID(), pair.B.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: commit: %w", err)
	}

	s.logger.Info("content saved",
		"entities", len(all),
		"circuit_edges", len(circuits),
		"cable_edges", len(cables),
	)
	return nil
}

func writeEntity(ctx context.Context, tx *sql.Tx, e *entity.Entity) error {
	base, err := marshalObject(e.Chain().Base())
	if err != nil {
		return fmt.Errorf("write entity %s: %w", e.ID(), err)
	}

	var last sql.NullInt64
	if l, ok := e.LastStage(); ok {
		last = sql.NullInt64{Int64: int64(l), Valid: true}
	}

	pos := e.Position()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities
		(id, x, y, direction, first_stage, last_stage, base_value, lost_reference, settings_remnant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(e.ID()),
		pos.X,
		pos.Y,
		int(e.Direction()),
		int(e.FirstStage()),
		last,
		base,
		boolToInt(e.IsLostReference()),
		boolToInt(e.IsSettingsRemnant()),
	)
	if err != nil {
		return fmt.Errorf("write entity %s: %w", e.ID(), err)
	}

	for _, d := range e.Chain().Diffs() {
		patch, err := marshalPatch(d.Patch)
		if err != nil {
			return fmt.Errorf("write entity %s stage %d: %w", e.ID(), d.Stage, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO stage_diffs (entity_id, stage, patch) VALUES (?, ?, ?)`,
			string(e.ID()), int(d.Stage), patch)
		if err != nil {
			return fmt.Errorf("write entity %s stage %d: %w", e.ID(), d.Stage, err)
		}
	}
	return nil
}
