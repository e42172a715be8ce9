package store

import (
	"context"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// AppendCommit journals a commit and its ops in one transaction.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a commit whose seq is
// already journaled is silently ignored along with its ops.
func (s *Store) AppendCommit(ctx context.Context, c ir.Commit) error {
	newIDs, err := marshalIDs(c.New)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}
	updatedIDs, err := marshalIDs(c.Updated)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}
	deletedIDs, err := marshalIDs(c.Deleted)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append commit %d: begin tx: %w", c.Seq, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO commits
		(seq, fingerprint, failed, collected, new_ids, updated_ids, deleted_ids, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		c.Seq,
		c.Fingerprint,
		c.Failed,
		c.Collected,
		newIDs,
		updatedIDs,
		deletedIDs,
		ir.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("append commit %d: %w", c.Seq, err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append commit %d: rows affected: %w", c.Seq, err)
	}
	if inserted == 0 {
		return nil
	}

	for pos, op := range c.Ops {
		coords, err := marshalCoords(op.Coords)
		if err != nil {
			return fmt.Errorf("append commit %d op %d: %w", c.Seq, pos, err)
		}
		var definition any
		if len(op.Definition) > 0 {
			definition = string(op.Definition)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO commit_ops
			(seq, position, kind, node_id, coords, idx, transformation_index, definition, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			c.Seq,
			pos,
			string(op.Kind),
			string(op.NodeID),
			coords,
			op.Index,
			op.TransformationIndex,
			definition,
			op.Status,
		)
		if err != nil {
			return fmt.Errorf("append commit %d op %d: %w", c.Seq, pos, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append commit %d: commit tx: %w", c.Seq, err)
	}
	return nil
}

// SaveComposition stores def under name, replacing any composition with
// that name. seq records the commit the composition was taken at. It
// returns the definition's content hash.
func (s *Store) SaveComposition(ctx context.Context, name string, def ir.NodeDef, seq int64) (string, error) {
	if name == "" {
		return "", fmt.Errorf("save composition: empty name")
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return "", fmt.Errorf("save composition %q: %w", name, err)
	}
	data, err := marshalDefinition(def)
	if err != nil {
		return "", fmt.Errorf("save composition %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compositions (name, definition, hash, nodes, definition_version, saved_seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			definition = excluded.definition,
			hash = excluded.hash,
			nodes = excluded.nodes,
			definition_version = excluded.definition_version,
			saved_seq = excluded.saved_seq
	`, name, data, hash, def.Count(), ir.DefinitionVersion, seq)
	if err != nil {
		return "", fmt.Errorf("save composition %q: %w", name, err)
	}
	return hash, nil
}

// DeleteComposition removes the composition named name.
// Returns ErrNotFound if there is none.
func (s *Store) DeleteComposition(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM compositions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete composition %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete composition %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete composition %q: %w", name, ErrNotFound)
	}
	return nil
}
