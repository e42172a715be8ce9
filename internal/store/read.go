package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/queryir"
)

// CompositionInfo describes a saved composition without its definition.
type CompositionInfo struct {
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	Nodes    int    `json:"nodes"`
	SavedSeq int64  `json:"saved_seq"`
}

// ReadCommits returns the journaled commits with seq >= from, ordered by
// seq, each with its ops in dispatch order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadCommits(ctx context.Context, from int64) ([]ir.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, fingerprint, failed, collected, new_ids, updated_ids, deleted_ids
		FROM commits
		WHERE seq >= ?
		ORDER BY seq ASC
	`, from)
	if err != nil {
		return nil, fmt.Errorf("query commits: %w", err)
	}
	defer rows.Close()

	commits := []ir.Commit{}
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	rows.Close()

	ops, err := s.readOps(ctx, from)
	if err != nil {
		return nil, err
	}
	for i := range commits {
		commits[i].Ops = ops[commits[i].Seq]
	}
	return commits, nil
}

func scanCommit(rows *sql.Rows) (ir.Commit, error) {
	var c ir.Commit
	var newIDs, updatedIDs, deletedIDs string
	if err := rows.Scan(&c.Seq, &c.Fingerprint, &c.Failed, &c.Collected, &newIDs, &updatedIDs, &deletedIDs); err != nil {
		return ir.Commit{}, fmt.Errorf("scan commit: %w", err)
	}
	var err error
	if c.New, err = unmarshalIDs(newIDs); err != nil {
		return ir.Commit{}, fmt.Errorf("commit %d: %w", c.Seq, err)
	}
	if c.Updated, err = unmarshalIDs(updatedIDs); err != nil {
		return ir.Commit{}, fmt.Errorf("commit %d: %w", c.Seq, err)
	}
	if c.Deleted, err = unmarshalIDs(deletedIDs); err != nil {
		return ir.Commit{}, fmt.Errorf("commit %d: %w", c.Seq, err)
	}
	return c, nil
}

// readOps returns the ops of commits with seq >= from, grouped by seq.
func (s *Store) readOps(ctx context.Context, from int64) (map[int64][]ir.Op, error) {
	records, err := s.QueryOps(ctx, queryir.Query{Filter: queryir.FromSeq(from)})
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]ir.Op)
	for _, r := range records {
		out[r.Seq] = append(out[r.Seq], r.Op)
	}
	return out, nil
}

// LoadComposition returns the composition saved under name.
// Returns ErrNotFound if there is none.
func (s *Store) LoadComposition(ctx context.Context, name string) (ir.NodeDef, CompositionInfo, error) {
	var data string
	info := CompositionInfo{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT definition, hash, nodes, saved_seq
		FROM compositions
		WHERE name = ?
	`, name).Scan(&data, &info.Hash, &info.Nodes, &info.SavedSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.NodeDef{}, CompositionInfo{}, fmt.Errorf("load composition %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return ir.NodeDef{}, CompositionInfo{}, fmt.Errorf("load composition %q: %w", name, err)
	}

	def, err := ir.ParseNodeDef([]byte(data))
	if err != nil {
		return ir.NodeDef{}, CompositionInfo{}, fmt.Errorf("load composition %q: %w", name, err)
	}
	hash, err := ir.DefinitionHash(def)
	if err != nil {
		return ir.NodeDef{}, CompositionInfo{}, fmt.Errorf("load composition %q: %w", name, err)
	}
	if hash != info.Hash {
		return ir.NodeDef{}, CompositionInfo{}, fmt.Errorf("load composition %q: stored hash %s does not match content %s", name, info.Hash, hash)
	}
	return def, info, nil
}

// ListCompositions returns every saved composition ordered by name.
func (s *Store) ListCompositions(ctx context.Context) ([]CompositionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, hash, nodes, saved_seq
		FROM compositions
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query compositions: %w", err)
	}
	defer rows.Close()

	out := []CompositionInfo{}
	for rows.Next() {
		var info CompositionInfo
		if err := rows.Scan(&info.Name, &info.Hash, &info.Nodes, &info.SavedSeq); err != nil {
			return nil, fmt.Errorf("scan composition: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compositions: %w", err)
	}
	return out, nil
}
