package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/ir"
	"github.com/Ameobea/noise-asmjs/internal/queryir"
	"github.com/Ameobea/noise-asmjs/internal/querysql"
)

// OpRecord is a journaled op with its place in the journal.
type OpRecord struct {
	Seq      int64 `json:"seq"`
	Position int   `json:"position"`
	Op       ir.Op `json:"op"`
}

// QueryOps returns the journaled ops matching q, ordered by seq, then by
// position within the commit.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) QueryOps(ctx context.Context, q queryir.Query) ([]OpRecord, error) {
	query, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query commit ops: %w", err)
	}
	defer rows.Close()

	out := []OpRecord{}
	for rows.Next() {
		r, err := scanOp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit ops: %w", err)
	}
	return out, nil
}

// scanOp reads one row selected with querysql.Columns.
func scanOp(rows *sql.Rows) (OpRecord, error) {
	var (
		r          OpRecord
		kind       string
		nodeID     string
		coords     string
		definition sql.NullString
	)
	err := rows.Scan(&r.Seq, &r.Position, &kind, &nodeID, &coords,
		&r.Op.Index, &r.Op.TransformationIndex, &definition, &r.Op.Status)
	if err != nil {
		return OpRecord{}, fmt.Errorf("scan commit op: %w", err)
	}
	r.Op.Kind = ir.OpKind(kind)
	r.Op.NodeID = ir.NodeID(nodeID)
	if r.Op.Coords, err = unmarshalCoords(coords); err != nil {
		return OpRecord{}, fmt.Errorf("commit %d op %d: %w", r.Seq, r.Position, err)
	}
	if definition.Valid {
		r.Op.Definition = json.RawMessage(definition.String)
	}
	return r, nil
}
