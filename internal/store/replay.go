package store

import (
	"context"
	"fmt"

	"github.com/Ameobea/noise-asmjs/internal/backend"
	"github.com/Ameobea/noise-asmjs/internal/ir"
)

// Mismatch is a replayed op whose status differs from the journal.
type Mismatch struct {
	Seq      int64     `json:"seq"`
	Position int       `json:"position"`
	Kind     ir.OpKind `json:"kind"`
	Want     int       `json:"want"`
	Got      int       `json:"got"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Commits     int        `json:"commits"`
	Ops         int        `json:"ops"`
	LastSeq     int64      `json:"last_seq"`
	Fingerprint string     `json:"fingerprint"`
	Mismatches  []Mismatch `json:"mismatches"`
}

// OK reports whether every op reproduced its journaled status.
func (r ReplayResult) OK() bool { return len(r.Mismatches) == 0 }

// Replay re-issues the journaled ops of commits with seq >= from against b,
// in order. Ops the backend answers differently than it did originally are
// reported as mismatches; replay continues past them.
//
// Fingerprint is the store fingerprint journaled with the last commit.
func (s *Store) Replay(ctx context.Context, b backend.Backend, from int64) (ReplayResult, error) {
	commits, err := s.ReadCommits(ctx, from)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{Mismatches: []Mismatch{}}
	for _, c := range commits {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("replay: %w", err)
		}
		for pos, op := range c.Ops {
			got := backend.Apply(b, op)
			result.Ops++
			if got != op.Status {
				result.Mismatches = append(result.Mismatches, Mismatch{
					Seq: c.Seq, Position: pos, Kind: op.Kind, Want: op.Status, Got: got,
				})
			}
		}
		result.Commits++
		result.LastSeq = c.Seq
		result.Fingerprint = c.Fingerprint
	}
	return result, nil
}
