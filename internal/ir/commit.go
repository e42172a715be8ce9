package ir

// Commit is one journaled commit: the ops sent to the backend with their
// statuses and the net change they carried.
type Commit struct {
	Seq         int64    `json:"seq"`
	Ops         []Op     `json:"ops"`
	New         []NodeID `json:"new,omitempty"`
	Updated     []NodeID `json:"updated,omitempty"`
	Deleted     []NodeID `json:"deleted,omitempty"`
	Failed      int      `json:"failed"`
	Collected   int      `json:"collected"`
	Fingerprint string   `json:"fingerprint"`
}

// OK reports whether the backend accepted every op.
func (c Commit) OK() bool { return c.Failed == 0 }
