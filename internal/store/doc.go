// Package store provides SQLite-backed storage for the commit journal and
// for named compositions.
//
// The journal is append-only. Each commit row carries the store fingerprint
// taken after the commit, and its ops are kept in dispatch order in
// commit_ops, so the backend calls of a session can be replayed against a
// fresh tree. All reads order by seq, then by op position.
//
// Compositions are full node definitions saved under a name together with
// their content hash.
//
// Ops can also be searched with QueryOps, which takes a queryir.Query and
// runs it through querysql.
//
// Every connection is opened in WAL mode with synchronous=NORMAL, a 5s busy
// timeout and foreign keys enforced.
package store
