// Package queryir defines filters over the commit journal's ops.
//
// A Query holds one Predicate tree built from Equals, NotEquals, AtLeast and
// And. The predicate set is sealed so compilers can switch over it
// exhaustively; querysql turns a query into parameterized SQL.
//
// Predicates test a fixed set of journaled fields:
//
//	seq      commit sequence number   (Number)
//	kind     backend operation kind   (String)
//	node_id  node the op was built for (String)
//	status   backend status code      (Number)
//
// Validate rejects unknown fields and values of the wrong kind before a query
// reaches a compiler.
//
// Example: failed add_node ops from seq 3 onwards.
//
//	queryir.Query{Filter: queryir.And{Predicates: []queryir.Predicate{
//	    queryir.FromSeq(3),
//	    queryir.OfKind(ir.OpAddNode),
//	    queryir.Failed(),
//	}}}
package queryir
