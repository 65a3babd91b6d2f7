package graph

import (
	"context"
	"fmt"
)

// Op is a single idempotent graph write: a NodeOp or an EdgeOp.
type Op interface {
	fmt.Stringer
	op()
}

// NodeOp merges the node (Label {KeyProp(Label): Key}) and overwrites the
// given properties. A nil Props merges the node without touching it.
type NodeOp struct {
	Label string
	Key   string
	Props map[string]any
}

func (NodeOp) op() {}

func (n NodeOp) String() string {
	return fmt.Sprintf("MERGE (:%s {%s: %q}) +%d props", n.Label, KeyProp(n.Label), n.Key, len(n.Props))
}

// EdgeOp merges a relationship between two existing nodes. It is a no-op
// when either endpoint is missing.
type EdgeOp struct {
	FromLabel string
	FromKey   string
	Type      string
	ToLabel   string
	ToKey     string
}

func (EdgeOp) op() {}

func (e EdgeOp) String() string {
	return fmt.Sprintf("MERGE (:%s {%s: %q})-[:%s]->(:%s {%s: %q})",
		e.FromLabel, KeyProp(e.FromLabel), e.FromKey, e.Type,
		e.ToLabel, KeyProp(e.ToLabel), e.ToKey)
}

// Writer applies ops to a graph store.
type Writer interface {
	// Apply runs ops in order and stops at the first failure. It returns the
	// number of ops applied successfully.
	Apply(ctx context.Context, ops []Op) (int, error)
}
