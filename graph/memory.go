package graph

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
)

type nodeRef struct {
	label string
	key   string
}

type edgeRef struct {
	from    nodeRef
	relType string
	to      nodeRef
}

// MemoryGraph is an in-process Writer with the same merge semantics as the
// Neo4j writer. It backs dry runs and tests.
type MemoryGraph struct {
	mu     sync.Mutex
	nodes  map[nodeRef]map[string]any
	edges  map[edgeRef]struct{}
	writes int
}

// NewMemoryGraph returns an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes: make(map[nodeRef]map[string]any),
		edges: make(map[edgeRef]struct{}),
	}
}

// Apply implements Writer.
func (g *MemoryGraph) Apply(ctx context.Context, ops []Op) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		switch o := op.(type) {
		case NodeOp:
			g.mergeNode(o)
		case EdgeOp:
			g.mergeEdge(o)
		default:
			return i, fmt.Errorf("graph: unsupported op %T", op)
		}
		g.writes++
	}
	return len(ops), nil
}

func (g *MemoryGraph) mergeNode(o NodeOp) {
	ref := nodeRef{o.Label, o.Key}
	props, ok := g.nodes[ref]
	if !ok {
		props = map[string]any{KeyProp(o.Label): o.Key}
		g.nodes[ref] = props
	}
	maps.Copy(props, o.Props)
}

func (g *MemoryGraph) mergeEdge(o EdgeOp) {
	from := nodeRef{o.FromLabel, o.FromKey}
	to := nodeRef{o.ToLabel, o.ToKey}
	if _, ok := g.nodes[from]; !ok {
		return
	}
	if _, ok := g.nodes[to]; !ok {
		return
	}
	g.edges[edgeRef{from, o.Type, to}] = struct{}{}
}

// Node returns a copy of the properties of the node with the given label and
// key.
func (g *MemoryGraph) Node(label, key string) (map[string]any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	props, ok := g.nodes[nodeRef{label, key}]
	if !ok {
		return nil, false
	}
	return maps.Clone(props), true
}

// Keys returns the sorted keys of all nodes with label.
func (g *MemoryGraph) Keys(label string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var keys []string
	for ref := range g.nodes {
		if ref.label == label {
			keys = append(keys, ref.key)
		}
	}
	sort.Strings(keys)
	return keys
}

// CountNodes returns the number of nodes with label.
func (g *MemoryGraph) CountNodes(label string) int {
	return len(g.Keys(label))
}

// CountEdges returns the number of relationships of relType.
func (g *MemoryGraph) CountEdges(relType string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for e := range g.edges {
		if e.relType == relType {
			n++
		}
	}
	return n
}

// HasEdge reports whether the relationship exists.
func (g *MemoryGraph) HasEdge(fromLabel, fromKey, relType, toLabel, toKey string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.edges[edgeRef{nodeRef{fromLabel, fromKey}, relType, nodeRef{toLabel, toKey}}]
	return ok
}

// Writes returns the number of ops applied since creation.
func (g *MemoryGraph) Writes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.writes
}
