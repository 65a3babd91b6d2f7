// Package graph maps extracted financial records onto a property graph of
// clients, advisers, dependants, assets and goals. Every write is a merge on
// a unique key followed by a property overwrite, so replaying a document with
// the same record leaves the graph unchanged.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brunobiangulo/fingraph/extract"
)

// ErrNoWriter is returned when an Upserter has no store to write to.
var ErrNoWriter = errors.New("graph: no writer configured")

// Stats counts the writes issued for one document.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Ops is the total number of writes.
func (s Stats) Ops() int { return s.Nodes + s.Edges }

// Upserter writes records through a Writer.
type Upserter struct {
	w Writer
}

// NewUpserter creates an Upserter that writes through w.
func NewUpserter(w Writer) *Upserter {
	return &Upserter{w: w}
}

// Upsert writes rec under documentName. A record without clients is a
// no-op. The first failing write aborts the document and is returned along
// with the stats of the writes that did succeed.
func (u *Upserter) Upsert(ctx context.Context, rec *extract.Record, documentName string) (Stats, error) {
	ops := Plan(rec, documentName)
	if len(ops) == 0 {
		slog.Debug("graph: record has no clients, nothing to write", "doc", documentName)
		return Stats{}, nil
	}
	if u.w == nil {
		return Stats{}, ErrNoWriter
	}

	start := time.Now()
	n, err := u.w.Apply(ctx, ops)
	stats := countOps(ops[:clamp(n, len(ops))])
	if err != nil {
		return stats, fmt.Errorf("graph: upserting %s (write %d of %d): %w", documentName, n+1, len(ops), err)
	}

	slog.Debug("graph: document upserted",
		"doc", documentName,
		"nodes", stats.Nodes,
		"edges", stats.Edges,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return stats, nil
}

func countOps(ops []Op) Stats {
	var s Stats
	for _, op := range ops {
		switch op.(type) {
		case NodeOp:
			s.Nodes++
		case EdgeOp:
			s.Edges++
		}
	}
	return s
}

func clamp(n, limit int) int {
	if n < 0 {
		return 0
	}
	if n > limit {
		return limit
	}
	return n
}
