package neo4jdb

import (
	"fmt"
	"regexp"

	"github.com/brunobiangulo/fingraph/graph"
)

// identRe matches labels, relationship types and property names that are
// safe to interpolate into Cypher. Values always travel as parameters.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(kind, s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("neo4jdb: invalid %s %q", kind, s)
	}
	return nil
}

// Statement renders op as a parameterised Cypher statement.
func Statement(op graph.Op) (string, map[string]any, error) {
	switch o := op.(type) {
	case graph.NodeOp:
		return nodeStatement(o)
	case graph.EdgeOp:
		return edgeStatement(o)
	default:
		return "", nil, fmt.Errorf("neo4jdb: unsupported op %T", op)
	}
}

func nodeStatement(o graph.NodeOp) (string, map[string]any, error) {
	key := graph.KeyProp(o.Label)
	if err := checkIdent("label", o.Label); err != nil {
		return "", nil, err
	}
	params := map[string]any{"key": o.Key}
	if o.Props == nil {
		return fmt.Sprintf("MERGE (n:%s {%s: $key})", o.Label, key), params, nil
	}
	params["props"] = o.Props
	return fmt.Sprintf("MERGE (n:%s {%s: $key})\nSET n += $props", o.Label, key), params, nil
}

func edgeStatement(o graph.EdgeOp) (string, map[string]any, error) {
	for _, id := range []struct{ kind, s string }{
		{"label", o.FromLabel}, {"relationship type", o.Type}, {"label", o.ToLabel},
	} {
		if err := checkIdent(id.kind, id.s); err != nil {
			return "", nil, err
		}
	}
	cypher := fmt.Sprintf("MATCH (a:%s {%s: $from})\nMATCH (b:%s {%s: $to})\nMERGE (a)-[:%s]->(b)",
		o.FromLabel, graph.KeyProp(o.FromLabel),
		o.ToLabel, graph.KeyProp(o.ToLabel),
		o.Type)
	return cypher, map[string]any{"from": o.FromKey, "to": o.ToKey}, nil
}

// constraintStatement renders a uniqueness constraint that is a no-op when
// it already exists.
func constraintStatement(c graph.Constraint) (string, error) {
	for _, s := range []string{c.Name, c.Label, c.Property} {
		if err := checkIdent("identifier", s); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		c.Name, c.Label, c.Property), nil
}

// SchemaStatements renders every constraint EnsureSchema creates.
func SchemaStatements() ([]string, error) {
	out := make([]string, 0, len(graph.Constraints))
	for _, c := range graph.Constraints {
		q, err := constraintStatement(c)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
