package neo4jdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/fingraph/graph"
)

func TestNodeStatement(t *testing.T) {
	props := map[string]any{"name": "Jane Doe", "age": int64(52)}
	cypher, params, err := Statement(graph.NodeOp{Label: graph.LabelClient, Key: "Jane Doe", Props: props})
	require.NoError(t, err)
	assert.Equal(t, "MERGE (n:Client {name: $key})\nSET n += $props", cypher)
	assert.Equal(t, map[string]any{"key": "Jane Doe", "props": props}, params)

	cypher, params, err = Statement(graph.NodeOp{Label: graph.LabelPension, Key: "Jane Doe_pen_0"})
	require.NoError(t, err)
	assert.Equal(t, "MERGE (n:Pension {id: $key})", cypher)
	assert.Equal(t, map[string]any{"key": "Jane Doe_pen_0"}, params)
}

func TestEdgeStatement(t *testing.T) {
	cypher, params, err := Statement(graph.EdgeOp{
		FromLabel: graph.LabelClient, FromKey: "Jane Doe",
		Type:    graph.RelParentOf,
		ToLabel: graph.LabelDependant, ToKey: "Jane Doe_dep_0",
	})
	require.NoError(t, err)
	assert.Equal(t,
		"MATCH (a:Client {name: $from})\nMATCH (b:Dependant {id: $to})\nMERGE (a)-[:PARENT_OF]->(b)",
		cypher)
	assert.Equal(t, map[string]any{"from": "Jane Doe", "to": "Jane Doe_dep_0"}, params)
}

func TestStatementRejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := Statement(graph.NodeOp{Label: "Client) DETACH DELETE n //", Key: "x"})
	assert.Error(t, err)

	_, _, err = Statement(graph.EdgeOp{FromLabel: "Client", Type: "OWNS]->(x", ToLabel: "Property"})
	assert.Error(t, err)
}

func TestStatementsForPlan(t *testing.T) {
	ops := []graph.Op{
		graph.NodeOp{Label: graph.LabelAdviser, Key: "C D", Props: map[string]any{"name": "C D"}},
		graph.NodeOp{Label: graph.LabelClient, Key: "A B", Props: map[string]any{"name": "A B"}},
		graph.EdgeOp{FromLabel: graph.LabelAdviser, FromKey: "C D", Type: graph.RelAdvises, ToLabel: graph.LabelClient, ToKey: "A B"},
	}
	for _, op := range ops {
		_, _, err := Statement(op)
		assert.NoError(t, err, op.String())
	}
}

func TestConstraintStatements(t *testing.T) {
	got, err := SchemaStatements()
	require.NoError(t, err)
	assert.Contains(t, got, "CREATE CONSTRAINT client_name IF NOT EXISTS FOR (n:Client) REQUIRE n.name IS UNIQUE")
	assert.Contains(t, got, "CREATE CONSTRAINT goal_id IF NOT EXISTS FOR (n:Goal) REQUIRE n.id IS UNIQUE")
	assert.Len(t, got, 7)
}

func TestNewRequiresPassword(t *testing.T) {
	_, err := New(context.Background(), Config{URI: "bolt://localhost:7687", User: "neo4j"})
	assert.ErrorIs(t, err, ErrPasswordRequired)
}

func TestNewRejectsBadScheme(t *testing.T) {
	_, err := New(context.Background(), Config{URI: "http://localhost:7474", Password: "pw"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "init driver")
}

func TestApplyOnClosedClient(t *testing.T) {
	var c *Client
	assert.NoError(t, c.Close(context.Background()))

	n, err := (&Client{}).Apply(context.Background(), []graph.Op{graph.NodeOp{Label: graph.LabelClient, Key: "A"}})
	assert.Error(t, err)
	assert.Zero(t, n)
}
