package neo4j

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	assert.True(t, ValidIdentifier("E12_Production"))
	assert.True(t, ValidIdentifier("has_scribe"))
	assert.False(t, ValidIdentifier("has scribe"))
	assert.False(t, ValidIdentifier("x]->(y) DETACH DELETE y//"))
	assert.False(t, ValidIdentifier("12_Production"))
	assert.False(t, ValidIdentifier(""))
}

func TestGraphMergesNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("urn:a", []string{"E53_Place"}, map[string]any{"label": "קנדיה", "modern_name": ""})
	g.AddNode("urn:a", []string{"E53_Place", "Bad Label"}, map[string]any{"latitude": 35.33})
	g.AddNode("urn:b", []string{"E21_Person"}, nil)

	nodes := g.Nodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, "urn:a", nodes[0].URI)
	assert.Equal(t, []string{"E53_Place"}, nodes[0].Labels)
	assert.Equal(t, map[string]any{"label": "קנדיה", "latitude": 35.33}, nodes[0].Props)
	assert.Equal(t, map[string]int{"E53_Place": 1, "E21_Person": 1}, g.LabelCounts())
}

func TestGraphRelationships(t *testing.T) {
	g := NewGraph()
	assert.True(t, g.AddRelationship("urn:a", "P7_took_place_at", "urn:b", nil))
	assert.True(t, g.AddRelationship("urn:a", "P7_took_place_at", "urn:b", nil))
	assert.False(t, g.AddRelationship("urn:a", "took place at", "urn:b", nil))
	assert.Len(t, g.Relationships(), 1)
}

func TestLabelKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, labelKey([]string{"b", "a"}), labelKey([]string{"a", "b"}))
	assert.Equal(t, "a:b", joinLabels([]string{"a", "b"}))
}

// Runs against a live server when HMS_TEST_NEO4J_URI is set.
func TestMergeGraphLive(t *testing.T) {
	uri := os.Getenv("HMS_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("HMS_TEST_NEO4J_URI not set")
	}
	ctx := context.Background()
	c, err := NewClient(ctx, uri, os.Getenv("HMS_TEST_NEO4J_USER"), os.Getenv("HMS_TEST_NEO4J_PASSWORD"), "")
	require.NoError(t, err)
	defer c.Close(ctx)
	require.NoError(t, c.EnsureConstraints(ctx))

	g := NewGraph()
	g.AddNode("urn:test:ms", []string{"F4_Manifestation_Singleton"}, map[string]any{"identifier": "test-ms"})
	g.AddNode("urn:test:event", []string{"E12_Production"}, map[string]any{"event_type": "production place"})
	g.AddNode("urn:test:place", []string{"E53_Place"}, map[string]any{"label": "מקום-בדיקה"})
	g.AddRelationship("urn:test:event", "P16_used_specific_object", "urn:test:ms", nil)
	g.AddRelationship("urn:test:event", "P7_took_place_at", "urn:test:place", nil)
	require.NoError(t, c.MergeGraph(ctx, g))

	found, err := c.ManuscriptsAtPlace(ctx, "מקום-בדיקה", 10)
	require.NoError(t, err)
	require.NotEmpty(t, found)
	assert.Equal(t, "test-ms", found[0].ManuscriptID)
}
