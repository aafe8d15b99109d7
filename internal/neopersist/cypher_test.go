package neopersist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryWriter_BindsValuesAsParameters(t *testing.T) {
	w := newQueryWriter()
	w.line("MATCH %s", w.node("m", "Model", map[string]any{"slug": "chair_1", "id": "1"}))
	w.returns(Node{Alias: "m"})

	query, params, err := w.build()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (m:Model {id: $p0, slug: $p1})\nRETURN m", query)
	assert.Equal(t, map[string]any{"p0": "1", "p1": "chair_1"}, params)
}

func TestQueryWriter_RejectsInjectedIdentifiers(t *testing.T) {
	for _, label := range []string{"Model) DETACH DELETE (x", "Model:Admin", "1Model"} {
		w := newQueryWriter()
		w.line("MATCH %s", w.node("m", label, nil))
		_, _, err := w.build()
		assert.True(t, errors.Is(err, ErrInvalidDescriptor), "label %q", label)
	}

	w := newQueryWriter()
	w.line("MATCH %s", w.node("m", "Model", map[string]any{"name}) RETURN 1 //": "x"}))
	_, _, err := w.build()
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestQueryWriter_RelationshipDirections(t *testing.T) {
	w := newQueryWriter()
	assert.Equal(t, "-[:TAGGED_WITH]->", w.rel("", Relation{Type: "TAGGED_WITH", Direction: Outgoing}))
	assert.Equal(t, "<-[:UPLOADED]-", w.rel("", Relation{Type: "UPLOADED", Direction: Incoming}))
	assert.Equal(t, "-[r:UPVOTED]-", w.rel("r", Relation{Type: "UPVOTED", Direction: Undirected}))
}

func TestQueryWriter_ProjectionAliases(t *testing.T) {
	w := newQueryWriter()
	items := w.projection(Node{Alias: "m", Return: []ReturnProp{
		{Prop: "name"},
		{Prop: "images", Head: true, Alias: "image"},
		{Prop: "name", Alias: "tags", Aggregate: AggCollect},
		{Alias: "upvotes", Aggregate: AggCountDistinct},
		{Prop: "slug", Aggregate: AggCollectDistinct},
		{Aggregate: AggCount},
	}})

	assert.Equal(t, []string{
		"m.name",
		"m.images[0] AS `image`",
		"collect(m.name) AS `tags`",
		"count(DISTINCT m) AS `upvotes`",
		"collect(DISTINCT m.slug) AS `m`",
		"count(m) AS `m`",
	}, items)
}

func TestQueryWriter_ReturnRequiresProjection(t *testing.T) {
	w := newQueryWriter()
	w.returns(Node{Alias: "m", NoReturn: true})
	_, _, err := w.build()
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}

func TestQueryWriter_PageAndInFilters(t *testing.T) {
	w := newQueryWriter()
	n := Node{Alias: "t", Label: "Tag", In: map[string][]any{"name": {"chair", "wood"}}}
	w.matchSource(n)
	w.returns(n)
	w.page(FindOptions{Order: []Order{{Alias: "t", Prop: "name"}}, Skip: 20, Limit: 10})

	query, params, err := w.build()
	require.NoError(t, err)
	assert.Equal(t, "MATCH (t:Tag)\nWHERE t.name IN $p0\nRETURN t\nORDER BY t.name\nSKIP $skip\nLIMIT $limit", query)
	assert.Equal(t, []any{"chair", "wood"}, params["p0"])
	assert.Equal(t, int64(20), params["skip"])
	assert.Equal(t, int64(10), params["limit"])
}

func TestSchemaStatements(t *testing.T) {
	stmts, err := schemaStatements([]Constraint{{Label: "Tag", Property: "name"}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE CONSTRAINT Tag_name_unique IF NOT EXISTS FOR (n:Tag) REQUIRE n.name IS UNIQUE",
		"CREATE FULLTEXT INDEX model_search IF NOT EXISTS FOR (n:Model) ON EACH [n.name, n.description]",
	}, stmts)

	_, err = schemaStatements([]Constraint{{Label: "Tag", Property: "na me"}})
	assert.ErrorIs(t, err, ErrInvalidDescriptor)
}
