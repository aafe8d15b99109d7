package neopersist

import (
	"context"
	"fmt"
)

// SearchIndex is the full-text index over model names and descriptions.
const SearchIndex = "model_search"

// Constraint is a single-property uniqueness constraint.
type Constraint struct {
	Label    string
	Property string
}

// Name is the deterministic schema name of the constraint.
func (c Constraint) Name() string {
	return fmt.Sprintf("%s_%s_unique", c.Label, c.Property)
}

// DefaultConstraints are the uniqueness constraints the domain relies on to
// detect conflicts.
var DefaultConstraints = []Constraint{
	{Label: "User", Property: "id"},
	{Label: "User", Property: "email"},
	{Label: "User", Property: "username"},
	{Label: "Model", Property: "id"},
	{Label: "Model", Property: "slug"},
	{Label: "Tag", Property: "name"},
	{Label: "Collection", Property: "id"},
	{Label: "Collection", Property: "slug"},
	{Label: "File", Property: "id"},
}

// schemaStatements renders the idempotent DDL for the given constraints plus the
// model full-text index.
func schemaStatements(constraints []Constraint) ([]string, error) {
	stmts := make([]string, 0, len(constraints)+1)
	for _, c := range constraints {
		if err := checkIdent("label", c.Label); err != nil {
			return nil, err
		}
		if err := checkIdent("property", c.Property); err != nil {
			return nil, err
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			c.Name(), c.Label, c.Property,
		))
	}
	stmts = append(stmts, fmt.Sprintf(
		"CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (n:Model) ON EACH [n.name, n.description]",
		SearchIndex,
	))
	return stmts, nil
}

// EnsureSchema creates the uniqueness constraints and the search index when they
// are missing. It stops at the first failing statement.
func (pm *PersistenceManager) EnsureSchema(ctx context.Context) error {
	stmts, err := schemaStatements(DefaultConstraints)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := pm.runner.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("schema statement %q failed: %w", stmt, err)
		}
	}
	return nil
}
