package neopersist

// Direction states how a relationship is oriented relative to the node the hop
// starts from.
type Direction int

const (
	// Outgoing matches (from)-[:TYPE]->(target).
	Outgoing Direction = iota
	// Incoming matches (from)<-[:TYPE]-(target).
	Incoming
	// Undirected matches (from)-[:TYPE]-(target).
	Undirected
)

// Aggregate is an aggregation function applied to a projected field.
type Aggregate int

const (
	AggNone Aggregate = iota
	AggCount
	AggCountDistinct
	AggCollect
	AggCollectDistinct
)

// ReturnProp projects one field of a matched node.
type ReturnProp struct {
	// Prop is the property name. Empty projects the whole node.
	Prop string
	// Alias is the key of the value in the parsed record. It defaults to
	// "<node alias>.<prop>" for plain properties, which the record parser groups
	// under the node alias, and to the node alias for whole nodes and aggregates.
	Alias string
	// Aggregate wraps the projection in count/collect.
	Aggregate Aggregate
	// Head projects the first element of a list property.
	Head bool
}

// Node describes a node pattern: its alias, label, the exact-equality properties
// it must carry and what to return from it.
type Node struct {
	Alias string
	Label string
	// Match holds exact-equality properties. An empty map matches every node of
	// the label.
	Match map[string]any
	// In restricts a property to a list of accepted values.
	In map[string][]any
	// Return lists the projected fields. Empty returns the whole node.
	Return []ReturnProp
	// NoReturn leaves the node out of the projection.
	NoReturn bool
	// Exclude strips properties from the returned node. It only applies when the
	// whole node is returned.
	Exclude []string
}

// Relation describes a relationship type and orientation.
type Relation struct {
	Type      string
	Direction Direction
}

// Related is a node reachable from the source (or from another related node
// named by From) through a relationship.
type Related struct {
	Node
	Relation Relation
	// From is the alias the hop starts from. Empty means the source node.
	From string
	// Optional renders the hop as OPTIONAL MATCH so a missing neighbour does not
	// drop the row.
	Optional bool
}

// Order sorts the result by a property of a matched node.
type Order struct {
	Alias string
	Prop  string
	Desc  bool
}

// FindOptions carries ordering and pagination. Zero Limit means unbounded.
type FindOptions struct {
	Order []Order
	Skip  int
	Limit int
}

// UpdateOp is the operation applied by SetWithDefault once the property exists.
type UpdateOp int

const (
	// OpAdd adds Operand to the current value.
	OpAdd UpdateOp = iota
	// OpReplace overwrites the current value with Operand.
	OpReplace
)

// Update is a property update expression described as data.
type Update struct {
	Op      UpdateOp
	Operand any
}

// Increment returns an Update adding delta to a numeric property.
func Increment(delta int64) Update {
	return Update{Op: OpAdd, Operand: delta}
}

// By is a shorthand for a single-label node matched by exact properties.
func By(alias, label string, match map[string]any) Node {
	return Node{Alias: alias, Label: label, Match: match}
}

// Props builds a projection of plain properties.
func Props(names ...string) []ReturnProp {
	out := make([]ReturnProp, 0, len(names))
	for _, name := range names {
		out = append(out, ReturnProp{Prop: name})
	}
	return out
}
