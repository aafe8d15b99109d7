package neopersist

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// PersistenceManager is the central orchestrator for the persistence layer.
// It turns node and relationship descriptors into parameterized Cypher, runs them
// through a DBRunner and hands back parsed records.
type PersistenceManager struct {
	runner DBRunner
	// metaCache stores parsed entityMetadata to avoid costly reflection on every call.
	// It is shared with the transaction-scoped managers created by WithinTx.
	metaCache *sync.Map
}

// NewPersistenceManager creates a new instance of the PersistenceManager.
func NewPersistenceManager(runner DBRunner) *PersistenceManager {
	return &PersistenceManager{runner: runner, metaCache: &sync.Map{}}
}

// RepositoryFor is a generic function that creates and returns a repository
// for a specific struct type T, managed by the given PersistenceManager.
func RepositoryFor[T any](pm *PersistenceManager) (*Repository[T], error) {
	return NewRepository[T](pm.runner)
}

// WithinTx runs fn with a manager bound to a single write transaction when the
// underlying runner supports transactions. Otherwise fn runs against pm itself and
// every query commits on its own.
func (pm *PersistenceManager) WithinTx(ctx context.Context, fn func(tx *PersistenceManager) error) error {
	txr, ok := pm.runner.(TxRunner)
	if !ok {
		return fn(pm)
	}
	return txr.ExecuteWrite(ctx, func(tx DBRunner) error {
		return fn(&PersistenceManager{runner: tx, metaCache: pm.metaCache})
	})
}

func (pm *PersistenceManager) run(ctx context.Context, w *queryWriter) (*neo4j.EagerResult, error) {
	query, params, err := w.build()
	if err != nil {
		return nil, err
	}
	res, err := pm.runner.Run(ctx, query, params)
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// CreateOne creates a single node and returns its stored properties.
// A uniqueness constraint violation is reported as ErrConflict.
func (pm *PersistenceManager) CreateOne(ctx context.Context, label string, props map[string]any) (Record, error) {
	w := newQueryWriter()
	w.line("CREATE %s", w.node("n", label, props))
	w.line("RETURN n")
	res, err := pm.run(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("create %s returned no record", label)
	}
	node, ok := res.Records[0].Values[0].(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("create %s did not return a node", label)
	}
	return nodeProps(node, nil), nil
}

// CreateEntity creates the node described by a crud-tagged struct pointer.
func (pm *PersistenceManager) CreateEntity(ctx context.Context, entity any) (Record, error) {
	meta, _, err := pm.getEntityMetaAndPK(entity)
	if err != nil {
		return nil, err
	}
	return pm.CreateOne(ctx, meta.Label, propertiesOf(entity, meta))
}

// FindOne returns the first node matching n, projected as n.Return describes.
// It returns ErrNotFound when nothing matches.
func (pm *PersistenceManager) FindOne(ctx context.Context, n Node) (any, error) {
	rows, err := pm.FindMany(ctx, n, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// FindMany returns every node matching n with ordering and pagination applied.
func (pm *PersistenceManager) FindMany(ctx context.Context, n Node, opts FindOptions) ([]any, error) {
	return pm.FindWithRelated(ctx, n, nil, opts)
}

// Search delegates a free-text query to the full-text index named index and
// returns the matching nodes, best score first unless opts orders otherwise.
// Only n's label, match properties and projection are used; its alias names the
// yielded node.
func (pm *PersistenceManager) Search(ctx context.Context, index, text string, n Node, opts FindOptions) ([]any, error) {
	w := newQueryWriter()
	alias := w.ident("alias", n.Alias)
	w.line("CALL db.index.fulltext.queryNodes(%s, %s) YIELD node AS %s, score", w.named("index", index), w.named("text", text), alias)
	var conds []string
	if n.Label != "" {
		conds = append(conds, alias+":"+w.ident("label", n.Label))
	}
	for _, k := range sortedKeys(n.Match) {
		conds = append(conds, fmt.Sprintf("%s.%s = %s", alias, w.ident("property", k), w.param(n.Match[k])))
	}
	conds = append(conds, w.inConditions(n)...)
	w.where(conds)
	w.returns(n)
	if len(opts.Order) == 0 {
		w.line("ORDER BY score DESC")
	}
	w.page(opts)
	res, err := pm.run(ctx, w)
	if err != nil {
		return nil, err
	}
	return ParseRecords(res, parseOptions(n)), nil
}

// FindWithRelated matches source and every related node, then returns one combined
// projection per row. Related nodes are reached through their relationship from
// the source or from the node named by Related.From. Each node keeps the alias
// its descriptor gives it, so projections never collide.
func (pm *PersistenceManager) FindWithRelated(ctx context.Context, source Node, related []Related, opts FindOptions) ([]any, error) {
	w := newQueryWriter()
	w.matchSource(source)
	w.matchRelated(source, related)
	nodes := []Node{source}
	for _, r := range related {
		nodes = append(nodes, r.Node)
	}
	w.returns(nodes...)
	w.page(opts)
	res, err := pm.run(ctx, w)
	if err != nil {
		return nil, err
	}
	return ParseRecords(res, parseOptions(nodes...)), nil
}

// FindOneWithRelated is FindWithRelated limited to the first row.
func (pm *PersistenceManager) FindOneWithRelated(ctx context.Context, source Node, related []Related) (any, error) {
	rows, err := pm.FindWithRelated(ctx, source, related, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// Count returns the number of distinct nodes matched by the last descriptor of the
// pattern: the source itself, or the last related node when any are given.
func (pm *PersistenceManager) Count(ctx context.Context, source Node, related ...Related) (int64, error) {
	w := newQueryWriter()
	w.matchSource(source)
	w.matchRelated(source, related)
	target := source.Alias
	if len(related) > 0 {
		target = related[len(related)-1].Alias
	}
	w.line("RETURN count(DISTINCT %s) AS count", w.ident("alias", target))
	res, err := pm.run(ctx, w)
	if err != nil {
		return 0, err
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	count, ok := ParseRecord(res.Records[0], ParseOptions{}).(int64)
	if !ok {
		return 0, errors.New("count query did not return an integer")
	}
	return count, nil
}

// MergeConnect finds-or-creates every target node and finds-or-creates the
// relationship between source and each target. Repeating a call with the same
// arguments creates neither nodes nor edges.
func (pm *PersistenceManager) MergeConnect(ctx context.Context, source Node, targetLabel string, targets []map[string]any, rel Relation) error {
	return pm.connect(ctx, "MERGE", source, targetLabel, targets, rel)
}

// ConnectNew creates a fresh target node per entry and links it to source.
func (pm *PersistenceManager) ConnectNew(ctx context.Context, source Node, targetLabel string, targets []map[string]any, rel Relation) error {
	return pm.connect(ctx, "CREATE", source, targetLabel, targets, rel)
}

func (pm *PersistenceManager) connect(ctx context.Context, verb string, source Node, targetLabel string, targets []map[string]any, rel Relation) error {
	if len(targets) == 0 {
		return nil
	}
	w := newQueryWriter()
	w.line("MATCH %s", w.node("n", source.Label, source.Match))
	for i, props := range targets {
		w.line("%s %s", verb, w.node(fmt.Sprintf("m%d", i), targetLabel, props))
	}
	for i := range targets {
		w.line("%s (n)%s(m%d)", verb, w.rel("", rel), i)
	}
	_, err := pm.run(ctx, w)
	return err
}

// Relate links two existing nodes with a single relationship, creating it only if
// it does not exist yet. Nothing happens when either node is missing.
func (pm *PersistenceManager) Relate(ctx context.Context, from Node, rel Relation, to Node) error {
	w := newQueryWriter()
	w.line("MATCH %s", w.node("a", from.Label, from.Match))
	w.line("MATCH %s", w.node("b", to.Label, to.Match))
	w.line("MERGE (a)%s(b)", w.rel("", rel))
	_, err := pm.run(ctx, w)
	return err
}

// RelationExists reports whether a relationship of the given type links from and to.
func (pm *PersistenceManager) RelationExists(ctx context.Context, from Node, rel Relation, to Node) (bool, error) {
	w := newQueryWriter()
	w.line("MATCH %s%s%s", w.node("a", from.Label, from.Match), w.rel("r", rel), w.node("b", to.Label, to.Match))
	w.line("RETURN count(r) AS count")
	res, err := pm.run(ctx, w)
	if err != nil {
		return false, err
	}
	if len(res.Records) == 0 {
		return false, nil
	}
	count, _ := ParseRecord(res.Records[0], ParseOptions{}).(int64)
	return count > 0, nil
}

// Disconnect deletes the relationships of the given type between source and the
// nodes matching target. The nodes themselves are left in place. It returns the
// number of deleted relationships when the store reports it.
func (pm *PersistenceManager) Disconnect(ctx context.Context, source Node, rel Relation, target Node) (int, error) {
	w := newQueryWriter()
	w.line("MATCH %s%s%s", w.node("s", source.Label, source.Match), w.rel("r", rel), w.node("t", target.Label, target.Match))
	target.Alias = "t"
	w.where(w.inConditions(target))
	w.line("DELETE r")
	res, err := pm.run(ctx, w)
	if err != nil {
		return 0, err
	}
	if res.Summary == nil {
		return 0, nil
	}
	return res.Summary.Counters().RelationshipsDeleted(), nil
}

// DeleteRelation removes the relationship of the given type between two nodes.
func (pm *PersistenceManager) DeleteRelation(ctx context.Context, from Node, rel Relation, to Node) error {
	_, err := pm.Disconnect(ctx, from, rel, to)
	return err
}

// SetProperties overwrites props on every node matching n and returns the first
// updated row projected as n.Return describes. It returns ErrNotFound when nothing
// matches.
func (pm *PersistenceManager) SetProperties(ctx context.Context, n Node, props map[string]any) (any, error) {
	w := newQueryWriter()
	w.matchSource(n)
	if len(props) > 0 {
		parts := make([]string, 0, len(props))
		for _, k := range sortedKeys(props) {
			parts = append(parts, fmt.Sprintf("%s.%s = %s", n.Alias, w.ident("property", k), w.param(props[k])))
		}
		w.line("SET %s", strings.Join(parts, ", "))
	}
	w.returns(n)
	return pm.first(ctx, w, n)
}

// SetWithDefault initializes prop to def the first time it is touched and then
// applies upd to it, returning the updated row projected as n.Return describes.
// Counters that must exist before being incremented go through here.
func (pm *PersistenceManager) SetWithDefault(ctx context.Context, n Node, prop string, upd Update, def any) (any, error) {
	w := newQueryWriter()
	w.matchSource(n)
	target := w.ident("alias", n.Alias) + "." + w.ident("property", prop)
	w.line("SET %s = coalesce(%s, %s)", target, target, w.named("default", def))
	switch upd.Op {
	case OpAdd:
		w.line("SET %s = %s + %s", target, target, w.named("operand", upd.Operand))
	case OpReplace:
		w.line("SET %s = %s", target, w.named("operand", upd.Operand))
	default:
		return nil, fmt.Errorf("%w: unknown update op %d", ErrInvalidDescriptor, upd.Op)
	}
	w.returns(n)
	return pm.first(ctx, w, n)
}

// DetachDelete deletes the nodes matching n, every relationship attached to them
// and the related nodes listed in cascade. It returns the number of deleted nodes
// when the store reports it.
func (pm *PersistenceManager) DetachDelete(ctx context.Context, n Node, cascade ...Related) (int, error) {
	w := newQueryWriter()
	w.matchSource(n)
	w.matchRelated(n, cascade)
	aliases := []string{w.ident("alias", n.Alias)}
	for _, r := range cascade {
		aliases = append(aliases, w.ident("alias", r.Alias))
	}
	w.line("DETACH DELETE %s", strings.Join(aliases, ", "))
	res, err := pm.run(ctx, w)
	if err != nil {
		return 0, err
	}
	if res.Summary == nil {
		return 0, nil
	}
	return res.Summary.Counters().NodesDeleted(), nil
}

// DeleteRelated detach-deletes the nodes reached from source through related,
// leaving source in place.
func (pm *PersistenceManager) DeleteRelated(ctx context.Context, source Node, related Related) (int, error) {
	w := newQueryWriter()
	w.matchSource(source)
	w.matchRelated(source, []Related{related})
	w.line("DETACH DELETE %s", w.ident("alias", related.Alias))
	res, err := pm.run(ctx, w)
	if err != nil {
		return 0, err
	}
	if res.Summary == nil {
		return 0, nil
	}
	return res.Summary.Counters().NodesDeleted(), nil
}

func (pm *PersistenceManager) first(ctx context.Context, w *queryWriter, n Node) (any, error) {
	res, err := pm.run(ctx, w)
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	return ParseRecord(res.Records[0], parseOptions(n)), nil
}

func parseOptions(nodes ...Node) ParseOptions {
	opts := ParseOptions{}
	for _, n := range nodes {
		if len(n.Exclude) == 0 {
			continue
		}
		if opts.Exclude == nil {
			opts.Exclude = make(map[string][]string)
		}
		opts.Exclude[n.Alias] = n.Exclude
	}
	return opts
}

// CreateRelation creates a directed relationship between two existing entities in the database.
// It uses reflection to find the entities' primary keys and labels to build the query.
func (pm *PersistenceManager) CreateRelation(ctx context.Context, fromEntity any, toEntity any, relType string, relProps map[string]interface{}) error {
	fromMeta, fromPKVal, err := pm.getEntityMetaAndPK(fromEntity)
	if err != nil {
		return err
	}
	toMeta, toPKVal, err := pm.getEntityMetaAndPK(toEntity)
	if err != nil {
		return err
	}
	if err := checkIdent("relationship type", relType); err != nil {
		return err
	}

	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("a", fromMeta.Label).WithProperties(map[string]interface{}{fromMeta.PKProp: fromPKVal})).
		Match(gocypher.N("b", toMeta.Label).WithProperties(map[string]interface{}{toMeta.PKProp: toPKVal})).
		Create(
			gocypher.N("a", ""), // Reference the 'a' alias without its label
			gocypher.R("r", relType).To().WithProperties(relProps),
			gocypher.N("b", ""), // Reference the 'b' alias without its label
		)

	query, params, err := qb.Build()
	if err != nil {
		return err
	}

	_, err = pm.runner.Run(ctx, query, params)
	return classify(err)
}

// getEntityMetaAndPK is an internal helper that retrieves an entity's metadata and primary key value.
// It uses a cache to optimize performance by avoiding repeated reflection.
func (pm *PersistenceManager) getEntityMetaAndPK(entity any) (*entityMetadata, any, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return nil, nil, fmt.Errorf("entity must be a non-nil pointer")
	}

	typ := val.Elem().Type()

	if cached, ok := pm.metaCache.Load(typ); ok {
		meta := cached.(*entityMetadata)
		return meta, val.Elem().FieldByName(meta.PKField).Interface(), nil
	}

	meta, err := parseTagsFromType(typ)
	if err != nil {
		return nil, nil, err
	}
	pm.metaCache.Store(typ, meta)

	return meta, val.Elem().FieldByName(meta.PKField).Interface(), nil
}

// FindGraph executes a graph query defined by a gocypher.QueryBuilder and maps the result
// into a generic graph structure composed of nodes and edges.
//
// The caller is responsible for constructing a valid query via the QueryBuilder, including
// a RETURN clause that specifies which nodes and relationships should be included in the
// final graph. For example, `RETURN m, r, t`.
//
// Nodes and relationships are de-duplicated by element id, so an element returned in
// several rows appears once in the GraphResult.
//
// Returns:
//   - A pointer to a GraphResult containing the de-duplicated nodes and edges from the query.
//   - An ErrNotFound error if the query executes successfully but returns zero records.
//   - Any other error encountered during query building or execution.
func (pm *PersistenceManager) FindGraph(ctx context.Context, qb *gocypher.QueryBuilder) (*GraphResult, error) {
	query, params, err := qb.Build()
	if err != nil {
		return nil, fmt.Errorf("could not build query: %w", err)
	}

	eagerResult, err := pm.runner.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	if len(eagerResult.Records) == 0 {
		return nil, ErrNotFound
	}

	graph := &GraphResult{
		Nodes: make([]*GraphNode, 0),
		Edges: make([]*Edge, 0),
	}
	seenNodeIDs := make(map[string]bool)
	seenEdgeIDs := make(map[string]bool)

	for _, record := range eagerResult.Records {
		for _, value := range record.Values {
			switch v := value.(type) {
			case neo4j.Node:
				if !seenNodeIDs[v.ElementId] {
					graph.Nodes = append(graph.Nodes, &GraphNode{
						ID:         v.ElementId,
						Labels:     v.Labels,
						Properties: v.Props,
					})
					seenNodeIDs[v.ElementId] = true
				}

			case neo4j.Relationship:
				if !seenEdgeIDs[v.ElementId] {
					graph.Edges = append(graph.Edges, &Edge{
						ID:         v.ElementId,
						Source:     v.StartElementId,
						Target:     v.EndElementId,
						Type:       v.Type,
						Properties: v.Props,
					})
					seenEdgeIDs[v.ElementId] = true
				}
			}
		}
	}

	return graph, nil
}
