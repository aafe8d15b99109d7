package neopersist

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdent rejects anything that cannot be written verbatim into a query.
// Labels, relationship types and property keys cannot be parameterized in
// Cypher, so they are restricted to plain identifiers instead.
func checkIdent(kind, name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: %s %q", ErrInvalidDescriptor, kind, name)
	}
	return nil
}

// queryWriter renders Cypher text line by line while binding every value as a
// numbered parameter.
type queryWriter struct {
	lines  []string
	params map[string]any
	next   int
	err    error
}

func newQueryWriter() *queryWriter {
	return &queryWriter{params: make(map[string]any)}
}

func (w *queryWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *queryWriter) ident(kind, name string) string {
	if err := checkIdent(kind, name); err != nil {
		w.fail(err)
	}
	return name
}

// param binds v and returns its placeholder.
func (w *queryWriter) param(v any) string {
	name := fmt.Sprintf("p%d", w.next)
	w.next++
	w.params[name] = v
	return "$" + name
}

// named binds v under a fixed name (skip, limit, index, ...).
func (w *queryWriter) named(name string, v any) string {
	w.params[name] = v
	return "$" + name
}

func (w *queryWriter) line(format string, args ...any) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func (w *queryWriter) build() (string, map[string]any, error) {
	if w.err != nil {
		return "", nil, w.err
	}
	return strings.Join(w.lines, "\n"), w.params, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// node renders (alias:Label {k: $p0, ...}). An empty label renders a bare
// reference to an alias bound earlier.
func (w *queryWriter) node(alias, label string, props map[string]any) string {
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(w.ident("alias", alias))
	if label != "" {
		sb.WriteString(":")
		sb.WriteString(w.ident("label", label))
	}
	if len(props) > 0 {
		parts := make([]string, 0, len(props))
		for _, k := range sortedKeys(props) {
			parts = append(parts, w.ident("property", k)+": "+w.param(props[k]))
		}
		sb.WriteString(" {")
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteString("}")
	}
	sb.WriteString(")")
	return sb.String()
}

// rel renders the relationship arrow, optionally binding it to an alias.
func (w *queryWriter) rel(alias string, r Relation) string {
	inner := ":" + w.ident("relationship type", r.Type)
	if alias != "" {
		inner = w.ident("alias", alias) + inner
	}
	switch r.Direction {
	case Outgoing:
		return "-[" + inner + "]->"
	case Incoming:
		return "<-[" + inner + "]-"
	default:
		return "-[" + inner + "]-"
	}
}

// inConditions renders alias.prop IN $pN for every entry of n.In.
func (w *queryWriter) inConditions(n Node) []string {
	conds := make([]string, 0, len(n.In))
	for _, k := range sortedKeys(n.In) {
		conds = append(conds, fmt.Sprintf("%s.%s IN %s", n.Alias, w.ident("property", k), w.param(n.In[k])))
	}
	return conds
}

func (w *queryWriter) where(conds []string) {
	if len(conds) > 0 {
		w.line("WHERE %s", strings.Join(conds, " AND "))
	}
}

// matchSource writes MATCH for the source node plus its IN filters.
func (w *queryWriter) matchSource(n Node) {
	w.line("MATCH %s", w.node(n.Alias, n.Label, n.Match))
	w.where(w.inConditions(n))
}

// matchRelated writes one MATCH (or OPTIONAL MATCH) per related descriptor.
func (w *queryWriter) matchRelated(source Node, related []Related) {
	for _, r := range related {
		from := r.From
		if from == "" {
			from = source.Alias
		}
		keyword := "MATCH"
		if r.Optional {
			keyword = "OPTIONAL MATCH"
		}
		w.line("%s (%s)%s%s", keyword, w.ident("alias", from), w.rel("", r.Relation), w.node(r.Alias, r.Label, r.Match))
		w.where(w.inConditions(r.Node))
	}
}

// projection renders the RETURN items of one node.
func (w *queryWriter) projection(n Node) []string {
	if n.NoReturn {
		return nil
	}
	if len(n.Return) == 0 {
		return []string{w.ident("alias", n.Alias)}
	}
	items := make([]string, 0, len(n.Return))
	for _, rp := range n.Return {
		expr := w.ident("alias", n.Alias)
		if rp.Prop != "" {
			expr += "." + w.ident("property", rp.Prop)
			if rp.Head {
				expr += "[0]"
			}
		}
		switch rp.Aggregate {
		case AggCount:
			expr = "count(" + expr + ")"
		case AggCountDistinct:
			expr = "count(DISTINCT " + expr + ")"
		case AggCollect:
			expr = "collect(" + expr + ")"
		case AggCollectDistinct:
			expr = "collect(DISTINCT " + expr + ")"
		}
		alias := rp.Alias
		if alias == "" {
			if rp.Prop != "" && rp.Aggregate == AggNone {
				alias = n.Alias + "." + rp.Prop
			} else {
				alias = n.Alias
			}
		}
		if alias == expr {
			items = append(items, expr)
			continue
		}
		items = append(items, expr+" AS `"+strings.ReplaceAll(alias, "`", "")+"`")
	}
	return items
}

func (w *queryWriter) returns(nodes ...Node) {
	var items []string
	for _, n := range nodes {
		items = append(items, w.projection(n)...)
	}
	if len(items) == 0 {
		w.fail(fmt.Errorf("%w: nothing to return", ErrInvalidDescriptor))
		return
	}
	w.line("RETURN %s", strings.Join(items, ", "))
}

func (w *queryWriter) page(opts FindOptions) {
	if len(opts.Order) > 0 {
		parts := make([]string, 0, len(opts.Order))
		for _, o := range opts.Order {
			part := w.ident("alias", o.Alias) + "." + w.ident("property", o.Prop)
			if o.Desc {
				part += " DESC"
			}
			parts = append(parts, part)
		}
		w.line("ORDER BY %s", strings.Join(parts, ", "))
	}
	if opts.Skip > 0 {
		w.line("SKIP %s", w.named("skip", int64(opts.Skip)))
	}
	if opts.Limit > 0 {
		w.line("LIMIT %s", w.named("limit", int64(opts.Limit)))
	}
}
