package neopersist

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Record is a flattened result row.
type Record = map[string]any

// ParseOptions tunes ParseRecord for one call.
type ParseOptions struct {
	// Exclude maps a result key holding a node to the properties stripped from it.
	Exclude map[string][]string
}

// ParseRecord flattens one result row into plain values:
//
//   - a node is flattened to its properties, merged into the top level of the row;
//   - a relationship becomes its property map under its key;
//   - lists, maps, scalars and nulls are kept under their key;
//   - a dotted key "a.f" is grouped as row["a"]["f"].
//
// When the flattened row has exactly one top-level key, that value is returned on
// its own instead of a one-entry map. Single-node queries therefore yield the node
// properties and single-scalar queries yield the scalar.
func ParseRecord(rec *neo4j.Record, opts ParseOptions) any {
	row := make(Record, len(rec.Keys))
	for i, key := range rec.Keys {
		var value any
		if i < len(rec.Values) {
			value = rec.Values[i]
		}
		switch v := value.(type) {
		case neo4j.Node:
			for k, pv := range nodeProps(v, opts.Exclude[key]) {
				row[k] = pv
			}
		case neo4j.Relationship:
			row[key] = copyProps(v.Props, nil)
		default:
			value = normalize(value)
			if dot := strings.IndexByte(key, '.'); dot > 0 && dot < len(key)-1 {
				group, field := key[:dot], key[dot+1:]
				sub, ok := row[group].(Record)
				if !ok {
					sub = make(Record)
					row[group] = sub
				}
				sub[field] = value
				continue
			}
			row[key] = value
		}
	}
	if len(row) == 1 {
		for _, v := range row {
			return v
		}
	}
	return row
}

// ParseRecords applies ParseRecord to every row of a result.
func ParseRecords(res *neo4j.EagerResult, opts ParseOptions) []any {
	if res == nil {
		return nil
	}
	out := make([]any, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, ParseRecord(rec, opts))
	}
	return out
}

func nodeProps(n neo4j.Node, exclude []string) Record {
	return copyProps(n.Props, exclude)
}

func copyProps(props map[string]any, exclude []string) Record {
	out := make(Record, len(props))
	for k, v := range props {
		out[k] = normalize(v)
	}
	for _, k := range exclude {
		delete(out, k)
	}
	return out
}

// normalize flattens graph entities nested inside lists and maps, which is what
// collect(node) returns.
func normalize(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		return copyProps(t.Props, nil)
	case neo4j.Relationship:
		return copyProps(t.Props, nil)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// AsRecord returns v as a Record. It is the inverse of the unwrap rule for callers
// that always expect a map.
func AsRecord(v any) (Record, bool) {
	r, ok := v.(Record)
	return r, ok
}

// Decode maps a parsed row onto out, a pointer to a struct with json tags.
// Numbers are converted weakly (int64 -> int) and embedded structs are squashed.
func Decode(parsed any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Squash:           true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("could not create record decoder: %w", err)
	}
	if err := dec.Decode(parsed); err != nil {
		return fmt.Errorf("could not decode record: %w", err)
	}
	return nil
}
