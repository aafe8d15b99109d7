// Package neotest provides a scripted in-memory runner for exercising code built
// on neopersist without a database.
package neotest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/The24thDS/karen-backend/internal/neopersist"
)

// Call is one query received by the Runner.
type Call struct {
	Query  string
	Params map[string]any
	InTx   bool
}

// Responder answers a matched query.
type Responder func(params map[string]any) (*neo4j.EagerResult, error)

var _ neopersist.TxRunner = (*Runner)(nil)

type handler struct {
	fragment string
	respond  Responder
}

// Runner records every query and answers it with the first registered responder
// whose fragment occurs in the query text. Unmatched queries get an empty result.
// It implements neopersist.TxRunner; transactions run inline and are counted.
type Runner struct {
	mu           sync.Mutex
	handlers     []handler
	calls        []Call
	inTx         bool
	Transactions int
}

func New() *Runner {
	return &Runner{}
}

// On registers a responder for queries containing fragment.
func (r *Runner) On(fragment string, respond Responder) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, handler{fragment: fragment, respond: respond})
	return r
}

// OnRows answers queries containing fragment with a fixed result.
func (r *Runner) OnRows(fragment string, keys []string, rows ...[]any) *Runner {
	return r.On(fragment, func(map[string]any) (*neo4j.EagerResult, error) {
		return Result(keys, rows...), nil
	})
}

// OnError fails queries containing fragment.
func (r *Runner) OnError(fragment string, err error) *Runner {
	return r.On(fragment, func(map[string]any) (*neo4j.EagerResult, error) {
		return nil, err
	})
}

func (r *Runner) Run(_ context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Query: query, Params: params, InTx: r.inTx})
	var respond Responder
	for _, h := range r.handlers {
		if strings.Contains(query, h.fragment) {
			respond = h.respond
			break
		}
	}
	r.mu.Unlock()
	if respond == nil {
		return &neo4j.EagerResult{}, nil
	}
	return respond(params)
}

func (r *Runner) ExecuteWrite(_ context.Context, work func(tx neopersist.DBRunner) error) error {
	r.mu.Lock()
	r.Transactions++
	r.inTx = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.inTx = false
		r.mu.Unlock()
	}()
	return work(r)
}

// Calls returns a copy of the received queries in order.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Queries returns the received query texts in order.
func (r *Runner) Queries() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Query
	}
	return out
}

// Count returns how many received queries contain fragment.
func (r *Runner) Count(fragment string) int {
	n := 0
	for _, q := range r.Queries() {
		if strings.Contains(q, fragment) {
			n++
		}
	}
	return n
}

// Result builds an eager result from rows of values aligned with keys.
func Result(keys []string, rows ...[]any) *neo4j.EagerResult {
	res := &neo4j.EagerResult{Keys: keys}
	for _, row := range rows {
		res.Records = append(res.Records, &neo4j.Record{Keys: keys, Values: row})
	}
	return res
}

// Node builds a node value carrying props. Its element id is derived from the
// "id" property when present.
func Node(label string, props map[string]any) neo4j.Node {
	id := label
	if v, ok := props["id"]; ok {
		id = fmt.Sprintf("%s:%v", label, v)
	}
	return neo4j.Node{ElementId: id, Labels: []string{label}, Props: props}
}
