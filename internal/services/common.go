// Package services implements the domain workflows on top of the graph
// persistence layer and the asset coordinator.
package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pagination is the page/pageSize pair supplied by callers.
type Pagination struct {
	Page     int
	PageSize int
}

// Normalize applies defaults and bounds: page >= 1, pageSize in 1..MaxPageSize.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Options converts the page into skip/limit with the given order.
func (p Pagination) Options(order ...np.Order) np.FindOptions {
	p = p.Normalize()
	return np.FindOptions{Order: order, Skip: (p.Page - 1) * p.PageSize, Limit: p.PageSize}
}

// clock is the time source of a service.
type clock func() time.Time

func nowMillis(now clock) int64 {
	return now().UnixMilli()
}

func newID() string {
	return uuid.NewString()
}

// storeErr translates persistence errors into the caller-facing taxonomy.
func storeErr(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if _, ok := apierr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, np.ErrNotFound):
		return apierr.NotFound(notFound)
	case errors.Is(err, np.ErrConflict):
		return apierr.Conflict("already exists", err)
	default:
		return apierr.Internal("graph store failure", err)
	}
}

// requireAuthor rejects callers that are not the author.
func requireAuthor(caller models.Caller, author models.Author) error {
	if caller.ID == "" || caller.ID != author.ID {
		return apierr.Forbidden("only the author can change this resource")
	}
	return nil
}

// normalizeTags trims, lowercases and de-duplicates tag names, dropping empty ones.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// diffTags returns desired − current and current − desired, both sorted.
func diffTags(current, desired []string) (toAdd, toRemove []string) {
	cur := make(map[string]struct{}, len(current))
	for _, t := range current {
		cur[t] = struct{}{}
	}
	want := make(map[string]struct{}, len(desired))
	for _, t := range desired {
		want[t] = struct{}{}
		if _, ok := cur[t]; !ok {
			toAdd = append(toAdd, t)
		}
	}
	for _, t := range current {
		if _, ok := want[t]; !ok {
			toRemove = append(toRemove, t)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}

func tagTargets(tags []string) []map[string]any {
	out := make([]map[string]any, 0, len(tags))
	for _, t := range tags {
		out = append(out, map[string]any{"name": t})
	}
	return out
}

func stringsOf(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
