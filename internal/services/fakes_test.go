package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/The24thDS/karen-backend/internal/assets"
	"github.com/The24thDS/karen-backend/internal/cache"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
	"github.com/The24thDS/karen-backend/internal/neopersist/neotest"
)

var (
	alice = models.Caller{ID: "u1", Username: "alice"}
	bob   = models.Caller{ID: "u2", Username: "bob"}

	fixedNow = time.UnixMilli(1700000000000)
)

// fakeCoordinator records every side effect instead of touching storage.
type fakeCoordinator struct {
	mu          sync.Mutex
	report      assets.Report
	relocateErr map[string]error
	relocated   []assets.Destination
	removed     []string
	purged      []string
	groups      []assets.Destination
}

var _ assets.Coordinator = (*fakeCoordinator)(nil)

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{report: assets.Report{VertexCount: 3, TriangleCount: 1}}
}

func (f *fakeCoordinator) Validate(context.Context, []assets.FileInfo) (assets.Report, error) {
	return f.report, nil
}

func (f *fakeCoordinator) Relocate(_ context.Context, files []assets.FileInfo, dest assets.Destination) ([]assets.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.relocateErr[dest.Group]; err != nil {
		return nil, err
	}
	f.relocated = append(f.relocated, dest)
	out := make([]assets.Asset, 0, len(files))
	for _, file := range files {
		out = append(out, assets.Asset{Name: file.Name, Size: 10, Type: assets.TypeOf(file.Name)})
	}
	return out, nil
}

func (f *fakeCoordinator) Purge(_ context.Context, owner, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, assets.ModelPrefix(owner, slug))
	return nil
}

func (f *fakeCoordinator) Remove(_ context.Context, dest assets.Destination, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, dest.Key(name))
	return nil
}

func (f *fakeCoordinator) RemoveGroup(_ context.Context, dest assets.Destination) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = append(f.groups, dest)
	return nil
}

// memoryCache is an in-process cache.Recommendations.
type memoryCache struct {
	items       map[string][]models.Recommendation
	invalidated []string
}

var _ cache.Recommendations = (*memoryCache)(nil)

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[string][]models.Recommendation)}
}

func (c *memoryCache) Get(_ context.Context, slug string) ([]models.Recommendation, bool, error) {
	recs, ok := c.items[slug]
	return recs, ok, nil
}

func (c *memoryCache) Set(_ context.Context, slug string, recs []models.Recommendation) error {
	c.items[slug] = recs
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, slug string) error {
	c.invalidated = append(c.invalidated, slug)
	delete(c.items, slug)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestModelService(runner *neotest.Runner, coord *fakeCoordinator, recs cache.Recommendations) *modelService {
	svc := NewModelService(np.NewPersistenceManager(runner), coord, recs, logger.Nop()).(*modelService)
	svc.now = func() time.Time { return fixedNow }
	svc.newID = sequentialIDs()
	return svc
}

func gltfSet() []assets.FileInfo {
	return []assets.FileInfo{{ID: "g1", Name: "scene.gltf"}, {ID: "g2", Name: "scene.bin"}}
}

func chairInput() CreateModelInput {
	return CreateModelInput{
		Name:        "Chair",
		Description: "A wooden chair",
		Tags:        []string{"Chair", " wood ", "chair"},
		Metadata:    map[string]string{"license": "cc-by"},
		Models:      []assets.FileInfo{{ID: "f1", Name: "chair.obj"}},
		Images:      []assets.FileInfo{{ID: "i1", Name: "front.png"}},
		Gltf:        gltfSet(),
	}
}
