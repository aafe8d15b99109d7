package services

import (
	"context"
	"sort"

	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

type TagService interface {
	FindAll(ctx context.Context) ([]string, error)
}

type tagService struct {
	tags *np.Repository[models.Tag]
	log  *logger.Logger
}

func NewTagService(pm *np.PersistenceManager, log *logger.Logger) (TagService, error) {
	tags, err := np.RepositoryFor[models.Tag](pm)
	if err != nil {
		return nil, err
	}
	return &tagService{tags: tags, log: log.With("service", "TagService")}, nil
}

// FindAll returns every tag name in alphabetical order.
func (s *tagService) FindAll(ctx context.Context) ([]string, error) {
	tags, err := s.tags.FindAll(ctx)
	if err != nil {
		return nil, storeErr(err, "tags not found")
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names, nil
}
