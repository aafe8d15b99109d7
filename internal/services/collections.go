package services

import (
	"context"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// CollectionInput is the payload of both store and update.
type CollectionInput struct {
	Name        string
	Description string
	// Visibility is "public" or "private".
	Visibility string
}

func (in CollectionInput) validate() (name string, private bool, err error) {
	name = strings.TrimSpace(in.Name)
	if name == "" {
		return "", false, apierr.Validation("name is required")
	}
	switch in.Visibility {
	case VisibilityPublic:
		return name, false, nil
	case VisibilityPrivate:
		return name, true, nil
	default:
		return "", false, apierr.Validation(`visibility value must be "public" or "private"`)
	}
}

type CollectionService interface {
	Store(ctx context.Context, caller models.Caller, in CollectionInput) (*models.Collection, error)
	Update(ctx context.Context, caller models.Caller, collectionSlug string, in CollectionInput) (*models.Collection, error)
	Remove(ctx context.Context, caller models.Caller, collectionSlug string) error
	// FindAll lists public collections, newest first.
	FindAll(ctx context.Context) ([]models.Collection, error)
	// FindAllForUser lists the collections of username; private ones only when
	// the caller is that user.
	FindAllForUser(ctx context.Context, caller models.Caller, username string) ([]models.Collection, error)
	FindOne(ctx context.Context, caller models.Caller, collectionSlug string) (*models.CollectionDetails, error)
	FindOneWithModels(ctx context.Context, caller models.Caller, collectionSlug string) (*models.CollectionDetails, error)
	AddModel(ctx context.Context, caller models.Caller, collectionSlug, modelSlug string) error
	RemoveModel(ctx context.Context, caller models.Caller, collectionSlug, modelSlug string) error
	// FindAllForModel lists the collections holding a model that the caller may see.
	FindAllForModel(ctx context.Context, caller models.Caller, modelSlug string) ([]models.CollectionDetails, error)
}

type collectionService struct {
	pm          *np.PersistenceManager
	collections *np.Repository[models.Collection]
	log         *logger.Logger
	now         clock
	newID       func() string
}

func NewCollectionService(pm *np.PersistenceManager, log *logger.Logger) (CollectionService, error) {
	collections, err := np.RepositoryFor[models.Collection](pm)
	if err != nil {
		return nil, err
	}
	return &collectionService{
		pm:          pm,
		collections: collections,
		log:         log.With("service", "CollectionService"),
		now:         time.Now,
		newID:       newID,
	}, nil
}

var (
	createdCollection = np.Relation{Type: models.RelCreatedCollection, Direction: np.Outgoing}
	createdBy         = np.Relation{Type: models.RelCreatedCollection, Direction: np.Incoming}
	isInCollection    = np.Relation{Type: models.RelIsInCollection, Direction: np.Outgoing}
)

func collectionBySlug(collectionSlug string) np.Node {
	return np.By("c", models.LabelCollection, map[string]any{"slug": collectionSlug})
}

// ownerOf projects the creator of c under "user".
func ownerOf() np.Related {
	return np.Related{
		Node: np.Node{Alias: "u", Label: models.LabelUser, Return: []np.ReturnProp{
			{Prop: "id", Alias: "user.id"},
			{Prop: "username", Alias: "user.username"},
		}},
		Relation: createdBy,
		From:     "c",
	}
}

func (s *collectionService) Store(ctx context.Context, caller models.Caller, in CollectionInput) (*models.Collection, error) {
	name, private, err := in.validate()
	if err != nil {
		return nil, err
	}
	userNode := np.By("u", models.LabelUser, map[string]any{"id": caller.ID})
	if n, err := s.pm.Count(ctx, userNode); err != nil {
		return nil, storeErr(err, "user not found")
	} else if n == 0 {
		return nil, apierr.Unauthorized("unknown user")
	}

	id := s.newID()
	now := nowMillis(s.now)
	c := models.Collection{
		ID:          id,
		Slug:        slug.Make(name + "_" + id),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Private:     private,
		Created:     now,
		Updated:     now,
	}
	err = s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		if _, err := tx.CreateEntity(ctx, &c); err != nil {
			return err
		}
		return tx.CreateRelation(ctx, &models.User{ID: caller.ID}, &c, models.RelCreatedCollection, map[string]interface{}{"created": now})
	})
	if err != nil {
		return nil, storeErr(err, "user not found")
	}
	s.log.Info("collection created", "slug", c.Slug, "user_id", caller.ID)
	return &c, nil
}

func (s *collectionService) findWithOwner(ctx context.Context, collectionSlug string) (*models.CollectionDetails, error) {
	row, err := s.pm.FindOneWithRelated(ctx, collectionBySlug(collectionSlug), []np.Related{ownerOf()})
	if err != nil {
		return nil, storeErr(err, "collection not found")
	}
	var out models.CollectionDetails
	if err := np.Decode(row, &out); err != nil {
		return nil, apierr.Internal("could not read collection", err)
	}
	return &out, nil
}

func (s *collectionService) Update(ctx context.Context, caller models.Caller, collectionSlug string, in CollectionInput) (*models.Collection, error) {
	name, private, err := in.validate()
	if err != nil {
		return nil, err
	}
	current, err := s.findWithOwner(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return nil, err
	}

	c := current.Collection
	c.Name = name
	c.Description = strings.TrimSpace(in.Description)
	c.Private = private
	c.Updated = nowMillis(s.now)
	if err := s.collections.Save(ctx, &c); err != nil {
		return nil, storeErr(err, "collection not found")
	}
	s.log.Info("collection updated", "slug", collectionSlug)
	return &c, nil
}

func (s *collectionService) Remove(ctx context.Context, caller models.Caller, collectionSlug string) error {
	current, err := s.findWithOwner(ctx, collectionSlug)
	if err != nil {
		return err
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return err
	}
	if err := s.collections.Delete(ctx, current.ID); err != nil {
		return storeErr(err, "collection not found")
	}
	s.log.Info("collection removed", "slug", collectionSlug)
	return nil
}

func decodeCollections(rows []any) ([]models.Collection, error) {
	out := make([]models.Collection, 0, len(rows))
	for _, row := range rows {
		var c models.Collection
		if err := np.Decode(row, &c); err != nil {
			return nil, apierr.Internal("could not read collection", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func newestFirst(alias string) np.FindOptions {
	return np.FindOptions{Order: []np.Order{{Alias: alias, Prop: "created", Desc: true}}}
}

func (s *collectionService) FindAll(ctx context.Context) ([]models.Collection, error) {
	rows, err := s.pm.FindMany(ctx,
		np.By("c", models.LabelCollection, map[string]any{"private": false}), newestFirst("c"))
	if err != nil {
		return nil, storeErr(err, "collections not found")
	}
	return decodeCollections(rows)
}

func (s *collectionService) FindAllForUser(ctx context.Context, caller models.Caller, username string) ([]models.Collection, error) {
	u := np.By("u", models.LabelUser, map[string]any{"username": username})
	u.NoReturn = true
	c := np.Node{Alias: "c", Label: models.LabelCollection}
	if caller.Username != username {
		c.Match = map[string]any{"private": false}
	}
	rows, err := s.pm.FindWithRelated(ctx, u, []np.Related{{Node: c, Relation: createdCollection}}, newestFirst("c"))
	if err != nil {
		return nil, storeErr(err, "collections not found")
	}
	return decodeCollections(rows)
}

// visible rejects private collections for everybody but their owner.
func visible(caller models.Caller, c *models.CollectionDetails) error {
	if c.Private && (caller.ID == "" || caller.ID != c.User.ID) {
		return apierr.Forbidden("this collection is private")
	}
	return nil
}

func (s *collectionService) FindOne(ctx context.Context, caller models.Caller, collectionSlug string) (*models.CollectionDetails, error) {
	c, err := s.findWithOwner(ctx, collectionSlug)
	if err != nil {
		return nil, err
	}
	if err := visible(caller, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *collectionService) FindOneWithModels(ctx context.Context, caller models.Caller, collectionSlug string) (*models.CollectionDetails, error) {
	c, err := s.FindOne(ctx, caller, collectionSlug)
	if err != nil {
		return nil, err
	}
	source := collectionBySlug(collectionSlug)
	source.NoReturn = true
	rows, err := s.pm.FindWithRelated(ctx, source, []np.Related{
		{
			Node:     np.Node{Alias: "m", Label: models.LabelModel, Return: summaryProps()},
			Relation: np.Relation{Type: models.RelIsInCollection, Direction: np.Incoming},
		},
		{
			Node: np.Node{Alias: "mu", Label: models.LabelUser, Return: []np.ReturnProp{
				{Prop: "username", Alias: "user.username"},
			}},
			Relation: uploadedBy,
			From:     "m",
		},
	}, np.FindOptions{Order: []np.Order{{Alias: "m", Prop: "name"}}})
	if err != nil {
		return nil, storeErr(err, "collection not found")
	}
	page, err := summaries(rows, Pagination{}, int64(len(rows)))
	if err != nil {
		return nil, err
	}
	c.Models = page.Items
	return c, nil
}

// membership loads the collection, checks authorship and the model's existence.
func (s *collectionService) membership(ctx context.Context, caller models.Caller, collectionSlug, modelSlug string) error {
	current, err := s.findWithOwner(ctx, collectionSlug)
	if err != nil {
		return err
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return err
	}
	n, err := s.pm.Count(ctx, modelBySlug(modelSlug))
	if err != nil {
		return storeErr(err, "model not found")
	}
	if n == 0 {
		return apierr.NotFound("model not found")
	}
	return nil
}

func (s *collectionService) touch(ctx context.Context, tx *np.PersistenceManager, collectionSlug string) error {
	c := collectionBySlug(collectionSlug)
	c.Return = []np.ReturnProp{{Prop: "updated", Alias: "updated"}}
	_, err := tx.SetProperties(ctx, c, map[string]any{"updated": nowMillis(s.now)})
	return err
}

func (s *collectionService) AddModel(ctx context.Context, caller models.Caller, collectionSlug, modelSlug string) error {
	if err := s.membership(ctx, caller, collectionSlug, modelSlug); err != nil {
		return err
	}
	err := s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		if err := tx.Relate(ctx, modelBySlug(modelSlug), isInCollection, collectionBySlug(collectionSlug)); err != nil {
			return err
		}
		return s.touch(ctx, tx, collectionSlug)
	})
	if err != nil {
		return storeErr(err, "collection not found")
	}
	return nil
}

func (s *collectionService) RemoveModel(ctx context.Context, caller models.Caller, collectionSlug, modelSlug string) error {
	if err := s.membership(ctx, caller, collectionSlug, modelSlug); err != nil {
		return err
	}
	err := s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		removed, err := tx.Disconnect(ctx, modelBySlug(modelSlug), isInCollection, collectionBySlug(collectionSlug))
		if err != nil || removed == 0 {
			return err
		}
		return s.touch(ctx, tx, collectionSlug)
	})
	if err != nil {
		return storeErr(err, "collection not found")
	}
	return nil
}

func (s *collectionService) FindAllForModel(ctx context.Context, caller models.Caller, modelSlug string) ([]models.CollectionDetails, error) {
	m := modelBySlug(modelSlug)
	m.NoReturn = true
	rows, err := s.pm.FindWithRelated(ctx, m, []np.Related{
		{Node: np.Node{Alias: "c", Label: models.LabelCollection}, Relation: isInCollection},
		ownerOf(),
	}, newestFirst("c"))
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	out := make([]models.CollectionDetails, 0, len(rows))
	for _, row := range rows {
		var c models.CollectionDetails
		if err := np.Decode(row, &c); err != nil {
			return nil, apierr.Internal("could not read collection", err)
		}
		if visible(caller, &c) != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
