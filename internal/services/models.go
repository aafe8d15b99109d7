package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"golang.org/x/sync/errgroup"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/assets"
	"github.com/The24thDS/karen-backend/internal/cache"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

// CreateModelInput is the payload of a model upload. Every file refers to an
// upload already received into the temporary directory.
type CreateModelInput struct {
	Name        string
	Description string
	Tags        []string
	Metadata    map[string]string
	Models      []assets.FileInfo
	Images      []assets.FileInfo
	Gltf        []assets.FileInfo
}

// UpdateModelInput replaces the scalar fields and tag set of a model. Supplied
// images and model files are appended; a supplied glTF set replaces the
// previous one.
type UpdateModelInput struct {
	Name        string
	Description string
	Tags        []string
	Metadata    map[string]string
	Models      []assets.FileInfo
	Images      []assets.FileInfo
	Gltf        []assets.FileInfo
}

type ModelService interface {
	Create(ctx context.Context, caller models.Caller, in CreateModelInput) (*models.Model, error)
	Update(ctx context.Context, caller models.Caller, modelSlug string, in UpdateModelInput) (*models.Model, error)
	Remove(ctx context.Context, caller models.Caller, modelSlug string) error
	FindOne(ctx context.Context, modelSlug string) (*models.ModelDetails, error)
	FindAll(ctx context.Context, page Pagination) (*models.Page[models.ModelSummary], error)
	FindAllForUser(ctx context.Context, username string, page Pagination) (*models.Page[models.ModelSummary], error)
	Search(ctx context.Context, text string, page Pagination) ([]models.ModelSummary, error)
	IncrementViews(ctx context.Context, modelSlug string) (int64, error)
	FindAuthor(ctx context.Context, modelSlug string) (*models.Author, error)
	RemoveAsset(ctx context.Context, caller models.Caller, modelSlug, assetType, name string) error
	Graph(ctx context.Context, modelSlug string) (*np.GraphResult, error)
}

type modelService struct {
	pm     *np.PersistenceManager
	assets assets.Coordinator
	recs   cache.Recommendations
	log    *logger.Logger
	now    clock
	newID  func() string
}

func NewModelService(pm *np.PersistenceManager, coordinator assets.Coordinator, recs cache.Recommendations, log *logger.Logger) ModelService {
	return &modelService{
		pm:     pm,
		assets: coordinator,
		recs:   recs,
		log:    log.With("service", "ModelService"),
		now:    time.Now,
		newID:  newID,
	}
}

var (
	uploadedBy = np.Relation{Type: models.RelUploaded, Direction: np.Incoming}
	taggedWith = np.Relation{Type: models.RelTaggedWith, Direction: np.Outgoing}
	hasFile    = np.Relation{Type: models.RelHasFile, Direction: np.Outgoing}
)

func modelBySlug(modelSlug string) np.Node {
	return np.By("m", models.LabelModel, map[string]any{"slug": modelSlug})
}

// authorOf projects the uploader of m under "user".
func authorOf() np.Related {
	return np.Related{
		Node: np.Node{Alias: "u", Label: models.LabelUser, Return: []np.ReturnProp{
			{Prop: "id", Alias: "user.id"},
			{Prop: "username", Alias: "user.username"},
		}},
		Relation: uploadedBy,
	}
}

// tagsOf collects the tag names of m under "tags".
func tagsOf() np.Related {
	return np.Related{
		Node: np.Node{Alias: "t", Label: models.LabelTag, Return: []np.ReturnProp{
			{Prop: "name", Alias: "tags", Aggregate: np.AggCollectDistinct},
		}},
		Relation: taggedWith,
		Optional: true,
	}
}

func summaryProps() []np.ReturnProp {
	return []np.ReturnProp{
		{Prop: "name", Alias: "name"},
		{Prop: "slug", Alias: "slug"},
		{Prop: "images", Head: true, Alias: "image"},
	}
}

func (s *modelService) Create(ctx context.Context, caller models.Caller, in CreateModelInput) (*models.Model, error) {
	name := strings.TrimSpace(in.Name)
	tags := normalizeTags(in.Tags)
	switch {
	case name == "":
		return nil, apierr.Validation("name is required")
	case len(tags) == 0:
		return nil, apierr.Validation("at least one tag is required")
	case len(in.Models) == 0:
		return nil, apierr.Validation("at least one model file is required")
	case len(in.Images) == 0:
		return nil, apierr.Validation("at least one image is required")
	case len(in.Gltf) == 0:
		return nil, apierr.Validation("a gltf payload is required")
	}
	metadata, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}
	report, err := s.validateGltf(ctx, in.Gltf)
	if err != nil {
		return nil, err
	}
	primary, _ := assets.PrimaryGltf(in.Gltf)

	userNode := np.By("u", models.LabelUser, map[string]any{"id": caller.ID})
	if n, err := s.pm.Count(ctx, userNode); err != nil {
		return nil, storeErr(err, "user not found")
	} else if n == 0 {
		return nil, apierr.Unauthorized("unknown user")
	}

	id := s.newID()
	modelSlug := slug.Make(name + "_" + id)
	moved, err := s.relocate(ctx, caller.Username, modelSlug, map[string][]assets.FileInfo{
		assets.GroupFiles:  in.Models,
		assets.GroupImages: in.Images,
		assets.GroupGltf:   in.Gltf,
	})
	if err != nil {
		return nil, apierr.Internal("could not store model assets", err)
	}

	props := map[string]any{
		"id":                 id,
		"slug":               modelSlug,
		"name":               name,
		"description":        strings.TrimSpace(in.Description),
		"images":             assetNames(moved[assets.GroupImages]),
		"gltf":               primary.Name,
		"gltfFiles":          assetNames(moved[assets.GroupGltf]),
		"views":              int64(0),
		"downloads":          int64(0),
		"totalVertexCount":   report.VertexCount,
		"totalTriangleCount": report.TriangleCount,
		"created_at":         nowMillis(s.now),
	}
	if metadata != "" {
		props["metadata"] = metadata
	}

	var created np.Record
	err = s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		rec, err := tx.CreateOne(ctx, models.LabelModel, props)
		if err != nil {
			return err
		}
		created = rec
		byID := np.By("m", models.LabelModel, map[string]any{"id": id})
		if err := tx.Relate(ctx, userNode, np.Relation{Type: models.RelUploaded}, byID); err != nil {
			return err
		}
		for _, t := range tags {
			if err := tx.MergeConnect(ctx, byID, models.LabelTag, tagTargets([]string{t}), taggedWith); err != nil {
				return err
			}
		}
		return tx.ConnectNew(ctx, byID, models.LabelFile, s.fileTargets(moved[assets.GroupFiles]), hasFile)
	})
	if err != nil {
		s.log.Warn("model persistence failed, purging relocated assets", "slug", modelSlug, "error", err)
		if perr := s.assets.Purge(ctx, caller.Username, modelSlug); perr != nil {
			s.log.Error("could not purge assets of unsaved model", "slug", modelSlug, "error", perr)
		}
		return nil, storeErr(err, "user not found")
	}

	var out models.Model
	if err := np.Decode(created, &out); err != nil {
		return nil, apierr.Internal("could not read created model", err)
	}
	s.log.Info("model created", "slug", modelSlug, "user_id", caller.ID, "tags", len(tags))
	return &out, nil
}

// validateGltf requires exactly one .gltf document in files and a clean report
// from the coordinator. It has no side effects.
func (s *modelService) validateGltf(ctx context.Context, files []assets.FileInfo) (assets.Report, error) {
	if _, err := assets.PrimaryGltf(files); err != nil {
		return assets.Report{}, apierr.Validation(err.Error())
	}
	report, err := s.assets.Validate(ctx, files)
	if err != nil {
		return report, apierr.Internal("could not validate gltf payload", err)
	}
	if !report.Valid() {
		return report, apierr.Validation("invalid gltf payload", report.Errors...)
	}
	return report, nil
}

// relocate moves every non-empty group concurrently. When a group fails, the
// groups already moved are deleted again.
func (s *modelService) relocate(ctx context.Context, owner, modelSlug string, groups map[string][]assets.FileInfo) (map[string][]assets.Asset, error) {
	var mu sync.Mutex
	moved := make(map[string][]assets.Asset, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for group, files := range groups {
		if len(files) == 0 {
			continue
		}
		g.Go(func() error {
			out, err := s.assets.Relocate(gctx, files, assets.Destination{Owner: owner, Slug: modelSlug, Group: group})
			if err != nil {
				return fmt.Errorf("%s: %w", group, err)
			}
			mu.Lock()
			moved[group] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(ctx, owner, modelSlug, moved)
		return nil, err
	}
	return moved, nil
}

func (s *modelService) discard(ctx context.Context, owner, modelSlug string, moved map[string][]assets.Asset) {
	for group, list := range moved {
		dest := assets.Destination{Owner: owner, Slug: modelSlug, Group: group}
		for _, a := range list {
			if err := s.assets.Remove(ctx, dest, a.Name); err != nil {
				s.log.Warn("could not remove relocated asset", "key", dest.Key(a.Name), "error", err)
			}
		}
	}
}

func (s *modelService) fileTargets(list []assets.Asset) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, a := range list {
		out = append(out, map[string]any{"id": s.newID(), "name": a.Name, "size": a.Size, "type": a.Type})
	}
	return out
}

func assetNames(list []assets.Asset) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.Name)
	}
	return out
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", apierr.Validation("metadata must be a string map")
	}
	return string(b), nil
}

type modelState struct {
	ID        string        `json:"id"`
	Gltf      string        `json:"gltf"`
	GltfFiles []string      `json:"gltfFiles"`
	Images    []string      `json:"images"`
	User      models.Author `json:"user"`
	Tags      []string      `json:"tags"`
	Files     []string      `json:"files"`
}

// staleGltf lists the names of the previous glTF set that the new set did not
// overwrite. Models stored before the set was recorded only know their document.
func (st modelState) staleGltf(replacement []assets.Asset) []string {
	previous := st.GltfFiles
	if len(previous) == 0 && st.Gltf != "" {
		previous = []string{st.Gltf}
	}
	kept := make(map[string]bool, len(replacement))
	for _, a := range replacement {
		kept[a.Name] = true
	}
	var stale []string
	for _, name := range previous {
		if !kept[name] {
			stale = append(stale, name)
		}
	}
	return stale
}

func (s *modelService) Update(ctx context.Context, caller models.Caller, modelSlug string, in UpdateModelInput) (*models.Model, error) {
	name := strings.TrimSpace(in.Name)
	tags := normalizeTags(in.Tags)
	switch {
	case name == "":
		return nil, apierr.Validation("name is required")
	case len(tags) == 0:
		return nil, apierr.Validation("at least one tag is required")
	}
	metadata, err := encodeMetadata(in.Metadata)
	if err != nil {
		return nil, err
	}

	row, err := s.pm.FindOneWithRelated(ctx,
		np.Node{Alias: "m", Label: models.LabelModel, Match: map[string]any{"slug": modelSlug},
			Return: []np.ReturnProp{{Prop: "gltf", Alias: "gltf"}, {Prop: "gltfFiles", Alias: "gltfFiles"}}},
		[]np.Related{authorOf(), tagsOf()})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	var current modelState
	if err := np.Decode(row, &current); err != nil {
		return nil, apierr.Internal("could not read model", err)
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return nil, err
	}

	var report *assets.Report
	var primary assets.FileInfo
	if len(in.Gltf) > 0 {
		r, err := s.validateGltf(ctx, in.Gltf)
		if err != nil {
			return nil, err
		}
		report = &r
		primary, _ = assets.PrimaryGltf(in.Gltf)
	}

	owner := current.User.Username
	moved, err := s.relocate(ctx, owner, modelSlug, map[string][]assets.FileInfo{
		assets.GroupFiles:  in.Models,
		assets.GroupImages: in.Images,
		assets.GroupGltf:   in.Gltf,
	})
	if err != nil {
		return nil, apierr.Internal("could not store model assets", err)
	}

	toAdd, toRemove := diffTags(current.Tags, tags)
	var updated any
	err = s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		m := modelBySlug(modelSlug)
		if imgs := moved[assets.GroupImages]; len(imgs) > 0 {
			if _, err := tx.SetWithDefault(ctx, m, "images", np.Update{Op: np.OpAdd, Operand: assetNames(imgs)}, []string{}); err != nil {
				return err
			}
		}
		if report != nil {
			if _, err := tx.SetProperties(ctx, m, map[string]any{
				"gltf":               primary.Name,
				"gltfFiles":          assetNames(moved[assets.GroupGltf]),
				"totalVertexCount":   report.VertexCount,
				"totalTriangleCount": report.TriangleCount,
			}); err != nil {
				return err
			}
		}
		if err := tx.ConnectNew(ctx, m, models.LabelFile, s.fileTargets(moved[assets.GroupFiles]), hasFile); err != nil {
			return err
		}
		for _, t := range toAdd {
			if err := tx.MergeConnect(ctx, m, models.LabelTag, tagTargets([]string{t}), taggedWith); err != nil {
				return err
			}
		}
		for _, t := range toRemove {
			if _, err := tx.Disconnect(ctx, m, taggedWith, np.By("t", models.LabelTag, map[string]any{"name": t})); err != nil {
				return err
			}
		}
		props := map[string]any{"name": name, "description": strings.TrimSpace(in.Description)}
		if in.Metadata != nil {
			props["metadata"] = metadata
		}
		var err error
		updated, err = tx.SetProperties(ctx, m, props)
		return err
	})
	if err != nil {
		s.log.Warn("model update failed, removing relocated assets", "slug", modelSlug, "error", err)
		s.discard(ctx, owner, modelSlug, moved)
		return nil, storeErr(err, "model not found")
	}

	if report != nil {
		dest := assets.Destination{Owner: owner, Slug: modelSlug, Group: assets.GroupGltf}
		for _, name := range current.staleGltf(moved[assets.GroupGltf]) {
			if err := s.assets.Remove(ctx, dest, name); err != nil {
				s.log.Warn("could not remove replaced gltf asset", "key", dest.Key(name), "error", err)
			}
		}
	}
	s.invalidate(ctx, modelSlug)

	var out models.Model
	if err := np.Decode(updated, &out); err != nil {
		return nil, apierr.Internal("could not read updated model", err)
	}
	s.log.Info("model updated", "slug", modelSlug, "tags_added", len(toAdd), "tags_removed", len(toRemove))
	return &out, nil
}

func (s *modelService) Remove(ctx context.Context, caller models.Caller, modelSlug string) error {
	row, err := s.pm.FindOneWithRelated(ctx,
		np.Node{Alias: "m", Label: models.LabelModel, Match: map[string]any{"slug": modelSlug},
			Return: []np.ReturnProp{{Prop: "id", Alias: "id"}}},
		[]np.Related{authorOf(), {
			Node: np.Node{Alias: "f", Label: models.LabelFile, Return: []np.ReturnProp{
				{Prop: "name", Alias: "files", Aggregate: np.AggCollect},
			}},
			Relation: hasFile,
			Optional: true,
		}})
	if err != nil {
		return storeErr(err, "model not found")
	}
	var current modelState
	if err := np.Decode(row, &current); err != nil {
		return apierr.Internal("could not read model", err)
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return err
	}

	err = s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		_, err := tx.DetachDelete(ctx, modelBySlug(modelSlug), np.Related{
			Node:     np.Node{Alias: "f", Label: models.LabelFile},
			Relation: hasFile,
			Optional: true,
		})
		return err
	})
	if err != nil {
		return storeErr(err, "model not found")
	}

	if err := s.assets.Purge(ctx, current.User.Username, modelSlug); err != nil {
		s.log.Error("model removed but its assets could not be purged", "slug", modelSlug, "error", err)
		return apierr.Internal("model removed but its assets could not be purged", err)
	}
	s.invalidate(ctx, modelSlug)
	s.log.Info("model removed", "slug", modelSlug, "files", len(current.Files))
	return nil
}

func (s *modelService) invalidate(ctx context.Context, modelSlug string) {
	if err := s.recs.Invalidate(ctx, modelSlug); err != nil {
		s.log.Warn("could not invalidate recommendations", "slug", modelSlug, "error", err)
	}
}

func (s *modelService) FindOne(ctx context.Context, modelSlug string) (*models.ModelDetails, error) {
	row, err := s.pm.FindOneWithRelated(ctx, modelBySlug(modelSlug), []np.Related{
		authorOf(),
		tagsOf(),
		{
			Node: np.Node{Alias: "f", Label: models.LabelFile, Return: []np.ReturnProp{
				{Alias: "files", Aggregate: np.AggCollectDistinct},
			}},
			Relation: hasFile,
			Optional: true,
		},
	})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	var out models.ModelDetails
	if err := np.Decode(row, &out); err != nil {
		return nil, apierr.Internal("could not read model", err)
	}
	return &out, nil
}

func (s *modelService) FindAll(ctx context.Context, page Pagination) (*models.Page[models.ModelSummary], error) {
	source := np.Node{Alias: "m", Label: models.LabelModel, Return: summaryProps()}
	author := np.Related{
		Node:     np.Node{Alias: "u", Label: models.LabelUser, Return: []np.ReturnProp{{Prop: "username", Alias: "user.username"}}},
		Relation: uploadedBy,
	}
	rows, err := s.pm.FindWithRelated(ctx, source, []np.Related{author},
		page.Options(np.Order{Alias: "m", Prop: "created_at", Desc: true}))
	if err != nil {
		return nil, storeErr(err, "models not found")
	}
	total, err := s.pm.Count(ctx, np.Node{Alias: "m", Label: models.LabelModel})
	if err != nil {
		return nil, storeErr(err, "models not found")
	}
	return summaries(rows, page, total)
}

func (s *modelService) FindAllForUser(ctx context.Context, username string, page Pagination) (*models.Page[models.ModelSummary], error) {
	source := np.Node{Alias: "u", Label: models.LabelUser, Match: map[string]any{"username": username},
		Return: []np.ReturnProp{{Prop: "username", Alias: "user.username"}}}
	uploaded := np.Related{
		Node:     np.Node{Alias: "m", Label: models.LabelModel, Return: summaryProps()},
		Relation: np.Relation{Type: models.RelUploaded, Direction: np.Outgoing},
	}
	rows, err := s.pm.FindWithRelated(ctx, source, []np.Related{uploaded},
		page.Options(np.Order{Alias: "m", Prop: "created_at", Desc: true}))
	if err != nil {
		return nil, storeErr(err, "models not found")
	}
	total, err := s.pm.Count(ctx, np.By("u", models.LabelUser, map[string]any{"username": username}),
		np.Related{Node: np.Node{Alias: "m", Label: models.LabelModel}, Relation: uploaded.Relation})
	if err != nil {
		return nil, storeErr(err, "models not found")
	}
	return summaries(rows, page, total)
}

func summaries(rows []any, page Pagination, total int64) (*models.Page[models.ModelSummary], error) {
	page = page.Normalize()
	out := &models.Page[models.ModelSummary]{
		Items:    make([]models.ModelSummary, 0, len(rows)),
		Page:     page.Page,
		PageSize: page.PageSize,
		Total:    total,
	}
	for _, row := range rows {
		var item models.ModelSummary
		if err := np.Decode(row, &item); err != nil {
			return nil, apierr.Internal("could not read model", err)
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// luceneSpecial are the characters the full-text query parser treats as syntax.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

func escapeLucene(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if strings.ContainsRune(luceneSpecial, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *modelService) Search(ctx context.Context, text string, page Pagination) ([]models.ModelSummary, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apierr.Validation("search text is required")
	}
	rows, err := s.pm.Search(ctx, np.SearchIndex, escapeLucene(text),
		np.Node{Alias: "m", Label: models.LabelModel, Return: summaryProps()}, page.Options())
	if err != nil {
		return nil, storeErr(err, "models not found")
	}
	res, err := summaries(rows, page, int64(len(rows)))
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (s *modelService) IncrementViews(ctx context.Context, modelSlug string) (int64, error) {
	m := modelBySlug(modelSlug)
	m.Return = []np.ReturnProp{{Prop: "views", Alias: "views"}}
	v, err := s.pm.SetWithDefault(ctx, m, "views", np.Increment(1), int64(0))
	if err != nil {
		return 0, storeErr(err, "model not found")
	}
	views, ok := v.(int64)
	if !ok {
		return 0, apierr.Internal("unexpected view counter", fmt.Errorf("got %T", v))
	}
	return views, nil
}

func (s *modelService) FindAuthor(ctx context.Context, modelSlug string) (*models.Author, error) {
	m := modelBySlug(modelSlug)
	m.NoReturn = true
	row, err := s.pm.FindOneWithRelated(ctx, m, []np.Related{authorOf()})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	var out models.Author
	if err := np.Decode(row, &out); err != nil {
		return nil, apierr.Internal("could not read author", err)
	}
	return &out, nil
}

var assetGroups = map[string]string{
	"images": assets.GroupImages,
	"models": assets.GroupFiles,
	"gltf":   assets.GroupGltf,
}

func (s *modelService) RemoveAsset(ctx context.Context, caller models.Caller, modelSlug, assetType, name string) error {
	group, ok := assetGroups[assetType]
	if !ok {
		return apierr.NotFound(fmt.Sprintf("can't find %s type", assetType))
	}
	row, err := s.pm.FindOneWithRelated(ctx,
		np.Node{Alias: "m", Label: models.LabelModel, Match: map[string]any{"slug": modelSlug},
			Return: []np.ReturnProp{{Prop: "images", Alias: "images"}, {Prop: "gltf", Alias: "gltf"}}},
		[]np.Related{authorOf()})
	if err != nil {
		return storeErr(err, "model not found")
	}
	var current modelState
	if err := np.Decode(row, &current); err != nil {
		return apierr.Internal("could not read model", err)
	}
	if err := requireAuthor(caller, current.User); err != nil {
		return err
	}

	m := modelBySlug(modelSlug)
	switch group {
	case assets.GroupImages:
		keep := make([]string, 0, len(current.Images))
		for _, img := range current.Images {
			if img != name {
				keep = append(keep, img)
			}
		}
		_, err = s.pm.SetProperties(ctx, m, map[string]any{"images": keep})
	case assets.GroupFiles:
		_, err = s.pm.DeleteRelated(ctx, m, np.Related{
			Node:     np.By("f", models.LabelFile, map[string]any{"name": name}),
			Relation: hasFile,
		})
	case assets.GroupGltf:
		_, err = s.pm.SetProperties(ctx, m, map[string]any{
			"gltf":               nil,
			"gltfFiles":          nil,
			"totalVertexCount":   int64(0),
			"totalTriangleCount": int64(0),
		})
	}
	if err != nil {
		return storeErr(err, "model not found")
	}

	dest := assets.Destination{Owner: current.User.Username, Slug: modelSlug, Group: group}
	if group == assets.GroupGltf {
		err = s.assets.RemoveGroup(ctx, dest)
	} else {
		err = s.assets.Remove(ctx, dest, name)
	}
	if err != nil {
		return apierr.Internal("couldn't delete the file", err)
	}
	s.invalidate(ctx, modelSlug)
	return nil
}

// Graph returns the model, its uploader and its tags as nodes and edges.
func (s *modelService) Graph(ctx context.Context, modelSlug string) (*np.GraphResult, error) {
	qb := gocypher.NewQueryBuilder().
		Match(gocypher.N("m", models.LabelModel).WithProperties(map[string]interface{}{"slug": modelSlug})).
		Match(gocypher.N("u", models.LabelUser), gocypher.R("up", models.RelUploaded).To(), gocypher.NRef("m")).
		Match(gocypher.NRef("m"), gocypher.R("r", models.RelTaggedWith).To(), gocypher.N("t", models.LabelTag)).
		Return("m", "u", "up", "r", "t")
	graph, err := s.pm.FindGraph(ctx, qb)
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	return graph, nil
}
