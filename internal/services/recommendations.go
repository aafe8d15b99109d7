package services

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/cache"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

const (
	// MaxRecommendations bounds the list returned for a model.
	MaxRecommendations = 10

	nameTokenBoost = 150.0
)

// Candidate is a model sharing at least one tag with the subject.
type Candidate struct {
	models.ModelSummary `json:",squash"`
	// Tags holds the tags shared with the subject.
	Tags []string `json:"tags"`
}

type RecommendationService interface {
	Recommend(ctx context.Context, modelSlug string) ([]models.Recommendation, error)
}

type recommendationService struct {
	pm    *np.PersistenceManager
	cache cache.Recommendations
	log   *logger.Logger
}

func NewRecommendationService(pm *np.PersistenceManager, recs cache.Recommendations, log *logger.Logger) RecommendationService {
	return &recommendationService{pm: pm, cache: recs, log: log.With("service", "RecommendationService")}
}

type subject struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func (s *recommendationService) Recommend(ctx context.Context, modelSlug string) ([]models.Recommendation, error) {
	if recs, ok, err := s.cache.Get(ctx, modelSlug); err != nil {
		s.log.Warn("recommendation cache read failed", "slug", modelSlug, "error", err)
	} else if ok {
		return recs, nil
	}

	m := modelBySlug(modelSlug)
	m.Return = []np.ReturnProp{{Prop: "name", Alias: "name"}}
	row, err := s.pm.FindOneWithRelated(ctx, m, []np.Related{tagsOf()})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	var subj subject
	if err := np.Decode(row, &subj); err != nil {
		return nil, apierr.Internal("could not read model", err)
	}

	var candidates []Candidate
	if len(subj.Tags) > 0 {
		candidates, err = s.candidates(ctx, modelSlug)
		if err != nil {
			return nil, err
		}
	}
	recs := ScoreCandidates(subj.Name, candidates)

	if err := s.cache.Set(ctx, modelSlug, recs); err != nil {
		s.log.Warn("recommendation cache write failed", "slug", modelSlug, "error", err)
	}
	s.log.Debug("recommendations computed", "slug", modelSlug, "candidates", len(candidates), "returned", len(recs))
	return recs, nil
}

// candidates returns every other model sharing a tag with the subject, with the
// shared tags collected per model.
func (s *recommendationService) candidates(ctx context.Context, modelSlug string) ([]Candidate, error) {
	m := modelBySlug(modelSlug)
	m.NoReturn = true
	rows, err := s.pm.FindWithRelated(ctx, m, []np.Related{
		{
			Node: np.Node{Alias: "t", Label: models.LabelTag, Return: []np.ReturnProp{
				{Prop: "name", Alias: "tags", Aggregate: np.AggCollectDistinct},
			}},
			Relation: taggedWith,
		},
		{
			Node:     np.Node{Alias: "o", Label: models.LabelModel, Return: summaryProps()},
			Relation: np.Relation{Type: models.RelTaggedWith, Direction: np.Incoming},
			From:     "t",
		},
		{
			Node: np.Node{Alias: "u", Label: models.LabelUser, Return: []np.ReturnProp{
				{Prop: "username", Alias: "user.username"},
			}},
			Relation: uploadedBy,
			From:     "o",
		},
	}, np.FindOptions{})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	out := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		var c Candidate
		if err := np.Decode(row, &c); err != nil {
			return nil, apierr.Internal("could not read candidate model", err)
		}
		if c.Slug == modelSlug {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// nameTokens splits a lowercased name into its letter and digit runs.
func nameTokens(name string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// ScoreCandidates ranks candidates by inverse tag frequency. occurrence(T) is the
// number of candidates carrying T. Each shared tag adds 1/occurrence(T), or
// (1/occurrence(T)) * (150/occurrence(T)) when T is also a word of the subject's
// name. The best MaxRecommendations are returned, ties broken by name then slug.
func ScoreCandidates(subjectName string, candidates []Candidate) []models.Recommendation {
	occurrence := make(map[string]int)
	for _, c := range candidates {
		seen := make(map[string]struct{}, len(c.Tags))
		for _, t := range c.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			occurrence[t]++
		}
	}

	tokens := nameTokens(subjectName)
	recs := make([]models.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		var score float64
		seen := make(map[string]struct{}, len(c.Tags))
		for _, t := range c.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			occ := float64(occurrence[t])
			base := 1 / occ
			if _, ok := tokens[strings.ToLower(t)]; ok {
				base *= nameTokenBoost / occ
			}
			score += base
		}
		if score == 0 {
			continue
		}
		recs = append(recs, models.Recommendation{ModelSummary: c.ModelSummary, Score: score})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].Slug < recs[j].Slug
	})
	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}
