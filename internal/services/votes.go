package services

import (
	"context"
	"strings"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
)

// VoteState is the vote a user holds on a model.
type VoteState string

const (
	VoteNone      VoteState = "NONE"
	VoteUpvoted   VoteState = "UPVOTED"
	VoteDownvoted VoteState = "DOWNVOTED"
)

// Rating is the vote tally of a model.
type Rating struct {
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
	Rating    int64 `json:"rating"`
}

type VoteService interface {
	// Vote toggles the caller's vote of the given type ("up" or "down") and
	// returns the resulting state.
	Vote(ctx context.Context, caller models.Caller, modelSlug, voteType string) (VoteState, error)
	Rating(ctx context.Context, modelSlug string) (*Rating, error)
	Status(ctx context.Context, caller models.Caller, modelSlug string) (VoteState, error)
}

type voteService struct {
	pm  *np.PersistenceManager
	log *logger.Logger
}

func NewVoteService(pm *np.PersistenceManager, log *logger.Logger) VoteService {
	return &voteService{pm: pm, log: log.With("service", "VoteService")}
}

var (
	upvoted   = np.Relation{Type: models.RelUpvoted, Direction: np.Outgoing}
	downvoted = np.Relation{Type: models.RelDownvoted, Direction: np.Outgoing}
)

func voter(id string) np.Node {
	return np.By("u", models.LabelUser, map[string]any{"id": id})
}

func (s *voteService) Vote(ctx context.Context, caller models.Caller, modelSlug, voteType string) (VoteState, error) {
	var rel, opposite np.Relation
	var target VoteState
	switch strings.ToLower(strings.TrimSpace(voteType)) {
	case "up":
		rel, opposite, target = upvoted, downvoted, VoteUpvoted
	case "down":
		rel, opposite, target = downvoted, upvoted, VoteDownvoted
	default:
		return "", apierr.Validation(`vote type must be "up" or "down"`)
	}

	if err := s.requireModel(ctx, modelSlug); err != nil {
		return "", err
	}
	if n, err := s.pm.Count(ctx, voter(caller.ID)); err != nil {
		return "", storeErr(err, "user not found")
	} else if n == 0 {
		return "", apierr.Unauthorized("unknown user")
	}

	state := VoteNone
	err := s.pm.WithinTx(ctx, func(tx *np.PersistenceManager) error {
		u, m := voter(caller.ID), modelBySlug(modelSlug)
		exists, err := tx.RelationExists(ctx, u, rel, m)
		if err != nil {
			return err
		}
		if exists {
			return tx.DeleteRelation(ctx, u, rel, m)
		}
		if _, err := tx.Disconnect(ctx, u, opposite, m); err != nil {
			return err
		}
		if err := tx.Relate(ctx, u, rel, m); err != nil {
			return err
		}
		state = target
		return nil
	})
	if err != nil {
		return "", storeErr(err, "model not found")
	}
	s.log.Debug("vote toggled", "slug", modelSlug, "user_id", caller.ID, "state", string(state))
	return state, nil
}

// requireModel fails with NotFound when no model has the slug.
func (s *voteService) requireModel(ctx context.Context, modelSlug string) error {
	n, err := s.pm.Count(ctx, modelBySlug(modelSlug))
	if err != nil {
		return storeErr(err, "model not found")
	}
	if n == 0 {
		return apierr.NotFound("model not found")
	}
	return nil
}

// Rating counts the votes of a model. The count query always yields one row, so
// existence is checked first.
func (s *voteService) Rating(ctx context.Context, modelSlug string) (*Rating, error) {
	if err := s.requireModel(ctx, modelSlug); err != nil {
		return nil, err
	}
	m := modelBySlug(modelSlug)
	m.NoReturn = true
	row, err := s.pm.FindOneWithRelated(ctx, m, []np.Related{
		{
			Node: np.Node{Alias: "up", Label: models.LabelUser, Return: []np.ReturnProp{
				{Alias: "upvotes", Aggregate: np.AggCountDistinct},
			}},
			Relation: np.Relation{Type: models.RelUpvoted, Direction: np.Incoming},
			Optional: true,
		},
		{
			Node: np.Node{Alias: "down", Label: models.LabelUser, Return: []np.ReturnProp{
				{Alias: "downvotes", Aggregate: np.AggCountDistinct},
			}},
			Relation: np.Relation{Type: models.RelDownvoted, Direction: np.Incoming},
			Optional: true,
		},
	})
	if err != nil {
		return nil, storeErr(err, "model not found")
	}
	var out Rating
	if err := np.Decode(row, &out); err != nil {
		return nil, apierr.Internal("could not read rating", err)
	}
	out.Rating = out.Upvotes - out.Downvotes
	return &out, nil
}

func (s *voteService) Status(ctx context.Context, caller models.Caller, modelSlug string) (VoteState, error) {
	u, m := voter(caller.ID), modelBySlug(modelSlug)
	up, err := s.pm.RelationExists(ctx, u, upvoted, m)
	if err != nil {
		return "", storeErr(err, "model not found")
	}
	if up {
		return VoteUpvoted, nil
	}
	down, err := s.pm.RelationExists(ctx, u, downvoted, m)
	if err != nil {
		return "", storeErr(err, "model not found")
	}
	if down {
		return VoteDownvoted, nil
	}
	return VoteNone, nil
}
