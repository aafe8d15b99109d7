package services

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
	"github.com/The24thDS/karen-backend/internal/neopersist/neotest"
)

// voteGraph keeps the vote edges of a single (user, model) pair and answers the
// queries the vote service sends.
type voteGraph struct {
	edges map[string]bool
}

func newVoteRunner(g *voteGraph) *neotest.Runner {
	count := func(rel string) neotest.Responder {
		return func(map[string]any) (*neo4j.EagerResult, error) {
			n := int64(0)
			if g.edges[rel] {
				n = 1
			}
			return neotest.Result([]string{"count"}, []any{n}), nil
		}
	}
	set := func(rel string, value bool) neotest.Responder {
		return func(map[string]any) (*neo4j.EagerResult, error) {
			g.edges[rel] = value
			return &neo4j.EagerResult{}, nil
		}
	}
	return neotest.New().
		OnRows("RETURN count(DISTINCT m)", []string{"count"}, []any{int64(1)}).
		OnRows("RETURN count(DISTINCT u)", []string{"count"}, []any{int64(1)}).
		On("-[r:UPVOTED]->(b:Model", count("UPVOTED")).
		On("-[r:DOWNVOTED]->(b:Model", count("DOWNVOTED")).
		On("MERGE (a)-[:UPVOTED]->(b)", set("UPVOTED", true)).
		On("MERGE (a)-[:DOWNVOTED]->(b)", set("DOWNVOTED", true)).
		On("-[r:UPVOTED]->(t:Model", set("UPVOTED", false)).
		On("-[r:DOWNVOTED]->(t:Model", set("DOWNVOTED", false))
}

func newTestVoteService(runner *neotest.Runner) VoteService {
	return NewVoteService(np.NewPersistenceManager(runner), logger.Nop())
}

func TestVote_UpvoteTwiceReturnsToNone(t *testing.T) {
	g := &voteGraph{edges: map[string]bool{}}
	runner := newVoteRunner(g)
	svc := newTestVoteService(runner)
	ctx := context.Background()

	state, err := svc.Vote(ctx, alice, "chair_1", "up")
	require.NoError(t, err)
	assert.Equal(t, VoteUpvoted, state)
	assert.True(t, g.edges["UPVOTED"])

	state, err = svc.Vote(ctx, alice, "chair_1", "up")
	require.NoError(t, err)
	assert.Equal(t, VoteNone, state)
	assert.False(t, g.edges["UPVOTED"])
	assert.False(t, g.edges["DOWNVOTED"])
	assert.Equal(t, 2, runner.Transactions)
}

func TestVote_SwitchingDirectionClearsOppositeEdge(t *testing.T) {
	g := &voteGraph{edges: map[string]bool{"DOWNVOTED": true}}
	svc := newTestVoteService(newVoteRunner(g))

	state, err := svc.Vote(context.Background(), alice, "chair_1", "up")
	require.NoError(t, err)
	assert.Equal(t, VoteUpvoted, state)
	assert.True(t, g.edges["UPVOTED"])
	assert.False(t, g.edges["DOWNVOTED"], "at most one vote edge per user and model")

	state, err = svc.Vote(context.Background(), alice, "chair_1", "down")
	require.NoError(t, err)
	assert.Equal(t, VoteDownvoted, state)
	assert.False(t, g.edges["UPVOTED"])
	assert.True(t, g.edges["DOWNVOTED"])
}

func TestVote_TogglesRunInsideOneTransaction(t *testing.T) {
	runner := newVoteRunner(&voteGraph{edges: map[string]bool{}})
	svc := newTestVoteService(runner)

	_, err := svc.Vote(context.Background(), alice, "chair_1", "down")
	require.NoError(t, err)
	calls := runner.Calls()
	require.Len(t, calls, 5)
	assert.False(t, calls[0].InTx, "model check")
	assert.False(t, calls[1].InTx, "voter check")
	for _, c := range calls[2:] {
		assert.True(t, c.InTx, c.Query)
	}
}

func TestVote_RejectsUnknownVoteType(t *testing.T) {
	runner := newVoteRunner(&voteGraph{edges: map[string]bool{}})
	svc := newTestVoteService(runner)

	_, err := svc.Vote(context.Background(), alice, "chair_1", "sideways")
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))
	assert.Empty(t, runner.Calls())
}

func TestVote_MissingModelIsNotFound(t *testing.T) {
	runner := neotest.New().OnRows("RETURN count(DISTINCT m)", []string{"count"}, []any{int64(0)})
	svc := newTestVoteService(runner)

	_, err := svc.Vote(context.Background(), alice, "ghost", "up")
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))
	assert.Zero(t, runner.Transactions)
}

func TestVote_UnknownVoterIsRejected(t *testing.T) {
	runner := neotest.New().
		OnRows("RETURN count(DISTINCT m)", []string{"count"}, []any{int64(1)}).
		OnRows("RETURN count(DISTINCT u)", []string{"count"}, []any{int64(0)})
	svc := newTestVoteService(runner)

	_, err := svc.Vote(context.Background(), alice, "chair_1", "up")
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
	assert.Zero(t, runner.Transactions)
	assert.Len(t, runner.Calls(), 2)
}

func TestRating_IsUpvotesMinusDownvotes(t *testing.T) {
	runner := neotest.New().
		OnRows("RETURN count(DISTINCT m)", []string{"count"}, []any{int64(1)}).
		OnRows("count(DISTINCT up)", []string{"upvotes", "downvotes"}, []any{int64(3), int64(1)})
	svc := newTestVoteService(runner)

	rating, err := svc.Rating(context.Background(), "chair_1")
	require.NoError(t, err)
	assert.Equal(t, &Rating{Upvotes: 3, Downvotes: 1, Rating: 2}, rating)
	require.Len(t, runner.Queries(), 2)
	assert.Equal(t,
		"MATCH (m:Model {slug: $p0})\n"+
			"OPTIONAL MATCH (m)<-[:UPVOTED]-(up:User)\n"+
			"OPTIONAL MATCH (m)<-[:DOWNVOTED]-(down:User)\n"+
			"RETURN count(DISTINCT up) AS `upvotes`, count(DISTINCT down) AS `downvotes`\n"+
			"LIMIT $limit",
		runner.Queries()[1])
}

func TestRating_MissingModelIsNotFound(t *testing.T) {
	// An aggregate-only RETURN over an empty MATCH still yields one row of zeros.
	runner := neotest.New().
		OnRows("RETURN count(DISTINCT m)", []string{"count"}, []any{int64(0)}).
		OnRows("count(DISTINCT up)", []string{"upvotes", "downvotes"}, []any{int64(0), int64(0)})

	_, err := newTestVoteService(runner).Rating(context.Background(), "ghost")
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))
	assert.Len(t, runner.Queries(), 1)
}

func TestStatus(t *testing.T) {
	for _, tt := range []struct {
		edges map[string]bool
		want  VoteState
	}{
		{map[string]bool{}, VoteNone},
		{map[string]bool{"UPVOTED": true}, VoteUpvoted},
		{map[string]bool{"DOWNVOTED": true}, VoteDownvoted},
	} {
		svc := newTestVoteService(newVoteRunner(&voteGraph{edges: tt.edges}))
		got, err := svc.Status(context.Background(), alice, "chair_1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
