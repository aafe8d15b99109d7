package services

import (
	"context"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
	"github.com/The24thDS/karen-backend/internal/neopersist/neotest"
)

func newTestUserService(t *testing.T, runner *neotest.Runner) *userService {
	t.Helper()
	svc, err := NewUserService(np.NewPersistenceManager(runner), logger.Nop())
	require.NoError(t, err)
	us := svc.(*userService)
	us.now = func() time.Time { return fixedNow }
	us.newID = sequentialIDs()
	return us
}

func TestUserCreate_HashesPasswordAndHidesIt(t *testing.T) {
	runner := neotest.New().On("CREATE (n:User", func(params map[string]any) (*neo4j.EagerResult, error) {
		return neotest.Result([]string{"n"}, []any{neotest.Node("User", map[string]any{"id": "id-1"})}), nil
	})
	svc := newTestUserService(t, runner)

	user, err := svc.Create(context.Background(), RegisterInput{Username: "alice", Email: " Alice@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.Password)
	assert.Equal(t, fixedNow.UnixMilli(), user.CreatedAt)

	call := runner.Calls()[0]
	var hash string
	for _, v := range call.Params {
		if s, ok := v.(string); ok && len(s) == 60 {
			hash = s
		}
	}
	require.NotEmpty(t, hash, "bcrypt hash is stored")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))
}

func TestUserCreate_DuplicateIsConflict(t *testing.T) {
	runner := neotest.New().OnError("CREATE (n:User", &neo4j.Neo4jError{
		Code: "Neo.ClientError.Schema.ConstraintValidationFailed",
		Msg:  "Node(7) already exists with label `User` and property `email` = 'alice@example.com'",
	})
	svc := newTestUserService(t, runner)

	_, err := svc.Create(context.Background(), RegisterInput{Username: "alice", Email: "alice@example.com", Password: "correct horse"})
	assert.True(t, apierr.HasCode(err, apierr.CodeConflict))
}

func TestUserCreate_Validation(t *testing.T) {
	svc := newTestUserService(t, neotest.New())
	for _, in := range []RegisterInput{
		{Email: "a@example.com", Password: "long enough"},
		{Username: "a", Password: "long enough"},
		{Username: "a", Email: "not-an-email", Password: "long enough"},
		{Username: "a", Email: "a@example.com", Password: "short"},
	} {
		_, err := svc.Create(context.Background(), in)
		assert.True(t, apierr.HasCode(err, apierr.CodeValidation), "%+v", in)
	}
}

func TestUserFindByID(t *testing.T) {
	runner := neotest.New().OnRows("", []string{"n"}, []any{neotest.Node("User", map[string]any{
		"id": "u1", "username": "alice", "email": "alice@example.com", "password": "$2a$hash", "created_at": int64(5),
	})})
	svc := newTestUserService(t, runner)

	user, err := svc.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, int64(5), user.CreatedAt)
	assert.Empty(t, user.Password)

	_, err = newTestUserService(t, neotest.New()).FindByID(context.Background(), "ghost")
	assert.True(t, apierr.HasCode(err, apierr.CodeNotFound))
}

func storedUser(t *testing.T, password string) neo4j.Node {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return neotest.Node("User", map[string]any{
		"id": "u1", "username": "alice", "email": "alice@example.com", "password": string(hash),
	})
}

func TestAuthenticate_ByEmailOrUsername(t *testing.T) {
	node := storedUser(t, "correct horse")

	byEmail := neotest.New().OnRows("{email: $p0}", []string{"u"}, []any{node})
	user, err := newTestUserService(t, byEmail).Authenticate(context.Background(), "ALICE@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Empty(t, user.Password)

	byUsername := neotest.New().OnRows("{username: $p0}", []string{"u"}, []any{node})
	svc := newTestUserService(t, byUsername)
	user, err = svc.Authenticate(context.Background(), "alice", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Len(t, byUsername.Calls(), 2, "email lookup first")
}

func TestAuthenticate_RejectsBadCredentials(t *testing.T) {
	runner := neotest.New().OnRows("{email: $p0}", []string{"u"}, []any{storedUser(t, "correct horse")})
	svc := newTestUserService(t, runner)

	_, err := svc.Authenticate(context.Background(), "alice@example.com", "battery staple")
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))

	_, err = svc.Authenticate(context.Background(), "nobody", "whatever")
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
}
