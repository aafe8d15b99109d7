package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/models"
)

func TestNew_WithoutAddressIsNop(t *testing.T) {
	c := New(Options{})
	_, ok := c.(Nop)
	assert.True(t, ok)

	require.NoError(t, c.Set(context.Background(), "chair_1", []models.Recommendation{{Score: 1}}))
	recs, hit, err := c.Get(context.Background(), "chair_1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, recs)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "recommendations:chair_1", Key("chair_1"))
}

func TestRedisRecommendations_RoundTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	c := NewRedisRecommendations(client, time.Minute)
	defer c.Invalidate(ctx, "chair_1")

	recs := []models.Recommendation{{ModelSummary: models.ModelSummary{Name: "Stool", Slug: "stool_2"}, Score: 2}}
	require.NoError(t, c.Set(ctx, "chair_1", recs))

	got, hit, err := c.Get(ctx, "chair_1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, recs, got)

	require.NoError(t, c.Invalidate(ctx, "chair_1"))
	_, hit, err = c.Get(ctx, "chair_1")
	require.NoError(t, err)
	assert.False(t, hit)
}
