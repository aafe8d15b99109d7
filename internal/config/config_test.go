package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvOverrides(t *testing.T) {
	t.Setenv("KAREN_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("KAREN_NEO4J_URI", "neo4j://graph:7687")
	t.Setenv("KAREN_REDIS_RECOMMENDATION_TTL", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "neo4j://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.User)
	assert.Equal(t, 50, cfg.Neo4j.MaxPoolSize)
	assert.Equal(t, "local", cfg.Assets.Backend)
	assert.Equal(t, 30*time.Second, cfg.Redis.RecommendationTTL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_ReadsYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karen.yaml")
	content := []byte(`
server:
  addr: ":8080"
  allowed_origins:
    - https://karen.example
auth:
  jwt_secret: from-file
assets:
  backend: minio
minio:
  endpoint: minio:9000
  bucket: assets
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"https://karen.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "minio", cfg.Assets.Backend)
	assert.Equal(t, "minio:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	cfg := &Config{
		Neo4j:  Neo4jConfig{URI: "neo4j://localhost"},
		Assets: AssetsConfig{Backend: "ftp", TempDir: "/tmp"},
		Auth:   AuthConfig{JWTSecret: "x"},
	}
	assert.ErrorContains(t, cfg.Validate(), "unsupported assets.backend")
}
