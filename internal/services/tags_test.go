package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	np "github.com/The24thDS/karen-backend/internal/neopersist"
	"github.com/The24thDS/karen-backend/internal/neopersist/neotest"
)

func TestTagFindAll_SortsNames(t *testing.T) {
	runner := neotest.New().OnRows("", []string{"n"},
		[]any{neotest.Node("Tag", map[string]any{"name": "wood"})},
		[]any{neotest.Node("Tag", map[string]any{"name": "chair"})})
	svc, err := NewTagService(np.NewPersistenceManager(runner), logger.Nop())
	require.NoError(t, err)

	names, err := svc.FindAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"chair", "wood"}, names)
}

func TestTagFindAll_StoreFailureIsInternal(t *testing.T) {
	runner := neotest.New().OnError("", errors.New("connection refused"))
	svc, err := NewTagService(np.NewPersistenceManager(runner), logger.Nop())
	require.NoError(t, err)

	_, err = svc.FindAll(context.Background())
	assert.True(t, apierr.HasCode(err, apierr.CodeInternal))
}
