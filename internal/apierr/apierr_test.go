package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf_MapsTaxonomy(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusOf(nil))
	assert.Equal(t, http.StatusBadRequest, StatusOf(Validation("bad")))
	assert.Equal(t, http.StatusForbidden, StatusOf(Forbidden("nope")))
	assert.Equal(t, http.StatusNotFound, StatusOf(NotFound("missing")))
	assert.Equal(t, http.StatusConflict, StatusOf(Conflict("dup", nil)))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
}

func TestStatusOf_FindsWrappedError(t *testing.T) {
	err := fmt.Errorf("update model: %w", NotFound("model not found"))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.True(t, HasCode(err, CodeNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestInternal_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("graph store unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "graph store unavailable: connection refused", err.Error())
}

func TestValidation_CarriesDetails(t *testing.T) {
	err := Validation("invalid gltf payload", "missing buffer", "bad accessor")
	assert.Equal(t, []string{"missing buffer", "bad accessor"}, err.Details)
	assert.Equal(t, CodeValidation, CodeOf(err))
}
