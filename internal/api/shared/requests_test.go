package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string   `json:"name" validate:"required,max=5"`
	Models []string `json:"models" validate:"required,min=1"`
}

type selfValidating struct {
	err error
}

func (s selfValidating) Validate() error { return s.err }

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","models":["a"]}`))
		var req sampleRequest
		require.NoError(t, DecodeJSON(r, &req))
		assert.Equal(t, "x", req.Name)
		assert.Equal(t, []string{"a"}, req.Models)
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var req sampleRequest
		assert.ErrorIs(t, DecodeJSON(r, &req), ErrEmptyBody)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var req sampleRequest
		assert.Error(t, DecodeJSON(r, &req))
	})
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateRequest(&sampleRequest{Name: "ok", Models: []string{"a"}}))
	assert.Error(t, ValidateRequest(&sampleRequest{Name: "too long"}))
	assert.NoError(t, ValidateRequest(selfValidating{}))
	assert.Error(t, ValidateRequest(selfValidating{err: assert.AnError}))
}

func TestValidationDetails(t *testing.T) {
	t.Parallel()

	err := ValidateRequest(&sampleRequest{Name: "too long", Models: []string{}})
	require.Error(t, err)

	details := ValidationDetails(err)
	assert.Equal(t, map[string]string{
		"name":   "must be at most 5 characters",
		"models": "must contain at least 1 items",
	}, details)

	assert.Nil(t, ValidationDetails(assert.AnError))
}
