package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	models []json.RawMessage
	err    error
}

func (s stubCatalog) Models(ctx context.Context) ([]json.RawMessage, error) {
	return s.models, s.err
}

func TestModelsHandlerList(t *testing.T) {
	t.Run("passes models through", func(t *testing.T) {
		catalog := stubCatalog{models: []json.RawMessage{
			json.RawMessage(`{"id":"openai/gpt-4o","architecture":{"modality":"text->text"}}`),
		}}
		h := NewModelsHandler(catalog, discardLogger())

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t,
			`{"data":[{"id":"openai/gpt-4o","architecture":{"modality":"text->text"}}]}`,
			w.Body.String())
	})

	t.Run("empty catalog", func(t *testing.T) {
		h := NewModelsHandler(stubCatalog{}, discardLogger())

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"data":[]}`, w.Body.String())
	})

	t.Run("upstream failure", func(t *testing.T) {
		h := NewModelsHandler(stubCatalog{err: errors.New("502 from upstream")}, discardLogger())

		w := httptest.NewRecorder()
		h.List(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "Failed to fetch models")
	})
}
