package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/install"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.NewStore()
	patches, err := install.DefaultPatches()
	require.NoError(t, err)
	_, err = install.NewRunner(memory.NewLocker()).Run(context.Background(), &install.Env{Repo: repo, Patches: patches})
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	h, err := NewHandler(storage.NewService(repo), repo, WithMetrics(metrics), WithVersion("1.2.3\n"))
	require.NoError(t, err)
	return h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetSwagger(t *testing.T) {
	doc, err := GetSwagger()
	require.NoError(t, err)
	assert.Equal(t, "Strata API", doc.Info.Title)
	assert.NotNil(t, doc.Paths.Find("/items/{id}/move"))
}

func TestStaticRoutes(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	info := decodeBody[map[string]string](t, do(t, h, http.MethodGet, "/info", nil))
	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	rec = do(t, h, http.MethodGet, "/openapi.yaml", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestStorageFlow(t *testing.T) {
	h := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/facilities", map[string]any{"title": "Main", "email": "main@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	facility := decodeBody[domain.Item](t, rec)

	rec = do(t, h, http.MethodPost, "/items/"+facility.ID+"/children", map[string]any{
		"kind": "container", "title": "Fridge", "rows": 1, "columns": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fridge := decodeBody[domain.Item](t, rec)

	rec = do(t, h, http.MethodPost, "/items/"+fridge.ID+"/children", map[string]any{
		"kind": "samplesContainer", "title": "Box", "rows": 1, "columns": 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	box := decodeBody[domain.Item](t, rec)

	t.Run("full parent is a conflict", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/items/"+fridge.ID+"/children", map[string]any{
			"kind": "samplesContainer", "title": "Box 2", "rows": 1, "columns": 1,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong hierarchy is unprocessable", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/items/"+facility.ID+"/children", map[string]any{
			"kind": "samplesContainer", "title": "Loose", "rows": 1, "columns": 1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("schema violations are rejected before the service", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/items/"+fridge.ID+"/children", map[string]any{
			"kind": "drawer", "title": "X", "rows": 1, "columns": 1,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, h, http.MethodPost, "/items/"+fridge.ID+"/children", map[string]any{
			"kind": "samplesContainer", "title": "Flat", "rows": 0, "columns": 3,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	clerk := map[string]any{"id": "clerk", "roles": []string{"LabClerk"}}
	rec = do(t, h, http.MethodPost, "/samples", map[string]any{"title": "Blood"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sample := decodeBody[domain.Sample](t, rec)

	rec = do(t, h, http.MethodPost, "/samples/"+sample.ID+"/store", map[string]any{"container_id": box.ID, "actor": clerk})
	assert.Equal(t, http.StatusConflict, rec.Code, "sample_due has no store transition")

	rec = do(t, h, http.MethodPost, "/samples/"+sample.ID+"/transitions", map[string]any{"transition": "receive", "actor": map[string]any{"id": "x"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/samples/"+sample.ID+"/transitions", map[string]any{"transition": "receive", "actor": clerk})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/samples/"+sample.ID+"/store", map[string]any{"container_id": box.ID, "actor": clerk})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.StateStored, decodeBody[domain.Sample](t, rec).ReviewState)

	rows := decodeBody[[]storage.FacilityRow](t, do(t, h, http.MethodGet, "/facilities", nil))
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].Samples)
	assert.Equal(t, 1, rows[0].Capacity)

	slots := decodeBody[[]storage.Slot](t, do(t, h, http.MethodGet, "/items/"+box.ID+"/children", nil))
	require.Len(t, slots, 1)
	assert.Equal(t, "Blood", slots[0].Title)

	rec = do(t, h, http.MethodDelete, "/items/"+box.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/samples/"+sample.ID+"/recover", map[string]any{"actor": clerk})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/items/"+box.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/items/"+box.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowRoutes(t *testing.T) {
	h := newTestHandler(t)

	ids := decodeBody[[]string](t, do(t, h, http.MethodGet, "/workflows", nil))
	assert.Contains(t, ids, domain.SampleWorkflowID)

	rec := do(t, h, http.MethodGet, "/workflows/"+domain.SampleWorkflowID+"/graph", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "graph TD"))
	assert.Contains(t, rec.Body.String(), `sample_received -- "store" --> stored`)

	rec = do(t, h, http.MethodGet, "/workflows/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
