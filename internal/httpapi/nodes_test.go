package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RBarbieri13/decant/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCreateNode(t *testing.T, store *storage.Store, url, title string) *storage.Node {
	t.Helper()
	node, err := store.CreateNode(context.Background(), storage.CreateNodeInput{
		Title: title, URL: url, Segment: "TECH", Category: "news", ContentType: "a",
		FunctionHierarchyCode: "TECH.news.a." + title,
	})
	require.NoError(t, err)
	return node
}

func withPathValue(req *http.Request, key, value string) *http.Request {
	req.SetPathValue(key, value)
	return req
}

func TestHandleListNodes_ReturnsCreatedNodes(t *testing.T) {
	srv, store := newTestServer(t)
	mustCreateNode(t, store, "https://example.com/a", "Node A")

	req := httptest.NewRequest(http.MethodGet, "/api/nodes", nil)
	rec := httptest.NewRecorder()

	srv.handleListNodes(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["nodes"])
}

func TestHandleGetNode_ReturnsNodeByID(t *testing.T) {
	srv, store := newTestServer(t)
	node := mustCreateNode(t, store, "https://example.com/b", "Node B")

	req := withPathValue(httptest.NewRequest(http.MethodGet, "/api/nodes/"+node.ID, nil), "id", node.ID)
	rec := httptest.NewRecorder()

	srv.handleGetNode(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetNode_NotFoundForUnknownID(t *testing.T) {
	srv, _ := newTestServer(t)

	req := withPathValue(httptest.NewRequest(http.MethodGet, "/api/nodes/missing", nil), "id", "missing")
	rec := httptest.NewRecorder()

	srv.handleGetNode(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateNode_AppliesPatch(t *testing.T) {
	srv, store := newTestServer(t)
	node := mustCreateNode(t, store, "https://example.com/c", "Node C")

	newTitle := "Updated Title"
	body, _ := json.Marshal(updateNodeRequest{Title: &newTitle})
	req := withPathValue(httptest.NewRequest(http.MethodPost, "/api/nodes/"+node.ID, bytes.NewReader(body)), "id", node.ID)
	rec := httptest.NewRecorder()

	srv.handleUpdateNode(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var updated storage.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Updated Title", updated.Title)
}

func TestHandleUpdateNode_InvalidBodyReturnsBadRequest(t *testing.T) {
	srv, store := newTestServer(t)
	node := mustCreateNode(t, store, "https://example.com/d", "Node D")

	req := withPathValue(httptest.NewRequest(http.MethodPost, "/api/nodes/"+node.ID, bytes.NewReader([]byte("{not json"))), "id", node.ID)
	rec := httptest.NewRecorder()

	srv.handleUpdateNode(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDeleteNode_SoftDeletesAndReportsSuccess(t *testing.T) {
	srv, store := newTestServer(t)
	node := mustCreateNode(t, store, "https://example.com/e", "Node E")

	req := withPathValue(httptest.NewRequest(http.MethodDelete, "/api/nodes/"+node.ID, nil), "id", node.ID)
	rec := httptest.NewRecorder()

	srv.handleDeleteNode(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := store.ReadNode(context.Background(), node.ID)
	assert.Error(t, err)
}

func TestHandleMergeNode_MergesSecondaryIntoPrimary(t *testing.T) {
	srv, store := newTestServer(t)
	primary := mustCreateNode(t, store, "https://example.com/f1", "Primary")
	secondary := mustCreateNode(t, store, "https://example.com/f2", "Secondary")

	body, _ := json.Marshal(mergeNodeRequest{SecondaryID: secondary.ID})
	req := withPathValue(httptest.NewRequest(http.MethodPost, "/api/nodes/"+primary.ID+"/merge", bytes.NewReader(body)), "id", primary.ID)
	rec := httptest.NewRecorder()

	srv.handleMergeNode(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := store.ReadNode(context.Background(), secondary.ID)
	assert.Error(t, err)
}

func TestHandleRelatedNodes_ReturnsSimilarityEdges(t *testing.T) {
	srv, store := newTestServer(t)
	node := mustCreateNode(t, store, "https://example.com/g", "Node G")

	req := withPathValue(httptest.NewRequest(http.MethodGet, "/api/nodes/"+node.ID+"/related", nil), "id", node.ID)
	rec := httptest.NewRecorder()

	srv.handleRelatedNodes(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleBacklinks_GroupsEdgesByScore(t *testing.T) {
	srv, store := newTestServer(t)
	a := mustCreateNode(t, store, "https://example.com/h1", "Node H1")
	b := mustCreateNode(t, store, "https://example.com/h2", "Node H2")
	require.NoError(t, store.UpsertSimilarity(context.Background(), a.ID, b.ID, 0.9, "metadata"))

	req := withPathValue(httptest.NewRequest(http.MethodGet, "/api/nodes/"+a.ID+"/backlinks", nil), "id", a.ID)
	rec := httptest.NewRecorder()

	srv.handleBacklinks(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]map[string][]storage.SimilarEdge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["backlinks"]["similar"], 1)
}
