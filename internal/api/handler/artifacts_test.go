package handler_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipfetch/clipfetch/internal/api/handler"
	"github.com/clipfetch/clipfetch/internal/store"
)

func newArtifactFixture(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st, err := store.Open(t.TempDir(), 0)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/api/v1/artifacts/{artifactID}", handler.NewStreamHandler(st))
	return st, r
}

func promoteArtifact(t *testing.T, st *store.Store, format, title, content string) uuid.UUID {
	t.Helper()
	staged := st.Stage(format)
	require.NoError(t, os.WriteFile(staged, []byte(content), 0o644))
	a, err := st.Promote(staged, store.PromoteMeta{Format: format, Title: title})
	require.NoError(t, err)
	return a.ID
}

func TestStream_ServesArtifactBytes(t *testing.T) {
	st, router := newArtifactFixture(t)
	id := promoteArtifact(t, st, "mp3", "my song", "mp3 bytes here")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp3 bytes here", rec.Body.String())
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "14", rec.Header().Get("Content-Length"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"my song.mp3"`)
}

func TestStream_FallsBackToIDFilename(t *testing.T) {
	st, router := newArtifactFixture(t)
	id := promoteArtifact(t, st, "mp4", "", "v")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), id.String()+".mp4")
}

func TestStream_UnknownArtifact(t *testing.T) {
	_, router := newArtifactFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/garbage", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Streaming refreshes the access clock, which is what keeps a popular
// artifact alive under TTL eviction.
func TestStream_RefreshesAccessTime(t *testing.T) {
	st, router := newArtifactFixture(t)
	id := promoteArtifact(t, st, "mp3", "t", "x")

	before, err := st.Get(id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/artifacts/"+id.String(), nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	after, err := st.Get(id)
	require.NoError(t, err)
	assert.False(t, after.LastAccessedAt.Before(before.LastAccessedAt))
	assert.Equal(t, 0, after.RefCount, "the checkout is released when the stream ends")
}
