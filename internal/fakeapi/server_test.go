package fakeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mph-llm-experiments/acalls/internal/model"
	"github.com/mph-llm-experiments/acalls/internal/parser"
)

func seed() []model.Activity {
	return []model.Activity{
		{ID: "1", CreatedAt: "2024-01-05T10:00:00Z"},
		{ID: "2", CreatedAt: "2024-01-05T09:00:00Z"},
		{ID: "3", CreatedAt: "2024-01-04T10:00:00Z", IsArchived: true},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListAndGet(t *testing.T) {
	h := NewServer(NewStore(seed())).Handler()

	rr := do(t, h, http.MethodGet, "/activities", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var activities []model.Activity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &activities))
	require.Len(t, activities, 3)

	rr = do(t, h, http.MethodGet, "/activities/3", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var activity model.Activity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &activity))
	require.True(t, activity.IsArchived)

	rr = do(t, h, http.MethodGet, "/activities/404", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPatchArchive(t *testing.T) {
	store := NewStore(seed())
	h := NewServer(store).Handler()

	rr := do(t, h, http.MethodPatch, "/activities/1", `{"is_archived": true}`)
	require.Equal(t, http.StatusOK, rr.Code)

	got, err := store.GetActivity(context.Background(), "1")
	require.NoError(t, err)
	require.True(t, got.IsArchived)

	rr = do(t, h, http.MethodPatch, "/activities/1", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPatch, "/activities/1", `nope`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPatch, "/activities/99", `{"is_archived": true}`)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestReset(t *testing.T) {
	store := NewStore(seed())
	h := NewServer(store).Handler()

	rr := do(t, h, http.MethodPatch, "/reset", "")
	require.Equal(t, http.StatusOK, rr.Code)

	activities, err := store.ListActivities(context.Background())
	require.NoError(t, err)
	for _, a := range activities {
		require.False(t, a.IsArchived, "activity %s", a.ID)
	}
}

func TestMetricsCountRequestsByRoute(t *testing.T) {
	srv := NewServer(NewStore(seed()))
	h := srv.Handler()

	do(t, h, http.MethodGet, "/activities/1", "")
	do(t, h, http.MethodGet, "/activities/2", "")
	do(t, h, http.MethodGet, "/activities/nope", "")

	require.Equal(t, 2.0, testutil.ToFloat64(srv.requests.WithLabelValues(http.MethodGet, "/activities/{id}", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(srv.requests.WithLabelValues(http.MethodGet, "/activities/{id}", "404")))

	series, err := testutil.GatherAndCount(srv.Registry(), "acalls_fakeapi_requests_total")
	require.NoError(t, err)
	require.Equal(t, 2, series)

	rr := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "acalls_fakeapi_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := NewServer(NewStore(seed())).Handler()

	req := httptest.NewRequest(http.MethodGet, "/activities", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = do(t, h, http.MethodGet, "/activities", "")
	require.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestOpenStorePersistsMutations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	store, err := OpenStore(path, seed())
	require.NoError(t, err)
	_, err = store.SetArchived(context.Background(), "2", true)
	require.NoError(t, err)

	onDisk, err := parser.ParseActivityFile(path)
	require.NoError(t, err)
	require.True(t, model.FindByID(onDisk, "2").IsArchived)

	reopened, err := OpenStore(path, nil)
	require.NoError(t, err)
	got, err := reopened.GetActivity(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, got.IsArchived)
}

func TestOpenStoreRejectsCorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	corrupt := []byte("- id: 1\n  from: a\n- id: 1\n  from: b\n")
	require.NoError(t, os.WriteFile(path, corrupt, 0644))

	_, err := OpenStore(path, seed())
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, corrupt, content)
}

// blockStateWrites makes the next state write fail by putting a directory
// where the temp file goes.
func blockStateWrites(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(path+".tmp", "busy"), 0755))
}

func TestSetArchivedRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yaml")
	store, err := OpenStore(path, seed())
	require.NoError(t, err)
	blockStateWrites(t, path)

	_, err = store.SetArchived(ctx, "2", true)
	require.ErrorContains(t, err, "failed to persist state")

	got, err := store.GetActivity(ctx, "2")
	require.NoError(t, err)
	require.False(t, got.IsArchived)

	rr := do(t, NewServer(store).Handler(), http.MethodPatch, "/activities/2", `{"is_archived": true}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	got, err = store.GetActivity(ctx, "2")
	require.NoError(t, err)
	require.False(t, got.IsArchived)
}

func TestResetRollsBackWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yaml")
	store, err := OpenStore(path, seed())
	require.NoError(t, err)
	blockStateWrites(t, path)

	require.Error(t, store.ResetActivities(ctx))

	got, err := store.GetActivity(ctx, "3")
	require.NoError(t, err)
	require.True(t, got.IsArchived)
}

func TestDefaultSeed(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	activities := DefaultSeed(now)
	require.NotEmpty(t, activities)

	seen := map[model.ActivityID]bool{}
	for _, a := range activities {
		require.False(t, seen[a.ID])
		seen[a.ID] = true
		at, err := a.CreatedTime()
		require.NoError(t, err)
		require.True(t, at.Before(now))
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(NewStore(seed())).ListenAndServe(ctx, "127.0.0.1:0")
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
