package categories_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malibag-society/malibag/internal/categories"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/transport"
	"github.com/malibag-society/malibag/internal/view"
	_ "github.com/malibag-society/malibag/testing"
)

func newRouter(t *testing.T, api http.HandlerFunc) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewStore(session.NewRedisSlot(client, "test:session"), logger)
	store.Hydrate(context.Background())
	<-store.Ready()
	store.SetAuth(context.Background(), session.UserRecord{ID: 1, Name: "Anis", Role: session.RoleSuperAdmin}, "tok")

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	apiClient := transport.NewClient(srv.URL, srv.Client(), store, transport.NewAuthLostHub(), logger)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	handler := categories.NewHandler(logger, store, ledger.NewClient(apiClient), apiClient, templates)
	r := chi.NewRouter()
	r.Route("/categories", handler.MountRoutes)
	return r
}

func postCategory(router http.Handler, path, name, amount string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("name", name)
	form.Set("description", "for the monthly drive")
	form.Set("amount", amount)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListRendersCategories(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":[{"id":5,"name":"Eid fund","description":"festival savings","defaultAmount":"300.00"}]}`))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Eid fund")
	assert.Contains(t, rec.Body.String(), "300.00")
}

func TestCreateRefetchesList(t *testing.T) {
	var listHits atomic.Int32
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/categories":
			listHits.Add(1)
			w.Write([]byte(`[]`))
		case r.Method == http.MethodPost && r.URL.Path == "/categories":
			w.Write([]byte(`{"success":true,"data":{"id":6}}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCategory(router, "/categories", "Relief fund", "100.00")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Category created", loc.Query().Get("notice"))
	assert.Eventually(t, func() bool { return listHits.Load() == 2 },
		time.Second, 10*time.Millisecond, "list cell refetched after the confirmed create")
}

func TestSoftFailureSurfacesMessage(t *testing.T) {
	// A 200 response can still refuse the mutation; the body's success
	// flag decides, and the message lands in the alert banner.
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"Name already in use"}`))
	})

	rec := postCategory(router, "/categories", "Eid fund", "300.00")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/categories", loc.Path)
	assert.Equal(t, "Name already in use", loc.Query().Get("alert"))
}

func TestRemoveCategory(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/categories/5", r.URL.Path)
		w.Write([]byte(`{"success":true}`))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/categories/5/delete", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Category removed", loc.Query().Get("notice"))
}
