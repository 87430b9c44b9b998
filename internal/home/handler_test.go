package home_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malibag-society/malibag/internal/home"
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
	store.SetAuth(context.Background(), session.UserRecord{ID: 4, Name: "Rahima", Role: session.RoleMember}, "tok")

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	apiClient := transport.NewClient(srv.URL, srv.Client(), store, transport.NewAuthLostHub(), logger)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	handler := home.NewHandler(logger, store, apiClient, templates)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestIndexRendersSocietyTotals(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reports/summary", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{
			"totalMembers":42,"totalShares":120,
			"totalCollections":"56000.00","totalInvestments":"30000.00","bankBalance":"26000.00"
		}}`))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Rahima")
	assert.Contains(t, body, "42")
	assert.Contains(t, body, "56,000.00")
	assert.Contains(t, body, "26,000.00")
}

func TestIndexSurfacesSummaryError(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"success":false,"message":"Ledger unavailable"}`))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ledger unavailable")
	assert.Contains(t, rec.Body.String(), "Try again")
}
