package investments_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malibag-society/malibag/internal/investments"
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
	store.SetAuth(context.Background(), session.UserRecord{ID: 6, Name: "Salma", Role: session.RoleAdmin}, "tok")

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	apiClient := transport.NewClient(srv.URL, srv.Client(), store, transport.NewAuthLostHub(), logger)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	handler := investments.NewHandler(logger, store, ledger.NewClient(apiClient), apiClient, templates)
	r := chi.NewRouter()
	r.Route("/investments", handler.MountRoutes)
	return r
}

func postInvestment(router http.Handler, title, amount, maturity string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("title", title)
	form.Set("amount", amount)
	form.Set("maturity", maturity)
	req := httptest.NewRequest(http.MethodPost, "/investments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListSumsActivePlacements(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/investments", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":[
			{"id":1,"title":"Rice mill loan","amount":"20000.00","status":"active"},
			{"id":2,"title":"Fixed deposit","amount":"10000.00","status":"matured"}
		]}`))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/investments", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rice mill loan")
	assert.Contains(t, rec.Body.String(), "20,000.00")
}

func TestRecordInvestment(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/investments", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"id":3}}`))
	})

	maturity := time.Now().AddDate(1, 0, 0).Format("2006-01-02")
	rec := postInvestment(router, "Poultry venture", "15000.00", maturity)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Investment recorded", loc.Query().Get("notice"))
}

func TestPastMaturityRejectedLocally(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("a past maturity date must not reach the API")
	})

	rec := postInvestment(router, "Poultry venture", "15000.00", "2020-01-01")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Contains(t, loc.Query().Get("alert"), "future")
}

func TestRefusedInvestmentCarriesServerMessage(t *testing.T) {
	router := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"success":false,"message":"Fund cap exceeded"}`))
	})

	maturity := time.Now().AddDate(0, 6, 0).Format("2006-01-02")
	rec := postInvestment(router, "Poultry venture", "999999.00", maturity)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "Fund cap exceeded", loc.Query().Get("alert"))
}
