package members_test

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

	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/members"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/transport"
	"github.com/malibag-society/malibag/internal/view"
	_ "github.com/malibag-society/malibag/testing"
)

type fixture struct {
	router   http.Handler
	sessions *session.Store
}

func newFixture(t *testing.T, role session.Role, api http.HandlerFunc) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := session.NewStore(session.NewRedisSlot(client, "test:session"), logger)
	store.Hydrate(context.Background())
	<-store.Ready()
	if role != "" {
		store.SetAuth(context.Background(), session.UserRecord{
			ID: 7, Name: "Amina", Email: "amina@malibag.coop", Role: role,
			JoiningDate: time.Date(2019, 3, 14, 0, 0, 0, 0, time.UTC),
		}, "tok")
	}

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	hub := transport.NewAuthLostHub()
	hub.Subscribe(func(ctx context.Context) { store.Logout(ctx) })
	apiClient := transport.NewClient(srv.URL, srv.Client(), store, hub, logger)

	templates, err := view.NewEngine()
	require.NoError(t, err)

	g := gate.Gate{Sessions: store, Logger: logger}
	handler := members.NewHandler(logger, store, ledger.NewClient(apiClient), apiClient, templates, g)

	r := chi.NewRouter()
	r.Route("/members", handler.MountRoutes)
	return &fixture{router: r, sessions: store}
}

func TestListRendersRegistry(t *testing.T) {
	fx := newFixture(t, session.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/members", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"success":true,"data":[{"id":1,"name":"Rahim Uddin","email":"rahim@malibag.coop","role":"member","shares":3}]}`))
	})

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rahim Uddin")
}

func TestMemberRoleForbiddenFromRegistry(t *testing.T) {
	fx := newFixture(t, session.RoleMember, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected for a forbidden route")
	})

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, gate.UnauthorizedPath, rec.Header().Get("Location"))
}

func TestMemberSeesOwnRecord(t *testing.T) {
	fx := newFixture(t, session.RoleMember, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/members/7", r.URL.Path)
		w.Write([]byte(`{"id":7,"name":"Amina Chowdhury","email":"amina@malibag.coop","role":"member","shares":12}`))
	})

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members/me", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Amina Chowdhury")
}

func TestCreateRefetchesRegistry(t *testing.T) {
	var listHits atomic.Int32
	fx := newFixture(t, session.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/members":
			listHits.Add(1)
			w.Write([]byte(`[]`))
		case r.Method == http.MethodPost && r.URL.Path == "/members":
			assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
			w.Write([]byte(`{"success":true,"data":{"id":2}}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(1), listHits.Load())

	form := url.Values{}
	form.Set("name", "Karim Hossain")
	form.Set("email", "karim@malibag.coop")
	form.Set("phone", "01911-222333")
	form.Set("shares", "2")
	req := httptest.NewRequest(http.MethodPost, "/members", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec = httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/members", loc.Path)
	assert.Equal(t, "Member registered", loc.Query().Get("notice"))
	assert.Eventually(t, func() bool { return listHits.Load() == 2 },
		time.Second, 10*time.Millisecond, "registry cell refetched after the confirmed mutation")
}

func TestRefetchOutlivesCompletedRequest(t *testing.T) {
	var listStarted, listCompleted atomic.Int32
	fx := newFixture(t, session.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/members":
			listStarted.Add(1)
			w.Write([]byte(`[]`))
			listCompleted.Add(1)
		case r.Method == http.MethodPost && r.URL.Path == "/members":
			w.Write([]byte(`{"success":true,"data":{"id":3}}`))
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
	})

	// Behind a real server the request context is canceled the moment
	// the handler returns, which is before the post-mutation refetch
	// has reached the API.
	srv := httptest.NewServer(fx.router)
	t.Cleanup(srv.Close)
	client := &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	res, err := client.Get(srv.URL + "/members")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	form := url.Values{}
	form.Set("name", "Shireen Akter")
	form.Set("email", "shireen@malibag.coop")
	form.Set("phone", "01811-444555")
	form.Set("shares", "1")
	res, err = client.PostForm(srv.URL+"/members", form)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusSeeOther, res.StatusCode)

	assert.Eventually(t, func() bool { return listCompleted.Load() == 2 },
		time.Second, 10*time.Millisecond, "refetch must still land after the redirect commits")
	assert.Equal(t, listStarted.Load(), listCompleted.Load())
}

func TestRejectedTokenEndsSessionEverywhere(t *testing.T) {
	fx := newFixture(t, session.RoleAdmin, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/members", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, gate.LoginPath, rec.Header().Get("Location"))
	st := fx.sessions.Snapshot()
	assert.False(t, st.IsAuthenticated)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Token)
}
