package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/malibag-society/malibag/internal/accounts"
	"github.com/malibag-society/malibag/internal/auth"
	"github.com/malibag-society/malibag/internal/categories"
	"github.com/malibag-society/malibag/internal/collections"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/home"
	"github.com/malibag-society/malibag/internal/investments"
	"github.com/malibag-society/malibag/internal/members"
	"github.com/malibag-society/malibag/internal/observability"
	"github.com/malibag-society/malibag/internal/reports"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/settings"
	"github.com/malibag-society/malibag/internal/view"
	"github.com/malibag-society/malibag/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Templates *view.Engine
	Sessions  *session.Store
	Gate      gate.Gate

	AuthHandler        *auth.Handler
	HomeHandler        *home.Handler
	MembersHandler     *members.Handler
	AccountsHandler    *accounts.Handler
	CollectionsHandler *collections.Handler
	InvestmentsHandler *investments.Handler
	ReportsHandler     *reports.Handler
	CategoriesHandler  *categories.Handler
	SettingsHandler    *settings.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router for the dashboard. Role
// requirements per route group live here, consumed by the gate; the
// table itself is static.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Get("/unauthorized", func(w http.ResponseWriter, r *http.Request) {
		st := params.Sessions.Snapshot()
		data := view.TemplateData{
			Title:       "Not allowed",
			CurrentPath: r.URL.Path,
			CurrentUser: st.User,
		}
		w.WriteHeader(http.StatusForbidden)
		if err := params.Templates.Render(w, "pages/unauthorized.html", data); err != nil {
			params.Logger.Error("render unauthorized", slog.Any("error", err))
		}
	})

	// Home dashboard, any authenticated role.
	r.Group(func(r chi.Router) {
		r.Use(params.Gate.RequireAuthenticated())
		params.HomeHandler.MountRoutes(r)
		r.Route("/settings", params.SettingsHandler.MountRoutes)
	})

	// The members handler applies its own per-route role split.
	r.Route("/members", params.MembersHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Require(session.RoleAdmin, session.RoleSuperAdmin))
		r.Route("/bank-accounts", params.AccountsHandler.MountRoutes)
		r.Route("/collections", params.CollectionsHandler.MountRoutes)
		r.Route("/investments", params.InvestmentsHandler.MountRoutes)
		r.Route("/reports", params.ReportsHandler.MountRoutes)
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Gate.Require(session.RoleSuperAdmin))
		r.Route("/categories", params.CategoriesHandler.MountRoutes)
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	return r
}
