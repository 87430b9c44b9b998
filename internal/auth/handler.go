// Package auth wires the login and logout screens. Credentials are
// verified by the remote ledger API; on success the session store takes
// ownership of the returned user and token.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/view"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	api       *ledger.Client
	sessions  *session.Store
	templates *view.Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, api *ledger.Client, sessions *session.Store, templates *view.Engine) *Handler {
	return &Handler{
		logger:    logger,
		api:       api,
		sessions:  sessions,
		templates: templates,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/login", h.handleLogin)
	})
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	// Wait out hydration so a persisted session lands on the dashboard
	// instead of the login form.
	select {
	case <-h.sessions.Ready():
	case <-r.Context().Done():
		return
	}
	if h.sessions.Snapshot().IsAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.renderLogin(w, r, loginPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	formErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				formErrors[fe.Field()] = "Please provide a valid " + fe.Field()
			}
		}
	}

	if len(formErrors) == 0 {
		result, err := h.api.Login(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			h.sessions.SetAuth(r.Context(), result.User, result.Token)
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		case errors.Is(err, ledger.ErrInvalidCredentials):
			formErrors["general"] = "Email or password is not valid"
		default:
			h.logger.Error("login call failed", slog.Any("error", err))
			formErrors["general"] = "Could not reach the society's server. Please try again."
		}
	}

	form.Password = ""
	h.renderLogin(w, r, loginPageData{Form: form, Errors: formErrors}, http.StatusBadRequest)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, data loginPageData, status int) {
	viewData := view.TemplateData{
		Title:       "Sign in",
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// SubscribeAuthLost resets the session whenever the transport reports a
// rejected credential. Wired once at boot.
func SubscribeAuthLost(sessions *session.Store, logger *slog.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		sessions.Logout(ctx)
		if logger != nil {
			logger.Info("session ended after authentication failure")
		}
	}
}
