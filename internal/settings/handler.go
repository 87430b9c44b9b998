// Package settings renders the logged-in member's profile screen. A
// confirmed profile edit is patched back into the session store so the
// whole UI reflects it without a re-login.
package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/malibag-society/malibag/internal/fetch"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/shared"
	"github.com/malibag-society/malibag/internal/transport"
	"github.com/malibag-society/malibag/internal/view"
)

// Handler serves the settings screens.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	api       *ledger.Client
	templates *view.Engine
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, api *ledger.Client, templates *view.Engine) *Handler {
	return &Handler{
		logger:    logger,
		sessions:  sessions,
		api:       api,
		templates: templates,
		validator: validator.New(),
	}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showProfile)
	r.Post("/profile", h.updateProfile)
}

type profileForm struct {
	Name  string `validate:"required,min=2"`
	Email string `validate:"required,email"`
	Phone string `validate:"required,min=6"`
}

type pageData struct {
	Form   profileForm
	Errors map[string]string
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	u := h.sessions.Snapshot().User
	if u == nil {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	form := profileForm{Name: u.Name, Email: u.Email, Phone: u.Phone}
	h.render(w, r, pageData{Form: form, Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	u := h.sessions.Snapshot().User
	if u == nil {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := profileForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		Phone: r.PostFormValue("phone"),
	}
	formErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			formErrors[fe.Field()] = "Please provide a valid " + fe.Field()
		}
	}
	if len(formErrors) > 0 {
		h.render(w, r, pageData{Form: form, Errors: formErrors}, http.StatusBadRequest)
		return
	}

	result, err := h.api.Mutate(r.Context(), http.MethodPut, ledger.ProfilePath(u.ID), map[string]any{
		"name":  form.Name,
		"email": form.Email,
		"phone": form.Phone,
	})
	if err != nil {
		if transport.IsAuthLost(err) {
			http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
			return
		}
		h.logger.Error("profile update failed", slog.Any("error", err))
		http.Redirect(w, r, shared.WithAlert("/settings", fetch.FallbackErrorMessage), http.StatusSeeOther)
		return
	}
	if !result.Success {
		h.render(w, r, pageData{Form: form, Errors: map[string]string{"general": result.Message}}, http.StatusUnprocessableEntity)
		return
	}

	// Only server-confirmed values are merged; the token stays as-is.
	h.sessions.UpdateUser(r.Context(), session.UserPatch{
		Name:  &form.Name,
		Email: &form.Email,
		Phone: &form.Phone,
	})
	http.Redirect(w, r, shared.WithNotice("/settings", "Profile updated"), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData, status int) {
	st := h.sessions.Snapshot()
	viewData := view.TemplateData{
		Title:       "Settings",
		CurrentPath: r.URL.Path,
		CurrentUser: st.User,
		Notice:      shared.Notice(r),
		Alert:       shared.Alert(r),
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/settings/profile.html", viewData); err != nil {
		h.logger.Error("render settings page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
