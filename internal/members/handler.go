// Package members renders the member registry screens.
package members

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

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

// Handler serves the member registry.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	api       *ledger.Client
	templates *view.Engine
	gate      gate.Gate
	validator *validator.Validate

	listCell   *fetch.Cell
	detailCell *fetch.Cell
	selfCell   *fetch.Cell
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, api *ledger.Client, reads fetch.Getter, templates *view.Engine, g gate.Gate) *Handler {
	return &Handler{
		logger:     logger,
		sessions:   sessions,
		api:        api,
		templates:  templates,
		gate:       g,
		validator:  validator.New(),
		listCell:   fetch.NewCell(reads),
		detailCell: fetch.NewCell(reads),
		selfCell:   fetch.NewCell(reads),
	}
}

// MountRoutes registers member routes. Every member may see their own
// record; the registry itself is administrative.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.RequireAuthenticated())
		r.Get("/me", h.self)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(session.RoleAdmin, session.RoleSuperAdmin))
		r.Get("/", h.list)
		r.Get("/new", h.showCreateForm)
		r.Post("/", h.create)
		r.Get("/{id}", h.detail)
	})
}

type listPageData struct {
	Members    []ledger.Member
	Pagination shared.Pagination
	FetchErr   string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.listCell.SetKey(r.Context(), ledger.PathMembers)
	if err := h.listCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.listCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	members, _ := fetch.As[[]ledger.Member](snap)
	page := shared.PageFromRequest(r)
	p := shared.NewPagination(page, 20, len(members))
	data := listPageData{
		Members:    shared.Slice(members, p),
		Pagination: p,
		FetchErr:   snap.Err,
	}
	h.render(w, r, "pages/members/list.html", "Members", data, http.StatusOK)
}

type detailPageData struct {
	Member   *ledger.Member
	FetchErr string
	Waiting  bool
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	h.serveDetail(w, r, h.detailCell, id)
}

// self renders the logged-in member's own record. The fetch key derives
// from session state; while the user id is still unresolved the cell
// issues no call and the page shows its wait state.
func (h *Handler) self(w http.ResponseWriter, r *http.Request) {
	var id int64
	if u := h.sessions.Snapshot().User; u != nil {
		id = u.ID
	}
	h.serveDetail(w, r, h.selfCell, id)
}

func (h *Handler) serveDetail(w http.ResponseWriter, r *http.Request, cell *fetch.Cell, id int64) {
	cell.SetKey(r.Context(), ledger.MemberPath(id))
	if err := cell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := cell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	data := detailPageData{FetchErr: snap.Err}
	if m, ok := fetch.As[ledger.Member](snap); ok {
		data.Member = &m
	} else if snap.Err == "" {
		data.Waiting = true
	}
	h.render(w, r, "pages/members/detail.html", "Member", data, http.StatusOK)
}

type memberForm struct {
	Name   string `validate:"required,min=2"`
	Email  string `validate:"required,email"`
	Phone  string `validate:"required,min=6"`
	Shares int    `validate:"min=1"`
}

type createPageData struct {
	Form   memberForm
	Errors map[string]string
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/members/form.html", "New member", createPageData{Form: memberForm{Shares: 1}, Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	shares, _ := strconv.Atoi(r.PostFormValue("shares"))
	form := memberForm{
		Name:   r.PostFormValue("name"),
		Email:  r.PostFormValue("email"),
		Phone:  r.PostFormValue("phone"),
		Shares: shares,
	}
	formErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			formErrors[fe.Field()] = "Please provide a valid " + fe.Field()
		}
	}
	if len(formErrors) > 0 {
		h.render(w, r, "pages/members/form.html", "New member", createPageData{Form: form, Errors: formErrors}, http.StatusBadRequest)
		return
	}

	result, err := h.api.Mutate(r.Context(), http.MethodPost, ledger.PathMembers, map[string]any{
		"name":   form.Name,
		"email":  form.Email,
		"phone":  form.Phone,
		"shares": form.Shares,
	})
	if err != nil {
		h.redirectAfterMutationError(w, r, err)
		return
	}
	if !result.Success {
		h.render(w, r, "pages/members/form.html", "New member", createPageData{Form: form, Errors: map[string]string{"general": result.Message}}, http.StatusUnprocessableEntity)
		return
	}

	// The registry cell is refreshed before navigating back so the
	// listing reflects the confirmed record. The request context dies
	// when this handler returns, so the refetch must not ride on it.
	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/members", "Member registered"), http.StatusSeeOther)
}

func (h *Handler) redirectAfterMutationError(w http.ResponseWriter, r *http.Request, err error) {
	if transport.IsAuthLost(err) {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	h.logger.Error("member mutation failed", slog.Any("error", err))
	http.Redirect(w, r, shared.WithAlert("/members", fetch.FallbackErrorMessage), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data any, status int) {
	st := h.sessions.Snapshot()
	viewData := view.TemplateData{
		Title:       title,
		CurrentPath: r.URL.Path,
		CurrentUser: st.User,
		Notice:      shared.Notice(r),
		Alert:       shared.Alert(r),
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, name, viewData); err != nil {
		h.logger.Error("render members page", slog.Any("error", err), slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
