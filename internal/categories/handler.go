// Package categories renders collection-category administration.
package categories

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/malibag-society/malibag/internal/fetch"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/shared"
	"github.com/malibag-society/malibag/internal/transport"
	"github.com/malibag-society/malibag/internal/view"
)

// Handler serves category administration.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	api       *ledger.Client
	templates *view.Engine
	validator *validator.Validate

	listCell *fetch.Cell
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, api *ledger.Client, reads fetch.Getter, templates *view.Engine) *Handler {
	return &Handler{
		logger:    logger,
		sessions:  sessions,
		api:       api,
		templates: templates,
		validator: validator.New(),
		listCell:  fetch.NewCell(reads),
	}
}

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}", h.update)
	r.Post("/{id}/delete", h.remove)
}

type listPageData struct {
	Categories []ledger.Category
	FetchErr   string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.listCell.SetKey(r.Context(), ledger.PathCategories)
	if err := h.listCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.listCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	categories, _ := fetch.As[[]ledger.Category](snap)
	h.render(w, r, listPageData{Categories: categories, FetchErr: snap.Err})
}

type categoryForm struct {
	Name          string `validate:"required,min=2"`
	Description   string
	DefaultAmount string `validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, http.MethodPost, ledger.PathCategories, "Category created")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if id == 0 {
		http.Redirect(w, r, shared.WithAlert("/categories", "Unknown category"), http.StatusSeeOther)
		return
	}
	h.save(w, r, http.MethodPut, ledger.CategoryPath(id), "Category updated")
}

func (h *Handler) save(w http.ResponseWriter, r *http.Request, method, path, notice string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := categoryForm{
		Name:          r.PostFormValue("name"),
		Description:   r.PostFormValue("description"),
		DefaultAmount: r.PostFormValue("amount"),
	}
	if err := h.validator.Struct(form); err != nil {
		http.Redirect(w, r, shared.WithAlert("/categories", "Name and default amount are required"), http.StatusSeeOther)
		return
	}
	amount, err := decimal.NewFromString(form.DefaultAmount)
	if err != nil || amount.IsNegative() {
		http.Redirect(w, r, shared.WithAlert("/categories", "Default amount must be a non-negative number"), http.StatusSeeOther)
		return
	}

	result, err := h.api.Mutate(r.Context(), method, path, map[string]any{
		"name":          form.Name,
		"description":   form.Description,
		"defaultAmount": amount.String(),
	})
	if err != nil {
		h.mutationFailed(w, r, err)
		return
	}
	if !result.Success {
		http.Redirect(w, r, shared.WithAlert("/categories", result.Message), http.StatusSeeOther)
		return
	}
	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/categories", notice), http.StatusSeeOther)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if id == 0 {
		http.Redirect(w, r, shared.WithAlert("/categories", "Unknown category"), http.StatusSeeOther)
		return
	}
	result, err := h.api.Mutate(r.Context(), http.MethodDelete, ledger.CategoryPath(id), nil)
	if err != nil {
		h.mutationFailed(w, r, err)
		return
	}
	if !result.Success {
		http.Redirect(w, r, shared.WithAlert("/categories", result.Message), http.StatusSeeOther)
		return
	}
	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/categories", "Category removed"), http.StatusSeeOther)
}

func (h *Handler) mutationFailed(w http.ResponseWriter, r *http.Request, err error) {
	if transport.IsAuthLost(err) {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	h.logger.Error("category mutation failed", slog.Any("error", err))
	http.Redirect(w, r, shared.WithAlert("/categories", fetch.FallbackErrorMessage), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data listPageData) {
	st := h.sessions.Snapshot()
	viewData := view.TemplateData{
		Title:       "Categories",
		CurrentPath: r.URL.Path,
		CurrentUser: st.User,
		Notice:      shared.Notice(r),
		Alert:       shared.Alert(r),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/categories/list.html", viewData); err != nil {
		h.logger.Error("render categories page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
