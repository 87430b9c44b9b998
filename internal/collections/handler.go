// Package collections renders the collection ledger and the deposit
// entry screen.
package collections

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

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

// Handler serves the collection screens.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	api       *ledger.Client
	templates *view.Engine
	validator *validator.Validate

	listCell       *fetch.Cell
	membersCell    *fetch.Cell
	categoriesCell *fetch.Cell
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, api *ledger.Client, reads fetch.Getter, templates *view.Engine) *Handler {
	return &Handler{
		logger:         logger,
		sessions:       sessions,
		api:            api,
		templates:      templates,
		validator:      validator.New(),
		listCell:       fetch.NewCell(reads),
		membersCell:    fetch.NewCell(reads),
		categoriesCell: fetch.NewCell(reads),
	}
}

// MountRoutes registers collection routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showDepositForm)
	r.Post("/", h.recordDeposit)
}

type listPageData struct {
	Collections []ledger.Collection
	Pagination  shared.Pagination
	FetchErr    string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.listCell.SetKey(r.Context(), ledger.PathCollections)
	if err := h.listCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.listCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	entries, _ := fetch.As[[]ledger.Collection](snap)
	page := shared.PageFromRequest(r)
	p := shared.NewPagination(page, 25, len(entries))
	h.render(w, r, "pages/collections/list.html", "Collections", listPageData{
		Collections: shared.Slice(entries, p),
		Pagination:  p,
		FetchErr:    snap.Err,
	}, http.StatusOK)
}

type depositForm struct {
	MemberID   int64  `validate:"required"`
	CategoryID int64  `validate:"required"`
	Amount     string `validate:"required"`
	Note       string
}

type depositPageData struct {
	Members    []ledger.Member
	Categories []ledger.Category
	Form       depositForm
	Errors     map[string]string
	FetchErr   string
}

// showDepositForm needs both the member registry and the category list;
// each arrives through its own cell.
func (h *Handler) showDepositForm(w http.ResponseWriter, r *http.Request) {
	h.membersCell.SetKey(r.Context(), ledger.PathMembers)
	h.categoriesCell.SetKey(r.Context(), ledger.PathCategories)
	if err := h.membersCell.WaitSettled(r.Context()); err != nil {
		return
	}
	if err := h.categoriesCell.WaitSettled(r.Context()); err != nil {
		return
	}
	membersSnap := h.membersCell.Snapshot()
	categoriesSnap := h.categoriesCell.Snapshot()
	if membersSnap.AuthLost || categoriesSnap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	members, _ := fetch.As[[]ledger.Member](membersSnap)
	categories, _ := fetch.As[[]ledger.Category](categoriesSnap)
	fetchErr := membersSnap.Err
	if fetchErr == "" {
		fetchErr = categoriesSnap.Err
	}
	h.render(w, r, "pages/collections/form.html", "Record deposit", depositPageData{
		Members:    members,
		Categories: categories,
		Errors:     map[string]string{},
		FetchErr:   fetchErr,
	}, http.StatusOK)
}

func (h *Handler) recordDeposit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	memberID, _ := strconv.ParseInt(r.PostFormValue("member"), 10, 64)
	categoryID, _ := strconv.ParseInt(r.PostFormValue("category"), 10, 64)
	form := depositForm{
		MemberID:   memberID,
		CategoryID: categoryID,
		Amount:     r.PostFormValue("amount"),
		Note:       r.PostFormValue("note"),
	}
	if err := h.validator.Struct(form); err != nil {
		http.Redirect(w, r, shared.WithAlert("/collections/new", "Member, category and amount are required"), http.StatusSeeOther)
		return
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil || !amount.IsPositive() {
		http.Redirect(w, r, shared.WithAlert("/collections/new", "Deposit amount must be a positive number"), http.StatusSeeOther)
		return
	}

	result, err := h.api.Mutate(r.Context(), http.MethodPost, ledger.PathCollections, map[string]any{
		"memberId":    form.MemberID,
		"categoryId":  form.CategoryID,
		"amount":      amount.String(),
		"note":        form.Note,
		"collectedAt": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		if transport.IsAuthLost(err) {
			http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
			return
		}
		h.logger.Error("record deposit failed", slog.Any("error", err))
		http.Redirect(w, r, shared.WithAlert("/collections/new", fetch.FallbackErrorMessage), http.StatusSeeOther)
		return
	}
	if !result.Success {
		http.Redirect(w, r, shared.WithAlert("/collections/new", result.Message), http.StatusSeeOther)
		return
	}

	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/collections", "Deposit recorded"), http.StatusSeeOther)
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
		h.logger.Error("render collections page", slog.Any("error", err), slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
