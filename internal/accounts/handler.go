// Package accounts renders the bank-account treasury screens: account
// listing, account detail, inter-account transfers and the
// mother-account designation.
package accounts

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

// Handler serves the treasury screens.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	api       *ledger.Client
	templates *view.Engine
	gate      gate.Gate
	validator *validator.Validate

	listCell   *fetch.Cell
	detailCell *fetch.Cell
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
	}
}

// MountRoutes registers treasury routes. Designating the mother account
// is reserved for the super-admin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.detail)
	r.Post("/transfer", h.transfer)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(session.RoleSuperAdmin))
		r.Post("/{id}/mother", h.designateMother)
	})
}

type listPageData struct {
	Accounts []ledger.BankAccount
	Total    decimal.Decimal
	FetchErr string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.listCell.SetKey(r.Context(), ledger.PathBankAccounts)
	if err := h.listCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.listCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	accounts, _ := fetch.As[[]ledger.BankAccount](snap)
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	h.render(w, r, "pages/accounts/list.html", "Bank accounts", listPageData{
		Accounts: accounts,
		Total:    total,
		FetchErr: snap.Err,
	}, http.StatusOK)
}

type detailPageData struct {
	Account  *ledger.BankAccount
	FetchErr string
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	h.detailCell.SetKey(r.Context(), ledger.BankAccountPath(id))
	if err := h.detailCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.detailCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	data := detailPageData{FetchErr: snap.Err}
	if a, ok := fetch.As[ledger.BankAccount](snap); ok {
		data.Account = &a
	}
	h.render(w, r, "pages/accounts/detail.html", "Account", data, http.StatusOK)
}

type transferForm struct {
	FromID int64  `validate:"required"`
	ToID   int64  `validate:"required,nefield=FromID"`
	Amount string `validate:"required"`
	Note   string
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	fromID, _ := strconv.ParseInt(r.PostFormValue("from"), 10, 64)
	toID, _ := strconv.ParseInt(r.PostFormValue("to"), 10, 64)
	form := transferForm{
		FromID: fromID,
		ToID:   toID,
		Amount: r.PostFormValue("amount"),
		Note:   r.PostFormValue("note"),
	}
	if err := h.validator.Struct(form); err != nil {
		http.Redirect(w, r, shared.WithAlert("/bank-accounts", "Pick two different accounts and an amount"), http.StatusSeeOther)
		return
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil || amount.IsNegative() || amount.IsZero() {
		http.Redirect(w, r, shared.WithAlert("/bank-accounts", "Transfer amount must be a positive number"), http.StatusSeeOther)
		return
	}

	result, err := h.api.Mutate(r.Context(), http.MethodPost, ledger.PathBankAccounts+"/transfer", map[string]any{
		"fromAccountId": form.FromID,
		"toAccountId":   form.ToID,
		"amount":        amount.String(),
		"note":          form.Note,
	})
	if err != nil {
		h.mutationFailed(w, r, err)
		return
	}
	if !result.Success {
		// Server refused: prior balances stay as they were, only the
		// message is surfaced.
		http.Redirect(w, r, shared.WithAlert("/bank-accounts", result.Message), http.StatusSeeOther)
		return
	}

	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/bank-accounts", "Transfer recorded"), http.StatusSeeOther)
}

func (h *Handler) designateMother(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if id == 0 {
		http.Redirect(w, r, shared.WithAlert("/bank-accounts", "Unknown account"), http.StatusSeeOther)
		return
	}
	result, err := h.api.Mutate(r.Context(), http.MethodPut, ledger.BankAccountPath(id)+"/mother", nil)
	if err != nil {
		h.mutationFailed(w, r, err)
		return
	}
	if !result.Success {
		http.Redirect(w, r, shared.WithAlert("/bank-accounts", result.Message), http.StatusSeeOther)
		return
	}
	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/bank-accounts", "Mother account updated"), http.StatusSeeOther)
}

func (h *Handler) mutationFailed(w http.ResponseWriter, r *http.Request, err error) {
	if transport.IsAuthLost(err) {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}
	h.logger.Error("treasury mutation failed", slog.Any("error", err))
	http.Redirect(w, r, shared.WithAlert("/bank-accounts", fetch.FallbackErrorMessage), http.StatusSeeOther)
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
		h.logger.Error("render accounts page", slog.Any("error", err), slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
