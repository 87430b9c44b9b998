// Package investments renders the investment portfolio screens.
package investments

import (
	"context"
	"log/slog"
	"net/http"
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

// Handler serves the investment screens.
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

// MountRoutes registers investment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
}

type listPageData struct {
	Investments []ledger.Investment
	Placed      decimal.Decimal
	FetchErr    string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	h.listCell.SetKey(r.Context(), ledger.PathInvestments)
	if err := h.listCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.listCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	items, _ := fetch.As[[]ledger.Investment](snap)
	placed := decimal.Zero
	for _, inv := range items {
		if inv.Status == "active" {
			placed = placed.Add(inv.Amount)
		}
	}
	h.render(w, r, "pages/investments/list.html", "Investments", listPageData{
		Investments: items,
		Placed:      placed,
		FetchErr:    snap.Err,
	}, http.StatusOK)
}

type investmentForm struct {
	Title        string `validate:"required,min=3"`
	Amount       string `validate:"required"`
	MaturityDate string `validate:"required"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := investmentForm{
		Title:        r.PostFormValue("title"),
		Amount:       r.PostFormValue("amount"),
		MaturityDate: r.PostFormValue("maturity"),
	}
	if err := h.validator.Struct(form); err != nil {
		http.Redirect(w, r, shared.WithAlert("/investments", "Title, amount and maturity date are required"), http.StatusSeeOther)
		return
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil || !amount.IsPositive() {
		http.Redirect(w, r, shared.WithAlert("/investments", "Investment amount must be a positive number"), http.StatusSeeOther)
		return
	}
	maturity, err := time.Parse("2006-01-02", form.MaturityDate)
	if err != nil || maturity.Before(time.Now()) {
		http.Redirect(w, r, shared.WithAlert("/investments", "Maturity date must lie in the future"), http.StatusSeeOther)
		return
	}

	result, err := h.api.Mutate(r.Context(), http.MethodPost, ledger.PathInvestments, map[string]any{
		"title":        form.Title,
		"amount":       amount.String(),
		"maturityDate": maturity.Format("2006-01-02"),
	})
	if err != nil {
		if transport.IsAuthLost(err) {
			http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
			return
		}
		h.logger.Error("record investment failed", slog.Any("error", err))
		http.Redirect(w, r, shared.WithAlert("/investments", fetch.FallbackErrorMessage), http.StatusSeeOther)
		return
	}
	if !result.Success {
		http.Redirect(w, r, shared.WithAlert("/investments", result.Message), http.StatusSeeOther)
		return
	}

	h.listCell.Refetch(context.WithoutCancel(r.Context()))
	http.Redirect(w, r, shared.WithNotice("/investments", "Investment recorded"), http.StatusSeeOther)
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
		h.logger.Error("render investments page", slog.Any("error", err), slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
