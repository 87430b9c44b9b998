// Package reports renders the audit report screens. The summary page
// assembles several independent resources; their fetches run
// concurrently and each section fails on its own.
package reports

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/malibag-society/malibag/internal/fetch"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/shared"
	"github.com/malibag-society/malibag/internal/view"
)

// Handler serves the report screens.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	templates *view.Engine

	summaryCell     *fetch.Cell
	collectionsCell *fetch.Cell
	investmentsCell *fetch.Cell
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, reads fetch.Getter, templates *view.Engine) *Handler {
	return &Handler{
		logger:          logger,
		sessions:        sessions,
		templates:       templates,
		summaryCell:     fetch.NewCell(reads),
		collectionsCell: fetch.NewCell(reads),
		investmentsCell: fetch.NewCell(reads),
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Post("/refresh", h.refresh)
}

type pageData struct {
	Summary        *ledger.ReportSummary
	SummaryErr     string
	Collections    []ledger.CollectionReportRow
	CollectionsErr string
	Investments    []ledger.InvestmentReportRow
	InvestmentsErr string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.summaryCell.SetKey(ctx, ledger.PathReportSummary)
	h.collectionsCell.SetKey(ctx, ledger.PathReportCollections)
	h.investmentsCell.SetKey(ctx, ledger.PathReportInvestments)

	g, gctx := errgroup.WithContext(ctx)
	for _, cell := range []*fetch.Cell{h.summaryCell, h.collectionsCell, h.investmentsCell} {
		g.Go(func() error { return cell.WaitSettled(gctx) })
	}
	if err := g.Wait(); err != nil {
		return
	}

	summarySnap := h.summaryCell.Snapshot()
	collectionsSnap := h.collectionsCell.Snapshot()
	investmentsSnap := h.investmentsCell.Snapshot()
	if summarySnap.AuthLost || collectionsSnap.AuthLost || investmentsSnap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	data := pageData{
		SummaryErr:     summarySnap.Err,
		CollectionsErr: collectionsSnap.Err,
		InvestmentsErr: investmentsSnap.Err,
	}
	if s, ok := fetch.As[ledger.ReportSummary](summarySnap); ok {
		data.Summary = &s
	}
	data.Collections, _ = fetch.As[[]ledger.CollectionReportRow](collectionsSnap)
	data.Investments, _ = fetch.As[[]ledger.InvestmentReportRow](investmentsSnap)

	h.render(w, r, data)
}

// refresh is the manual retry affordance: it re-issues every section's
// fetch and lands back on the report.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	// Outlive the request: the redirect commits before the refetches land.
	ctx := context.WithoutCancel(r.Context())
	h.summaryCell.Refetch(ctx)
	h.collectionsCell.Refetch(ctx)
	h.investmentsCell.Refetch(ctx)
	http.Redirect(w, r, "/reports", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData) {
	st := h.sessions.Snapshot()
	viewData := view.TemplateData{
		Title:       "Reports",
		CurrentPath: r.URL.Path,
		CurrentUser: st.User,
		Notice:      shared.Notice(r),
		Alert:       shared.Alert(r),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/reports/index.html", viewData); err != nil {
		h.logger.Error("render reports page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
