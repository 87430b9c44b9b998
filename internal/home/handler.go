// Package home renders the dashboard landing screen with the society's
// totals snapshot.
package home

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/malibag-society/malibag/internal/fetch"
	"github.com/malibag-society/malibag/internal/gate"
	"github.com/malibag-society/malibag/internal/ledger"
	"github.com/malibag-society/malibag/internal/session"
	"github.com/malibag-society/malibag/internal/shared"
	"github.com/malibag-society/malibag/internal/view"
)

// Handler serves the landing screen.
type Handler struct {
	logger    *slog.Logger
	sessions  *session.Store
	templates *view.Engine

	summaryCell *fetch.Cell
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, sessions *session.Store, reads fetch.Getter, templates *view.Engine) *Handler {
	return &Handler{
		logger:      logger,
		sessions:    sessions,
		templates:   templates,
		summaryCell: fetch.NewCell(reads),
	}
}

// MountRoutes registers the landing route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
}

type pageData struct {
	Summary  *ledger.ReportSummary
	FetchErr string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.summaryCell.SetKey(r.Context(), ledger.PathReportSummary)
	if err := h.summaryCell.WaitSettled(r.Context()); err != nil {
		return
	}
	snap := h.summaryCell.Snapshot()
	if snap.AuthLost {
		http.Redirect(w, r, gate.LoginPath, http.StatusSeeOther)
		return
	}

	data := pageData{FetchErr: snap.Err}
	if s, ok := fetch.As[ledger.ReportSummary](snap); ok {
		data.Summary = &s
	}

	st := h.sessions.Snapshot()
	viewData := view.TemplateData{
		Title:       "Malibag Teachers' Financial Society",
		CurrentPath: r.URL.Path,
		CurrentUser: st.User,
		Notice:      shared.Notice(r),
		Alert:       shared.Alert(r),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/home.html", viewData); err != nil {
		h.logger.Error("render home page", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
