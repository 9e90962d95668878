package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gatehouse/internal/transport/httputil"
	id "gatehouse/pkg/domain"
)

type quotaWindowResponse struct {
	AccountID   string    `json:"account_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Used        int       `json:"used"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
}

// handleQuotaWindow reports an upstream account's current budget usage, so
// operators and business handlers can see how much headroom remains before
// committing to an upstream call.
func (h *Handler) handleQuotaWindow(w http.ResponseWriter, r *http.Request) {
	accountID, err := id.ParseAccountID(chi.URLParam(r, "accountID"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	window, err := h.quotas.WindowFor(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, quotaWindowResponse{
		AccountID:   window.AccountID.String(),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Used:        window.Used,
		Limit:       window.Limit,
		Remaining:   max(0, window.Limit-window.Used),
	})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Health(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err.Error())
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
