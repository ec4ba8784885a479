package handlers

import (
	"errors"
	"net/http"

	"github.com/samtale/samtale/internal/service"
)

// OpsHandler exposes operator endpoints mounted behind the ops key. They
// trigger the same work the background schedulers do, on demand.
type OpsHandler struct {
	retention *service.RetentionService
	tickets   *service.TicketQueueService
}

func NewOpsHandler(retention *service.RetentionService, tickets *service.TicketQueueService) *OpsHandler {
	return &OpsHandler{retention: retention, tickets: tickets}
}

// RunCleanup executes the retention pass for every enabled policy and
// returns the per-chatbot report.
func (h *OpsHandler) RunCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.retention.ExecuteAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cleanup batch failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

// DrainTickets delivers one batch of pending tickets immediately.
func (h *OpsHandler) DrainTickets(w http.ResponseWriter, r *http.Request) {
	sent, failed, err := h.tickets.DrainOnce(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrSenderNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "ticket drain failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sent": sent, "failed": failed})
}
