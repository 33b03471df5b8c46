package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/journal"
	"github.com/xela07ax/pocketsiem/internal/screen"
	"github.com/xela07ax/pocketsiem/internal/view"
)

type AlertService interface {
	ShowDemo() view.AlertView
	Active() (view.AlertView, bool)
	Block(ctx context.Context) (screen.Outcome, error)
	Allow(ctx context.Context) (screen.Outcome, error)
	Unblock(ctx context.Context, ip string) (journal.Decision, error)
}

type BlocklistService interface {
	List() []string
}

// DecisionHistory — журнал решений. Есть только при настроенном Postgres.
type DecisionHistory interface {
	Recent(ctx context.Context, limit int) ([]journal.Decision, error)
}

type AlertHandler struct {
	alerts    AlertService
	blocklist BlocklistService
	history   DecisionHistory
	logger    *zap.Logger
}

func NewAlertHandler(a AlertService, b BlocklistService, history DecisionHistory, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerts: a, blocklist: b, history: history, logger: logger}
}

func (h *AlertHandler) ShowDemo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.alerts.ShowDemo())
}

func (h *AlertHandler) Active(w http.ResponseWriter, r *http.Request) {
	a, ok := h.alerts.Active()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AlertHandler) Block(w http.ResponseWriter, r *http.Request) {
	out, err := h.alerts.Block(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AlertHandler) Allow(w http.ResponseWriter, r *http.Request) {
	out, err := h.alerts.Allow(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AlertHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []journal.Decision{})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []journal.Decision{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AlertHandler) Blocked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.blocklist.List())
}

func (h *AlertHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if _, err := h.alerts.Unblock(r.Context(), ip); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
