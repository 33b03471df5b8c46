package handler

import (
	"net/http"

	"github.com/xela07ax/pocketsiem/internal/screen"
	"github.com/xela07ax/pocketsiem/internal/view"
)

type DashboardScreen interface {
	State() screen.State[view.DashboardView]
}

type MonitorScreen interface {
	State() screen.State[view.MonitorView]
	Retry() bool
}

// ScreenHandler отдает текущее состояние экранов. Сам ничего не запрашивает у backend.
type ScreenHandler struct {
	dashboard DashboardScreen
	monitor   MonitorScreen
}

func NewScreenHandler(d DashboardScreen, m MonitorScreen) *ScreenHandler {
	return &ScreenHandler{dashboard: d, monitor: m}
}

func (h *ScreenHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.dashboard.State())
}

func (h *ScreenHandler) Monitor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.State())
}

// RetryMonitor — кнопка "Retry" на баннере ошибки монитора.
func (h *ScreenHandler) RetryMonitor(w http.ResponseWriter, r *http.Request) {
	if !h.monitor.Retry() {
		writeJSON(w, http.StatusConflict, errorBody{Error: "Monitor screen is not active."})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
