package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/domain"
)

type ThreatAPI interface {
	CheckIPReputation(ctx context.Context, ip string) (domain.IpReputation, error)
	ReportThreat(ctx context.Context, req domain.ThreatReportRequest) (domain.ThreatReport, error)
	GetReportsForIP(ctx context.Context, ip string) ([]domain.ThreatReport, error)
	GetReportsForApp(ctx context.Context, appName string) ([]domain.ThreatReport, error)
	GetRecentReportCount(ctx context.Context, ip string) (int, error)
}

// ThreatHandler — тонкий прокси к backend через типизированный клиент.
type ThreatHandler struct {
	api      ThreatAPI
	deviceID string
	logger   *zap.Logger
}

func NewThreatHandler(api ThreatAPI, deviceID string, logger *zap.Logger) *ThreatHandler {
	return &ThreatHandler{api: api, deviceID: deviceID, logger: logger}
}

func (h *ThreatHandler) Reputation(w http.ResponseWriter, r *http.Request) {
	rep, err := h.api.CheckIPReputation(r.Context(), r.URL.Query().Get("ip"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ThreatHandler) Report(w http.ResponseWriter, r *http.Request) {
	var req domain.ThreatReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body."})
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = h.deviceID
	}

	report, err := h.api.ReportThreat(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *ThreatHandler) ReportsForIP(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.GetReportsForIP(r.Context(), chi.URLParam(r, "ip"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *ThreatHandler) ReportsForApp(w http.ResponseWriter, r *http.Request) {
	list, err := h.api.GetReportsForApp(r.Context(), chi.URLParam(r, "app"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *ThreatHandler) ReportCount(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	n, err := h.api.GetRecentReportCount(r.Context(), ip)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ip": ip, "count": n})
}

func nonNil(list []domain.ThreatReport) []domain.ThreatReport {
	if list == nil {
		return []domain.ThreatReport{}
	}
	return list
}
