package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/blocklist"
	"github.com/xela07ax/pocketsiem/internal/screen"
	"github.com/xela07ax/pocketsiem/internal/threatapi"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отдает пользователю то же сообщение, что увидел бы баннер экрана.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}

	msg := threatapi.UserMessage(err)
	switch {
	case errors.Is(err, screen.ErrNoActiveAlert):
		msg = "No active threat alert."
	case errors.Is(err, screen.ErrDecisionInProgress):
		msg = "Decision is already being processed."
	case errors.Is(err, blocklist.ErrInvalidIP):
		msg = threatapi.InvalidIPMessage
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: threatapi.ErrorKind(err)})
}

func statusFor(err error) int {
	var (
		tErr *threatapi.TimeoutError
		hErr *threatapi.HTTPError
		nErr *threatapi.NetworkError
		pErr *threatapi.ParseError
	)
	switch {
	case errors.Is(err, threatapi.ErrInvalidIP),
		errors.Is(err, threatapi.ErrInvalidRequest),
		errors.Is(err, blocklist.ErrInvalidIP):
		return http.StatusBadRequest
	case errors.Is(err, screen.ErrNoActiveAlert):
		return http.StatusNotFound
	case errors.Is(err, screen.ErrDecisionInProgress):
		return http.StatusConflict
	case errors.As(err, &tErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &nErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &hErr), errors.As(err, &pErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
