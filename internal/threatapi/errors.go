package threatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Endpoint — имя возможности backend, используется в ошибках, логах и метриках.
type Endpoint string

const (
	EndpointDeviceStats     Endpoint = "device-stats"
	EndpointAttackSurface   Endpoint = "attack-surface"
	EndpointLiveConnections Endpoint = "live-connections"
	EndpointReputation      Endpoint = "reputation"
	EndpointReport          Endpoint = "report"
	EndpointReportsForIP    Endpoint = "reports-for-ip"
	EndpointReportsForApp   Endpoint = "reports-for-app"
	EndpointReportCount     Endpoint = "report-count"
)

const (
	TimeoutMessage   = "Request timed out. Please check your network connection."
	InvalidIPMessage = "Invalid IP address format."
	genericMessage   = "Something went wrong. Please try again."
)

var userMessages = map[Endpoint]string{
	EndpointDeviceStats:     "Failed to load device statistics. Please try again.",
	EndpointAttackSurface:   "Failed to load attack surface data. Please try again.",
	EndpointLiveConnections: "Failed to load live connections. Please try again.",
	EndpointReputation:      "Failed to check IP reputation. Please try again.",
	EndpointReport:          "Failed to report threat. Please try again.",
	EndpointReportsForIP:    "Failed to load reports for this IP. Please try again.",
	EndpointReportsForApp:   "Failed to load reports for this app. Please try again.",
	EndpointReportCount:     "Failed to load report count. Please try again.",
}

var (
	ErrInvalidIP      = errors.New("invalid IP address format")
	ErrInvalidRequest = errors.New("invalid request")
)

// TimeoutError — дедлайн запроса истек до получения ответа.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %v", e.Timeout)
}

// HTTPError — backend ответил не-2xx статусом.
type HTTPError struct {
	Endpoint   Endpoint
	StatusCode int
	RetryAfter time.Duration // из заголовка Retry-After (429/503), иначе 0
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s request failed", e.StatusCode, e.Endpoint)
}

// NetworkError — транспортный сбой: хост недоступен, соединение разорвано, предохранитель открыт.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError — тело ответа не JSON или не проходит валидацию схемы.
type ParseError struct {
	Endpoint Endpoint
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RequestError — то, что клиент возвращает наружу: причина плюс endpoint для сообщения пользователю.
type RequestError struct {
	Endpoint Endpoint
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// UserMessage переводит ошибку в текст для баннера.
func (e *RequestError) UserMessage() string {
	var tErr *TimeoutError
	if errors.As(e.Err, &tErr) {
		return TimeoutMessage
	}
	if errors.Is(e.Err, ErrInvalidIP) {
		return InvalidIPMessage
	}
	if msg, ok := userMessages[e.Endpoint]; ok {
		return msg
	}
	return genericMessage
}

// UserMessage работает с любой ошибкой, а не только с RequestError.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var rErr *RequestError
	if errors.As(err, &rErr) {
		return rErr.UserMessage()
	}
	var tErr *TimeoutError
	if errors.As(err, &tErr) {
		return TimeoutMessage
	}
	return genericMessage
}

// ErrorKind — метка для метрик и логов.
func ErrorKind(err error) string {
	var (
		tErr *TimeoutError
		hErr *HTTPError
		nErr *NetworkError
		pErr *ParseError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &tErr):
		return "timeout"
	case errors.As(err, &hErr):
		return "http"
	case errors.As(err, &nErr):
		return "network"
	case errors.As(err, &pErr):
		return "parse"
	case errors.Is(err, ErrInvalidIP), errors.Is(err, ErrInvalidRequest):
		return "invalid_input"
	default:
		return "other"
	}
}

// isRetryable: только временные отказы. 4xx (кроме 429) и ошибки разбора не повторяем.
func isRetryable(err error) bool {
	var (
		tErr *TimeoutError
		hErr *HTTPError
		nErr *NetworkError
	)
	switch {
	case errors.As(err, &tErr), errors.As(err, &nErr):
		return true
	case errors.As(err, &hErr):
		return hErr.StatusCode == http.StatusTooManyRequests || hErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// countsAsFailure решает, должна ли ошибка открывать предохранитель.
// Ответы 4xx и кривой JSON означают, что backend жив.
func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var (
		hErr *HTTPError
		pErr *ParseError
	)
	if errors.As(err, &hErr) {
		return hErr.StatusCode >= http.StatusInternalServerError || hErr.StatusCode == http.StatusTooManyRequests
	}
	if errors.As(err, &pErr) {
		return false
	}
	return true
}
