package threatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/infra"
)

// Client — типизированный клиент backend API PocketSIEM.
// Создается явно и передается зависимостям, глобального экземпляра нет.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	doer    Doer
	rel     *reliabilityWrapper
	logger  *zap.Logger
	metrics *infra.Metrics
}

type Option func(*Client)

// WithHTTPClient подменяет транспорт (тесты, кастомный TLS).
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

func NewClient(cfg infra.APIConfig, logger *zap.Logger, metrics *infra.Metrics, opts ...Option) *Client {
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	logger = logger.Named("threat-api")

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.Key,
		timeout: cfg.Timeout(),
		// Дедлайн ставит Fetch, поэтому у http.Client собственного таймаута нет
		doer:    &http.Client{Transport: transport},
		rel:     newReliabilityWrapper(cfg, metrics, logger),
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDeviceStats — статистика устройства для дашборда.
func (c *Client) GetDeviceStats(ctx context.Context) (domain.DeviceStats, error) {
	var out domain.DeviceStats
	err := c.getJSON(ctx, EndpointDeviceStats, "/device-stats", nil, &out)
	return out, err
}

// GetAttackSurface — временной ряд угроз за последний час.
func (c *Client) GetAttackSurface(ctx context.Context) ([]domain.AttackSurfacePoint, error) {
	var out []domain.AttackSurfacePoint
	err := c.getJSON(ctx, EndpointAttackSurface, "/attack-surface", nil, &out)
	return out, err
}

// GetLiveConnections — активные соединения для Live Monitor.
func (c *Client) GetLiveConnections(ctx context.Context) ([]domain.NetworkConnection, error) {
	var out []domain.NetworkConnection
	err := c.getJSON(ctx, EndpointLiveConnections, "/live-connections", nil, &out)
	return out, err
}

// CheckIPReputation — репутация IP адреса.
func (c *Client) CheckIPReputation(ctx context.Context, ip string) (domain.IpReputation, error) {
	var out domain.IpReputation
	if err := c.checkIP(EndpointReputation, ip); err != nil {
		return out, err
	}
	err := c.getJSON(ctx, EndpointReputation, "/reputation", url.Values{"ip": {ip}}, &out)
	return out, err
}

// ReportThreat отправляет отчет об угрозе. Вызов не идемпотентен и никогда не повторяется автоматически.
func (c *Client) ReportThreat(ctx context.Context, req domain.ThreatReportRequest) (domain.ThreatReport, error) {
	var out domain.ThreatReport
	if err := domain.Validate(req); err != nil {
		c.logger.Warn("threat report rejected locally", zap.Error(err))
		if !domain.IsValidIP(req.TargetIP) {
			return out, &RequestError{Endpoint: EndpointReport, Err: ErrInvalidIP}
		}
		return out, &RequestError{Endpoint: EndpointReport, Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return out, &RequestError{Endpoint: EndpointReport, Err: err}
	}

	err = c.do(ctx, EndpointReport, http.MethodPost, "/report", nil, payload, false, &out)
	return out, err
}

// GetReportsForIP — все отчеты по IP.
func (c *Client) GetReportsForIP(ctx context.Context, ip string) ([]domain.ThreatReport, error) {
	var out []domain.ThreatReport
	if err := c.checkIP(EndpointReportsForIP, ip); err != nil {
		return nil, err
	}
	err := c.getJSON(ctx, EndpointReportsForIP, "/reports/"+url.PathEscape(ip), nil, &out)
	return out, err
}

// GetReportsForApp — все отчеты по приложению.
func (c *Client) GetReportsForApp(ctx context.Context, appName string) ([]domain.ThreatReport, error) {
	var out []domain.ThreatReport
	if strings.TrimSpace(appName) == "" {
		return nil, &RequestError{Endpoint: EndpointReportsForApp, Err: fmt.Errorf("%w: app name is required", ErrInvalidRequest)}
	}
	err := c.getJSON(ctx, EndpointReportsForApp, "/reports/app/"+url.PathEscape(appName), nil, &out)
	return out, err
}

// GetRecentReportCount — количество отчетов по IP за последние 24 часа.
func (c *Client) GetRecentReportCount(ctx context.Context, ip string) (int, error) {
	var out int
	if err := c.checkIP(EndpointReportCount, ip); err != nil {
		return 0, err
	}
	if err := c.getJSON(ctx, EndpointReportCount, "/reports/ip/"+url.PathEscape(ip)+"/count", nil, &out); err != nil {
		return 0, err
	}
	if out < 0 {
		err := &RequestError{Endpoint: EndpointReportCount, Err: &ParseError{Endpoint: EndpointReportCount, Err: fmt.Errorf("negative count %d", out)}}
		c.logError(EndpointReportCount, "", err)
		return 0, err
	}
	return out, nil
}

// BreakerState — состояние предохранителя ("closed", "half-open", "open").
func (c *Client) BreakerState() string {
	return c.rel.State().String()
}

func (c *Client) checkIP(ep Endpoint, ip string) error {
	if domain.IsValidIP(ip) {
		return nil
	}
	err := &RequestError{Endpoint: ep, Err: ErrInvalidIP}
	c.logger.Warn("rejected invalid ip", zap.String("endpoint", string(ep)), zap.String("ip", ip))
	c.metrics.ErrorTotal.WithLabelValues(string(ep), ErrorKind(err)).Inc()
	return err
}

func (c *Client) getJSON(ctx context.Context, ep Endpoint, path string, query url.Values, out any) error {
	return c.do(ctx, ep, http.MethodGet, path, query, nil, true, out)
}

// do — единый пайплайн: запрос -> reliability -> Fetch -> проверка статуса -> JSON -> валидация.
func (c *Client) do(ctx context.Context, ep Endpoint, method, path string, query url.Values, payload []byte, idempotent bool, out any) error {
	start := time.Now()
	traceID := TraceIDFromContext(ctx)

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := c.rel.Call(ctx, idempotent, func(ctx context.Context) (*Response, error) {
		// Запрос собирается на каждую попытку: тело POST нельзя перечитать
		var body io.Reader = http.NoBody
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-KEY", c.apiKey)
		req.Header.Set("X-Trace-ID", traceID)

		res, err := Fetch(ctx, c.doer, req, c.timeout)
		if err != nil {
			return nil, err
		}
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return nil, &HTTPError{
				Endpoint:   ep,
				StatusCode: res.StatusCode,
				RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")),
				Body:       truncate(string(res.Body), 512),
			}
		}
		return res, nil
	})

	if err == nil && out != nil {
		err = decode(ep, resp.Body, out)
	}

	outcome := "success"
	if err != nil {
		outcome = ErrorKind(err)
	}
	if !errors.Is(err, context.Canceled) {
		c.metrics.RequestDuration.WithLabelValues(string(ep), outcome).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		rErr := &RequestError{Endpoint: ep, Err: err}
		if errors.Is(err, context.Canceled) {
			// Экран закрыт или соседний запрос errgroup упал: это не отказ backend
			c.logger.Debug("request cancelled", zap.String("endpoint", string(ep)), zap.String("trace_id", traceID))
			return rErr
		}
		c.logError(ep, traceID, rErr)
		return rErr
	}

	c.logger.Debug("request completed",
		zap.String("endpoint", string(ep)),
		zap.String("trace_id", traceID),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) logError(ep Endpoint, traceID string, err error) {
	c.metrics.ErrorTotal.WithLabelValues(string(ep), ErrorKind(err)).Inc()
	c.logger.Error("request failed",
		zap.String("endpoint", string(ep)),
		zap.String("trace_id", traceID),
		zap.String("kind", ErrorKind(err)),
		zap.Error(err))
}

func decode(ep Endpoint, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Endpoint: ep, Err: err}
	}
	if err := domain.Validate(out); err != nil {
		return &ParseError{Endpoint: ep, Err: err}
	}
	return nil
}

// parseRetryAfter понимает только секунды; HTTP-date встречается редко и игнорируется.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
