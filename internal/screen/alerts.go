package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/pocketsiem/internal/blocklist"
	"github.com/xela07ax/pocketsiem/internal/domain"
	"github.com/xela07ax/pocketsiem/internal/journal"
	"github.com/xela07ax/pocketsiem/internal/threatapi"
	"github.com/xela07ax/pocketsiem/internal/view"
)

var (
	ErrNoActiveAlert      = errors.New("no active threat alert")
	ErrDecisionInProgress = errors.New("decision on the alert is already in progress")
)

type Blocker interface {
	Block(ctx context.Context, ip string) error
	Unblock(ctx context.Context, ip string) error
}

type ThreatReporter interface {
	ReportThreat(ctx context.Context, req domain.ThreatReportRequest) (domain.ThreatReport, error)
}

// Outcome — результат решения пользователя по алерту.
type Outcome struct {
	Decision journal.Decision     `json:"decision"`
	Report   *domain.ThreatReport `json:"report,omitempty"`
}

// AlertDesk — модалка угрозы на экране монитора. Одновременно показан не больше одного алерта.
type AlertDesk struct {
	mu       sync.Mutex
	active   *domain.ThreatAlert
	inFlight bool // идет Block по текущему алерту
	blocker  Blocker
	reporter ThreatReporter
	journal  journal.Recorder
	deviceID string
	logger   *zap.Logger
	now      func() time.Time
}

func NewAlertDesk(blocker Blocker, reporter ThreatReporter, rec journal.Recorder, deviceID string, logger *zap.Logger) *AlertDesk {
	return &AlertDesk{
		blocker:  blocker,
		reporter: reporter,
		journal:  rec,
		deviceID: deviceID,
		logger:   logger.With(zap.String("mod", "alerts")),
		now:      time.Now,
	}
}

// ShowDemo показывает фиксированный демо-алерт (кнопка "Show Threat Alert Demo").
func (d *AlertDesk) ShowDemo() view.AlertView {
	a := domain.DemoThreatAlert(d.now().UTC())
	d.mu.Lock()
	d.active = &a
	d.mu.Unlock()
	d.logger.Info("threat alert shown", zap.String("alert_id", a.ID), zap.String("ip", a.MaliciousIP))
	return view.BuildAlert(a)
}

func (d *AlertDesk) Active() (view.AlertView, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return view.AlertView{}, false
	}
	return view.BuildAlert(*d.active), true
}

// Block блокирует адрес, отправляет отчет на backend и пишет решение в журнал.
// Отчет — неидемпотентный POST: при ошибке он не повторяется, модалка остается открытой.
// Сетевые вызовы идут без d.mu, второй Block по тому же алерту получает ErrDecisionInProgress.
func (d *AlertDesk) Block(ctx context.Context) (Outcome, error) {
	d.mu.Lock()
	if d.active == nil {
		d.mu.Unlock()
		return Outcome{}, ErrNoActiveAlert
	}
	if d.inFlight {
		d.mu.Unlock()
		return Outcome{}, ErrDecisionInProgress
	}
	shown := d.active
	a := *shown
	d.inFlight = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	dec := d.decision(ctx, a, journal.ActionBlock)

	if err := d.blocker.Block(ctx, a.MaliciousIP); err != nil {
		dec.Error = err.Error()
		d.record(dec)
		return Outcome{Decision: dec}, fmt.Errorf("block %s: %w", a.MaliciousIP, err)
	}

	severity := severityScore(a.Severity)
	report, err := d.reporter.ReportThreat(ctx, domain.ThreatReportRequest{
		AppName:      a.AppName,
		TargetIP:     a.MaliciousIP,
		Description:  a.ThreatType,
		DeviceID:     d.deviceID,
		UserSeverity: &severity,
	})
	if err != nil {
		// Адрес уже заблокирован локально; без отчета алерт не закрываем, пользователь может повторить
		dec.Error = threatapi.UserMessage(err)
		d.record(dec)
		d.logger.Error("threat report failed", zap.String("ip", a.MaliciousIP), zap.Error(err))
		return Outcome{Decision: dec}, err
	}

	dec.ReportID = &report.ID
	d.record(dec)
	d.dismiss(shown)
	d.logger.Info("connection blocked", zap.String("ip", a.MaliciousIP), zap.Int64("report_id", report.ID))
	return Outcome{Decision: dec, Report: &report}, nil
}

// dismiss закрывает алерт, если пока шли запросы его не заменили новым.
func (d *AlertDesk) dismiss(shown *domain.ThreatAlert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == shown {
		d.active = nil
	}
}

// Allow закрывает алерт без действий и пишет решение в журнал.
func (d *AlertDesk) Allow(ctx context.Context) (Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active == nil {
		return Outcome{}, ErrNoActiveAlert
	}
	if d.inFlight {
		return Outcome{}, ErrDecisionInProgress
	}
	dec := d.decision(ctx, *d.active, journal.ActionAllow)
	d.record(dec)
	d.active = nil
	d.logger.Info("connection allowed", zap.String("ip", dec.IP))
	return Outcome{Decision: dec}, nil
}

// Unblock снимает блокировку адреса и пишет решение в журнал: прогрев блоклиста
// при старте опирается на последнее решение по адресу.
func (d *AlertDesk) Unblock(ctx context.Context, ip string) (journal.Decision, error) {
	dec := journal.Decision{
		TraceID:   threatapi.TraceIDFromContext(ctx),
		DeviceID:  d.deviceID,
		IP:        ip,
		Action:    journal.ActionUnblock,
		DecidedAt: d.now().UTC(),
	}

	err := d.blocker.Unblock(ctx, ip)
	if errors.Is(err, blocklist.ErrInvalidIP) {
		return journal.Decision{}, err
	}
	if err != nil {
		// Из памяти адрес уже убран, журнал должен совпадать с ней
		dec.Error = err.Error()
		d.record(dec)
		return dec, fmt.Errorf("unblock %s: %w", ip, err)
	}

	d.record(dec)
	d.logger.Info("connection unblocked", zap.String("ip", ip))
	return dec, nil
}

func (d *AlertDesk) decision(ctx context.Context, a domain.ThreatAlert, action journal.Action) journal.Decision {
	return journal.Decision{
		TraceID:    threatapi.TraceIDFromContext(ctx),
		DeviceID:   d.deviceID,
		AlertID:    a.ID,
		AppName:    a.AppName,
		IP:         a.MaliciousIP,
		ThreatType: a.ThreatType,
		Severity:   string(a.Severity),
		Action:     action,
		DecidedAt:  d.now().UTC(),
	}
}

func (d *AlertDesk) record(dec journal.Decision) {
	if d.journal == nil {
		return
	}
	if !d.journal.Record(dec) {
		d.logger.Warn("decision not journaled", zap.String("alert_id", dec.AlertID), zap.String("action", string(dec.Action)))
	}
}

// severityScore — userSeverity для backend: low=1 .. critical=4.
func severityScore(s domain.Severity) int {
	switch s {
	case domain.SeverityCritical:
		return 4
	case domain.SeverityHigh:
		return 3
	case domain.SeverityMedium:
		return 2
	case domain.SeverityLow:
		return 1
	default:
		return 0
	}
}
