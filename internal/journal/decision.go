package journal

import "time"

type Action string

const (
	ActionBlock   Action = "block"
	ActionAllow   Action = "allow"
	ActionUnblock Action = "unblock" // ручное снятие блокировки, алерта за ним нет
)

// Decision — решение пользователя по алерту угрозы или по блоклисту.
type Decision struct {
	ID         string    `json:"id"`
	TraceID    string    `json:"trace_id"`
	DeviceID   string    `json:"device_id"`
	AlertID    string    `json:"alert_id"`
	AppName    string    `json:"app_name"`
	IP         string    `json:"ip"`
	ThreatType string    `json:"threat_type"`
	Severity   string    `json:"severity"`
	Action     Action    `json:"action"`
	ReportID   *int64    `json:"report_id,omitempty"` // id отчета на backend, если он был отправлен
	Error      string    `json:"error,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}
