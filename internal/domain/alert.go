package domain

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ThreatAlert — помеченное вредоносное направление, по которому пользователь решает block/allow.
type ThreatAlert struct {
	ID          string    `json:"id"`
	AppName     string    `json:"appName"`
	AppIcon     string    `json:"appIcon"`
	MaliciousIP string    `json:"maliciousIp"`
	ThreatType  string    `json:"threatType"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    Severity  `json:"severity"`
}

// DemoThreatAlert — фиксированный алерт для демо-кнопки. Backend алертов не отдает.
func DemoThreatAlert(now time.Time) ThreatAlert {
	return ThreatAlert{
		ID:          "1",
		AppName:     "Unknown App",
		AppIcon:     "❓",
		MaliciousIP: "198.51.100.42",
		ThreatType:  "Command & Control Server",
		Timestamp:   now,
		Severity:    SeverityCritical,
	}
}
