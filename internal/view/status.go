package view

import (
	"strings"

	"github.com/xela07ax/pocketsiem/internal/domain"
)

// ThreatLevel — трехуровневая шкала UI.
type ThreatLevel string

const (
	LevelSafe       ThreatLevel = "safe"
	LevelSuspicious ThreatLevel = "suspicious"
	LevelMalicious  ThreatLevel = "malicious"
)

// Палитра темы приложения.
const (
	ColorSafe       = "#00E676"
	ColorWarning    = "#FFC107"
	ColorSuspicious = "#FFC107"
	ColorMalicious  = "#CF6679"
	ColorError      = "#CF6679"
	ColorMuted      = "#808080"
)

// ParseThreatLevel переводит статус backend в шкалу UI.
// Все, что не распознано, считается suspicious: неизвестное никогда не становится safe.
func ParseThreatLevel(status string) ThreatLevel {
	switch ThreatLevel(strings.ToLower(strings.TrimSpace(status))) {
	case LevelSafe:
		return LevelSafe
	case LevelMalicious:
		return LevelMalicious
	default:
		return LevelSuspicious
	}
}

// Color — цвет точки/бейджа статуса.
func (l ThreatLevel) Color() string {
	switch l {
	case LevelSafe:
		return ColorSafe
	case LevelSuspicious:
		return ColorSuspicious
	case LevelMalicious:
		return ColorMalicious
	default:
		return ColorMuted
	}
}

// TrustLabel — подпись под датчиком доверия.
func TrustLabel(score int) string {
	switch {
	case score >= 80:
		return "SECURE"
	case score >= 60:
		return "CAUTION"
	default:
		return "CRITICAL"
	}
}

func TrustColor(score int) string {
	switch {
	case score >= 80:
		return ColorSafe
	case score >= 60:
		return ColorWarning
	default:
		return ColorError
	}
}

// SeverityColor — цвет бейджа в модалке алерта.
func SeverityColor(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return ColorError
	case domain.SeverityHigh:
		return ColorMalicious
	case domain.SeverityMedium:
		return ColorWarning
	case domain.SeverityLow:
		return ColorSuspicious
	default:
		return ColorMuted
	}
}
