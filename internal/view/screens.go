package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/pocketsiem/internal/domain"
)

// ChartPoints — сколько последних корзин attack surface попадает на график.
const ChartPoints = 7

// ConnectionView — строка списка Live Monitor.
type ConnectionView struct {
	Key             string      `json:"key"`
	AppName         string      `json:"appName"`
	AppPackage      string      `json:"appPackage"`
	Icon            string      `json:"icon"`
	DestinationIP   string      `json:"destinationIp"`
	Port            int         `json:"port"`
	Protocol        string      `json:"protocol"`
	Status          ThreatLevel `json:"status"`
	StatusColor     string      `json:"statusColor"`
	DataTransferred int64       `json:"dataTransferred"`
	DataLabel       string      `json:"dataLabel"`
	Timestamp       time.Time   `json:"timestamp"`
	Country         string      `json:"country,omitempty"`
	Blocked         bool        `json:"blocked"`
}

// ConnectionKey — ключ строки списка. Backend стабильного id не дает, поэтому
// два события одного пакета с одинаковым timestamp получат одинаковый ключ.
func ConnectionKey(appPackage string, timestamp int64) string {
	return fmt.Sprintf("%s:%d", appPackage, timestamp)
}

// MapConnection — тотальное и детерминированное отображение записи backend.
func MapConnection(c domain.NetworkConnection) ConnectionView {
	level := ParseThreatLevel(c.Status)
	return ConnectionView{
		Key:             ConnectionKey(c.AppPackage, c.Timestamp),
		AppName:         c.AppName,
		AppPackage:      c.AppPackage,
		Icon:            IconFor(c.AppName),
		DestinationIP:   c.DestinationIP,
		Port:            c.Port,
		Protocol:        c.Protocol,
		Status:          level,
		StatusColor:     level.Color(),
		DataTransferred: c.DataTransferred,
		DataLabel:       FormatBytes(c.DataTransferred),
		Timestamp:       time.UnixMilli(c.Timestamp).UTC(),
	}
}

func MapConnections(list []domain.NetworkConnection) []ConnectionView {
	out := make([]ConnectionView, 0, len(list))
	for _, c := range list {
		out = append(out, MapConnection(c))
	}
	return out
}

// LevelCounts — полоса статусов над списком.
type LevelCounts struct {
	Safe       int `json:"safe"`
	Suspicious int `json:"suspicious"`
	Malicious  int `json:"malicious"`
}

func CountByLevel(views []ConnectionView) LevelCounts {
	var c LevelCounts
	for _, v := range views {
		switch v.Status {
		case LevelSafe:
			c.Safe++
		case LevelMalicious:
			c.Malicious++
		default:
			c.Suspicious++
		}
	}
	return c
}

// ChartPoint — точка графика "Live Attack Surface".
type ChartPoint struct {
	Label   string `json:"label"`
	Threats int    `json:"threats"`
	Traffic int64  `json:"traffic"`
}

// ChartSeries берет последние n точек в порядке backend.
func ChartSeries(points []domain.AttackSurfacePoint, n int) []ChartPoint {
	if n > 0 && len(points) > n {
		points = points[len(points)-n:]
	}
	out := make([]ChartPoint, 0, len(points))
	for _, p := range points {
		out = append(out, ChartPoint{Label: p.TimeLabel, Threats: p.ThreatCount, Traffic: p.NetworkTraffic})
	}
	return out
}

// DashboardView — все, что рисует экран Dashboard.
type DashboardView struct {
	TrustScore            int          `json:"trustScore"`
	TrustLabel            string       `json:"trustLabel"`
	TrustColor            string       `json:"trustColor"`
	AppsMonitored         int          `json:"appsMonitored"`
	ThreatsBlocked        int          `json:"threatsBlocked"`
	DataUsage             string       `json:"dataUsage"`
	CriticalThreats       int          `json:"criticalThreats"`
	HighThreats           int          `json:"highThreats"`
	SuspiciousConnections int          `json:"suspiciousConnections"`
	Chart                 []ChartPoint `json:"chart"`
}

func BuildDashboard(stats domain.DeviceStats, surface []domain.AttackSurfacePoint) DashboardView {
	return DashboardView{
		TrustScore:            stats.DeviceTrustScore,
		TrustLabel:            TrustLabel(stats.DeviceTrustScore),
		TrustColor:            TrustColor(stats.DeviceTrustScore),
		AppsMonitored:         stats.AppsMonitored,
		ThreatsBlocked:        stats.ThreatsBlocked,
		DataUsage:             FormatDataUsage(stats.DataUsageBytes),
		CriticalThreats:       stats.CriticalThreats,
		HighThreats:           stats.HighThreats,
		SuspiciousConnections: stats.SuspiciousConnections,
		Chart:                 ChartSeries(surface, ChartPoints),
	}
}

// MonitorView — все, что рисует экран Live Monitor.
type MonitorView struct {
	Connections []ConnectionView `json:"connections"`
	Counts      LevelCounts      `json:"counts"`
}

func BuildMonitor(connections []ConnectionView) MonitorView {
	return MonitorView{Connections: connections, Counts: CountByLevel(connections)}
}

// AlertView — модалка угрозы.
type AlertView struct {
	domain.ThreatAlert
	SeverityColor string `json:"severityColor"`
	SeverityLabel string `json:"severityLabel"`
}

func BuildAlert(a domain.ThreatAlert) AlertView {
	return AlertView{
		ThreatAlert:   a,
		SeverityColor: SeverityColor(a.Severity),
		SeverityLabel: strings.ToUpper(string(a.Severity)),
	}
}
