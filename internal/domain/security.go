package domain

// ConnectionStatus — вердикт backend по сетевому соединению.
type ConnectionStatus string

const (
	ConnectionSafe       ConnectionStatus = "SAFE"
	ConnectionSuspicious ConnectionStatus = "SUSPICIOUS"
	ConnectionMalicious  ConnectionStatus = "MALICIOUS"
)

// ThreatScale — пятиуровневая шкала репутации IP.
type ThreatScale string

const (
	ScaleSafe     ThreatScale = "SAFE"
	ScaleLow      ThreatScale = "LOW"
	ScaleMedium   ThreatScale = "MEDIUM"
	ScaleHigh     ThreatScale = "HIGH"
	ScaleCritical ThreatScale = "CRITICAL"
)

// DeviceStats — сводка безопасности устройства для дашборда. Заменяется целиком на каждом обновлении.
type DeviceStats struct {
	DeviceTrustScore      int   `json:"deviceTrustScore" validate:"min=0,max=100"`
	AppsMonitored         int   `json:"appsMonitored" validate:"min=0"`
	ThreatsBlocked        int   `json:"threatsBlocked" validate:"min=0"`
	DataUsageBytes        int64 `json:"dataUsageBytes" validate:"min=0"`
	CriticalThreats       int   `json:"criticalThreats" validate:"min=0"`
	HighThreats           int   `json:"highThreats" validate:"min=0"`
	SuspiciousConnections int   `json:"suspiciousConnections" validate:"min=0"`
}

// AttackSurfacePoint — одна корзина временного ряда атак.
type AttackSurfacePoint struct {
	Timestamp      int64  `json:"timestamp"` // epoch ms
	TimeLabel      string `json:"timeLabel"` // "10:00", "10:15"
	ThreatCount    int    `json:"threatCount" validate:"min=0"`
	NetworkTraffic int64  `json:"networkTraffic" validate:"min=0"` // bytes
}

// NetworkConnection — исходящий поток приложения, как его видит backend.
// Status намеренно не валидируется по закрытому списку: неизвестные значения
// обрабатывает слой отображения (трактует как suspicious).
type NetworkConnection struct {
	AppName         string `json:"appName" validate:"required"`
	AppPackage      string `json:"appPackage"`
	DestinationIP   string `json:"destinationIp" validate:"required,ip"`
	Port            int    `json:"port" validate:"min=0,max=65535"`
	Protocol        string `json:"protocol"` // TCP, UDP
	Status          string `json:"status"`
	DataTransferred int64  `json:"dataTransferred" validate:"min=0"`
	Timestamp       int64  `json:"timestamp"` // epoch ms
}

// IpReputation — оценка IP адреса сторонним threat intelligence.
type IpReputation struct {
	IPAddress   string      `json:"ipAddress" validate:"required,ip"`
	RiskScore   int         `json:"riskScore" validate:"min=0,max=100"`
	Category    string      `json:"category"`
	CountryCode string      `json:"countryCode"`
	ReportCount int         `json:"reportCount" validate:"min=0"`
	LastSeen    string      `json:"lastSeen"`
	IsVpn       bool        `json:"isVpn"`
	IsProxy     bool        `json:"isProxy"`
	ThreatLevel ThreatScale `json:"threatLevel"`
}
