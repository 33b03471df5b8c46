package domain

// ThreatReportRequest — тело POST /report.
type ThreatReportRequest struct {
	AppName      string `json:"appName" validate:"required"`
	TargetIP     string `json:"targetIp" validate:"required,ip"`
	Protocol     string `json:"protocol,omitempty"`
	Description  string `json:"description,omitempty" validate:"max=500"`
	DeviceID     string `json:"deviceId" validate:"required"`
	UserSeverity *int   `json:"userSeverity,omitempty" validate:"omitempty,min=0"`
}

// ThreatReport — сохраненный backend отчет.
// Даты приходят как LocalDateTime без зоны ("2024-05-01T10:00:00"), поэтому остаются строками.
type ThreatReport struct {
	ID           int64  `json:"id"`
	AppName      string `json:"appName" validate:"required"`
	TargetIP     string `json:"targetIp" validate:"required"`
	ReportedAt   string `json:"reportedAt"`
	Protocol     string `json:"protocol"`
	Description  string `json:"description"`
	DeviceID     string `json:"deviceId"`
	UserSeverity int    `json:"userSeverity"`
	CreatedAt    string `json:"createdAt"`
}
