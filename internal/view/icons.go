package view

import "strings"

const UnknownIcon = "❓"

// Ключ — имя приложения в нижнем регистре без пробелов.
var appIcons = map[string]string{
	"chrome":        "🌐",
	"firefox":       "🦊",
	"whatsapp":      "💬",
	"telegram":      "✈️",
	"gmail":         "📧",
	"outlook":       "📧",
	"spotify":       "🎵",
	"youtube":       "▶️",
	"instagram":     "📷",
	"facebook":      "👥",
	"maps":          "🗺️",
	"systemservice": "⚙️",
	"unknownapp":    UnknownIcon,
}

// IconFor подбирает иконку по имени приложения. Никогда не падает.
func IconFor(appName string) string {
	key := strings.ToLower(strings.Join(strings.Fields(appName), ""))
	if icon, ok := appIcons[key]; ok {
		return icon
	}
	return UnknownIcon
}
