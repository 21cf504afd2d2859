package capture

import (
	"strings"
	"time"
)

// Capture represents one uploaded photograph. Key doubles as the object
// store identifier and the natural idempotency key.
type Capture struct {
	Key         string    `json:"key"`
	City        string    `json:"city"`
	CountryCode *string   `json:"country_code,omitempty"`
	DeviceID    string    `json:"device_id"`
	CapturedAt  time.Time `json:"captured_at"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Pressure    *float64  `json:"pressure,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CityInfo is a distinct (city, country) pair with recorded captures.
type CityInfo struct {
	Name        string  `json:"name"`
	CountryCode *string `json:"country_code"`
}

// NormalizeCity reduces a free-form city name to the routing-safe form
// used in object keys and cache keys: lowercase, alphanumeric only.
func NormalizeCity(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	var b strings.Builder
	for _, r := range city {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
