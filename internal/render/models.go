package render

import "time"

// DailyRender records one produced timelapse per (city, date).
// Immutable once written.
type DailyRender struct {
	City      string    `json:"city"`
	Date      string    `json:"date"`
	VideoKey  string    `json:"video_key"`
	CreatedAt time.Time `json:"created_at"`
}
