package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/config"
)

// Captures older than this are served by the historical archive; newer
// ones by the forecast endpoint, which also covers recent past hours.
const archiveAge = 5 * 24 * time.Hour

var (
	// ErrUnknownCity signals a city with no enrolled coordinates.
	ErrUnknownCity = errors.New("unknown city")
	// ErrNoReading signals that the source returned no data for the
	// requested hour.
	ErrNoReading = errors.New("no reading for requested hour")
)

// Reading is one hourly observation.
type Reading struct {
	Temperature float64
	Humidity    float64
	Pressure    float64
}

// Client fetches hourly weather readings, routing between a forecast
// source and a historical archive by capture age.
type Client struct {
	httpClient  *http.Client
	forecastURL string
	archiveURL  string
	now         func() time.Time
}

// NewClient builds a weather client with the configured bounded timeout.
func NewClient(cfg config.WeatherConfig) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		forecastURL: cfg.ForecastURL,
		archiveURL:  cfg.ArchiveURL,
		now:         time.Now,
	}
}

// HourlyReading resolves the city to coordinates and returns the
// observation whose hour matches the capture timestamp (UTC).
func (c *Client) HourlyReading(ctx context.Context, city string, at time.Time) (Reading, error) {
	coords, ok := Coordinates(city)
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrUnknownCity, city)
	}

	at = at.UTC().Truncate(time.Hour)
	date := at.Format("2006-01-02")

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,relative_humidity_2m,surface_pressure")
	q.Set("timezone", "UTC")
	q.Set("start_date", date)
	q.Set("end_date", date)

	endpoint := c.forecastURL
	if c.now().Sub(at) > archiveAge {
		endpoint = c.archiveURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Reading{}, err
	}

	var payload struct {
		Hourly struct {
			Time            []string  `json:"time"`
			Temperature2M   []float64 `json:"temperature_2m"`
			RelHumidity2M   []float64 `json:"relative_humidity_2m"`
			SurfacePressure []float64 `json:"surface_pressure"`
		} `json:"hourly"`
	}
	if err := c.doJSON(req, &payload); err != nil {
		return Reading{}, err
	}

	want := at.Format("2006-01-02T15:04")
	for i, ts := range payload.Hourly.Time {
		if ts != want {
			continue
		}
		if i >= len(payload.Hourly.Temperature2M) ||
			i >= len(payload.Hourly.RelHumidity2M) ||
			i >= len(payload.Hourly.SurfacePressure) {
			break
		}
		return Reading{
			Temperature: payload.Hourly.Temperature2M[i],
			Humidity:    payload.Hourly.RelHumidity2M[i],
			Pressure:    payload.Hourly.SurfacePressure[i],
		}, nil
	}
	return Reading{}, fmt.Errorf("%w: %s %s", ErrNoReading, city, want)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weather request: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode weather response: %w", err)
	}
	return nil
}
