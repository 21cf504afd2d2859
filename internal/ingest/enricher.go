package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/metrics"
	"github.com/SwipSwup/the-weather-archive/internal/weather"
)

// Notification names one newly stored raw object. Delivery is
// at-least-once: the same notification may arrive again, and every stage
// of Process is safe to repeat.
type Notification struct {
	Bucket string
	Key    string
}

type objectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, ObjectMeta, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error
}

type metadataStore interface {
	ExistsByKey(ctx context.Context, key string) (bool, error)
	Insert(ctx context.Context, c capture.Capture) error
	UpdateWeatherIfMissing(ctx context.Context, key string, temperature, humidity, pressure float64) error
}

type weatherSource interface {
	HourlyReading(ctx context.Context, city string, at time.Time) (weather.Reading, error)
}

type invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Enricher turns one upload-completed notification into a durable,
// enriched, resized record.
type Enricher struct {
	objects         objectStore
	repo            metadataStore
	weather         weatherSource
	cache           invalidator
	rawBucket       string
	processedBucket string
	weatherTimeout  time.Duration
	log             *slog.Logger
	now             func() time.Time
}

// NewEnricher constructs the ingestion enricher.
func NewEnricher(objects objectStore, repo metadataStore, weatherSrc weatherSource, cache invalidator, rawBucket, processedBucket string, weatherTimeout time.Duration, log *slog.Logger) *Enricher {
	if log == nil {
		log = slog.Default()
	}
	return &Enricher{
		objects:         objects,
		repo:            repo,
		weather:         weatherSrc,
		cache:           cache,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		weatherTimeout:  weatherTimeout,
		log:             log,
		now:             time.Now,
	}
}

// Process runs the full enrichment sequence for one notification. Any
// returned error leaves the notification eligible for redelivery;
// weather lookup failures never propagate.
func (e *Enricher) Process(ctx context.Context, n Notification) error {
	bucket := n.Bucket
	if bucket == "" {
		bucket = e.rawBucket
	}

	raw, meta, err := e.objects.GetObject(ctx, bucket, n.Key)
	if err != nil {
		return fmt.Errorf("fetch raw object %s: %w", n.Key, err)
	}

	city := metaValue(meta, "city")
	if city == "" {
		city = "unknown"
	}
	deviceID := metaValue(meta, "device-id")
	countryCode := metaValue(meta, "country-code")

	capturedAt := e.now().UTC()
	if raw := metaValue(meta, "original-timestamp"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			capturedAt = ts.UTC()
		}
	}

	processed, err := ResizeToFit(raw)
	if err != nil {
		return fmt.Errorf("resize %s: %w", n.Key, err)
	}

	reading, weatherErr := e.lookupWeather(ctx, city, capturedAt)
	if weatherErr != nil {
		metrics.EnrichmentDegraded.Inc()
		e.log.Warn("weather enrichment degraded",
			"key", n.Key, "city", city, "error", weatherErr)
	}

	if err := e.objects.PutObject(ctx, e.processedBucket, n.Key, processed, "image/jpeg", meta.UserMetadata); err != nil {
		return fmt.Errorf("store processed object %s: %w", n.Key, err)
	}

	if err := e.record(ctx, n.Key, city, countryCode, deviceID, capturedAt, reading, weatherErr == nil); err != nil {
		return err
	}

	_ = e.cache.Invalidate(ctx, cache.InvalidationSet(
		capture.NormalizeCity(city), capturedAt.Format("2006-01-02"))...)

	metrics.CapturesIngested.Inc()
	return nil
}

// record performs the check-then-insert that makes redelivery safe. The
// primary key on captures.key is the authoritative guard; a lost race
// shows up as ErrDuplicateKey and is treated as already recorded. Rows
// pre-created by the upload coordinator only get their missing weather
// fields backfilled.
func (e *Enricher) record(ctx context.Context, key, city, countryCode, deviceID string, capturedAt time.Time, reading weather.Reading, haveWeather bool) error {
	exists, err := e.repo.ExistsByKey(ctx, key)
	if err != nil {
		return fmt.Errorf("check capture %s: %w", key, err)
	}

	if !exists {
		c := capture.Capture{
			Key:        key,
			City:       city,
			DeviceID:   deviceID,
			CapturedAt: capturedAt,
		}
		if countryCode != "" {
			c.CountryCode = &countryCode
		}
		if haveWeather {
			c.Temperature = &reading.Temperature
			c.Humidity = &reading.Humidity
			c.Pressure = &reading.Pressure
		}
		err := e.repo.Insert(ctx, c)
		if err == nil {
			return nil
		}
		if err != capture.ErrDuplicateKey {
			return fmt.Errorf("record capture %s: %w", key, err)
		}
		// concurrent delivery won the insert; fall through to backfill
	}

	if haveWeather {
		if err := e.repo.UpdateWeatherIfMissing(ctx, key, reading.Temperature, reading.Humidity, reading.Pressure); err != nil {
			return fmt.Errorf("backfill weather %s: %w", key, err)
		}
	}
	return nil
}

func (e *Enricher) lookupWeather(ctx context.Context, city string, at time.Time) (weather.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, e.weatherTimeout)
	defer cancel()
	return e.weather.HourlyReading(ctx, capture.NormalizeCity(city), at)
}

// metaValue reads a metadata entry regardless of header canonicalization.
func metaValue(meta ObjectMeta, name string) string {
	for k, v := range meta.UserMetadata {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
