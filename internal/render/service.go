package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/metrics"
)

type captureStore interface {
	DistinctCitiesOn(ctx context.Context, date string) ([]string, error)
	ListCityDate(ctx context.Context, city, date string) ([]capture.Capture, error)
}

type renderStore interface {
	Exists(ctx context.Context, city, date string) (bool, error)
	Insert(ctx context.Context, rec DailyRender) error
}

type objectStore interface {
	DownloadToFile(ctx context.Context, bucket, key, path string) error
	UploadFile(ctx context.Context, bucket, key, path, contentType string) error
}

type encoder interface {
	Encode(ctx context.Context, framesDir, outputPath string) error
}

type invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Scheduler assembles per-city daily timelapse videos, at most once per
// (city, date). All coordination state lives in the metadata store, so
// repeated or concurrent invocations stay safe.
type Scheduler struct {
	captures        captureStore
	renders         renderStore
	objects         objectStore
	encoder         encoder
	cache           invalidator
	processedBucket string
	videoBucket     string
	log             *slog.Logger
	now             func() time.Time
}

// NewScheduler constructs the render scheduler.
func NewScheduler(captures captureStore, renders renderStore, objects objectStore, enc encoder, cache invalidator, processedBucket, videoBucket string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		captures:        captures,
		renders:         renders,
		objects:         objects,
		encoder:         enc,
		cache:           cache,
		processedBucket: processedBucket,
		videoBucket:     videoBucket,
		log:             log,
		now:             time.Now,
	}
}

// RunEvery triggers a run for yesterday immediately and then once per
// interval, until the context is cancelled. The immediate pass covers a
// worker restarted after its tick was missed.
func (s *Scheduler) RunEvery(ctx context.Context, interval time.Duration) {
	s.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.log.Info("daily render run starting")
	if err := s.Run(ctx, ""); err != nil {
		s.log.Error("daily render run failed", "error", err)
	}
}

// Run produces videos for every city with captures on the target date.
// dateOverride must be YYYY-MM-DD; empty means yesterday (UTC). One
// city's failure never aborts the remaining cities.
func (s *Scheduler) Run(ctx context.Context, dateOverride string) error {
	date := dateOverride
	if date == "" {
		date = s.now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}

	cities, err := s.captures.DistinctCitiesOn(ctx, date)
	if err != nil {
		return fmt.Errorf("list cities for %s: %w", date, err)
	}
	if len(cities) == 0 {
		s.log.Info("no activity on target date", "date", date)
		return nil
	}

	for _, city := range cities {
		if err := s.renderCity(ctx, city, date); err != nil {
			s.log.Error("city render failed", "city", city, "date", date, "error", err)
		}
	}
	return nil
}

// renderCity runs the per-city sequence. The DB insert is deliberately
// the last step: a cancellation mid-encode leaves no partial row, so the
// city stays eligible for a clean retry on the next invocation.
func (s *Scheduler) renderCity(ctx context.Context, city, date string) error {
	exists, err := s.renders.Exists(ctx, city, date)
	if err != nil {
		return err
	}
	if exists {
		s.log.Info("render already exists, skipping", "city", city, "date", date)
		return nil
	}

	caps, err := s.captures.ListCityDate(ctx, city, date)
	if err != nil {
		return err
	}
	if len(caps) == 0 {
		return nil
	}

	scratch, err := os.MkdirTemp("", "render-"+capture.NormalizeCity(city)+"-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	// Frame filenames must stay contiguous for the encoder's input
	// pattern, so the index only advances on successful downloads.
	frames := 0
	for _, c := range caps {
		framePath := filepath.Join(scratch, fmt.Sprintf(framePattern, frames))
		if err := s.objects.DownloadToFile(ctx, s.processedBucket, c.Key, framePath); err != nil {
			s.log.Warn("frame download failed, skipping", "key", c.Key, "error", err)
			continue
		}
		frames++
	}

	if frames == 0 {
		// Retrying would not help: there is nothing to encode.
		s.log.Warn("no frames available, skipping render", "city", city, "date", date)
		return nil
	}

	output := filepath.Join(scratch, "output.mp4")
	if err := s.encoder.Encode(ctx, scratch, output); err != nil {
		return err
	}

	videoKey := fmt.Sprintf("%s/%s_daily_summary.mp4", capture.NormalizeCity(city), date)
	if err := s.objects.UploadFile(ctx, s.videoBucket, videoKey, output, "video/mp4"); err != nil {
		return err
	}

	err = s.renders.Insert(ctx, DailyRender{City: city, Date: date, VideoKey: videoKey})
	if err == ErrAlreadyRendered {
		s.log.Info("concurrent run recorded the render first, discarding",
			"city", city, "date", date)
		return nil
	}
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, cache.InvalidationSet(capture.NormalizeCity(city), date)...)

	metrics.RendersCompleted.Inc()
	s.log.Info("daily render completed", "city", city, "date", date, "frames", frames, "video", videoKey)
	return nil
}
