// Package e2e drives the whole pipeline in-process against in-memory
// stores: upload authorization, object landing, enrichment, querying
// and the daily render, in the order a real device would trigger them.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/url"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/ingest"
	"github.com/SwipSwup/the-weather-archive/internal/query"
	"github.com/SwipSwup/the-weather-archive/internal/render"
	"github.com/SwipSwup/the-weather-archive/internal/upload"
	"github.com/SwipSwup/the-weather-archive/internal/weather"
)

// memStore is an in-memory stand-in for the Postgres repositories. It
// backs every service in the scenario so the test observes the same
// rows end to end.
type memStore struct {
	captures map[string]capture.Capture
	order    []string
	renders  map[string]render.DailyRender
}

func newMemStore() *memStore {
	return &memStore{
		captures: map[string]capture.Capture{},
		renders:  map[string]render.DailyRender{},
	}
}

func (m *memStore) Insert(ctx context.Context, c capture.Capture) error {
	if _, ok := m.captures[c.Key]; ok {
		return capture.ErrDuplicateKey
	}
	c.CreatedAt = time.Now().UTC()
	m.captures[c.Key] = c
	m.order = append(m.order, c.Key)
	return nil
}

func (m *memStore) ExistsByKey(ctx context.Context, key string) (bool, error) {
	_, ok := m.captures[key]
	return ok, nil
}

func (m *memStore) UpdateWeatherIfMissing(ctx context.Context, key string, temperature, humidity, pressure float64) error {
	c, ok := m.captures[key]
	if !ok {
		return capture.ErrNotFound
	}
	if c.Temperature == nil {
		c.Temperature = &temperature
	}
	if c.Humidity == nil {
		c.Humidity = &humidity
	}
	if c.Pressure == nil {
		c.Pressure = &pressure
	}
	m.captures[key] = c
	return nil
}

func (m *memStore) ListLatest(ctx context.Context, limit int) ([]capture.Capture, error) {
	caps := m.all()
	if len(caps) > limit {
		caps = caps[:limit]
	}
	return caps, nil
}

func (m *memStore) ListCityLatest(ctx context.Context, city string, limit int) ([]capture.Capture, error) {
	var caps []capture.Capture
	for _, c := range m.all() {
		if strings.EqualFold(c.City, city) {
			caps = append(caps, c)
		}
	}
	if len(caps) > limit {
		caps = caps[:limit]
	}
	return caps, nil
}

func (m *memStore) ListCityDate(ctx context.Context, city, date string) ([]capture.Capture, error) {
	var caps []capture.Capture
	for _, c := range m.all() {
		if strings.EqualFold(c.City, city) && c.CapturedAt.UTC().Format("2006-01-02") == date {
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i].CapturedAt.Before(caps[j].CapturedAt) })
	return caps, nil
}

func (m *memStore) ListDates(ctx context.Context, city string) ([]string, error) {
	seen := map[string]bool{}
	var dates []string
	for _, c := range m.all() {
		if !strings.EqualFold(c.City, city) {
			continue
		}
		d := c.CapturedAt.UTC().Format("2006-01-02")
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (m *memStore) ListCities(ctx context.Context) ([]capture.CityInfo, error) {
	seen := map[string]bool{}
	var cities []capture.CityInfo
	for _, c := range m.all() {
		if !seen[c.City] {
			seen[c.City] = true
			cities = append(cities, capture.CityInfo{Name: c.City, CountryCode: c.CountryCode})
		}
	}
	return cities, nil
}

func (m *memStore) DistinctCitiesOn(ctx context.Context, date string) ([]string, error) {
	seen := map[string]bool{}
	var cities []string
	for _, c := range m.all() {
		if c.CapturedAt.UTC().Format("2006-01-02") == date && !seen[c.City] {
			seen[c.City] = true
			cities = append(cities, c.City)
		}
	}
	return cities, nil
}

func (m *memStore) all() []capture.Capture {
	caps := make([]capture.Capture, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		caps = append(caps, m.captures[m.order[i]])
	}
	return caps
}

func (m *memStore) Exists(ctx context.Context, city, date string) (bool, error) {
	_, ok := m.renders[renderKey(city, date)]
	return ok, nil
}

func (m *memStore) InsertRender(ctx context.Context, rec render.DailyRender) error {
	key := renderKey(rec.City, rec.Date)
	if _, ok := m.renders[key]; ok {
		return render.ErrAlreadyRendered
	}
	m.renders[key] = rec
	return nil
}

func (m *memStore) GetVideoKey(ctx context.Context, city, date string) (string, error) {
	rec, ok := m.renders[renderKey(city, date)]
	if !ok {
		return "", render.ErrNotFound
	}
	return rec.VideoKey, nil
}

func renderKey(city, date string) string {
	return capture.NormalizeCity(city) + "|" + date
}

// renderInserter adapts memStore so the scheduler's Insert call reaches
// the render table rather than the captures table.
type renderInserter struct{ *memStore }

func (r renderInserter) Insert(ctx context.Context, rec render.DailyRender) error {
	return r.InsertRender(ctx, rec)
}

// memObjects is an in-memory object store covering every access path
// the pipeline uses: streamed reads and writes, file transfers and
// presigned URLs.
type memObjects struct {
	data map[string][]byte
	meta map[string]map[string]string
}

func newMemObjects() *memObjects {
	return &memObjects{data: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

func (m *memObjects) GetObject(ctx context.Context, bucket, key string) ([]byte, ingest.ObjectMeta, error) {
	data, ok := m.data[objectKey(bucket, key)]
	if !ok {
		return nil, ingest.ObjectMeta{}, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return data, ingest.ObjectMeta{UserMetadata: m.meta[objectKey(bucket, key)]}, nil
}

func (m *memObjects) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	m.data[objectKey(bucket, key)] = data
	m.meta[objectKey(bucket, key)] = userMeta
	return nil
}

func (m *memObjects) ListKeys(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for k := range m.data {
		if name, ok := strings.CutPrefix(k, bucket+"/"); ok {
			keys = append(keys, name)
		}
	}
	return keys, nil
}

func (m *memObjects) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, ok := m.data[objectKey(bucket, key)]
	return ok, nil
}

func (m *memObjects) DownloadToFile(ctx context.Context, bucket, key, path string) error {
	data, ok := m.data[objectKey(bucket, key)]
	if !ok {
		return fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return os.WriteFile(path, data, 0o644)
}

func (m *memObjects) UploadFile(ctx context.Context, bucket, key, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.data[objectKey(bucket, key)] = data
	return nil
}

func (m *memObjects) PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (*url.URL, error) {
	return url.Parse("https://objects.local/" + bucket + "/" + object + "?method=PUT")
}

func (m *memObjects) PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return url.Parse("https://objects.local/" + bucket + "/" + object + "?method=GET")
}

// memCache implements both the read path (Get/Set) and the write-path
// invalidation over the same map.
type memCache struct {
	entries map[string]string
}

func newMemCache() *memCache { return &memCache{entries: map[string]string{}} }

func (m *memCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

type fixedWeather struct{}

func (fixedWeather) HourlyReading(ctx context.Context, city string, at time.Time) (weather.Reading, error) {
	return weather.Reading{Temperature: 7.5, Humidity: 81, Pressure: 1013.2}, nil
}

// fileEncoder stands in for ffmpeg: it only proves the frames directory
// is populated and produces a placeholder video file.
type fileEncoder struct{ frames int }

func (f *fileEncoder) Encode(ctx context.Context, framesDir, outputPath string) error {
	entries, err := os.ReadDir(framesDir)
	if err != nil {
		return err
	}
	f.frames = len(entries)
	return os.WriteFile(outputPath, []byte("video"), 0o644)
}

func deviceImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2400, 1600))
	for y := 0; y < 1600; y += 50 {
		for x := 0; x < 2400; x++ {
			img.Set(x, y, color.RGBA{R: 90, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode device image: %v", err)
	}
	return buf.Bytes()
}

const (
	rawBucket       = "weather-images"
	processedBucket = "weather-processed"
	videoBucket     = "weather-videos"
)

func TestPipelineViennaDay(t *testing.T) {
	store := newMemStore()
	objects := newMemObjects()
	c := newMemCache()

	uploads := upload.NewService(store, objects, c, rawBucket, 5*time.Minute)
	enricher := ingest.NewEnricher(objects, store, fixedWeather{}, c, rawBucket, processedBucket, 3*time.Second, nil)
	encoder := &fileEncoder{}
	scheduler := render.NewScheduler(store, renderInserter{store}, objects, encoder, c, processedBucket, videoBucket, nil)
	queries := query.NewService(store, store, objects, c, processedBucket, videoBucket, time.Hour, 60*time.Second, 3500*time.Second)

	ctx := context.Background()
	capturedAt := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	// A camera in Vienna asks for permission to upload.
	auth, err := uploads.CreateUploadURL(ctx, upload.Request{
		City:      "Vienna",
		DeviceID:  "cam-vienna-01",
		FileType:  "image/jpeg",
		Timestamp: &capturedAt,
	})
	if err != nil {
		t.Fatalf("CreateUploadURL failed: %v", err)
	}
	if !strings.HasPrefix(auth.Key, "vienna/2024/03/01/") || !strings.HasSuffix(auth.Key, ".jpg") {
		t.Fatalf("unexpected object key %s", auth.Key)
	}
	if auth.UploadURL == "" {
		t.Fatalf("authorization must carry an upload URL")
	}

	// The device honors the grant: the object lands in the raw bucket
	// with the required metadata headers.
	meta := map[string]string{}
	for k, v := range auth.RequiredHeaders {
		if name, ok := strings.CutPrefix(k, "X-Amz-Meta-"); ok {
			meta[name] = v
		}
	}
	if err := objects.PutObject(ctx, rawBucket, auth.Key, deviceImage(t), "image/jpeg", meta); err != nil {
		t.Fatalf("simulated upload failed: %v", err)
	}

	// The bucket notification fires and the enricher processes it.
	if err := enricher.Process(ctx, ingest.Notification{Bucket: rawBucket, Key: auth.Key}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	processed, _, err := objects.GetObject(ctx, processedBucket, auth.Key)
	if err != nil {
		t.Fatalf("processed object missing: %v", err)
	}
	if len(processed) == 0 {
		t.Fatalf("processed object is empty")
	}

	row, ok := store.captures[auth.Key]
	if !ok {
		t.Fatalf("no capture row recorded")
	}
	if row.Temperature == nil || *row.Temperature != 7.5 {
		t.Fatalf("weather fields must be backfilled, got %+v", row)
	}
	if row.DeviceID != "cam-vienna-01" {
		t.Fatalf("device id lost in transit: %q", row.DeviceID)
	}

	// Redelivering the same notification must not create a second row.
	if err := enricher.Process(ctx, ingest.Notification{Bucket: rawBucket, Key: auth.Key}); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if len(store.captures) != 1 {
		t.Fatalf("redelivery created %d rows", len(store.captures))
	}

	// Before the nightly render: one image, no video.
	payload, hit, err := queries.Captures(ctx, "Vienna", "2024-03-01")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if hit {
		t.Fatalf("first read must be a cache miss")
	}
	var resp query.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Images) != 1 {
		t.Fatalf("expected 1 image, got %d", len(resp.Images))
	}
	if resp.Video != nil {
		t.Fatalf("no video may exist before the render runs")
	}

	if _, hit, _ := queries.Captures(ctx, "Vienna", "2024-03-01"); !hit {
		t.Fatalf("second read must be served from cache")
	}

	// The nightly scheduler runs for the day.
	if err := scheduler.Run(ctx, "2024-03-01"); err != nil {
		t.Fatalf("scheduler run failed: %v", err)
	}
	if len(store.renders) != 1 {
		t.Fatalf("expected one daily render, got %d", len(store.renders))
	}
	if encoder.frames != 1 {
		t.Fatalf("encoder saw %d frames, want 1", encoder.frames)
	}
	if _, _, err := objects.GetObject(ctx, videoBucket, "vienna/2024-03-01_daily_summary.mp4"); err != nil {
		t.Fatalf("video object missing: %v", err)
	}

	// The render invalidated the city+date key: fresh read, now with a
	// video URL.
	payload, hit, err = queries.Captures(ctx, "Vienna", "2024-03-01")
	if err != nil {
		t.Fatalf("post-render query failed: %v", err)
	}
	if hit {
		t.Fatalf("render must have invalidated the city+date cache entry")
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Video == nil {
		t.Fatalf("post-render listing must include the video URL")
	}
	if !strings.Contains(*resp.Video, "vienna/2024-03-01_daily_summary.mp4") {
		t.Fatalf("video URL points at the wrong object: %s", *resp.Video)
	}

	// Re-running the scheduler for the same day is a no-op.
	if err := scheduler.Run(ctx, "2024-03-01"); err != nil {
		t.Fatalf("scheduler rerun failed: %v", err)
	}
	if len(store.renders) != 1 {
		t.Fatalf("rerun must not add renders, got %d", len(store.renders))
	}

	// The dates index lists the day.
	datesPayload, _, err := queries.Dates(ctx, "Vienna")
	if err != nil {
		t.Fatalf("dates query failed: %v", err)
	}
	var dates []string
	if err := json.Unmarshal(datesPayload, &dates); err != nil {
		t.Fatalf("unmarshal dates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2024-03-01" {
		t.Fatalf("unexpected dates: %v", dates)
	}
}

func TestPipelineRecoversLostNotification(t *testing.T) {
	store := newMemStore()
	objects := newMemObjects()
	c := newMemCache()

	uploads := upload.NewService(store, objects, c, rawBucket, 5*time.Minute)
	enricher := ingest.NewEnricher(objects, store, fixedWeather{}, c, rawBucket, processedBucket, 3*time.Second, nil)
	reconciler := ingest.NewReconciler(objects, store, enricher, rawBucket, processedBucket, nil)

	ctx := context.Background()
	capturedAt := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	auth, err := uploads.CreateUploadURL(ctx, upload.Request{
		City:      "Graz",
		DeviceID:  "cam-graz-02",
		FileType:  "image/jpeg",
		Timestamp: &capturedAt,
	})
	if err != nil {
		t.Fatalf("CreateUploadURL failed: %v", err)
	}

	// The object lands but its notification never reaches the enricher.
	meta := map[string]string{}
	for k, v := range auth.RequiredHeaders {
		if name, ok := strings.CutPrefix(k, "X-Amz-Meta-"); ok {
			meta[name] = v
		}
	}
	if err := objects.PutObject(ctx, rawBucket, auth.Key, deviceImage(t), "image/jpeg", meta); err != nil {
		t.Fatalf("simulated upload failed: %v", err)
	}
	if _, _, err := objects.GetObject(ctx, processedBucket, auth.Key); err == nil {
		t.Fatalf("nothing may be processed before the sweep")
	}

	// A cancelled context limits the reconciler to its startup sweep.
	sweepCtx, cancel := context.WithCancel(ctx)
	cancel()
	reconciler.Run(sweepCtx, time.Hour)

	if _, _, err := objects.GetObject(ctx, processedBucket, auth.Key); err != nil {
		t.Fatalf("sweep must produce the processed copy: %v", err)
	}
	row, ok := store.captures[auth.Key]
	if !ok {
		t.Fatalf("sweep must leave a capture row")
	}
	if row.Temperature == nil {
		t.Fatalf("sweep must backfill weather onto the coordinator row")
	}
}
