package upload

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/google/uuid"
)

// Request is the metadata bundle a device submits before uploading.
type Request struct {
	City        string
	DeviceID    string
	FileType    string
	CountryCode *string
	Timestamp   *time.Time
	Temperature *float64
	Humidity    *float64
	Pressure    *float64
}

// Authorization is the time-boxed write grant handed back to the device.
type Authorization struct {
	UploadURL       string            `json:"uploadUrl"`
	Key             string            `json:"key"`
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

type metadataStore interface {
	Insert(ctx context.Context, c capture.Capture) error
}

type presigner interface {
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expiry time.Duration) (*url.URL, error)
}

type invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Service issues pre-authorized upload URLs. The metadata row is written
// before the URL is handed out, so an auditable record exists even when
// the client never uploads; the enricher later treats that row as
// already present.
type Service struct {
	repo      metadataStore
	presigner presigner
	cache     invalidator
	rawBucket string
	urlTTL    time.Duration
	now       func() time.Time
}

// NewService constructs an upload coordinator.
func NewService(repo metadataStore, presigner presigner, cache invalidator, rawBucket string, urlTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		presigner: presigner,
		cache:     cache,
		rawBucket: rawBucket,
		urlTTL:    urlTTL,
		now:       time.Now,
	}
}

// CreateUploadURL validates the bundle, derives the object key, records
// the capture row and returns the presigned write authorization.
func (s *Service) CreateUploadURL(ctx context.Context, req Request) (Authorization, error) {
	if !strings.HasPrefix(req.FileType, "image/") {
		return Authorization{}, ErrInvalidFileType
	}

	ts := s.now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	city := req.City
	if strings.TrimSpace(city) == "" {
		city = "unknown"
	}

	key := DeriveKey(city, ts, req.FileType)

	record := capture.Capture{
		Key:         key,
		City:        city,
		CountryCode: req.CountryCode,
		DeviceID:    req.DeviceID,
		CapturedAt:  ts,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		Pressure:    req.Pressure,
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return Authorization{}, fmt.Errorf("record upload metadata: %w", err)
	}

	u, err := s.presigner.PresignedPutObject(ctx, s.rawBucket, key, s.urlTTL)
	if err != nil {
		return Authorization{}, fmt.Errorf("presign upload: %w", err)
	}

	// Best-effort: a missed invalidation ages out via TTL.
	_ = s.cache.Invalidate(ctx, cache.InvalidationSet(capture.NormalizeCity(city), ts.Format("2006-01-02"))...)

	headers := map[string]string{
		"Content-Type":                  req.FileType,
		"X-Amz-Meta-City":               city,
		"X-Amz-Meta-Device-Id":          req.DeviceID,
		"X-Amz-Meta-Original-Timestamp": ts.Format(time.RFC3339),
	}
	if req.CountryCode != nil {
		headers["X-Amz-Meta-Country-Code"] = *req.CountryCode
	}

	return Authorization{
		UploadURL:       u.String(),
		Key:             key,
		RequiredHeaders: headers,
	}, nil
}

// DeriveKey builds the hierarchical object key
// {normalized_city}/{yyyy}/{mm}/{dd}/{uuid}.{ext}. The random component
// guarantees uniqueness; the prefix gives chronological partitioning.
func DeriveKey(city string, ts time.Time, fileType string) string {
	ext := "jpg"
	if idx := strings.Index(fileType, "/"); idx >= 0 && idx+1 < len(fileType) {
		ext = fileType[idx+1:]
	}

	ts = ts.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s.%s",
		capture.NormalizeCity(city),
		ts.Year(), int(ts.Month()), ts.Day(),
		uuid.NewString(), ext)
}
