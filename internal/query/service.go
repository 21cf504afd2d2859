package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/SwipSwup/the-weather-archive/internal/cache"
	"github.com/SwipSwup/the-weather-archive/internal/capture"
	"github.com/SwipSwup/the-weather-archive/internal/metrics"
	"github.com/SwipSwup/the-weather-archive/internal/render"
)

// Feeds cap out at the most recent 50 captures.
const latestLimit = 50

type captureStore interface {
	ListLatest(ctx context.Context, limit int) ([]capture.Capture, error)
	ListCityLatest(ctx context.Context, city string, limit int) ([]capture.Capture, error)
	ListCityDate(ctx context.Context, city, date string) ([]capture.Capture, error)
	ListDates(ctx context.Context, city string) ([]string, error)
	ListCities(ctx context.Context) ([]capture.CityInfo, error)
}

type renderStore interface {
	GetVideoKey(ctx context.Context, city, date string) (string, error)
}

type readPresigner interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Response is the capture listing payload.
type Response struct {
	Images    []capture.Capture `json:"images"`
	Video     *string           `json:"video,omitempty"`
	Thumbnail *string           `json:"thumbnail,omitempty"`
}

// Service is the read-only projection over the metadata store with
// cache-first acceleration. It returns serialized payloads so a cache
// hit is served verbatim.
type Service struct {
	captures        captureStore
	renders         renderStore
	presigner       readPresigner
	cache           cacheStore
	processedBucket string
	videoBucket     string
	readURLTTL      time.Duration
	feedTTL         time.Duration
	datesTTL        time.Duration
}

// NewService constructs a query service.
func NewService(captures captureStore, renders renderStore, presigner readPresigner, cacheStore cacheStore, processedBucket, videoBucket string, readURLTTL, feedTTL, datesTTL time.Duration) *Service {
	return &Service{
		captures:        captures,
		renders:         renders,
		presigner:       presigner,
		cache:           cacheStore,
		processedBucket: processedBucket,
		videoBucket:     videoBucket,
		readURLTTL:      readURLTTL,
		feedTTL:         feedTTL,
		datesTTL:        datesTTL,
	}
}

// Captures serves the latest feed (no city), a city feed (no date), or a
// full city+date listing with video and thumbnail URLs. The boolean
// reports whether the payload came from the cache.
func (s *Service) Captures(ctx context.Context, city, date string) ([]byte, bool, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	key := s.cacheKey(city, date)

	if payload, ok := s.cache.Get(ctx, key); ok {
		metrics.CacheResults.WithLabelValues("hit").Inc()
		return []byte(payload), true, nil
	}
	metrics.CacheResults.WithLabelValues("miss").Inc()

	resp, err := s.buildResponse(ctx, city, date)
	if err != nil {
		return nil, false, err
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, false, fmt.Errorf("marshal response: %w", err)
	}

	// Fire and forget: a cache write failure never fails the read.
	_ = s.cache.Set(ctx, key, string(payload), s.feedTTL)

	return payload, false, nil
}

// Dates serves the distinct capture dates for a city, newest first,
// under its own cache key.
func (s *Service) Dates(ctx context.Context, city string) ([]byte, bool, error) {
	city = strings.ToLower(strings.TrimSpace(city))
	key := cache.DatesKey(capture.NormalizeCity(city))

	if payload, ok := s.cache.Get(ctx, key); ok {
		metrics.CacheResults.WithLabelValues("hit").Inc()
		return []byte(payload), true, nil
	}
	metrics.CacheResults.WithLabelValues("miss").Inc()

	dates, err := s.captures.ListDates(ctx, city)
	if err != nil {
		return nil, false, err
	}
	if dates == nil {
		dates = []string{}
	}

	payload, err := json.Marshal(dates)
	if err != nil {
		return nil, false, fmt.Errorf("marshal dates: %w", err)
	}

	_ = s.cache.Set(ctx, key, string(payload), s.datesTTL)

	return payload, false, nil
}

// Cities lists every (city, country) pair with recorded captures.
func (s *Service) Cities(ctx context.Context) ([]capture.CityInfo, error) {
	return s.captures.ListCities(ctx)
}

func (s *Service) cacheKey(city, date string) string {
	switch {
	case city == "":
		return cache.LatestKey()
	case date == "":
		return cache.CityLatestKey(capture.NormalizeCity(city))
	default:
		return cache.CityDateKey(capture.NormalizeCity(city), date)
	}
}

func (s *Service) buildResponse(ctx context.Context, city, date string) (Response, error) {
	resp := Response{Images: []capture.Capture{}}

	switch {
	case city == "":
		images, err := s.captures.ListLatest(ctx, latestLimit)
		if err != nil {
			return Response{}, err
		}
		resp.Images = images
	case date == "":
		images, err := s.captures.ListCityLatest(ctx, city, latestLimit)
		if err != nil {
			return Response{}, err
		}
		resp.Images = images
	default:
		images, err := s.captures.ListCityDate(ctx, city, date)
		if err != nil {
			return Response{}, err
		}
		resp.Images = images
		resp.Video = s.presignVideo(ctx, city, date)
	}

	if resp.Images == nil {
		resp.Images = []capture.Capture{}
	}
	if len(resp.Images) > 0 {
		resp.Thumbnail = s.presignThumbnail(ctx, resp.Images[0].Key)
	}
	return resp, nil
}

// presignVideo returns a read URL for the day's video, or nil when no
// render exists or signing fails. Signing failures degrade the response
// rather than fail it.
func (s *Service) presignVideo(ctx context.Context, city, date string) *string {
	videoKey, err := s.renders.GetVideoKey(ctx, city, date)
	if errors.Is(err, render.ErrNotFound) {
		return nil
	}
	if err != nil {
		// images still serve; the video link degrades to absent
		return nil
	}

	u, err := s.presigner.PresignedGetObject(ctx, s.videoBucket, videoKey, s.readURLTTL, nil)
	if err != nil {
		return nil
	}
	signed := u.String()
	return &signed
}

func (s *Service) presignThumbnail(ctx context.Context, key string) *string {
	u, err := s.presigner.PresignedGetObject(ctx, s.processedBucket, key, s.readURLTTL, nil)
	if err != nil {
		return nil
	}
	signed := u.String()
	return &signed
}
