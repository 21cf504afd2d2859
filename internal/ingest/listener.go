package ingest

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

const listenRetryBackoff = 5 * time.Second

// Listener consumes object-created notifications from the raw bucket and
// feeds them to the enricher. The notification stream is the upstream
// at-least-once event source: a failed Process leaves the object
// unrecorded, and the periodic reconcile (or a re-upload) redelivers it.
type Listener struct {
	client   *minio.Client
	enricher *Enricher
	bucket   string
	log      *slog.Logger
}

// NewListener builds a notification listener for the raw bucket.
func NewListener(client *minio.Client, enricher *Enricher, bucket string, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{client: client, enricher: enricher, bucket: bucket, log: log}
}

// Run blocks until the context is cancelled, reconnecting to the
// notification stream whenever it ends.
func (l *Listener) Run(ctx context.Context) {
	for {
		l.consume(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(listenRetryBackoff):
		}
	}
}

func (l *Listener) consume(ctx context.Context) {
	events := l.client.ListenBucketNotification(ctx, l.bucket, "", "", []string{"s3:ObjectCreated:*"})

	for info := range events {
		if info.Err != nil {
			l.log.Warn("notification stream error", "bucket", l.bucket, "error", info.Err)
			return
		}

		for _, record := range info.Records {
			key, err := url.QueryUnescape(record.S3.Object.Key)
			if err != nil {
				key = record.S3.Object.Key
			}

			n := Notification{Bucket: record.S3.Bucket.Name, Key: key}
			if err := l.enricher.Process(ctx, n); err != nil {
				l.log.Error("ingestion failed, awaiting redelivery",
					"key", key, "error", err)
				continue
			}
			l.log.Info("capture ingested", "key", key)
		}
	}
}
