package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type reconcileObjects interface {
	ListKeys(ctx context.Context, bucket string) ([]string, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

type captureIndex interface {
	ExistsByKey(ctx context.Context, key string) (bool, error)
}

type processor interface {
	Process(ctx context.Context, n Notification) error
}

// Reconciler is the safety net under the live notification stream. The
// stream does not redeliver: a notification whose processing failed is
// gone once logged. The reconciler periodically sweeps the raw bucket
// and reprocesses every object that never completed, i.e. has no
// processed copy or no capture row. Objects still in flight on the
// stream may be swept concurrently; every Process stage is repeat-safe,
// so the overlap is harmless.
type Reconciler struct {
	objects         reconcileObjects
	captures        captureIndex
	processor       processor
	rawBucket       string
	processedBucket string
	log             *slog.Logger
}

// NewReconciler constructs the sweep over the raw bucket.
func NewReconciler(objects reconcileObjects, captures captureIndex, proc processor, rawBucket, processedBucket string, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		objects:         objects,
		captures:        captures,
		processor:       proc,
		rawBucket:       rawBucket,
		processedBucket: processedBucket,
		log:             log,
	}
}

// Run sweeps once at startup, then once per interval until the context
// is cancelled. The startup sweep picks up whatever was lost while the
// worker was down.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	r.sweepLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepLogged(ctx)
		}
	}
}

func (r *Reconciler) sweepLogged(ctx context.Context) {
	recovered, err := r.sweep(ctx)
	if err != nil {
		r.log.Error("reconcile sweep failed", "bucket", r.rawBucket, "error", err)
		return
	}
	if recovered > 0 {
		r.log.Info("reconcile sweep recovered captures", "bucket", r.rawBucket, "recovered", recovered)
	}
}

// sweep reprocesses incomplete raw objects. Per-object failures are
// logged and skipped; the object stays eligible for the next sweep.
func (r *Reconciler) sweep(ctx context.Context) (int, error) {
	keys, err := r.objects.ListKeys(ctx, r.rawBucket)
	if err != nil {
		return 0, fmt.Errorf("list raw bucket: %w", err)
	}

	recovered := 0
	for _, key := range keys {
		done, err := r.isComplete(ctx, key)
		if err != nil {
			r.log.Warn("reconcile check failed", "key", key, "error", err)
			continue
		}
		if done {
			continue
		}

		if err := r.processor.Process(ctx, Notification{Bucket: r.rawBucket, Key: key}); err != nil {
			r.log.Error("reconcile reprocess failed", "key", key, "error", err)
			continue
		}
		recovered++
	}
	return recovered, nil
}

// isComplete requires both durable effects of a successful Process: the
// processed copy and the capture row. Checking only one would miss a
// crash between the two writes.
func (r *Reconciler) isComplete(ctx context.Context, key string) (bool, error) {
	processed, err := r.objects.Exists(ctx, r.processedBucket, key)
	if err != nil || !processed {
		return false, err
	}
	return r.captures.ExistsByKey(ctx, key)
}
