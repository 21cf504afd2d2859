package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

var (
	// CapturesIngested counts captures fully processed by the enricher.
	CapturesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_captures_ingested_total",
		Help: "Number of raw uploads enriched and recorded.",
	})

	// EnrichmentDegraded counts weather lookups that failed and left
	// the weather fields null.
	EnrichmentDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_enrichment_degraded_total",
		Help: "Number of captures recorded without weather data.",
	})

	// RendersCompleted counts daily timelapse videos produced.
	RendersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_renders_completed_total",
		Help: "Number of daily timelapse videos rendered and recorded.",
	})

	// CacheResults counts cache lookups by outcome (hit / miss).
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_cache_results_total",
		Help: "Cache lookup outcomes on the query path.",
	}, []string{"result"})
)
