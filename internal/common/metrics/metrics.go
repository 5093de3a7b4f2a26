// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_api_requests_total",
			Help: "Total number of API requests by system and status code",
		},
		[]string{"system", "status"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_token_refreshes_total",
			Help: "Total number of OAuth token fetches by system",
		},
		[]string{"system"},
	)

	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_rows_extracted_total",
			Help: "Rows extracted into the staging store by table",
		},
		[]string{"table"},
	)

	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_rows_loaded_total",
			Help: "Records created in target systems by entity",
		},
		[]string{"entity"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "migration_stage_duration_seconds",
			Help: "Duration of pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	DownloadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "migration_download_bytes_total",
			Help: "Bytes downloaded from the IoT cold store",
		},
	)
)
