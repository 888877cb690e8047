// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_cache_bytes",
		Help: "Current number of bytes held in the beacon cache across all sessions",
	})

	cacheRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_cache_records",
		Help: "Current number of event and action records held in the beacon cache",
	})

	evictionRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_eviction_records_total",
		Help: "Total number of records removed from the beacon cache by eviction strategy",
	}, []string{"strategy"})

	evictionRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_eviction_runs_total",
		Help: "Total number of per-session eviction calls that removed records, by strategy",
	}, []string{"strategy"})
)

// SetCacheSize records the cache's current byte and record counts.
func SetCacheSize(numBytes int64, numRecords int) {
	cacheBytes.Set(float64(numBytes))
	cacheRecords.Set(float64(numRecords))
}

// RecordEviction records one eviction call against a single session's cache
// entry that removed the given number of records using the named strategy
// ("age" or "space").
func RecordEviction(strategy string, removed int) {
	evictionRunsTotal.WithLabelValues(strategy).Inc()
	if removed > 0 {
		evictionRecordsTotal.WithLabelValues(strategy).Add(float64(removed))
	}
}
