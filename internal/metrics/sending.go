// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sendingState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "openkit_sending_state",
		Help: "Current sending state machine state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	captureEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_capture_enabled",
		Help: "Whether capturing is currently enabled (1) or disabled (0) per the last status response",
	})

	beaconSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "openkit_beacon_sends_total",
		Help: "Total number of beacon send attempts by outcome",
	}, []string{"outcome"})

	clusterTimeOffsetMs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "openkit_cluster_time_offset_ms",
		Help: "Most recently computed cluster time offset in milliseconds",
	})
)

var sendingStates = []string{
	"initial", "time_sync", "capture_on", "capture_off", "flush", "terminal",
}

// SetSendingState records the active sending state machine state.
func SetSendingState(state string) {
	for _, s := range sendingStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sendingState.WithLabelValues(s).Set(value)
	}
}

// SetCaptureEnabled records whether the server has capturing turned on.
func SetCaptureEnabled(enabled bool) {
	if enabled {
		captureEnabled.Set(1)
		return
	}
	captureEnabled.Set(0)
}

// RecordBeaconSend records the outcome of a single beacon send attempt
// ("success", "too_many_requests", "error").
func RecordBeaconSend(outcome string) {
	beaconSendsTotal.WithLabelValues(outcome).Inc()
}

// SetClusterTimeOffset records the most recently computed cluster time offset.
func SetClusterTimeOffset(offsetMs int64) {
	clusterTimeOffsetMs.Set(float64(offsetMs))
}
