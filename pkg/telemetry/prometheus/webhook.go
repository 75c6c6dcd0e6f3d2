// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	promWebhookReceived *prometheus.CounterVec
	promWebhookSent     *prometheus.CounterVec
	promWebhookSendTime prometheus.Histogram
)

func initWebhookStats(reg prometheus.Registerer) {
	promWebhookReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "webhook_received_total",
	}, []string{"result"})
	promWebhookSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "webhook_sent_total",
	}, []string{"status"})
	promWebhookSendTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: livekitNamespace,
		Subsystem: sdkSubsystem,
		Name:      "webhook_send_time_ms",
		Buckets:   []float64{10, 50, 100, 300, 500, 1000, 2000, 5000, 10000},
	})

	reg.MustRegister(promWebhookReceived)
	reg.MustRegister(promWebhookSent)
	reg.MustRegister(promWebhookSendTime)
}

// RecordWebhookReceived counts an inbound delivery by outcome, e.g. "ok", "duplicate", "checksum_mismatch"
func RecordWebhookReceived(result string) {
	if !initialized.Load() {
		return
	}
	promWebhookReceived.WithLabelValues(result).Inc()
}

// RecordWebhookSent counts an outbound delivery by HTTP status, 0 when no response was received
func RecordWebhookSent(status int, durationMs int64) {
	if !initialized.Load() {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	promWebhookSent.WithLabelValues(label).Inc()
	if status > 0 {
		promWebhookSendTime.Observe(float64(durationMs))
	}
}
