// Copyright 2025 Zintix Labs
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

// Package metrics 定義 roulab 對外的 Prometheus 指標。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg prometheus.Registerer

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	Actions          *prometheus.CounterVec
	LiveClients      prometheus.Gauge
	WebhookUpdates   prometheus.Counter
}

// NewMetrics registers and returns roulab metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roulab_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roulab_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms .. ~8s
		}, []string{"route", "method"}),
		UpstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roulab_upstream_calls_total",
			Help: "Calls to the statistics service by operation and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roulab_upstream_duration_seconds",
			Help:    "Latency of calls to the statistics service.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		}, []string{"op"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roulab_actions_total",
			Help: "Mini-app actions (roll, rollback, reset, config, theme) by result.",
		}, []string{"action", "result"}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roulab_live_clients",
			Help: "Open websocket connections.",
		}),
		WebhookUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roulab_telegram_updates_total",
			Help: "Telegram updates received.",
		}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.UpstreamCalls, m.UpstreamDuration,
		m.Actions, m.LiveClients, m.WebhookUpdates,
	)
	return m
}

// NewRegistry 建立帶有 Go runtime / process collector 的 registry。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveUpstream 符合 statsapi.Observer。
func (m *Metrics) ObserveUpstream(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(op, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Action 記錄一次使用者動作。
func (m *Metrics) Action(action string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Actions.WithLabelValues(action, result).Inc()
}

// LiveDelta 調整開啟中的 websocket 數。
func (m *Metrics) LiveDelta(d float64) {
	if m == nil {
		return
	}
	m.LiveClients.Add(d)
}

// WebhookUpdate 記錄一筆收到的 Telegram 更新。
func (m *Metrics) WebhookUpdate() {
	if m == nil {
		return
	}
	m.WebhookUpdates.Inc()
}

// WatchLogDrops 把 AsyncHandler 的丟棄計數匯出為 counter。
func (m *Metrics) WatchLogDrops(fn func() uint64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "roulab_log_dropped_total",
		Help: "Log records dropped because the async queue was full.",
	}, func() float64 { return float64(fn()) }))
}

// WatchPoller 匯出輪詢中的 chat 數量與累計查詢次數。
func (m *Metrics) WatchPoller(active func() int, fetches func() int64) {
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "roulab_poller_active_chats",
			Help: "Chats with at least one live subscriber.",
		}, func() float64 { return float64(active()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "roulab_poller_fetches_total",
			Help: "Statistics fetches issued by the poller.",
		}, func() float64 { return float64(fetches()) }),
	)
}

// Handler 是 /metrics。
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
