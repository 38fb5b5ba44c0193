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

package metrics_test

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zintix-labs/roulab/server/metrics"
)

func TestMetricsExposed(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.NewMetrics(reg)
	m.ObserveUpstream("stats", "ok", 20*time.Millisecond)
	m.Action("roll", nil)
	m.Action("roll", errors.New("x"))
	m.WatchLogDrops(func() uint64 { return 3 })
	m.WatchPoller(func() int { return 2 }, func() int64 { return 9 })

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`roulab_upstream_calls_total{op="stats",outcome="ok"} 1`,
		`roulab_actions_total{action="roll",result="error"} 1`,
		`roulab_log_dropped_total 3`,
		`roulab_poller_active_chats 2`,
		`roulab_poller_fetches_total 9`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	var nilM *metrics.Metrics
	nilM.Action("roll", nil)
	nilM.ObserveUpstream("stats", "ok", time.Millisecond)
}
