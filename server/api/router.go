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

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	v1 "github.com/zintix-labs/roulab/server/api/v1"
	"github.com/zintix-labs/roulab/server/metrics"
	"github.com/zintix-labs/roulab/server/netsvr"
	"github.com/zintix-labs/roulab/server/netsvr/middleware"
	"github.com/zintix-labs/roulab/telegram"
	"github.com/zintix-labs/roulab/view"
)

// Deps 是註冊路由所需的元件；由 server 套件組裝。
type Deps struct {
	Log      *slog.Logger
	Page     http.Handler
	V1       *v1.Handler
	Gate     telegram.Gate
	Webhook  http.Handler // nil：非 webhook 模式
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil：不開 /metrics
	Compress middleware.CompressConfig
}

// RegisterRoutes 註冊
func RegisterRoutes(svr netsvr.NetRouter, d *Deps) {
	registerMiddleware(svr, d) // 1. 註冊 middleware
	registerIndex(svr, d)      // 2. 主頁與靜態檔
	registerOps(svr, d)        // 3. health / metrics / webhook
	registerV1API(svr, d)      // 4. 註冊 /api
}

// 註冊 middleware
func registerMiddleware(svr netsvr.NetRouter, d *Deps) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(d.Log))
	svr.Use(middleware.Recover(d.Log))
	svr.Use(middleware.Metrics(d.Metrics))
	svr.Use(middleware.SecurityHeaders)
	svr.Use(middleware.Compression(d.Compress))
}

// 註冊主頁
func registerIndex(svr netsvr.NetRouter, d *Deps) {
	svr.Get("/", d.Gate.Page(d.Page).ServeHTTP)
	svr.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(view.Static())))
}

func registerOps(svr netsvr.NetRouter, d *Deps) {
	svr.Get("/health", Health)
	if d.Gatherer != nil {
		svr.Handle("/metrics", metrics.Handler(d.Gatherer))
	}
	if d.Webhook != nil {
		wh := d.Webhook
		svr.Post(telegram.WebhookPath, func(w http.ResponseWriter, r *http.Request) {
			d.Metrics.WebhookUpdate()
			wh.ServeHTTP(w, r)
		})
	}
}

// 註冊 /api；全部經過 Telegram 閘門
func registerV1API(svr netsvr.NetRouter, d *Deps) {
	h := d.V1
	svr.Group("/api", func(api netsvr.NetRouter) {
		api.Use(d.Gate.API)

		api.Get("/stats", h.Stats)
		api.Get("/view", h.View)
		api.Get("/config", h.GetConfig)
		api.Get("/live", h.Live)

		api.Post("/roll", h.Roll)
		api.Post("/rollback", h.Rollback)
		api.Post("/reset", h.Reset)
		api.Post("/config", h.SetConfig)
		api.Post("/theme", h.SetTheme)
	})
}

// Health GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
