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

// Package v1 是 Mini App 的 /api 端點：轉呼叫統計服務並回傳已渲染的面板片段。
package v1

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/poller"
	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/server/httperr"
	"github.com/zintix-labs/roulab/server/metrics"
	"github.com/zintix-labs/roulab/settings"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/telegram"
)

// DefaultTimeout 單一請求對統計服務的總時限。
const DefaultTimeout = 8 * time.Second

const maxBody = 64 << 10

// StatsService 是 handler 需要的統計服務操作，*statsapi.Client 即滿足。
type StatsService interface {
	Stats(ctx context.Context, chatID, etag string) (*statsapi.Snapshot, string, bool, error)
	Roll(ctx context.Context, chatID string, n int) (*statsapi.Snapshot, error)
	Rollback(ctx context.Context, chatID string) (*statsapi.Snapshot, error)
	Reset(ctx context.Context, chatID string) (*statsapi.Snapshot, error)
	Config(ctx context.Context, chatID string) (settings.Settings, error)
	SetConfig(ctx context.Context, chatID string, s settings.Settings) (settings.Settings, *statsapi.Snapshot, error)
}

// Live 是即時推送的來源，*poller.Watcher 即滿足。
type Live interface {
	Subscribe(chatID string) (<-chan poller.Update, func())
	Publish(chatID string, s *statsapi.Snapshot)
}

type Deps struct {
	Stats   StatsService
	Prefs   prefs.Store
	Live    Live // nil 時停用 /api/live
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration
}

type Handler struct {
	stats    StatsService
	prefs    prefs.Store
	live     Live
	log      *slog.Logger
	metrics  *metrics.Metrics
	timeout  time.Duration
	upgrader websocket.Upgrader
}

func NewHandler(d Deps) (*Handler, error) {
	if d.Stats == nil {
		return nil, errs.NewFatal("v1: stats service is required")
	}
	if d.Prefs == nil {
		return nil, errs.NewFatal("v1: prefs store is required")
	}
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	return &Handler{
		stats:   d.Stats,
		prefs:   d.Prefs,
		live:    d.Live,
		log:     d.Log,
		metrics: d.Metrics,
		timeout: d.Timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 << 10,
		},
	}, nil
}

// ============================================================
// ** 共用 **
// ============================================================

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

var errNoChatID = errs.NewWarn("chat_id requerido")

func queryChatID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("chat_id"))
	if id == "" {
		return "", errNoChatID
	}
	return id, nil
}

// readBody 讀取 JSON body 並取出 chat_id（body 優先，其次查詢字串）。
// 只有缺少 chat_id 時才同時回傳 raw 與 errNoChatID。
func readBody(r *http.Request) ([]byte, string, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, "", errs.WrapAs(errs.Warn, err, "cuerpo ilegible")
	}
	if len(raw) > 0 && !gjson.ValidBytes(raw) {
		return nil, "", errs.NewWarn("JSON inválido")
	}
	id := telegram.ChatIDOf(gjson.GetBytes(raw, "chat_id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("chat_id"))
	}
	if id == "" {
		return raw, "", errNoChatID
	}
	return raw, id, nil
}

// userKey 主題偏好的鍵：有 Telegram 使用者時跟著使用者，否則跟著 chat。
func userKey(r *http.Request, chatID string) string {
	if d := telegram.FromContext(r.Context()); d != nil && d.UserID != "" {
		return "user:" + d.UserID
	}
	if chatID == "" {
		return ""
	}
	return "chat:" + chatID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fragmentETag 以 xxhash 作為片段的強 ETag。
func fragmentETag(b []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(b), 16) + `"`
}

// etagMatch 比對 If-None-Match（可為清單、W/ 前綴或 *）。
func etagMatch(r *http.Request, tag string) bool {
	inm := r.Header.Get("If-None-Match")
	if inm == "" || tag == "" {
		return false
	}
	for _, t := range strings.Split(inm, ",") {
		t = strings.TrimPrefix(strings.TrimSpace(t), "W/")
		if t == "*" || t == tag {
			return true
		}
	}
	return false
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	httperr.Handle(w, h.log, "api."+op, err)
}
