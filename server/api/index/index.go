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

// Package index 提供 Mini App 主頁 "/"。
package index

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/settings"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/view"
)

// Source 是主頁預先渲染需要的統計服務操作。
type Source interface {
	Stats(ctx context.Context, chatID, etag string) (*statsapi.Snapshot, string, bool, error)
	Config(ctx context.Context, chatID string) (settings.Settings, error)
}

type Page struct {
	src     Source
	prefs   prefs.Store
	pollMS  int
	live    bool
	log     *slog.Logger
	timeout time.Duration
}

func New(src Source, store prefs.Store, pollMS int, live bool, log *slog.Logger) *Page {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Page{src: src, prefs: store, pollMS: pollMS, live: live, log: log, timeout: 3 * time.Second}
}

// ServeHTTP 寫出整頁。
//
// 查詢字串帶 chat_id 時，伺服器先取設定、主題與統計，頁面一打開就有內容；
// 取不到時照樣出頁，交給前端輪詢。沒有 chat_id 時由前端從 Telegram 解析。
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chatID := strings.TrimSpace(r.URL.Query().Get("chat_id"))
	data := view.PageData{
		ChatID:   chatID,
		Theme:    settings.Dark,
		Settings: settings.Default(),
		PollMS:   p.pollMS,
		Live:     p.live,
	}

	var snap *statsapi.Snapshot
	if chatID != "" {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		if cfg, err := p.src.Config(ctx, chatID); err == nil {
			data.Settings = cfg
		} else {
			p.log.Warn("index: config prefetch failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
		if t, err := p.prefs.Theme(ctx, "chat:"+chatID); err == nil {
			data.Theme = t
		}
		if s, _, _, err := p.src.Stats(ctx, chatID, ""); err == nil {
			snap = s
		} else {
			p.log.Warn("index: stats prefetch failed", slog.String("chat_id", chatID), slog.Any("err", err))
		}
	}

	var buf bytes.Buffer
	if err := view.Page(&buf, data, snap); err != nil {
		p.log.Error("index: render failed", slog.Any("err", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
