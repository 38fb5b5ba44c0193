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

package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/settings"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/view"
)

// ConfigResponse 是 /api/config 的回應；POST 時另帶新的統計與片段。
type ConfigResponse struct {
	OK      bool               `json:"ok"`
	Changed bool               `json:"changed"`
	Config  settings.Settings  `json:"config"`
	Theme   settings.Theme     `json:"theme"`
	Stats   *statsapi.Snapshot `json:"stats,omitempty"`
	HTML    string             `json:"html,omitempty"`
	Tag     string             `json:"tag,omitempty"`
}

// GetConfig GET /api/config?chat_id=
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	chatID, err := queryChatID(r)
	if err != nil {
		h.fail(w, "config", err)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	cfg, err := h.stats.Config(ctx, chatID)
	if err != nil {
		h.fail(w, "config", err)
		return
	}
	theme, err := h.prefs.Theme(ctx, userKey(r, chatID))
	if err != nil {
		h.log.Warn("api.config: theme lookup failed", slog.Any("err", err))
		theme = settings.Dark
	}
	writeJSON(w, http.StatusOK, ConfigResponse{OK: true, Config: cfg, Theme: theme})
}

// SetConfig POST /api/config {chat_id, window, history_cap, hist_tail, source, theme}
//
// 表單先以目前設定正規化；沒有變更時不呼叫統計服務的寫入端點。
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	raw, chatID, err := readBody(r)
	if err != nil {
		h.fail(w, "set_config", err)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	form := settings.FormFromJSON(raw)
	cur, err := h.stats.Config(ctx, chatID)
	if err != nil {
		h.fail(w, "set_config", err)
		return
	}
	next := settings.Normalize(form, cur)

	resp := ConfigResponse{OK: true, Config: next}
	key := userKey(r, chatID)
	if form.Theme != "" {
		resp.Theme = settings.ParseTheme(form.Theme)
		if err := h.prefs.SetTheme(ctx, key, resp.Theme); err != nil {
			h.fail(w, "set_config", err)
			return
		}
	} else if resp.Theme, err = h.prefs.Theme(ctx, key); err != nil {
		resp.Theme = settings.Dark
	}

	var snap *statsapi.Snapshot
	if settings.Changed(cur, next) {
		resp.Changed = true
		resp.Config, snap, err = h.stats.SetConfig(ctx, chatID, next)
	} else {
		snap, _, _, err = h.stats.Stats(ctx, chatID, "")
	}
	h.metrics.Action("config", err)
	if err != nil {
		h.fail(w, "set_config", err)
		return
	}

	html, err := view.FragmentBytes(snap)
	if err != nil {
		h.fail(w, "render", err)
		return
	}
	if resp.Changed && h.live != nil {
		h.live.Publish(chatID, snap)
	}
	resp.Stats, resp.HTML, resp.Tag = snap, string(html), snap.Tag()
	writeJSON(w, http.StatusOK, resp)
}

// SetTheme POST /api/theme {chat_id, theme}
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	raw, chatID, err := readBody(r)
	// 有 Telegram 使用者時 chat_id 可省略，其他錯誤照常回報
	if err != nil && (!errors.Is(err, errNoChatID) || userKey(r, "") == "") {
		h.fail(w, "theme", err)
		return
	}
	t := gjson.GetBytes(raw, "theme")
	if t.Type != gjson.String {
		h.fail(w, "theme", errs.NewWarn("theme requerido"))
		return
	}
	theme := settings.ParseTheme(t.Str)

	ctx, cancel := h.withTimeout(r)
	defer cancel()
	err = h.prefs.SetTheme(ctx, userKey(r, chatID), theme)
	h.metrics.Action("theme", err)
	if err != nil {
		h.fail(w, "theme", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "theme": theme})
}
