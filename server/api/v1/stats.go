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
	"net/http"

	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/view"
)

// TagHeader 帶出 Snapshot.Tag()，前端用來判斷是否要重繪。
const TagHeader = "X-Stats-Tag"

// Stats GET /api/stats?chat_id=
//
// 轉送統計服務的 ETag；If-None-Match 命中時回 304。
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	chatID, err := queryChatID(r)
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snap, tag, notModified, err := h.stats.Stats(ctx, chatID, r.Header.Get("If-None-Match"))
	if err != nil {
		h.fail(w, "stats", err)
		return
	}
	if tag != "" {
		w.Header().Set("ETag", tag)
	}
	if notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set(TagHeader, snap.Tag())
	writeJSON(w, http.StatusOK, statsapi.Wrap(snap))
}

// View GET /api/view?chat_id=
//
// 回傳面板 HTML 片段；ETag 是片段內容的 xxhash，命中時回 304。
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	chatID, err := queryChatID(r)
	if err != nil {
		h.fail(w, "view", err)
		return
	}
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snap, _, _, err := h.stats.Stats(ctx, chatID, "")
	if err != nil {
		h.fail(w, "view", err)
		return
	}
	html, err := view.FragmentBytes(snap)
	if err != nil {
		h.fail(w, "view", err)
		return
	}

	tag := fragmentETag(html)
	w.Header().Set("ETag", tag)
	w.Header().Set(TagHeader, snap.Tag())
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatch(r, tag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(html)
}
