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
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/view"
	"github.com/zintix-labs/roulab/wheel"
)

// ActionResponse 是所有改變狀態的動作共用的回應。
type ActionResponse struct {
	OK         bool                `json:"ok"`
	Stats      *statsapi.Snapshot  `json:"stats"`
	Highlights statsapi.Highlights `json:"highlights"`
	HTML       string              `json:"html"`
	Tag        string              `json:"tag"`
}

// Roll POST /api/roll {chat_id, n}
func (h *Handler) Roll(w http.ResponseWriter, r *http.Request) {
	raw, chatID, err := readBody(r)
	if err != nil {
		h.fail(w, "roll", err)
		return
	}
	n, err := numberOf(gjson.GetBytes(raw, "n"))
	if err != nil {
		h.fail(w, "roll", err)
		return
	}
	h.act(w, r, "roll", chatID, func(ctx context.Context) (*statsapi.Snapshot, error) {
		return h.stats.Roll(ctx, chatID, n)
	})
}

// Rollback POST /api/rollback {chat_id}
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	_, chatID, err := readBody(r)
	if err != nil {
		h.fail(w, "rollback", err)
		return
	}
	h.act(w, r, "rollback", chatID, func(ctx context.Context) (*statsapi.Snapshot, error) {
		return h.stats.Rollback(ctx, chatID)
	})
}

// Reset POST /api/reset {chat_id}
//
// 確認（按兩次）在頁面端完成，這裡不再詢問。
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	_, chatID, err := readBody(r)
	if err != nil {
		h.fail(w, "reset", err)
		return
	}
	h.act(w, r, "reset", chatID, func(ctx context.Context) (*statsapi.Snapshot, error) {
		return h.stats.Reset(ctx, chatID)
	})
}

func (h *Handler) act(w http.ResponseWriter, r *http.Request, op, chatID string, fn func(context.Context) (*statsapi.Snapshot, error)) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snap, err := fn(ctx)
	h.metrics.Action(op, err)
	if err != nil {
		h.fail(w, op, err)
		return
	}
	h.respond(w, chatID, snap)
}

// respond 渲染片段、通知即時訂閱者並寫出 ActionResponse。
func (h *Handler) respond(w http.ResponseWriter, chatID string, snap *statsapi.Snapshot) {
	html, err := view.FragmentBytes(snap)
	if err != nil {
		h.fail(w, "render", err)
		return
	}
	if h.live != nil {
		h.live.Publish(chatID, snap)
	}
	writeJSON(w, http.StatusOK, ActionResponse{
		OK:         true,
		Stats:      snap,
		Highlights: snap.Highlights(),
		HTML:       string(html),
		Tag:        snap.Tag(),
	})
}

// numberOf 讀取 n：整數或整數字串，範圍 0..36。
func numberOf(r gjson.Result) (int, error) {
	var n int
	switch r.Type {
	case gjson.Number:
		if r.Num != math.Trunc(r.Num) {
			return 0, errs.NewWarn("n debe ser entero")
		}
		n = int(r.Num)
	case gjson.String:
		v, err := strconv.Atoi(strings.TrimSpace(r.Str))
		if err != nil {
			return 0, errs.NewWarn("n debe ser entero")
		}
		n = v
	default:
		return 0, errs.NewWarn("n requerido")
	}
	if !wheel.Valid(n) {
		return 0, errs.Warnf("n fuera de rango (%d..%d)", wheel.Min, wheel.Max)
	}
	return n, nil
}
