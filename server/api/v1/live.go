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
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/view"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// LiveMessage 是每次推送的內容。
type LiveMessage struct {
	Tag  string `json:"tag"`
	HTML string `json:"html"`
}

// Live GET /api/live?chat_id=&init_data=
//
// 升級成 websocket 後，輪詢器每發現一次新的 tag 就推一則 LiveMessage。
// 瀏覽器無法在 websocket 上帶自訂標頭，因此 initData 走查詢字串。
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.live == nil {
		h.fail(w, "live", errs.NewWarn("live updates disabled"))
		return
	}
	chatID, err := queryChatID(r)
	if err != nil {
		h.fail(w, "live", err)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已寫出錯誤回應
		h.log.Debug("api.live: upgrade failed", slog.Any("err", err))
		return
	}
	defer conn.Close()

	h.metrics.LiveDelta(1)
	defer h.metrics.LiveDelta(-1)

	updates, unsubscribe := h.live.Subscribe(chatID)
	defer unsubscribe()

	// 讀端只處理 pong / close；任何讀取錯誤代表連線結束。
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case u, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			html, err := view.FragmentBytes(u.Snapshot)
			if err != nil {
				h.log.Error("api.live: render failed", slog.Any("err", err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(LiveMessage{Tag: u.Tag, HTML: string(html)}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
