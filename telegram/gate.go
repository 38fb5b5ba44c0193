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

package telegram

import (
	"bytes"
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/server/httperr"
)

const InitDataHeader = "X-Telegram-Init-Data"

// InitDataQuery 是 websocket 無法帶 header 時使用的查詢參數。
const InitDataQuery = "init_data"

type ctxKey struct{}

// FromContext 取出 Gate 驗證過的 initData；沒有時為 nil。
func FromContext(ctx context.Context) *InitData {
	d, _ := ctx.Value(ctxKey{}).(*InitData)
	return d
}

// WithInitData 將 initData 放入 context。
func WithInitData(ctx context.Context, d *InitData) context.Context {
	return context.WithValue(ctx, ctxKey{}, d)
}

// Gate 限制只有 Telegram 內開啟的 Mini App 能使用 API。
type Gate struct {
	Token    string
	Restrict bool   // RESTRICT_TO_TELEGRAM
	Strict   bool   // GATE_STRICT：chat_id 必須屬於 initData
	Redirect string // REDIRECT_URL
}

// API 保護 /api/*：
//   - 帶有 initData 時一律驗證，成功者放入 context（失敗 401）
//   - Restrict 時缺少 initData → 401
//   - Strict 時請求中的 chat_id 不屬於 initData → 403
func (g Gate) API(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(InitDataHeader)
		if raw == "" {
			raw = r.URL.Query().Get(InitDataQuery)
		}
		if raw == "" {
			if g.Restrict {
				httperr.Errs(w, errs.NewAuth("solo disponible dentro de Telegram"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if g.Token == "" {
			// 沒有 bot token 無從驗證（MODE=off 的本機開發），原樣放行
			next.ServeHTTP(w, r)
			return
		}
		d, err := VerifyInitData(raw, g.Token)
		if err != nil {
			httperr.Errs(w, err)
			return
		}
		if g.Strict {
			ids, err := requestChatIDs(r)
			if err != nil {
				httperr.Errs(w, err)
				return
			}
			for _, id := range ids {
				if !d.Owns(id) {
					httperr.Errs(w, errs.NewDenied("chat_id no corresponde a la sesión de Telegram"))
					return
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(WithInitData(r.Context(), d)))
	})
}

// Page 保護 "/"：Restrict 時，看不出是從 Telegram 開啟的請求導向 Redirect。
//
// initData 只存在於網址片段（不會送到伺服器），因此以選單按鈕網址上的 tg=1、
// Telegram 的 User-Agent 或 Referer 判斷。
func (g Gate) Page(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Restrict || g.Redirect == "" || FromTelegram(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, g.Redirect, http.StatusFound)
	})
}

// FromTelegram 回報請求是否看起來來自 Telegram 用戶端。
func FromTelegram(r *http.Request) bool {
	q := r.URL.Query()
	if q.Get("tg") == "1" || q.Get("tgWebAppStartParam") != "" {
		return true
	}
	if strings.Contains(strings.ToLower(r.UserAgent()), "telegram") {
		return true
	}
	if ref, err := url.Parse(r.Referer()); err == nil && strings.Contains(ref.Host, "telegram") {
		return true
	}
	return false
}

// ChatIDOf 正規化 JSON 中的 chat_id：整數（含 1e3、555.0 之類寫法）轉成十進位字串，
// 字串去除空白，其餘型別視為缺少。
func ChatIDOf(r gjson.Result) string {
	switch r.Type {
	case gjson.Number:
		if r.Num == math.Trunc(r.Num) && math.Abs(r.Num) < 1<<53 {
			return strconv.FormatInt(int64(r.Num), 10)
		}
		return r.Raw
	case gjson.String:
		return strings.TrimSpace(r.Str)
	default:
		return ""
	}
}

// requestChatIDs 收集查詢字串與 JSON body 中所有非空的 chat_id；
// body 會被還原供後續 handler 讀取。
func requestChatIDs(r *http.Request) ([]string, error) {
	var ids []string
	if id := strings.TrimSpace(r.URL.Query().Get("chat_id")); id != "" {
		ids = append(ids, id)
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return ids, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, errs.WrapAs(errs.Warn, err, "cuerpo ilegible")
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if id := ChatIDOf(gjson.GetBytes(raw, "chat_id")); id != "" {
		ids = append(ids, id)
	}
	return ids, nil
}
