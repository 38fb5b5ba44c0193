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

// Package telegram 連接 Telegram：驗證 Mini App 的 initData、解析 chat 身分，
// 以及 Bot API 的最小客戶端（/start 歡迎訊息、webhook / long polling）。
package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
)

// InitData 是驗證通過的 initData 內容。ChatID / UserID 可能為空字串。
type InitData struct {
	ChatID   string
	UserID   string
	AuthDate time.Time
	Values   url.Values
}

// ChatKey 依序回傳 chat.id、user.id；都沒有時為空字串。
func (d *InitData) ChatKey() string {
	if d == nil {
		return ""
	}
	if d.ChatID != "" {
		return d.ChatID
	}
	return d.UserID
}

// Owns 回報 chatID 是否屬於此 initData（chat.id 或 user.id 相符）。
func (d *InitData) Owns(chatID string) bool {
	if d == nil || chatID == "" {
		return false
	}
	return chatID == d.ChatID || chatID == d.UserID
}

// VerifyInitData 驗證 Telegram WebApp initData：
//
//	secret = HMAC_SHA256(key="WebAppData", msg=botToken)
//	hash   = hex(HMAC_SHA256(key=secret, msg=排序後的 "k=v" 以 \n 連接，不含 hash))
//
// 比較使用固定時間。
func VerifyInitData(initData, botToken string) (*InitData, error) {
	if initData == "" || botToken == "" {
		return nil, errs.NewAuth("initData ausente")
	}
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return nil, errs.WrapAs(errs.Auth, err, "initData inválido")
	}
	theirs := vals.Get("hash")
	if theirs == "" {
		return nil, errs.NewAuth("initData sin hash")
	}

	if !hmac.Equal([]byte(Sign(vals, botToken)), []byte(strings.ToLower(theirs))) {
		return nil, errs.NewAuth("initData con firma inválida")
	}

	d := &InitData{Values: vals}
	if r := gjson.Get(vals.Get("chat"), "id"); r.Exists() {
		d.ChatID = ChatIDOf(r)
	}
	if r := gjson.Get(vals.Get("user"), "id"); r.Exists() {
		d.UserID = ChatIDOf(r)
	}
	if sec, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64); err == nil {
		d.AuthDate = time.Unix(sec, 0)
	}
	return d, nil
}

// Sign 計算 initData 的 hash（hex）；vals 中的 hash 欄位會被忽略。
func Sign(vals url.Values, botToken string) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+vals.Get(k))
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

// DevChatID 是沒有任何身分來源時使用的 chat。
const DevChatID = "dev"

// ResolveChatID 依序取：initData 的 chat.id → user.id → 伺服器注入 → 查詢字串 → "dev"。
func ResolveChatID(d *InitData, injected, query string) string {
	if k := d.ChatKey(); k != "" {
		return k
	}
	if s := strings.TrimSpace(injected); s != "" {
		return s
	}
	if s := strings.TrimSpace(query); s != "" {
		return s
	}
	return DevChatID
}
