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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
)

const DefaultAPIBase = "https://api.telegram.org"

// Update 只保留本服務會用到的欄位。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Client 是 Bot API 的最小客戶端。
type Client struct {
	base string // https://api.telegram.org/bot<token>
	hc   *http.Client
}

// NewClient apiBase 為空時使用 DefaultAPIBase。
func NewClient(token, apiBase string, hc *http.Client) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errs.NewWarn("telegram: empty bot token")
	}
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	if hc == nil {
		// long polling 需要比 getUpdates 的 timeout 長
		hc = &http.Client{Timeout: 70 * time.Second}
	}
	return &Client{base: strings.TrimRight(apiBase, "/") + "/bot" + token, hc: hc}, nil
}

// SendMessage 送出純文字訊息。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}, nil)
}

// SetWebhook 註冊 webhook；secret 會由 Telegram 放在 X-Telegram-Bot-Api-Secret-Token 回傳。
func (c *Client) SetWebhook(ctx context.Context, url, secret string, dropPending bool) error {
	return c.call(ctx, "setWebhook", map[string]any{
		"url":                  url,
		"secret_token":         secret,
		"drop_pending_updates": dropPending,
		"allowed_updates":      []string{"message"},
	}, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
}

// SetMenuButton 把選單按鈕設成開啟 Mini App。
func (c *Client) SetMenuButton(ctx context.Context, text, webAppURL string) error {
	return c.call(ctx, "setChatMenuButton", map[string]any{
		"menu_button": map[string]any{
			"type":    "web_app",
			"text":    text,
			"web_app": map[string]string{"url": webAppURL},
		},
	}, nil)
}

// GetUpdates long polling；timeout 單位為秒。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	var out []Update
	err := c.call(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message"},
	}, &out)
	return out, err
}

// call 送出 JSON 請求並解開 {"ok": ..., "result": ..., "description": ...}。
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errs.Wrap(err, "telegram: encode "+method)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+method, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(err, "telegram: build "+method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// 錯誤訊息中可能含有 token，只保留方法名
		return errs.NewUpstream("telegram: " + method + " request failed")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errs.WrapAs(errs.Upstream, err, "telegram: read "+method)
	}

	env := gjson.ParseBytes(raw)
	if !env.Get("ok").Bool() {
		desc := env.Get("description").String()
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return errs.NewWithExtra(errs.Upstream, "telegram: "+method+": "+desc, fmt.Sprintf("status=%d", resp.StatusCode))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(env.Get("result").Raw), result); err != nil {
		return errs.WrapAs(errs.Upstream, err, "telegram: decode "+method)
	}
	return nil
}
