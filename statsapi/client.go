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

package statsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/settings"
	"github.com/zintix-labs/roulab/wheel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/zintix-labs/roulab/statsapi")

// 回應本體上限；統計服務的回應遠小於此。
const maxBody = 4 << 20

// Observer 在每次遠端呼叫結束時被通知（供 metrics 使用）。
// outcome 為 ok / not_modified / error。
type Observer func(op, outcome string, d time.Duration)

// Client 呼叫遠端統計服務。零值不可用，請用 New 建立。
type Client struct {
	base     *url.URL
	hc       *http.Client
	observer Observer
}

type Option func(*Client)

// WithHTTPClient 替換底層 http.Client（測試或自訂 transport）。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New 以統計服務的根網址建立客戶端，例如 http://127.0.0.1:5000。
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, errs.Wrap(err, "statsapi: invalid base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errs.Warnf("statsapi: base url must be http(s), got %q", baseURL)
	}
	c := &Client{
		base: u,
		hc:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL 回傳設定的統計服務網址。
func (c *Client) BaseURL() string { return c.base.String() }

// ============================================================
// ** 公開方法 **
// ============================================================

// Stats 取得 chat 的統計。etag 非空時會帶 If-None-Match；
// 遠端回 304 時 notModified=true 且 snapshot 為 nil。
func (c *Client) Stats(ctx context.Context, chatID, etag string) (*Snapshot, string, bool, error) {
	if chatID == "" {
		return nil, "", false, errs.NewWarn("chat_id requerido")
	}
	q := url.Values{"chat_id": {chatID}}
	hdr := http.Header{}
	if etag != "" {
		hdr.Set("If-None-Match", etag)
	}
	res, err := c.do(ctx, "stats", http.MethodGet, "/api/stats", q, nil, hdr)
	if err != nil {
		return nil, "", false, err
	}
	if res.status == http.StatusNotModified {
		tag := res.header.Get("ETag")
		if tag == "" {
			tag = etag
		}
		return nil, tag, true, nil
	}
	return ParseSnapshot(res.body), res.header.Get("ETag"), false, nil
}

// Roll 記錄一個新號碼，回傳更新後的統計。
func (c *Client) Roll(ctx context.Context, chatID string, n int) (*Snapshot, error) {
	if !wheel.Valid(n) {
		return nil, errs.Warnf("n fuera de rango (%d..%d)", wheel.Min, wheel.Max)
	}
	return c.action(ctx, "roll", "/api/roll", map[string]any{"chat_id": chatID, "n": n})
}

// Rollback 撤銷最後一筆。
func (c *Client) Rollback(ctx context.Context, chatID string) (*Snapshot, error) {
	return c.action(ctx, "rollback", "/api/rollback", map[string]any{"chat_id": chatID})
}

// Reset 清空該 chat 的歷史。
func (c *Client) Reset(ctx context.Context, chatID string) (*Snapshot, error) {
	return c.action(ctx, "reset", "/api/reset", map[string]any{"chat_id": chatID})
}

// Config 讀取該 chat 目前的設定。
func (c *Client) Config(ctx context.Context, chatID string) (settings.Settings, error) {
	if chatID == "" {
		return settings.Settings{}, errs.NewWarn("chat_id requerido")
	}
	res, err := c.do(ctx, "config", http.MethodGet, "/api/config", url.Values{"chat_id": {chatID}}, nil, nil)
	if err != nil {
		return settings.Settings{}, err
	}
	return settings.FromRemote(res.body, settings.Default()), nil
}

// SetConfig 寫入設定，回傳遠端確認後的設定與新的統計。
func (c *Client) SetConfig(ctx context.Context, chatID string, s settings.Settings) (settings.Settings, *Snapshot, error) {
	if chatID == "" {
		return s, nil, errs.NewWarn("chat_id requerido")
	}
	body := map[string]any{
		"chat_id":     chatID,
		"window":      s.Window,
		"history_cap": s.HistoryCap,
		"hist_tail":   s.HistTail,
	}
	res, err := c.do(ctx, "set_config", http.MethodPost, "/api/config", nil, body, nil)
	if err != nil {
		return s, nil, err
	}
	root := gjson.ParseBytes(res.body)
	applied := s
	if cfg := root.Get("config"); cfg.IsObject() {
		applied = settings.FromRemote([]byte(cfg.Raw), s)
	}
	return applied, fromResult(root.Get("stats"), root.Get("config.window")), nil
}

// ============================================================
// ** 內部方法 **
// ============================================================

func (c *Client) action(ctx context.Context, op, path string, body map[string]any) (*Snapshot, error) {
	if id, _ := body["chat_id"].(string); id == "" {
		return nil, errs.NewWarn("chat_id requerido")
	}
	res, err := c.do(ctx, op, http.MethodPost, path, nil, body, nil)
	if err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(res.body)
	if ok := root.Get("ok"); ok.Exists() && !ok.Bool() {
		return nil, errs.NewUpstream(remoteMessage(res.body, "operación rechazada"))
	}
	return fromResult(root.Get("stats"), root.Get("window")), nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body any, hdr http.Header) (_ *response, err error) {
	ctx, span := tracer.Start(ctx, "statsapi."+op, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	))
	start := time.Now()
	outcome := "error"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if c.observer != nil {
			c.observer(op, outcome, time.Since(start))
		}
	}()

	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}

	var rd io.Reader
	if body != nil {
		buf, mErr := json.Marshal(body)
		if mErr != nil {
			return nil, errs.Wrap(mErr, "statsapi: encode request")
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errs.Wrap(err, "statsapi: build request")
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.WrapAs(errs.Upstream, err, "statsapi: request failed")
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errs.WrapAs(errs.Upstream, err, "statsapi: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		outcome = "not_modified"
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		outcome = "ok"
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 遠端判定請求有誤：訊息原樣回給使用者
		return nil, errs.NewWithExtra(errs.Warn, remoteMessage(raw, http.StatusText(resp.StatusCode)), "status="+strconv.Itoa(resp.StatusCode))
	default:
		return nil, errs.NewWithExtra(errs.Upstream, remoteMessage(raw, "servicio de estadísticas no disponible"), "status="+strconv.Itoa(resp.StatusCode))
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

// remoteMessage 讀出遠端的 {"error": "..."}；沒有時用 fallback。
func remoteMessage(raw []byte, fallback string) string {
	if m := gjson.GetBytes(raw, "error"); m.Type == gjson.String && m.Str != "" {
		return m.Str
	}
	return fallback
}

// String 方便在日誌中辨識客戶端。
func (c *Client) String() string {
	return fmt.Sprintf("statsapi(%s)", c.base.Redacted())
}
