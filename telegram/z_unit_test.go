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

package telegram_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/server/logger"
	"github.com/zintix-labs/roulab/telegram"
)

const token = "123456:TEST-token"

func signed(t *testing.T, fields map[string]string) string {
	t.Helper()
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("hash", telegram.Sign(vals, token))
	return vals.Encode()
}

func TestVerifyInitData(t *testing.T) {
	raw := signed(t, map[string]string{
		"auth_date": "1700000000",
		"query_id":  "AAH",
		"user":      `{"id":777,"first_name":"Ana"}`,
		"chat":      `{"id":-100123,"type":"group"}`,
	})
	d, err := telegram.VerifyInitData(raw, token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if d.ChatID != "-100123" || d.UserID != "777" || d.ChatKey() != "-100123" {
		t.Fatalf("ids: %+v", d)
	}
	if d.AuthDate.Unix() != 1700000000 {
		t.Fatalf("auth date: %v", d.AuthDate)
	}
	if !d.Owns("777") || !d.Owns("-100123") || d.Owns("1") {
		t.Fatalf("Owns mismatch")
	}

	bad := []string{
		"",
		strings.Replace(raw, "Ana", "Eva", 1),
		"auth_date=1&user=%7B%7D",
		"%zz",
	}
	for _, b := range bad {
		if _, err := telegram.VerifyInitData(b, token); errs.Level(err) != errs.Auth {
			t.Fatalf("VerifyInitData(%q) should be Auth, got %v", b, err)
		}
	}
	if _, err := telegram.VerifyInitData(raw, "other:token"); err == nil {
		t.Fatalf("wrong token must fail")
	}
}

func TestResolveChatID(t *testing.T) {
	withChat := &telegram.InitData{ChatID: "1", UserID: "2"}
	userOnly := &telegram.InitData{UserID: "2"}
	cases := []struct {
		d               *telegram.InitData
		injected, query string
		want            string
	}{
		{withChat, "3", "4", "1"},
		{userOnly, "3", "4", "2"},
		{nil, " 3 ", "4", "3"},
		{nil, "", "4", "4"},
		{nil, "", "", "dev"},
	}
	for _, tc := range cases {
		if got := telegram.ResolveChatID(tc.d, tc.injected, tc.query); got != tc.want {
			t.Fatalf("ResolveChatID(%+v,%q,%q) = %q, want %q", tc.d, tc.injected, tc.query, got, tc.want)
		}
	}
}

func TestChatIDOf(t *testing.T) {
	cases := map[string]string{
		`{"chat_id": 123}`:            "123",
		`{"chat_id": -1001234567890}`: "-1001234567890",
		`{"chat_id": 555.0}`:          "555",
		`{"chat_id": 5.55e2}`:         "555",
		`{"chat_id": " abc "}`:        "abc",
		`{"chat_id": 1.5}`:            "1.5",
		`{"chat_id": null}`:           "",
		`{"chat_id": [1]}`:            "",
		`{}`:                          "",
	}
	for in, want := range cases {
		if got := telegram.ChatIDOf(gjson.Get(in, "chat_id")); got != want {
			t.Fatalf("ChatIDOf(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestRetryDelay(t *testing.T) {
	want := map[int]time.Duration{0: 5 * time.Second, 1: 5 * time.Second, 2: 10 * time.Second, 6: 30 * time.Second, 50: 30 * time.Second}
	for a, d := range want {
		if got := telegram.RetryDelay(a); got != d {
			t.Fatalf("RetryDelay(%d) = %v, want %v", a, got, d)
		}
	}
}

// fakeAPI 記錄呼叫；getUpdates 依序吐出預設批次。
type fakeAPI struct {
	mu       sync.Mutex
	sent     []string
	webhooks []string
	deleted  int
	batches  [][]telegram.Update
	offsets  []int64
	fail     int // 前 fail 次 setWebhook 失敗
}

func (f *fakeAPI) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAPI) SetWebhook(_ context.Context, url, secret string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("temporary")
	}
	f.webhooks = append(f.webhooks, url+"|"+secret)
	return nil
}

func (f *fakeAPI) DeleteWebhook(context.Context, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakeAPI) SetMenuButton(context.Context, string, string) error { return nil }

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ int) ([]telegram.Update, error) {
	f.mu.Lock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) > 0 {
		b := f.batches[0]
		f.batches = f.batches[1:]
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeAPI) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func msg(id int64, text string) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{Chat: telegram.Chat{ID: 9}, Text: text}}
}

func TestBotHandlesStartOnly(t *testing.T) {
	api := &fakeAPI{}
	b := telegram.NewBot(api, "", logger.NewDiscard())
	ctx := context.Background()
	for _, u := range []telegram.Update{msg(1, "/start"), msg(2, "/start@roulab_bot"), msg(3, "/start abc"), msg(4, "hola"), msg(5, "/stats"), {UpdateID: 6}} {
		if err := b.Handle(ctx, u); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	if api.sentCount() != 3 || api.sent[0] != telegram.WelcomeText {
		t.Fatalf("sent: %v", api.sent)
	}
}

func TestPollingAdvancesOffset(t *testing.T) {
	api := &fakeAPI{batches: [][]telegram.Update{{msg(10, "/start"), msg(11, "x")}, {msg(12, "/start")}}}
	p := telegram.NewBot(api, "", logger.NewDiscard()).NewPolling(1)

	errCh := make(chan error, 1)
	go func() { errCh <- p.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for api.sentCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
	if api.sentCount() != 2 {
		t.Fatalf("replies: %d", api.sentCount())
	}
	if api.deleted != 1 {
		t.Fatalf("polling must clear the webhook first")
	}
	if len(api.offsets) < 3 || api.offsets[0] != 0 || api.offsets[1] != 12 || api.offsets[2] != 13 {
		t.Fatalf("offsets: %v", api.offsets)
	}
}

func TestWebhook(t *testing.T) {
	api := &fakeAPI{}
	h := telegram.NewBot(api, "", logger.NewDiscard()).NewWebhook("https://example.org/", "s3cret")
	if h.URL() != "https://example.org/telegram/webhook" {
		t.Fatalf("url: %s", h.URL())
	}

	post := func(secret, body string) int {
		req := httptest.NewRequest(http.MethodPost, telegram.WebhookPath, strings.NewReader(body))
		if secret != "" {
			req.Header.Set(telegram.SecretHeader, secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if c := post("", `{}`); c != http.StatusForbidden {
		t.Fatalf("missing secret: %d", c)
	}
	if c := post("nope", `{}`); c != http.StatusForbidden {
		t.Fatalf("wrong secret: %d", c)
	}
	if c := post("s3cret", `{`); c != http.StatusBadRequest {
		t.Fatalf("bad payload: %d", c)
	}
	if c := post("s3cret", `{"update_id":1,"message":{"message_id":1,"chat":{"id":9,"type":"private"},"text":"/start"}}`); c != http.StatusOK {
		t.Fatalf("valid update: %d", c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if api.sentCount() != 1 {
		t.Fatalf("async update should be handled before shutdown returns, sent=%d", api.sentCount())
	}
}

func TestWebhookRunRegisters(t *testing.T) {
	api := &fakeAPI{}
	h := telegram.NewBot(api, "", logger.NewDiscard()).NewWebhook("https://example.org", "k")
	done := make(chan error, 1)
	go func() { done <- h.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		api.mu.Lock()
		n := len(api.webhooks)
		api.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if api.webhooks[0] != "https://example.org/telegram/webhook|k" {
		t.Fatalf("webhooks: %v", api.webhooks)
	}
	_ = h.Shutdown(context.Background())
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestClientAgainstFakeServer(t *testing.T) {
	var (
		mu                 sync.Mutex
		lastPath, lastBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastPath, lastBody = r.URL.Path, string(b)
		mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"chat":{"id":3,"type":"private"},"text":"/start"}}]}`)
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
		default:
			_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
		}
	}))
	defer srv.Close()
	last := func() (string, string) {
		mu.Lock()
		defer mu.Unlock()
		return lastPath, lastBody
	}

	c, err := telegram.NewClient(token, srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ctx := context.Background()

	ups, err := c.GetUpdates(ctx, 5, 0)
	if err != nil || len(ups) != 1 || ups[0].Message.Text != "/start" {
		t.Fatalf("getUpdates: %v %+v", err, ups)
	}
	if path, body := last(); path != "/bot"+token+"/getUpdates" || !strings.Contains(body, `"offset":5`) {
		t.Fatalf("request: %s %s", path, body)
	}

	err = c.SendMessage(ctx, 3, "hola")
	if errs.Level(err) != errs.Upstream || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("sendMessage error: %v", err)
	}

	if err := c.SetWebhook(ctx, "https://x/telegram/webhook", "s", true); err != nil {
		t.Fatalf("setWebhook: %v", err)
	}
	if _, body := last(); !strings.Contains(body, `"secret_token":"s"`) || !strings.Contains(body, `"drop_pending_updates":true`) {
		t.Fatalf("setWebhook body: %s", body)
	}

	if _, err := telegram.NewClient(" ", "", nil); err == nil {
		t.Fatalf("empty token should fail")
	}
}

func TestGate(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := telegram.FromContext(r.Context()); d != nil {
			w.Header().Set("X-Chat", d.ChatKey())
		}
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	})
	session := signed(t, map[string]string{"auth_date": "1", "user": `{"id":42}`})

	do := func(g telegram.Gate, method, target, body, initData string) *httptest.ResponseRecorder {
		var rd io.Reader
		if body != "" {
			rd = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, rd)
		if initData != "" {
			req.Header.Set(telegram.InitDataHeader, initData)
		}
		rec := httptest.NewRecorder()
		g.API(ok).ServeHTTP(rec, req)
		return rec
	}

	open := telegram.Gate{Token: token}
	if rec := do(open, "GET", "/api/stats?chat_id=1", "", ""); rec.Code != 200 {
		t.Fatalf("open gate without initData: %d", rec.Code)
	}
	if rec := do(open, "GET", "/api/stats?chat_id=1", "", "hash=bad"); rec.Code != 401 {
		t.Fatalf("invalid initData is always rejected: %d", rec.Code)
	}

	restricted := telegram.Gate{Token: token, Restrict: true}
	if rec := do(restricted, "GET", "/api/stats?chat_id=1", "", ""); rec.Code != 401 {
		t.Fatalf("restricted without initData: %d", rec.Code)
	}
	if rec := do(restricted, "GET", "/api/stats?chat_id=1", "", session); rec.Code != 200 || rec.Header().Get("X-Chat") != "42" {
		t.Fatalf("restricted with initData: %d %q", rec.Code, rec.Header().Get("X-Chat"))
	}

	strict := telegram.Gate{Token: token, Restrict: true, Strict: true}
	if rec := do(strict, "GET", "/api/stats?chat_id=1", "", session); rec.Code != 403 {
		t.Fatalf("strict mismatch: %d", rec.Code)
	}
	rec := do(strict, "POST", "/api/roll", `{"chat_id":42,"n":3}`, session)
	if rec.Code != 200 || rec.Body.String() != `{"chat_id":42,"n":3}` {
		t.Fatalf("strict match must keep the body: %d %q", rec.Code, rec.Body.String())
	}
	if rec := do(strict, "POST", "/api/roll", `{"chat_id":"7","n":3}`, session); rec.Code != 403 {
		t.Fatalf("strict body mismatch: %d", rec.Code)
	}
	if rec := do(strict, "POST", "/api/roll?chat_id=42", `{"chat_id":7,"n":3}`, session); rec.Code != 403 {
		t.Fatalf("own query with foreign body: %d", rec.Code)
	}
	if rec := do(strict, "POST", "/api/roll?chat_id=7", `{"chat_id":42,"n":3}`, session); rec.Code != 403 {
		t.Fatalf("foreign query with own body: %d", rec.Code)
	}
	if rec := do(strict, "POST", "/api/roll?chat_id=42", `{"chat_id":4.2e1,"n":3}`, session); rec.Code != 200 {
		t.Fatalf("own chat in exponent form: %d", rec.Code)
	}

	ws := httptest.NewRequest("GET", "/api/live?chat_id=42&init_data="+url.QueryEscape(session), nil)
	wrec := httptest.NewRecorder()
	strict.API(ok).ServeHTTP(wrec, ws)
	if wrec.Code != 200 {
		t.Fatalf("init_data query for websocket: %d", wrec.Code)
	}
}

func TestGatePage(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	g := telegram.Gate{Restrict: true, Redirect: "https://example.org/"}

	rec := httptest.NewRecorder()
	g.Page(page).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "https://example.org/" {
		t.Fatalf("outside telegram should redirect: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	g.Page(page).ServeHTTP(rec, httptest.NewRequest("GET", "/?tg=1", nil))
	if rec.Code != 200 {
		t.Fatalf("menu button url should pass: %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Telegram-Android/10.0")
	rec = httptest.NewRecorder()
	g.Page(page).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("telegram user agent should pass: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	telegram.Gate{}.Page(page).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != 200 {
		t.Fatalf("unrestricted page: %d", rec.Code)
	}
}
