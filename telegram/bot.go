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
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/server/httperr"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
	ModeOff     = "off"

	WebhookPath  = "/telegram/webhook"
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// WelcomeText 是 /start 的回覆。
const WelcomeText = "¡Bienvenido! 👋\n\n" +
	"Usa la Mini App para añadir tiradas y ver estadísticas.\n" +
	"➡️ Ábrela desde el botón del menú del bot (junto al campo de escritura)."

// API 是 Bot 需要的 Bot API 子集，*Client 即滿足。
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SetWebhook(ctx context.Context, url, secret string, dropPending bool) error
	DeleteWebhook(ctx context.Context, dropPending bool) error
	SetMenuButton(ctx context.Context, text, webAppURL string) error
	GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error)
}

// RetryDelay 是第 attempt 次（從 1 起算）失敗後的等待：min(5s·attempt, 30s)。
func RetryDelay(attempt int) time.Duration {
	return min(time.Duration(max(attempt, 1))*5*time.Second, 30*time.Second)
}

// Bot 處理 Telegram 的更新；目前只回應 /start。
type Bot struct {
	api        API
	log        *slog.Logger
	miniAppURL string
	wg         sync.WaitGroup
}

func NewBot(api API, miniAppURL string, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	return &Bot{api: api, miniAppURL: miniAppURL, log: log}
}

// Handle 處理單一更新。非 /start 的訊息一律忽略。
func (b *Bot) Handle(ctx context.Context, u Update) error {
	m := u.Message
	if m == nil || !isStart(m.Text) {
		return nil
	}
	if err := b.api.SendMessage(ctx, m.Chat.ID, WelcomeText); err != nil {
		return errs.Wrap(err, "telegram: reply /start")
	}
	return nil
}

// isStart 接受 "/start"、"/start payload" 與 "/start@botname"。
func isStart(text string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/start"
}

// setup 在啟動時設定選單按鈕；失敗只記錄，不影響收訊。
func (b *Bot) setup(ctx context.Context) {
	if b.miniAppURL == "" {
		return
	}
	if err := b.api.SetMenuButton(ctx, "Ruleta", b.miniAppURL); err != nil {
		b.log.Warn("telegram: set menu button failed", slog.Any("err", err))
	}
}

// retry 以 RetryDelay 重試 fn 直到成功或 ctx 結束。
func (b *Bot) retry(ctx context.Context, what string, sleep func(context.Context, time.Duration) error, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := RetryDelay(attempt)
		b.log.Warn("telegram: "+what+" failed, retrying",
			slog.Int("attempt", attempt), slog.Duration("delay", d), slog.Any("err", err))
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ============================================================
// ** long polling **
// ============================================================

// Polling 以 getUpdates 收訊，實作 app.Component。
type Polling struct {
	bot     *Bot
	timeout int
	sleep   func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPolling timeout 為 getUpdates 的秒數，<= 0 時用 50。
func (b *Bot) NewPolling(timeout int) *Polling {
	if timeout <= 0 {
		timeout = 50
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Polling{bot: b, timeout: timeout, sleep: sleepCtx, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (p *Polling) Run() error {
	defer close(p.done)
	b := p.bot
	// 與 webhook 互斥：先移除可能殘留的 webhook
	if err := b.retry(p.ctx, "deleteWebhook", p.sleep, func(ctx context.Context) error {
		return b.api.DeleteWebhook(ctx, false)
	}); err != nil {
		return nil
	}
	b.setup(p.ctx)
	b.log.Info("telegram: polling started")

	var offset int64
	attempt := 0
	for p.ctx.Err() == nil {
		ups, err := b.api.GetUpdates(p.ctx, offset, p.timeout)
		if err != nil {
			if p.ctx.Err() != nil {
				break
			}
			attempt++
			d := RetryDelay(attempt)
			b.log.Warn("telegram: getUpdates failed", slog.Int("attempt", attempt), slog.Duration("delay", d), slog.Any("err", err))
			if p.sleep(p.ctx, d) != nil {
				break
			}
			continue
		}
		attempt = 0
		for _, u := range ups {
			offset = max(offset, u.UpdateID+1)
			if err := b.Handle(p.ctx, u); err != nil {
				b.log.Warn("telegram: handle update", slog.Int64("update_id", u.UpdateID), slog.Any("err", err))
			}
		}
	}
	return nil
}

func (p *Polling) Shutdown(ctx context.Context) error {
	p.cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ============================================================
// ** webhook **
// ============================================================

// Webhook 是 POST /telegram/webhook 的 handler，同時實作 app.Component：
// Run 時註冊 webhook（失敗依 RetryDelay 重試），Shutdown 時移除並等待處理中的更新。
type Webhook struct {
	bot    *Bot
	url    string
	secret string
	sleep  func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
}

func (b *Bot) NewWebhook(publicURL, secret string) *Webhook {
	ctx, cancel := context.WithCancel(context.Background())
	return &Webhook{
		bot:    b,
		url:    strings.TrimRight(publicURL, "/") + WebhookPath,
		secret: secret,
		sleep:  sleepCtx,
		ctx:    ctx,
		cancel: cancel,
	}
}

// URL 是向 Telegram 註冊的完整網址。
func (h *Webhook) URL() string { return h.url }

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		httperr.Write(w, http.StatusForbidden, "secret inválido")
		return
	}
	var u Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&u); err != nil {
		httperr.Write(w, http.StatusBadRequest, "payload inválido")
		return
	}

	// 先回 200，更新在背景處理，避免 Telegram 重送
	h.bot.wg.Add(1)
	go func() {
		defer h.bot.wg.Done()
		ctx, cancel := context.WithTimeout(h.ctx, 30*time.Second)
		defer cancel()
		if err := h.bot.Handle(ctx, u); err != nil {
			h.bot.log.Warn("telegram: handle update", slog.Int64("update_id", u.UpdateID), slog.Any("err", err))
		}
	}()
	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) Run() error {
	b := h.bot
	err := b.retry(h.ctx, "setWebhook", h.sleep, func(ctx context.Context) error {
		return b.api.SetWebhook(ctx, h.url, h.secret, true)
	})
	if err != nil {
		return nil
	}
	b.setup(h.ctx)
	b.log.Info("telegram: webhook registered", slog.String("url", h.url))
	<-h.ctx.Done()
	return nil
}

func (h *Webhook) Shutdown(ctx context.Context) error {
	h.cancel()
	if err := h.bot.api.DeleteWebhook(ctx, false); err != nil {
		h.bot.log.Warn("telegram: deleteWebhook on shutdown", slog.Any("err", err))
	}
	done := make(chan struct{})
	go func() {
		h.bot.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
