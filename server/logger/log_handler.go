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

// Package logger 組裝 roulab 使用的 *slog.Logger。
//
// 請求路徑上只做 enqueue：AsyncHandler 把任何 slog.Handler 包成非阻塞版本，
// 佇列滿時丟棄並計數，Dropped() 會接到 /metrics 的 roulab_log_dropped_total。
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type LogMode uint8

const (
	ModeDev     LogMode = iota // text → stderr, debug
	ModeProd                   // JSON → stdout, info
	ModeSilence                // 全部丟棄（測試 / CLI）
)

func (m LogMode) String() string {
	switch m {
	case ModeProd:
		return "prod"
	case ModeSilence:
		return "silence"
	default:
		return "dev"
	}
}

// ParseLogMode 讀取 LOG_MODE / -log 的值：dev、prod、silence（大小寫不拘）。
func ParseLogMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev", "development", "debug":
		return ModeDev, nil
	case "prod", "production", "json":
		return ModeProd, nil
	case "silence", "silent", "off", "none":
		return ModeSilence, nil
	default:
		return ModeDev, fmt.Errorf("unknown log mode %q", s)
	}
}

// New 同步 logger，CLI 使用。
func New(mode LogMode) *slog.Logger {
	return slog.New(handlerFor(mode, os.Stderr))
}

// NewDiscard 丟棄所有輸出，測試使用。
func NewDiscard() *slog.Logger {
	return slog.New(handlerFor(ModeSilence, io.Discard))
}

// NewAsync 伺服器使用：回傳 logger 與其 AsyncHandler（關機時 Close 以送出剩餘紀錄）。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(handlerFor(mode, nil), buf)
	return slog.New(ah), ah
}

// AsyncHandler 把 next 包成非阻塞 handler：Handle 只 enqueue，
// 背景 goroutine 依序寫出；佇列滿或已關閉時丟棄並計數。
//
// slog.Logger 會忽略 Handle 的 error，I/O 錯誤需在 next 內處理。
type AsyncHandler struct {
	next slog.Handler
	q    *queue
}

type queue struct {
	items   chan item
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type item struct {
	ctx context.Context
	rec slog.Record
	h   slog.Handler
}

// NewAsyncHandler buf <= 0 時使用 1024。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = handlerFor(ModeDev, nil)
	}
	if buf <= 0 {
		buf = 1024
	}
	q := &queue{items: make(chan item, buf), done: make(chan struct{})}
	q.wg.Add(1)
	go q.drain()
	return &AsyncHandler{next: next, q: q}
}

// Dropped 累計丟棄筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if h == nil || h.q == nil {
		return 0
	}
	return h.q.dropped.Load()
}

// Close 停止接收並寫完佇列中剩下的紀錄。可重複呼叫。
func (h *AsyncHandler) Close() {
	if h == nil || h.q == nil {
		return
	}
	h.q.once.Do(func() { close(h.q.done) })
	h.q.wg.Wait()
}

func (q *queue) drain() {
	defer q.wg.Done()
	for {
		select {
		case it := <-q.items:
			_ = it.h.Handle(it.ctx, it.rec)
		case <-q.done:
			for {
				select {
				case it := <-q.items:
					_ = it.h.Handle(it.ctx, it.rec)
				default:
					return
				}
			}
		}
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if h == nil || h.q == nil {
		return nil
	}
	select {
	case <-h.q.done:
		h.q.dropped.Add(1)
		return nil
	default:
	}
	// Record 內含可變引用，跨 goroutine 前需 Clone
	it := item{ctx: context.WithoutCancel(ctx), rec: r.Clone(), h: h.next}
	select {
	case h.q.items <- it:
	default:
		h.q.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), q: h.q}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), q: h.q}
}

// handlerFor w 為 nil 時依模式選擇預設輸出。
func handlerFor(mode LogMode, w io.Writer) slog.Handler {
	switch mode {
	case ModeProd:
		if w == nil {
			w = os.Stdout
		}
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	case ModeSilence:
		return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4})
	default:
		if w == nil {
			w = os.Stderr
		}
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
}
