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

// Package poller 以 ETag 輪詢統計服務，並把有變化的快照推給訂閱者。
//
// 每個 chat 只有一個輪詢迴圈：第一個訂閱者出現時啟動，最後一個離開時停止。
// 只有 Snapshot.Tag() 改變（或第一次取得）時才推送；訂閱通道容量為 1，慢的訂閱者只會拿到最新一筆。
package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/roulab/statsapi"
)

const DefaultInterval = 1500 * time.Millisecond

// Source 是輪詢的資料來源，*statsapi.Client 即滿足。
type Source interface {
	Stats(ctx context.Context, chatID, etag string) (*statsapi.Snapshot, string, bool, error)
}

// Update 是一次推送的內容。
type Update struct {
	ChatID   string
	Snapshot *statsapi.Snapshot
	Tag      string
}

type Watcher struct {
	ctx      context.Context
	src      Source
	interval time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	chats map[string]*loop
	seq   int

	fetches atomic.Int64
}

type loop struct {
	chatID string
	cancel context.CancelFunc
	subs   map[int]chan Update
	last   *Update
	etag   string

	inFlight atomic.Bool
}

// New 建立 Watcher；ctx 結束時所有迴圈停止、所有訂閱通道關閉。
func New(ctx context.Context, src Source, interval time.Duration, log *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		ctx:      ctx,
		src:      src,
		interval: interval,
		log:      log,
		chats:    make(map[string]*loop),
	}
}

// Subscribe 訂閱某個 chat 的更新。已有快照時會立即收到一筆。
// 回傳的 cancel 可重複呼叫。
func (w *Watcher) Subscribe(chatID string) (<-chan Update, func()) {
	ch := make(chan Update, 1)

	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	l, ok := w.chats[chatID]
	if !ok {
		ctx, cancel := context.WithCancel(w.ctx)
		l = &loop{chatID: chatID, cancel: cancel, subs: make(map[int]chan Update)}
		w.chats[chatID] = l
		go w.run(ctx, l)
	}
	w.seq++
	id := w.seq
	l.subs[id] = ch
	if l.last != nil {
		ch <- *l.last
	}
	w.mu.Unlock()

	return ch, func() { w.unsubscribe(l, id) }
}

func (w *Watcher) unsubscribe(l *loop, id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := l.subs[id]
	if !ok {
		return
	}
	delete(l.subs, id)
	close(ch)
	if len(l.subs) == 0 {
		l.cancel()
		if w.chats[l.chatID] == l {
			delete(w.chats, l.chatID)
		}
	}
}

// Publish 把剛由其他途徑（例如 roll）取得的快照推給訂閱者，不必等下一輪輪詢。
func (w *Watcher) Publish(chatID string, s *statsapi.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.chats[chatID]
	if !ok {
		return
	}
	// 遠端狀態已變，下一輪不再帶舊的 ETag
	l.etag = ""
	w.deliverLocked(l, s)
}

// Active 回傳目前有訂閱者的 chat 數量。
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.chats)
}

// Fetches 回傳累計的遠端查詢次數。
func (w *Watcher) Fetches() int64 { return w.fetches.Load() }

// ============================================================
// ** 內部方法 **
// ============================================================

func (w *Watcher) run(ctx context.Context, l *loop) {
	defer w.closeLoop(l)

	w.tick(ctx, l)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx, l)
		}
	}
}

func (w *Watcher) tick(ctx context.Context, l *loop) {
	if !l.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer l.inFlight.Store(false)

	w.mu.Lock()
	etag := l.etag
	w.mu.Unlock()

	w.fetches.Add(1)
	s, tag, notModified, err := w.src.Stats(ctx, l.chatID, etag)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("poller: fetch failed", slog.String("chat_id", l.chatID), slog.Any("err", err))
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if tag != "" {
		l.etag = tag
	}
	if notModified || s == nil {
		return
	}
	w.deliverLocked(l, s)
}

// deliverLocked 只在 tag 改變或第一次時推送。呼叫前需持有 w.mu。
func (w *Watcher) deliverLocked(l *loop, s *statsapi.Snapshot) {
	u := Update{ChatID: l.chatID, Snapshot: s, Tag: s.Tag()}
	if l.last != nil && l.last.Tag == u.Tag {
		l.last = &u
		return
	}
	l.last = &u
	for _, ch := range l.subs {
		offer(ch, u)
	}
}

// offer 非阻塞送出；通道已滿時丟掉舊的那筆改放新的。
func offer(ch chan Update, u Update) {
	select {
	case ch <- u:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- u:
	default:
	}
}

func (w *Watcher) closeLoop(l *loop) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
	if w.chats[l.chatID] == l {
		delete(w.chats, l.chatID)
	}
}
