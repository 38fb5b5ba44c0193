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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DefaultShutdownTimeout 優雅關閉的總時限。
const DefaultShutdownTimeout = 5 * time.Second

type named struct {
	name string
	Component
}

// App 啟動所有註冊的 Component，收到 OS 信號或任一 Component 返回時協調優雅關閉。
type App struct {
	comps   []named
	log     *slog.Logger
	timeout time.Duration
	signals []os.Signal
}

type Option func(*App)

// WithLogger 生命週期事件寫入 log；未設定時丟棄。
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New 建立一個新的 App 實例。
func New(opts ...Option) *App {
	a := &App{
		log:     slog.New(slog.DiscardHandler),
		timeout: DefaultShutdownTimeout,
		signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Register 以名稱註冊 Component；名稱只用於 log。
func (a *App) Register(name string, c Component) {
	if c == nil {
		return
	}
	a.comps = append(a.comps, named{name: name, Component: c})
}

// Run 阻塞直到收到 SIGINT/SIGTERM 或任一 Component 的 Run 返回。
//   - 信號：優雅關閉後回傳 nil。
//   - Component 返回：優雅關閉後回傳其錯誤（正常結束則為 nil）。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), a.signals...)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 與 Run 相同，但以 ctx 取消代替 OS 信號。
func (a *App) RunContext(ctx context.Context) error {
	if len(a.comps) == 0 {
		return errors.New("app: no component registered")
	}
	type result struct {
		name string
		err  error
	}
	done := make(chan result, len(a.comps))
	for _, c := range a.comps {
		a.log.Info("app.start", slog.String("component", c.name))
		go func(c named) {
			done <- result{name: c.name, err: c.Run()}
		}(c)
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("app.signal", slog.String("cause", context.Cause(ctx).Error()))
	case r := <-done:
		if r.err != nil {
			runErr = fmt.Errorf("%s: %w", r.name, r.err)
			a.log.Error("app.component_failed", slog.String("component", r.name), slog.Any("err", r.err))
		} else {
			a.log.Info("app.component_exited", slog.String("component", r.name))
		}
	}
	return errors.Join(runErr, a.gracefulShutdown(a.timeout))
}

// gracefulShutdown 反向關閉：後註冊的先關（例如 bot 先於 HTTP server）。
func (a *App) gracefulShutdown(td time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), td)
	defer cancel()
	var errList []error
	for i := len(a.comps) - 1; i >= 0; i-- {
		c := a.comps[i]
		if err := c.Shutdown(ctx); err != nil {
			a.log.Warn("app.shutdown_err", slog.String("component", c.name), slog.Any("err", err))
			errList = append(errList, fmt.Errorf("shutdown %s: %w", c.name, err))
		}
	}
	a.log.Info("app.stopped")
	return errors.Join(errList...)
}
