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

package netsvr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const DefaultAddr = "0.0.0.0:8080"

// Timeouts 是 http.Server 的逾時設定；零值欄位使用預設。
type Timeouts struct {
	ReadHeader time.Duration
	Read       time.Duration
	Write      time.Duration
	Idle       time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.ReadHeader <= 0 {
		t.ReadHeader = 5 * time.Second
	}
	if t.Read <= 0 {
		t.Read = 10 * time.Second
	}
	if t.Write <= 0 {
		t.Write = 15 * time.Second
	}
	if t.Idle <= 0 {
		t.Idle = 120 * time.Second
	}
	return t
}

// ChiAdapter 以 chi 實作 NetSvr。
type ChiAdapter struct {
	router chi.Router
	server *http.Server
	addr   string
}

// NewChiServer addr 為空時使用 DefaultAddr。
func NewChiServer(addr string, to Timeouts) *ChiAdapter {
	if addr == "" {
		addr = DefaultAddr
	}
	to = to.withDefaults()
	cr := chi.NewRouter()
	return &ChiAdapter{
		router: cr,
		server: &http.Server{
			Addr:              addr,
			Handler:           cr,
			ReadHeaderTimeout: to.ReadHeader,
			ReadTimeout:       to.Read,
			WriteTimeout:      to.Write,
			IdleTimeout:       to.Idle,
		},
		addr: addr,
	}
}

// Run 阻塞直到 Shutdown；正常關閉回傳 nil。
func (c *ChiAdapter) Run() error {
	ln, err := net.Listen("tcp", c.addr)
	if err != nil {
		return err
	}
	return c.Serve(ln)
}

// Serve 使用既有的 listener（測試用 127.0.0.1:0）。
func (c *ChiAdapter) Serve(ln net.Listener) error {
	if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ChiAdapter) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

func (c *ChiAdapter) Use(mw func(http.Handler) http.Handler) { c.router.Use(mw) }

func (c *ChiAdapter) Get(path string, h http.HandlerFunc) { c.router.Get(path, h) }

func (c *ChiAdapter) Post(path string, h http.HandlerFunc) { c.router.Post(path, h) }

func (c *ChiAdapter) Handle(pattern string, h http.Handler) { c.router.Handle(pattern, h) }

func (c *ChiAdapter) Group(path string, fn func(NetRouter)) {
	c.router.Route(path, func(r chi.Router) {
		fn(&ChiAdapter{router: r})
	})
}

func (c *ChiAdapter) With(mws ...func(http.Handler) http.Handler) NetRouter {
	return &ChiAdapter{router: c.router.With(mws...)}
}

// Handler 回傳根路由，httptest 使用。
func (c *ChiAdapter) Handler() http.Handler { return c.router }

func (c *ChiAdapter) Address() string { return c.addr }
