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
	"net/http"

	"github.com/zintix-labs/roulab/server/app"
)

// NetSvr 是 HTTP 服務的抽象：路由 + 生命週期。
//   - 實作 app.Component，可直接交給 app.App 管理啟停。
//   - 目前只有 chi 實作；換框架時提供相容 net/http handler 的 Adapter 即可。
type NetSvr interface {
	NetRouter
	app.Component
}

// NetRouter 只有路由行為，交給 api 套件註冊路由時用，拿不到 Run/Shutdown。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Handle(pattern string, h http.Handler)

	// Group 以前綴建立子路由；With 在同一前綴下套用額外 middleware。
	Group(path string, fn func(NetRouter))
	With(mws ...func(http.Handler) http.Handler) NetRouter
}
