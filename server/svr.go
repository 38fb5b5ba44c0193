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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/poller"
	"github.com/zintix-labs/roulab/server/api"
	"github.com/zintix-labs/roulab/server/api/index"
	v1 "github.com/zintix-labs/roulab/server/api/v1"
	"github.com/zintix-labs/roulab/server/app"
	"github.com/zintix-labs/roulab/server/logger"
	"github.com/zintix-labs/roulab/server/metrics"
	"github.com/zintix-labs/roulab/server/netsvr"
	"github.com/zintix-labs/roulab/server/netsvr/middleware"
	"github.com/zintix-labs/roulab/server/svrcfg"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/telegram"
)

// Run 是 server 套件的「組裝器（assembler）」與「啟動入口（runtime entry）」。
//
// 它負責：
//  1. 建立非同步 logger 並驗證 SvrCfg。
//  2. 以 Build 組出 HTTP server、輪詢器、偏好儲存與 Telegram bot。
//  3. 啟動 app.Run() 並回傳停止原因。
//
// Run 不讀檔也不讀環境變數；那是 svrcfg.Load 的工作。
func Run(sCfg *svrcfg.SvrCfg) error {
	var ah *logger.AsyncHandler
	if sCfg.Log == nil {
		mode, _ := logger.ParseLogMode(sCfg.LogMode)
		sCfg.Log, ah = logger.NewAsync(4096, mode)
		defer ah.Close()
	}
	if err := sCfg.Vaild(); err != nil {
		// logger 可能還不可用，錯誤一併寫到 stderr
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	svr := netsvr.NewChiServer(sCfg.Addr(), netsvr.Timeouts{})
	a, err := Build(context.Background(), sCfg, svr, ah)
	if err != nil {
		sCfg.Log.Error("[roulab] build failed", slog.Any("err", err))
		return err
	}
	sCfg.Log.Info("[roulab] listening",
		slog.String("addr", svr.Address()),
		slog.String("mode", sCfg.Mode),
		slog.String("stats_api", sCfg.StatsAPIURL),
		slog.String("prefs", sCfg.PrefsStore),
	)
	if err := a.Run(); err != nil {
		sCfg.Log.Error("[roulab] app stopped", slog.Any("err", err))
		return err
	}
	return nil
}

// Build 組裝所有元件並註冊到 svr，回傳尚未啟動的 App。
// sCfg 必須已通過 Vaild；ah 可為 nil（不匯出 log 丟棄數）。
func Build(ctx context.Context, sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr, ah *logger.AsyncHandler) (*app.App, error) {
	if svr == nil {
		return nil, errs.NewFatal("svr is required")
	}
	log := sCfg.Log

	reg := metrics.NewRegistry()
	m := metrics.NewMetrics(reg)
	if ah != nil {
		m.WatchLogDrops(ah.Dropped)
	}

	store, closer, err := OpenPrefs(ctx, sCfg)
	if err != nil {
		return nil, err
	}

	client, err := statsapi.New(sCfg.StatsAPIURL, statsapi.WithObserver(m.ObserveUpstream))
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}

	pctx, stopPoller := context.WithCancel(ctx)
	var live v1.Live
	if sCfg.Live {
		w := poller.New(pctx, client, sCfg.PollInterval(), log)
		m.WatchPoller(w.Active, w.Fetches)
		live = w
	}

	h, err := v1.NewHandler(v1.Deps{Stats: client, Prefs: store, Live: live, Log: log, Metrics: m})
	if err != nil {
		stopPoller()
		closeQuietly(closer)
		return nil, err
	}

	botComp, webhook, err := buildBot(sCfg, log)
	if err != nil {
		stopPoller()
		closeQuietly(closer)
		return nil, err
	}

	deps := &api.Deps{
		Log:  log,
		Page: index.New(client, store, sCfg.PollMS, sCfg.Live, log),
		V1:   h,
		Gate: telegram.Gate{
			Token:    sCfg.Token,
			Restrict: sCfg.RestrictToTelegram,
			Strict:   sCfg.GateStrict,
			Redirect: sCfg.RedirectURL,
		},
		Metrics:  m,
		Gatherer: reg,
		Compress: middleware.DefaultCompressConfig,
	}
	if webhook != nil {
		deps.Webhook = webhook
	}
	api.RegisterRoutes(svr, deps)

	// 關閉順序與註冊相反：bot → http → poller → prefs
	a := app.New(app.WithLogger(log))
	if closer != nil {
		a.Register("prefs", app.Blocker(func(context.Context) error { return closer.Close() }))
	}
	a.Register("poller", app.Blocker(func(context.Context) error { stopPoller(); return nil }))
	a.Register("http", svr)
	a.Register("telegram", botComp)
	return a, nil
}

// buildBot 依 MODE 建立 bot 元件；off 時兩者皆為 nil。
func buildBot(sCfg *svrcfg.SvrCfg, log *slog.Logger) (app.Component, *telegram.Webhook, error) {
	if sCfg.Mode == telegram.ModeOff {
		return nil, nil, nil
	}
	tc, err := telegram.NewClient(sCfg.Token, sCfg.TelegramAPI, nil)
	if err != nil {
		return nil, nil, err
	}
	bot := telegram.NewBot(tc, sCfg.MiniAppURL(), log)
	switch sCfg.Mode {
	case telegram.ModeWebhook:
		wh := bot.NewWebhook(sCfg.PublicURL, sCfg.WebhookSecret)
		return wh, wh, nil
	default:
		return bot.NewPolling(0), nil, nil
	}
}

func closeQuietly(c interface{ Close() error }) {
	if c != nil {
		_ = c.Close()
	}
}
