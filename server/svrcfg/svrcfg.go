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

// Package svrcfg 收斂 roulab 主機的所有設定。
//
// 優先序（後者覆蓋前者）：預設值 → YAML 檔（-config）→ .env 與環境變數 → 命令列旗標。
package svrcfg

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/server/logger"
	"github.com/zintix-labs/roulab/telegram"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8080
	DefaultPollMS      = 1500
	DefaultRedirectURL = "https://telegram.org/"
	DefaultPrefsFile   = "data/prefs.json"
	MinPollMS          = 250
)

type SvrCfg struct {
	Token         string `yaml:"token"`
	Domain        string `yaml:"domain"`
	PublicURL     string `yaml:"public_url"`
	Mode          string `yaml:"mode"`
	WebHost       string `yaml:"web_host"`
	WebPort       int    `yaml:"web_port"`
	WebhookSecret string `yaml:"webhook_secret"`
	TelegramAPI   string `yaml:"telegram_api"`

	RestrictToTelegram bool   `yaml:"restrict_to_telegram"`
	GateStrict         bool   `yaml:"gate_strict"`
	RedirectURL        string `yaml:"redirect_url"`

	StatsAPIURL string `yaml:"stats_api_url"`
	PrefsStore  string `yaml:"prefs_store"`
	PrefsFile   string `yaml:"prefs_file"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	LogMode string `yaml:"log_mode"`
	PollMS  int    `yaml:"poll_ms"`
	Live    bool   `yaml:"live"`

	Log *slog.Logger `yaml:"-"`
}

// Default 回傳預設設定；Token 與 StatsAPIURL 沒有預設值。
func Default() *SvrCfg {
	return &SvrCfg{
		Mode:        telegram.ModePolling,
		WebHost:     DefaultHost,
		WebPort:     DefaultPort,
		RedirectURL: DefaultRedirectURL,
		PrefsStore:  prefs.KindMemory,
		LogMode:     logger.ModeDev.String(),
		PollMS:      DefaultPollMS,
		Live:        true,
	}
}

// Addr 是 HTTP 監聽位址。
func (sc *SvrCfg) Addr() string {
	return net.JoinHostPort(sc.WebHost, strconv.Itoa(sc.WebPort))
}

// PollInterval 是輪詢器的間隔。
func (sc *SvrCfg) PollInterval() time.Duration {
	return time.Duration(sc.PollMS) * time.Millisecond
}

// MiniAppURL 是選單按鈕開啟的網址；tg=1 讓頁面閘門認得 Telegram 來源。
func (sc *SvrCfg) MiniAppURL() string {
	if sc.PublicURL == "" {
		return ""
	}
	return sc.PublicURL + "/?tg=1"
}

// Vaild 補齊預設值並一次回報所有問題。
func (sc *SvrCfg) Vaild() error {
	var problems []error
	bad := func(format string, a ...any) {
		problems = append(problems, errs.NewFatal(fmt.Sprintf(format, a...)))
	}

	sc.Mode = strings.ToLower(strings.TrimSpace(sc.Mode))
	if sc.Mode == "" {
		sc.Mode = telegram.ModePolling
	}
	switch sc.Mode {
	case telegram.ModePolling, telegram.ModeWebhook, telegram.ModeOff:
	default:
		bad("MODE must be polling|webhook|off, got %q", sc.Mode)
	}
	if sc.Mode != telegram.ModeOff && sc.Token == "" {
		bad("TOKEN is required when MODE=%s", sc.Mode)
	}
	if sc.RestrictToTelegram && sc.Token == "" {
		bad("TOKEN is required to verify initData when RESTRICT_TO_TELEGRAM is on")
	}

	if sc.PublicURL == "" && sc.Domain != "" {
		sc.PublicURL = "https://" + sc.Domain
	}
	sc.PublicURL = strings.TrimRight(sc.PublicURL, "/")
	if sc.PublicURL != "" {
		if err := checkURL(sc.PublicURL); err != nil {
			bad("PUBLIC_URL: %v", err)
		}
	}
	if sc.Mode == telegram.ModeWebhook {
		if !strings.HasPrefix(sc.PublicURL, "https://") {
			bad("MODE=webhook needs an https PUBLIC_URL (or DOMAIN)")
		}
		if sc.WebhookSecret == "" {
			sc.WebhookSecret = randomSecret()
		}
	}

	if sc.WebHost == "" {
		sc.WebHost = DefaultHost
	}
	if sc.WebPort == 0 {
		sc.WebPort = DefaultPort
	}
	if sc.WebPort < 1 || sc.WebPort > 65535 {
		bad("WEB_PORT out of range: %d", sc.WebPort)
	}

	if sc.StatsAPIURL == "" {
		bad("STATS_API_URL is required")
	} else if err := checkURL(sc.StatsAPIURL); err != nil {
		bad("STATS_API_URL: %v", err)
	}

	sc.PrefsStore = strings.ToLower(sc.PrefsStore)
	if sc.PrefsStore == "" {
		sc.PrefsStore = prefs.KindMemory
	}
	switch {
	case !prefs.ValidKind(sc.PrefsStore):
		bad("PREFS_STORE must be one of %s", strings.Join(prefs.Kinds, "|"))
	case sc.PrefsStore == prefs.KindFile && sc.PrefsFile == "":
		sc.PrefsFile = DefaultPrefsFile
	case sc.PrefsStore == prefs.KindRedis && sc.RedisURL == "":
		bad("REDIS_URL is required when PREFS_STORE=redis")
	case sc.PrefsStore == prefs.KindPostgres && sc.DatabaseURL == "":
		bad("DATABASE_URL is required when PREFS_STORE=postgres")
	}

	mode, err := logger.ParseLogMode(sc.LogMode)
	if err != nil {
		problems = append(problems, err)
	}
	if sc.Log == nil {
		sc.Log = logger.New(mode)
	}

	if sc.PollMS == 0 {
		sc.PollMS = DefaultPollMS
	}
	sc.PollMS = max(sc.PollMS, MinPollMS)

	return errors.Join(problems...)
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an absolute http(s) URL", raw)
	}
	return nil
}

// randomSecret 24 bytes, url-safe base64 (Telegram 只接受 A-Z a-z 0-9 _ -)。
func randomSecret() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// ============================================================
// ** 載入 **
// ============================================================

// LoadFile 以 YAML 覆蓋 sc。
func (sc *SvrCfg) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(err, "read config file")
	}
	if err := yaml.Unmarshal(raw, sc); err != nil {
		return errs.NewWarn("parse config file " + path + ": " + err.Error())
	}
	return nil
}

// ParseBool 接受 1/true/yes/on（不分大小寫），其餘皆為 false。
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// ApplyEnv 以環境變數覆蓋 sc；lookup 通常是 os.LookupEnv。
func (sc *SvrCfg) ApplyEnv(lookup func(string) (string, bool)) error {
	var problems []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, errs.NewWarn(name+" must be an integer"))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = ParseBool(v)
		}
	}

	str("TOKEN", &sc.Token)
	str("DOMAIN", &sc.Domain)
	str("PUBLIC_URL", &sc.PublicURL)
	str("MODE", &sc.Mode)
	str("WEB_HOST", &sc.WebHost)
	num("WEB_PORT", &sc.WebPort)
	str("WEBHOOK_SECRET", &sc.WebhookSecret)
	str("TELEGRAM_API", &sc.TelegramAPI)
	boolean("RESTRICT_TO_TELEGRAM", &sc.RestrictToTelegram)
	boolean("GATE_STRICT", &sc.GateStrict)
	str("REDIRECT_URL", &sc.RedirectURL)
	str("STATS_API_URL", &sc.StatsAPIURL)
	str("PREFS_STORE", &sc.PrefsStore)
	str("PREFS_FILE", &sc.PrefsFile)
	str("REDIS_URL", &sc.RedisURL)
	str("DATABASE_URL", &sc.DatabaseURL)
	str("LOG_MODE", &sc.LogMode)
	num("POLL_MS", &sc.PollMS)
	boolean("LIVE", &sc.Live)
	return errors.Join(problems...)
}

// Load 依優先序組出設定（未呼叫 Vaild）。
// args 不含程式名稱；lookup 為 nil 時使用 os.LookupEnv。
func Load(args []string, lookup func(string) (string, bool), stderr io.Writer) (*SvrCfg, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	sc := Default()

	var (
		configPath, envFile string
		flagged             SvrCfg
	)
	fs := flag.NewFlagSet("roulab", flag.ContinueOnError)
	if stderr != nil {
		fs.SetOutput(stderr)
	}
	fs.StringVar(&configPath, "config", "", "YAML config file")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment (missing file is fine)")
	fs.StringVar(&flagged.WebHost, "host", "", "listen host (WEB_HOST)")
	fs.IntVar(&flagged.WebPort, "port", 0, "listen port (WEB_PORT)")
	fs.StringVar(&flagged.Mode, "mode", "", "telegram mode: polling|webhook|off (MODE)")
	fs.StringVar(&flagged.StatsAPIURL, "stats-api", "", "statistics service base URL (STATS_API_URL)")
	fs.StringVar(&flagged.PublicURL, "public-url", "", "public https URL of this host (PUBLIC_URL)")
	fs.StringVar(&flagged.PrefsStore, "prefs", "", "theme store: "+strings.Join(prefs.Kinds, "|")+" (PREFS_STORE)")
	fs.StringVar(&flagged.LogMode, "log-mode", "", "log mode: dev|prod|silence (LOG_MODE)")
	fs.IntVar(&flagged.PollMS, "poll-ms", 0, "poll interval in milliseconds (POLL_MS)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := sc.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		env, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(err, "read env file")
		}
		// 真正的環境變數優先於 .env
		base := lookup
		lookup = func(k string) (string, bool) {
			if v, ok := base(k); ok {
				return v, true
			}
			v, ok := env[k]
			return v, ok
		}
	}
	if err := sc.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			sc.WebHost = flagged.WebHost
		case "port":
			sc.WebPort = flagged.WebPort
		case "mode":
			sc.Mode = flagged.Mode
		case "stats-api":
			sc.StatsAPIURL = flagged.StatsAPIURL
		case "public-url":
			sc.PublicURL = flagged.PublicURL
		case "prefs":
			sc.PrefsStore = flagged.PrefsStore
		case "log-mode":
			sc.LogMode = flagged.LogMode
		case "poll-ms":
			sc.PollMS = flagged.PollMS
		}
	})
	return sc, nil
}
