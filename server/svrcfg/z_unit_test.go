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

package svrcfg_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zintix-labs/roulab/server/svrcfg"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "YES", " on "} {
		if !svrcfg.ParseBool(s) {
			t.Fatalf("%q should be true", s)
		}
	}
	for _, s := range []string{"", "0", "false", "no", "off", "maybe"} {
		if svrcfg.ParseBool(s) {
			t.Fatalf("%q should be false", s)
		}
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "roulab.yaml")
	yml := "stats_api_url: http://yaml:9000\nweb_port: 7000\nmode: \"off\"\nredirect_url: https://yaml.example/\n"
	if err := os.WriteFile(cfgPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("WEB_PORT=7100\nDOMAIN=dotenv.example\nGATE_STRICT=yes\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, err := svrcfg.Load(
		[]string{"-config", cfgPath, "-env-file", envPath, "-port", "7300"},
		env(map[string]string{"WEB_PORT": "7200", "DOMAIN": "real.example"}),
		nil,
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.StatsAPIURL != "http://yaml:9000" || sc.RedirectURL != "https://yaml.example/" {
		t.Fatalf("yaml layer not applied: %+v", sc)
	}
	if sc.WebPort != 7300 {
		t.Fatalf("flag should win, port = %d", sc.WebPort)
	}
	if sc.Domain != "real.example" {
		t.Fatalf("process env should beat .env, domain = %q", sc.Domain)
	}
	if !sc.GateStrict {
		t.Fatalf(".env value should apply when env is unset")
	}

	if err := sc.Vaild(); err != nil {
		t.Fatalf("Vaild: %v", err)
	}
	if sc.PublicURL != "https://real.example" {
		t.Fatalf("PUBLIC_URL default = %q", sc.PublicURL)
	}
	if sc.MiniAppURL() != "https://real.example/?tg=1" {
		t.Fatalf("mini app url = %q", sc.MiniAppURL())
	}
	if sc.Addr() != "0.0.0.0:7300" {
		t.Fatalf("addr = %q", sc.Addr())
	}
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	sc, err := svrcfg.Load([]string{"-env-file", filepath.Join(t.TempDir(), "nope.env")}, env(nil), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Mode != "polling" || sc.PollMS != svrcfg.DefaultPollMS || sc.WebPort != 8080 {
		t.Fatalf("defaults not kept: %+v", sc)
	}
}

func TestApplyEnvRejectsBadInt(t *testing.T) {
	sc := svrcfg.Default()
	if err := sc.ApplyEnv(env(map[string]string{"WEB_PORT": "eighty"})); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVaildCollectsAllProblems(t *testing.T) {
	sc := svrcfg.Default()
	sc.Mode = "webhook"
	sc.WebPort = 70000
	sc.PrefsStore = "redis"
	sc.LogMode = "verbose"
	err := sc.Vaild()
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"TOKEN", "https PUBLIC_URL", "WEB_PORT", "STATS_API_URL", "REDIS_URL", "log mode"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %v", want, msg)
		}
	}
}

func TestVaildWebhookSecretGenerated(t *testing.T) {
	sc := svrcfg.Default()
	sc.Mode = "webhook"
	sc.Token = "123:abc"
	sc.PublicURL = "https://bot.example/"
	sc.StatsAPIURL = "http://stats:8000"
	sc.PrefsStore = "file"
	sc.PollMS = 10
	if err := sc.Vaild(); err != nil {
		t.Fatalf("Vaild: %v", err)
	}
	if len(sc.WebhookSecret) < 32 || strings.ContainsAny(sc.WebhookSecret, "+/=") {
		t.Fatalf("secret = %q", sc.WebhookSecret)
	}
	if sc.PublicURL != "https://bot.example" {
		t.Fatalf("trailing slash kept: %q", sc.PublicURL)
	}
	if sc.PrefsFile != svrcfg.DefaultPrefsFile {
		t.Fatalf("prefs file default = %q", sc.PrefsFile)
	}
	if sc.PollMS != svrcfg.MinPollMS {
		t.Fatalf("poll floor = %d", sc.PollMS)
	}
	if sc.Log == nil {
		t.Fatalf("logger should be filled")
	}
}
