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

package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs/pgstore"
	"github.com/zintix-labs/roulab/settings"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("ROULAB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ROULAB_TEST_DATABASE_URL not set, skipping integration test")
	}
	s, err := pgstore.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestThemeRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	user := "u-" + time.Now().Format("150405.000000000")

	got, err := s.Theme(ctx, user)
	if err != nil || got != settings.Dark {
		t.Fatalf("unknown user should be dark, got %q err=%v", got, err)
	}
	if err := s.SetTheme(ctx, user, settings.Light); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if got, _ = s.Theme(ctx, user); got != settings.Light {
		t.Fatalf("after set: %q", got)
	}
	if err := s.SetTheme(ctx, user, settings.Theme("neon")); err != nil {
		t.Fatalf("SetTheme unknown: %v", err)
	}
	if got, _ = s.Theme(ctx, user); got != settings.Dark {
		t.Fatalf("unknown theme should fall back to dark, got %q", got)
	}
}

func TestRejectsEmptyKey(t *testing.T) {
	s := openStore(t)
	if err := s.SetTheme(context.Background(), "  ", settings.Light); errs.Level(err) != errs.Warn {
		t.Fatalf("empty key should be Warn, got %v", err)
	}
}
