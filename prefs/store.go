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

// Package prefs 保存每位使用者的顯示偏好（目前只有主題）。
//
// 後端可替換：memstore（開發用）、filestore（單機 JSON 檔）、redisstore、pgstore。
package prefs

import (
	"context"
	"strings"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/settings"
)

// Store 是偏好設定的持久化介面。未知使用者回傳 settings.Dark。
type Store interface {
	Theme(ctx context.Context, userKey string) (settings.Theme, error)
	SetTheme(ctx context.Context, userKey string, theme settings.Theme) error
}

// Closer 由需要釋放連線的後端實作。
type Closer interface {
	Close() error
}

const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindRedis    = "redis"
	KindPostgres = "postgres"
)

// Kinds 列出可用的後端名稱。
var Kinds = []string{KindMemory, KindFile, KindRedis, KindPostgres}

// ValidKind 檢查後端名稱。
func ValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// 使用者識別上限；超過視為無效輸入。
const maxKeyLen = 128

// CheckKey 驗證使用者識別（通常是 chat id）。
func CheckKey(userKey string) error {
	k := strings.TrimSpace(userKey)
	if k == "" {
		return errs.NewWarn("prefs: empty user key")
	}
	if len(k) > maxKeyLen {
		return errs.NewWarn("prefs: user key too long")
	}
	return nil
}
