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

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/prefs/filestore"
	"github.com/zintix-labs/roulab/prefs/memstore"
	"github.com/zintix-labs/roulab/prefs/pgstore"
	"github.com/zintix-labs/roulab/prefs/redisstore"
	"github.com/zintix-labs/roulab/server/svrcfg"
)

// OpenPrefs 依 PREFS_STORE 開啟主題偏好後端；需要關閉連線的後端另外回傳 Closer。
func OpenPrefs(ctx context.Context, sCfg *svrcfg.SvrCfg) (prefs.Store, prefs.Closer, error) {
	switch sCfg.PrefsStore {
	case prefs.KindMemory, "":
		return memstore.New(), nil, nil
	case prefs.KindFile:
		s, err := filestore.Open(sCfg.PrefsFile)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case prefs.KindRedis:
		s, err := redisstore.New(ctx, sCfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case prefs.KindPostgres:
		s, err := pgstore.New(ctx, sCfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, errs.NewFatal("unknown prefs store: " + sCfg.PrefsStore)
	}
}
