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

// Package filestore 把主題偏好存成單一 JSON 檔。
//
// 每次寫入都先寫暫存檔再 rename，避免中途當機留下半個檔案。
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs/memstore"
	"github.com/zintix-labs/roulab/settings"
)

type Store struct {
	path string
	wmu  sync.Mutex // 序列化寫檔
	mem  *memstore.Store
}

// Open 讀取既有檔案；檔案不存在時從空白開始。
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errs.NewWarn("filestore: empty path")
	}
	data := map[string]settings.Theme{}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, errs.Wrap(err, "filestore: read "+path)
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, errs.Wrap(err, "filestore: decode "+path)
		}
	}
	return &Store{path: path, mem: memstore.Seed(data)}, nil
}

func (s *Store) Theme(ctx context.Context, userKey string) (settings.Theme, error) {
	return s.mem.Theme(ctx, userKey)
}

func (s *Store) SetTheme(ctx context.Context, userKey string, theme settings.Theme) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if cur, err := s.mem.Theme(ctx, userKey); err != nil {
		return err
	} else if cur == settings.ParseTheme(string(theme)) {
		if _, statErr := os.Stat(s.path); statErr == nil {
			return nil
		}
	}
	if err := s.mem.SetTheme(ctx, userKey, theme); err != nil {
		return err
	}
	return s.flush()
}

func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.mem.Snapshot(), "", "  ")
	if err != nil {
		return errs.Wrap(err, "filestore: encode")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "filestore: mkdir")
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*.tmp")
	if err != nil {
		return errs.Wrap(err, "filestore: create temp")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errs.Wrap(err, "filestore: write temp")
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(err, "filestore: close temp")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errs.Wrap(err, "filestore: rename")
	}
	return nil
}
