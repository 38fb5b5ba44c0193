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

// Package memstore provides an in-memory implementation of prefs.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/settings"
)

// Store holds themes in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	themes map[string]settings.Theme
}

func New() *Store {
	return &Store{themes: make(map[string]settings.Theme)}
}

// Seed 以既有資料建立（filestore 載入後使用）。
func Seed(m map[string]settings.Theme) *Store {
	s := New()
	for k, v := range m {
		s.themes[k] = settings.ParseTheme(string(v))
	}
	return s
}

func (s *Store) Theme(_ context.Context, userKey string) (settings.Theme, error) {
	if err := prefs.CheckKey(userKey); err != nil {
		return settings.Dark, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.themes[userKey]; ok {
		return t, nil
	}
	return settings.Dark, nil
}

func (s *Store) SetTheme(_ context.Context, userKey string, theme settings.Theme) error {
	if err := prefs.CheckKey(userKey); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes[userKey] = settings.ParseTheme(string(theme))
	return nil
}

// Snapshot returns a copy of all stored themes.
func (s *Store) Snapshot() map[string]settings.Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]settings.Theme, len(s.themes))
	for k, v := range s.themes {
		cp[k] = v
	}
	return cp
}
