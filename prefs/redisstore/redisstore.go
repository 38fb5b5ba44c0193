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

// Package redisstore provides a Redis implementation of prefs.Store.
package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/zintix-labs/roulab/prefs/redisstore")

const keyPrefix = "roulab:theme:"

// Store 以 roulab:theme:<userKey> 為鍵保存主題。
type Store struct {
	rdb redis.UniversalClient
}

// New 解析 redis:// 網址、確認連線後回傳 Store。
func New(ctx context.Context, redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errs.Wrap(err, "redisstore: parse url")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.Wrap(err, "redisstore: ping")
	}
	return &Store{rdb: rdb}, nil
}

// NewWithClient 使用既有的客戶端（測試或共用連線池）。
func NewWithClient(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) Close() error { return s.rdb.Close() }

func Key(userKey string) string { return keyPrefix + userKey }

func (s *Store) Theme(ctx context.Context, userKey string) (settings.Theme, error) {
	if err := prefs.CheckKey(userKey); err != nil {
		return settings.Dark, err
	}
	ctx, span := tracer.Start(ctx, "redisstore.Theme", trace.WithAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation.name", "GET"),
	))
	defer span.End()

	v, err := s.rdb.Get(ctx, Key(userKey)).Result()
	if errors.Is(err, redis.Nil) {
		return settings.Dark, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return settings.Dark, errs.Wrap(err, "redisstore: get")
	}
	return settings.ParseTheme(v), nil
}

func (s *Store) SetTheme(ctx context.Context, userKey string, theme settings.Theme) error {
	if err := prefs.CheckKey(userKey); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "redisstore.SetTheme", trace.WithAttributes(
		attribute.String("db.system", "redis"),
		attribute.String("db.operation.name", "SET"),
	))
	defer span.End()

	if err := s.rdb.Set(ctx, Key(userKey), string(settings.ParseTheme(string(theme))), 0).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errs.Wrap(err, "redisstore: set")
	}
	return nil
}
