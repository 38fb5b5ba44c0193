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

// Package pgstore provides a PostgreSQL implementation of prefs.Store.
package pgstore

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/prefs"
	"github.com/zintix-labs/roulab/settings"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/zintix-labs/roulab/prefs/pgstore")

//go:embed schema.sql
var schema string

// Store persists theme preferences in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL, applies the schema, and returns a ready Store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errs.Wrap(err, "pgstore: pgxpool.New")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrap(err, "pgstore: ping")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errs.Wrap(err, "pgstore: apply schema")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Theme(ctx context.Context, userKey string) (settings.Theme, error) {
	if err := prefs.CheckKey(userKey); err != nil {
		return settings.Dark, err
	}
	ctx, span := tracer.Start(ctx, "pgstore.Theme", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var theme string
	err := s.pool.QueryRow(ctx, `SELECT theme FROM user_prefs WHERE user_key = $1`, userKey).Scan(&theme)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings.Dark, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return settings.Dark, errs.Wrap(err, "pgstore: select theme")
	}
	return settings.ParseTheme(theme), nil
}

func (s *Store) SetTheme(ctx context.Context, userKey string, theme settings.Theme) error {
	if err := prefs.CheckKey(userKey); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "pgstore.SetTheme", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	const q = `INSERT INTO user_prefs (user_key, theme, updated_at) VALUES ($1, $2, now())
ON CONFLICT (user_key) DO UPDATE SET theme = EXCLUDED.theme, updated_at = now()`
	if _, err := s.pool.Exec(ctx, q, userKey, string(settings.ParseTheme(string(theme)))); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errs.Wrap(err, "pgstore: upsert theme")
	}
	return nil
}
