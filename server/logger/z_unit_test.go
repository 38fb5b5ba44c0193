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

package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/zintix-labs/roulab/server/logger"
)

func TestParseLogMode(t *testing.T) {
	cases := map[string]logger.LogMode{
		"":        logger.ModeDev,
		"DEV":     logger.ModeDev,
		"prod":    logger.ModeProd,
		" json ":  logger.ModeProd,
		"silence": logger.ModeSilence,
		"off":     logger.ModeSilence,
	}
	for in, want := range cases {
		got, err := logger.ParseLogMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseLogMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := logger.ParseLogMode("loud"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

// syncBuffer 讓背景 goroutine 寫入時可以安全讀取。
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestAsyncHandlerDrainsOnClose(t *testing.T) {
	var out syncBuffer
	ah := logger.NewAsyncHandler(slog.NewTextHandler(&out, nil), 64)
	log := slog.New(ah).With("component", "test")

	for range 10 {
		log.Info("hello")
	}
	ah.Close()
	ah.Close()

	if n := strings.Count(out.String(), "msg=hello"); n != 10 {
		t.Fatalf("expected 10 records after Close, got %d:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "component=test") {
		t.Fatalf("WithAttrs lost")
	}

	log.Info("late")
	if ah.Dropped() != 1 {
		t.Fatalf("records after Close should be counted as dropped, got %d", ah.Dropped())
	}
}

type blockingHandler struct {
	slog.Handler
	release chan struct{}
}

func (b *blockingHandler) Handle(ctx context.Context, r slog.Record) error {
	<-b.release
	return nil
}

func TestAsyncHandlerDropsWhenFull(t *testing.T) {
	bh := &blockingHandler{Handler: slog.NewTextHandler(&bytes.Buffer{}, nil), release: make(chan struct{})}
	ah := logger.NewAsyncHandler(bh, 1)
	log := slog.New(ah)

	for range 20 {
		log.Info("x")
	}
	if ah.Dropped() == 0 {
		t.Fatalf("full queue should drop records")
	}
	close(bh.release)
	ah.Close()
}

func TestNewDiscard(t *testing.T) {
	if logger.NewDiscard().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should not be enabled")
	}
}
