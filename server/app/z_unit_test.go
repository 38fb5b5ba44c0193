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

package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/roulab/server/app"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.order = append(r.order, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func TestRunContextShutsDownInReverse(t *testing.T) {
	rec := &recorder{}
	a := app.New(app.WithShutdownTimeout(time.Second))
	a.Register("http", app.Blocker(func(ctx context.Context) error { rec.add("http"); return nil }))
	a.Register("bot", app.Blocker(func(ctx context.Context) error { rec.add("bot"); return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.RunContext(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("RunContext: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunContext did not return")
	}
	got := rec.list()
	if len(got) != 2 || got[0] != "bot" || got[1] != "http" {
		t.Fatalf("shutdown order = %v", got)
	}
}

func TestComponentErrorStopsApp(t *testing.T) {
	boom := errors.New("listen: address in use")
	stopped := make(chan struct{})
	a := app.New()
	a.Register("http", app.Func{RunFn: func() error { return boom }})
	a.Register("poller", app.Blocker(func(ctx context.Context) error { close(stopped); return nil }))

	err := a.RunContext(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	select {
	case <-stopped:
	default:
		t.Fatalf("other components must be shut down")
	}
}

func TestShutdownErrorsJoined(t *testing.T) {
	bad := errors.New("flush failed")
	a := app.New()
	a.Register("store", app.Blocker(func(ctx context.Context) error { return bad }))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.RunContext(ctx); !errors.Is(err, bad) {
		t.Fatalf("err = %v", err)
	}
}

func TestNoComponents(t *testing.T) {
	if err := app.New().RunContext(context.Background()); err == nil {
		t.Fatalf("expected error for empty app")
	}
}
