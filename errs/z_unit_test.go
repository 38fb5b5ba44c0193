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

package errs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWrapKeepsLevel(t *testing.T) {
	inner := NewWarn("n out of range")
	w := Wrap(inner, "roll failed")
	if w.ErrLv != Warn {
		t.Fatalf("expected warn, got %s", ErrLv(w.ErrLv))
	}
	if !errors.Is(w, inner) {
		t.Fatalf("wrapped error should unwrap to inner")
	}
}

func TestWrapForeignIsFatal(t *testing.T) {
	w := Wrap(context.DeadlineExceeded, "stats call")
	if w.ErrLv != Fatal {
		t.Fatalf("expected fatal, got %s", ErrLv(w.ErrLv))
	}
	if !errors.Is(w, context.DeadlineExceeded) {
		t.Fatalf("deadline should survive wrapping")
	}
}

func TestLevel(t *testing.T) {
	if Level(nil) != None {
		t.Fatalf("nil should be None")
	}
	if Level(errors.New("x")) != Fatal {
		t.Fatalf("foreign errors are fatal")
	}
	if Level(WrapAs(Upstream, errors.New("x"), "bad gateway")) != Upstream {
		t.Fatalf("WrapAs should force the level")
	}
}

func TestErrorString(t *testing.T) {
	e := NewWithExtra(Auth, "invalid init data", "hash mismatch")
	s := e.Error()
	if !strings.Contains(s, "errlv=auth") || !strings.Contains(s, "hash mismatch") {
		t.Fatalf("unexpected error string: %q", s)
	}
	if e.Public() != "invalid init data" {
		t.Fatalf("unexpected public message: %q", e.Public())
	}
}
