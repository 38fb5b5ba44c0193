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

package wheel

import "testing"

func TestColorOf(t *testing.T) {
	reds, blacks := 0, 0
	for n := 1; n <= Max; n++ {
		switch ColorOf(n) {
		case Red:
			reds++
		case Black:
			blacks++
		default:
			t.Fatalf("%d should not be green", n)
		}
	}
	if reds != 18 || blacks != 18 {
		t.Fatalf("expected 18/18, got %d/%d", reds, blacks)
	}
	if ColorOf(0) != Green || ColorOf(37) != Green || ColorOf(-1) != Green {
		t.Fatalf("zero and out of range should be green")
	}
	if ColorOf(19) != Red || ColorOf(20) != Black {
		t.Fatalf("unexpected colours around 19/20")
	}
}

func TestGrid(t *testing.T) {
	g := Grid()
	if len(g) != 37 {
		t.Fatalf("expected 37 cells, got %d", len(g))
	}
	if g[0].N != 0 || g[0].Class != "zero" {
		t.Fatalf("first cell should be zero: %+v", g[0])
	}
	if g[1].Class != "red" || g[2].Class != "black" {
		t.Fatalf("unexpected classes: %+v %+v", g[1], g[2])
	}
}

func TestEmoji(t *testing.T) {
	if Red.Emoji() != "🔴" || Black.Emoji() != "⚫" || Green.Emoji() != "🟢" {
		t.Fatalf("unexpected emoji mapping")
	}
	if !Valid(0) || !Valid(36) || Valid(37) || Valid(-1) {
		t.Fatalf("unexpected Valid bounds")
	}
}
