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

package highlight_test

import (
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/zintix-labs/roulab/highlight"
)

func sorted(s highlight.Set) []int {
	out := slices.Clone([]int(s))
	slices.Sort(out)
	return out
}

func TestSelectScenarios(t *testing.T) {
	cases := []struct {
		name string
		in   []float64
		want []int
	}{
		{"all equal", []float64{10, 10, 10}, nil},
		{"all zero", []float64{0, 0, 0}, nil},
		{"perfect leader", []float64{100, 0, 0}, []int{0}},
		{"perfect leader with distinct others", []float64{0, 100, 0}, []int{1}},
		{"tie for lead first two", []float64{50, 50, 10}, []int{0, 1}},
		{"tie for lead outer", []float64{40, 20, 40}, []int{0, 2}},
		{"tie for lead at 100", []float64{100, 100, 0}, []int{0, 1}},
		{"leader and runner-up", []float64{70, 30, 10}, []int{0, 1}},
		{"runner-up last", []float64{10, 70, 20}, []int{1, 2}},
		{"others tie", []float64{70, 20, 20}, []int{0}},
		{"nan coerced", []float64{math.NaN(), 40, 10}, []int{1, 2}},
		{"inf coerced", []float64{math.Inf(1), 40, math.Inf(-1)}, []int{1}},
		{"negative tolerated", []float64{-5, -1, -3}, []int{1, 2}},
		{"over 100 tolerated", []float64{120, 10, 5}, []int{0, 1}},
		{"length two", []float64{1, 2}, nil},
		{"length four", []float64{1, 2, 3, 4}, nil},
		{"empty", nil, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := sorted(highlight.Select(c.in))
			if len(got) != len(c.want) || (len(got) > 0 && !slices.Equal(got, c.want)) {
				t.Fatalf("Select(%v) = %v, want %v", c.in, got, c.want)
			}
		})
	}
}

func TestSelectBounds(t *testing.T) {
	vals := []float64{0, 12.5, 33.3, 50, 66.7, 100, math.NaN()}
	for _, a := range vals {
		for _, b := range vals {
			for _, c := range vals {
				in := []float64{a, b, c}
				got := highlight.Select(in)
				if got.Len() > 2 {
					t.Fatalf("Select(%v) returned %d indices", in, got.Len())
				}
				for _, i := range got {
					if i < 0 || i >= 3 {
						t.Fatalf("Select(%v) index out of range: %d", in, i)
					}
				}
				again := highlight.Select(in)
				if !slices.Equal(sorted(got), sorted(again)) {
					t.Fatalf("Select(%v) not idempotent: %v vs %v", in, got, again)
				}
			}
		}
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	in := []float64{math.NaN(), 40, 10}
	_ = highlight.Select(in)
	if !math.IsNaN(in[0]) {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestSelectConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				got := highlight.Select([]float64{70, 30, 10})
				if !got.Has(0) || !got.Has(1) || got.Has(2) {
					t.Errorf("unexpected set: %v", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestHot(t *testing.T) {
	if got := highlight.Hot([]float64{0, 0}); got.Len() != 0 {
		t.Fatalf("no data should not be hot: %v", got)
	}
	if got := highlight.Hot([]float64{40, 60}); !got.Has(1) || got.Has(0) {
		t.Fatalf("unexpected hot set: %v", got)
	}
	if got := highlight.Hot([]float64{50, 50}); !got.Has(0) || !got.Has(1) {
		t.Fatalf("tie should light both: %v", got)
	}
	if got := highlight.Hot([]float64{math.NaN(), 3}); !got.Has(1) || got.Has(0) {
		t.Fatalf("nan should count as zero: %v", got)
	}
}
