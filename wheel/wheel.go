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

// Package wheel 描述歐式輪盤（單零，0..36）的版面：顏色與數字格。
package wheel

const (
	Min = 0
	Max = 36
)

type Color uint8

const (
	Green Color = iota
	Red
	Black
)

var red = [Max + 1]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Valid 回報 n 是否為輪盤上的號碼。
func Valid(n int) bool { return n >= Min && n <= Max }

// ColorOf 回傳號碼顏色；0 與範圍外一律為 Green。
func ColorOf(n int) Color {
	if n <= 0 || n > Max {
		return Green
	}
	if red[n] {
		return Red
	}
	return Black
}

func (c Color) String() string {
	switch c {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return "green"
	}
}

// Emoji 與遠端服務在 numbers 內附帶的符號一致。
func (c Color) Emoji() string {
	switch c {
	case Red:
		return "🔴"
	case Black:
		return "⚫"
	default:
		return "🟢"
	}
}

// Class 是數字格在頁面上的 CSS class。
func (c Color) Class() string {
	if c == Green {
		return "zero"
	}
	return c.String()
}

// Cell 為數字選擇格中的一格。
type Cell struct {
	N     int
	Class string
}

// Grid 回傳 0..36 依顯示順序排列的數字格（0 在最前）。
func Grid() []Cell {
	out := make([]Cell, 0, Max+1)
	for n := Min; n <= Max; n++ {
		out = append(out, Cell{N: n, Class: ColorOf(n).Class()})
	}
	return out
}
