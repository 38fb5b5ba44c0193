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

// Package settings 是設定表單的模型：把頁面送來的原始輸入正規化成可以送往統計服務的設定，
// 並判斷與目前設定相比是否有變更（決定「儲存」按鈕是否可按）。
package settings

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	DefaultWindow     = 15
	DefaultHistoryCap = 20

	MaxWindow     = 5000
	MaxHistoryCap = 1000
	MaxHistTail   = 5000
)

// Settings 是統計服務端每個 chat 的聚合設定。
//   - Window：滑動視窗容量
//   - HistoryCap：頁面最多顯示幾筆
//   - HistTail：0 代表使用視窗；>0 代表固定使用歷史的最後 K 筆
type Settings struct {
	Window     int `json:"window" yaml:"window"`
	HistoryCap int `json:"history_cap" yaml:"history_cap"`
	HistTail   int `json:"hist_tail" yaml:"hist_tail"`
}

func Default() Settings {
	return Settings{Window: DefaultWindow, HistoryCap: DefaultHistoryCap}
}

// UseHistory 回報目前是否以歷史尾端作為統計來源。
func (s Settings) UseHistory() bool { return s.HistTail > 0 }

// Changed 只比較會送往遠端的三個欄位；主題不算。
func Changed(a, b Settings) bool {
	return a.Window != b.Window || a.HistoryCap != b.HistoryCap || a.HistTail != b.HistTail
}

// Form 是頁面送來的原始輸入。數值欄位缺省或無法解析時為 NaN。
type Form struct {
	Window     float64
	HistoryCap float64
	HistTail   float64
	UseHistory bool
	Theme      string
}

// FormFromJSON 以寬鬆方式讀取表單：數字或數字字串都接受，其餘視為 NaN。
//
// 來源選擇讀 "source"（window|history）；未提供時以 hist_tail > 0 推斷。
func FormFromJSON(raw []byte) Form {
	f := Form{
		Window:     number(gjson.GetBytes(raw, "window")),
		HistoryCap: number(gjson.GetBytes(raw, "history_cap")),
		HistTail:   number(gjson.GetBytes(raw, "hist_tail")),
		Theme:      gjson.GetBytes(raw, "theme").String(),
	}
	switch src := gjson.GetBytes(raw, "source"); {
	case src.Exists():
		f.UseHistory = strings.EqualFold(src.String(), "history")
	default:
		f.UseHistory = finite(f.HistTail) && f.HistTail > 0
	}
	return f
}

func number(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Num
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if s == "" {
			return 0
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return v
	default:
		return math.NaN()
	}
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Normalize 把表單轉成設定：
//   - window 非有限或 <= 0 沿用目前值，其餘取整數且 >= 1
//   - 使用歷史來源時 hist_tail = max(1, floor(tail))，非有限值視為 1；使用視窗時為 0
//   - history_cap 有限且 > 0 時取整數，否則回到 20
//
// 上限依統計服務接受的範圍截斷。
func Normalize(f Form, cur Settings) Settings {
	out := cur

	w := f.Window
	if !finite(w) || w <= 0 {
		w = float64(cur.Window)
	}
	out.Window = clamp(int(math.Floor(w)), 1, MaxWindow)

	if f.UseHistory {
		tail := f.HistTail
		if !finite(tail) {
			tail = 1
		}
		out.HistTail = clamp(int(math.Floor(tail)), 1, MaxHistTail)
	} else {
		out.HistTail = 0
	}

	if c := f.HistoryCap; finite(c) && c > 0 {
		out.HistoryCap = clamp(int(math.Floor(c)), 1, MaxHistoryCap)
	} else {
		out.HistoryCap = DefaultHistoryCap
	}
	return out
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// FromRemote 讀取統計服務回傳的設定；欄位缺失或型別不對時沿用 cur（hist_tail 則回到 0）。
func FromRemote(raw []byte, cur Settings) Settings {
	out := cur
	if r := gjson.GetBytes(raw, "window"); r.Type == gjson.Number && finite(r.Num) {
		out.Window = int(r.Num)
	}
	if r := gjson.GetBytes(raw, "history_cap"); r.Type == gjson.Number && finite(r.Num) {
		out.HistoryCap = int(r.Num)
	} else if out.HistoryCap <= 0 {
		out.HistoryCap = DefaultHistoryCap
	}
	if r := gjson.GetBytes(raw, "hist_tail"); r.Type == gjson.Number && finite(r.Num) {
		out.HistTail = int(r.Num)
	} else {
		out.HistTail = 0
	}
	return out
}

// Theme 只有 light / dark 兩種，預設 dark。
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// ParseTheme 將任意字串正規化成合法主題。
func ParseTheme(s string) Theme {
	if strings.EqualFold(strings.TrimSpace(s), string(Light)) {
		return Light
	}
	return Dark
}
