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

// Package statsapi 是遠端統計服務的客戶端。
//
// 統計服務回傳的 JSON 視為不透明：這裡只讀取頁面需要的欄位，缺漏或型別不對時給零值，
// 不對聚合方式做任何假設。
package statsapi

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"
	"github.com/zintix-labs/roulab/highlight"
	"github.com/zintix-labs/roulab/wheel"
)

// Roll 是一筆已記錄的號碼與其標記（統計服務給的 emoji）。
type Roll struct {
	N    int    `json:"n" yaml:"n"`
	Mark string `json:"mark" yaml:"mark"`
}

// Triple 是長度通常為 3 的百分比陣列（docenas / filas）。
// 元素為 nil 代表該位置不是數字。
type Triple []*float64

// Values 轉成 highlight.Select 可用的輸入；非數字為 NaN（選擇器會視為 0）。
func (t Triple) Values() []float64 {
	out := make([]float64, len(t))
	for i, p := range t {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	return out
}

// At 回傳第 i 個值；越界或非數字時 ok=false。
func (t Triple) At(i int) (float64, bool) {
	if i < 0 || i >= len(t) || t[i] == nil {
		return 0, false
	}
	return *t[i], true
}

// Leaders 是這個陣列的高亮集合。
func (t Triple) Leaders() highlight.Set {
	return highlight.Select(t.Values())
}

// Percents 各項比例，單位為百分比。缺少的欄位為 nil。
type Percents struct {
	Rojo    *float64 `json:"rojo,omitempty" yaml:"rojo,omitempty"`
	Negro   *float64 `json:"negro,omitempty" yaml:"negro,omitempty"`
	Par     *float64 `json:"par,omitempty" yaml:"par,omitempty"`
	Impar   *float64 `json:"impar,omitempty" yaml:"impar,omitempty"`
	Bajos   *float64 `json:"bajos,omitempty" yaml:"bajos,omitempty"`
	Altos   *float64 `json:"altos,omitempty" yaml:"altos,omitempty"`
	Cero    *float64 `json:"cero,omitempty" yaml:"cero,omitempty"`
	Docenas Triple   `json:"docenas" yaml:"docenas"`
	Filas   Triple   `json:"filas" yaml:"filas"`
}

const (
	SourceWindow  = "window"
	SourceHistory = "history"
)

type Meta struct {
	Source         string `json:"source" yaml:"source"`
	WindowCapacity *int   `json:"window_capacity,omitempty" yaml:"window_capacity,omitempty"`
	HistTail       int    `json:"hist_tail" yaml:"hist_tail"`
}

// Snapshot 是某個 chat 在某一刻的統計結果。
type Snapshot struct {
	HasData       bool     `json:"has_data" yaml:"has_data"`
	Numbers       []Roll   `json:"numbers" yaml:"numbers"`
	Percents      Percents `json:"percents" yaml:"percents"`
	SinceLastZero int      `json:"since_last_0" yaml:"since_last_0"`
	Meta          Meta     `json:"meta" yaml:"meta"`
}

// Tag 是畫面是否需要重繪的廉價判斷：筆數|距上次 0。
func (s *Snapshot) Tag() string {
	if s == nil || !s.HasData {
		return "empty"
	}
	return fmt.Sprintf("%d|%d", len(s.Numbers), s.SinceLastZero)
}

// Capacity 回傳視窗容量；未知時 ok=false。
func (s *Snapshot) Capacity() (int, bool) {
	if s == nil || s.Meta.WindowCapacity == nil {
		return 0, false
	}
	return *s.Meta.WindowCapacity, true
}

// UsesHistory 回報統計來源是否為歷史尾端。
func (s *Snapshot) UsesHistory() bool {
	return s != nil && s.Meta.Source == SourceHistory
}

// Highlights 是 docenas / filas 的高亮索引，供前端或 CLI 使用。
type Highlights struct {
	Docenas highlight.Set `json:"docenas" yaml:"docenas"`
	Filas   highlight.Set `json:"filas" yaml:"filas"`
}

func (s *Snapshot) Highlights() Highlights {
	if s == nil {
		return Highlights{Docenas: highlight.Set{}, Filas: highlight.Set{}}
	}
	h := Highlights{Docenas: s.Percents.Docenas.Leaders(), Filas: s.Percents.Filas.Leaders()}
	if h.Docenas == nil {
		h.Docenas = highlight.Set{}
	}
	if h.Filas == nil {
		h.Filas = highlight.Set{}
	}
	return h
}

// ============================================================
// ** 解碼 **
// ============================================================

// ParseSnapshot 解析統計服務的回應本體（{"stats": {...}, "window": cap}）。
func ParseSnapshot(raw []byte) *Snapshot {
	root := gjson.ParseBytes(raw)
	return fromResult(root.Get("stats"), root.Get("window"))
}

func fromResult(st, window gjson.Result) *Snapshot {
	s := &Snapshot{
		Numbers:  []Roll{},
		Percents: Percents{Docenas: zeroTriple(), Filas: zeroTriple()},
		Meta:     Meta{Source: SourceWindow},
	}
	if !st.IsObject() {
		if window.Type == gjson.Number {
			c := int(window.Int())
			s.Meta.WindowCapacity = &c
		}
		return s
	}
	s.HasData = true

	st.Get("numbers").ForEach(func(_, item gjson.Result) bool {
		if r, ok := rollOf(item); ok {
			s.Numbers = append(s.Numbers, r)
		}
		return true
	})

	p := st.Get("percents")
	s.Percents.Rojo = pct(p.Get("rojo"))
	s.Percents.Negro = pct(p.Get("negro"))
	s.Percents.Par = pct(p.Get("par"))
	s.Percents.Impar = pct(p.Get("impar"))
	s.Percents.Bajos = pct(p.Get("bajos"))
	s.Percents.Altos = pct(p.Get("altos"))
	s.Percents.Cero = pct(p.Get("cero"))
	if t, ok := triple(p.Get("docenas")); ok {
		s.Percents.Docenas = t
	}
	if t, ok := triple(p.Get("filas")); ok {
		s.Percents.Filas = t
	}

	if r := st.Get("since_last_0"); r.Type == gjson.Number {
		s.SinceLastZero = int(r.Int())
	}

	m := st.Get("_meta")
	if src := m.Get("source"); src.Type == gjson.String && src.Str == SourceHistory {
		s.Meta.Source = SourceHistory
	}
	if r := m.Get("hist_tail"); r.Type == gjson.Number {
		s.Meta.HistTail = int(r.Int())
	}
	capRes := m.Get("window_capacity")
	if capRes.Type != gjson.Number {
		capRes = window
	}
	if capRes.Type == gjson.Number {
		c := int(capRes.Int())
		s.Meta.WindowCapacity = &c
	}
	return s
}

// rollOf 接受 [n, mark] 或單純的 n。
func rollOf(item gjson.Result) (Roll, bool) {
	var n gjson.Result
	mark := ""
	switch {
	case item.IsArray():
		n = item.Get("0")
		if m := item.Get("1"); m.Type == gjson.String {
			mark = m.Str
		}
	default:
		n = item
	}
	if n.Type != gjson.Number {
		return Roll{}, false
	}
	v := int(n.Int())
	if mark == "" && wheel.Valid(v) {
		mark = wheel.ColorOf(v).Emoji()
	}
	return Roll{N: v, Mark: mark}, true
}

func pct(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	v := r.Num
	return &v
}

func triple(r gjson.Result) (Triple, bool) {
	if !r.IsArray() {
		return nil, false
	}
	arr := r.Array()
	t := make(Triple, len(arr))
	for i, e := range arr {
		t[i] = pct(e)
	}
	return t, true
}

func zeroTriple() Triple {
	t := make(Triple, 3)
	for i := range t {
		v := 0.0
		t[i] = &v
	}
	return t
}
