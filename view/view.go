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

// Package view 在伺服器端產生統計面板的 HTML。
//
// 面板由 Snapshot 建出純資料的 Panel，再交給 html/template；
// 高亮規則：兩欄區塊以最大值標 hot（最大值需 > 0，Cero 不標），
// Docenas / Filas 使用 highlight.Select 標 hit。
package view

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/zintix-labs/roulab/highlight"
	"github.com/zintix-labs/roulab/settings"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/wheel"
)

//go:embed templates/*.html
var tplFS embed.FS

//go:embed static
var staticFS embed.FS

var tpl = template.Must(template.New("view").ParseFS(tplFS, "templates/*.html"))

// Static 回傳頁面需要的靜態檔（app.js / app.css），根目錄即 static/。
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

var (
	docenasLabels = [3]string{"1–12", "13–24", "25–36"}
	filasLabels   = [3]string{"Superior", "Central", "Inferior"}
)

// Metric 是兩欄區塊中的一張卡片。
type Metric struct {
	Dot   string // red / black；空字串不畫
	Label string
	Value string
	Hot   bool
}

type Section struct {
	Title   string
	Metrics []Metric
}

// Cell 是 Docenas / Filas 的一格。Width 只用於 Filas 的長條（0..100）。
type Cell struct {
	Label string
	Value string
	Width string
	Hit   bool
}

type Pill struct {
	N    int
	Mark string
}

// Panel 是面板的全部顯示資料。
type Panel struct {
	HasData       bool
	Source        string
	SinceLastZero int
	RollsTitle    string
	Rolls         []Pill
	Pairs         []Section
	Docenas       []Cell
	Filas         []Cell
}

// Build 把快照轉成面板資料。nil 或沒有資料時 HasData=false。
func Build(s *statsapi.Snapshot) Panel {
	if s == nil || !s.HasData {
		return Panel{}
	}
	p := Panel{HasData: true, SinceLastZero: s.SinceLastZero}

	n := len(s.Numbers)
	if s.UsesHistory() {
		p.Source = "Historial (K=" + strconv.Itoa(s.Meta.HistTail) + ") — " + strconv.Itoa(n) + " tiradas"
		p.RollsTitle = "🎰 Tiradas (historial completa)"
	} else {
		c := "-"
		if v, ok := s.Capacity(); ok {
			c = strconv.Itoa(v)
		}
		p.Source = "Ventana (" + strconv.Itoa(n) + " / " + c + ")"
		p.RollsTitle = "🎰 Tiradas (ventana completa)"
	}
	for _, r := range s.Numbers {
		p.Rolls = append(p.Rolls, Pill{N: r.N, Mark: r.Mark})
	}

	pc := s.Percents
	p.Pairs = []Section{
		twoCol("🎨 Colores", true,
			Metric{Dot: "red", Label: "Rojo", Value: statsapi.FmtPct(pc.Rojo)},
			Metric{Dot: "black", Label: "Negro", Value: statsapi.FmtPct(pc.Negro)}),
		twoCol("🔢 Paridad", true,
			Metric{Label: "Par", Value: statsapi.FmtPct(pc.Par)},
			Metric{Label: "Impar", Value: statsapi.FmtPct(pc.Impar)}),
		twoCol("📏 Rangos", true,
			Metric{Label: "⬇ 1–18", Value: statsapi.FmtPct(pc.Bajos)},
			Metric{Label: "⬆ 19–36", Value: statsapi.FmtPct(pc.Altos)}),
		twoCol("🟢 Cero", false,
			Metric{Label: "0", Value: statsapi.FmtPct(pc.Cero)}),
	}
	p.Docenas = triplet(pc.Docenas, docenasLabels, false)
	p.Filas = triplet(pc.Filas, filasLabels, true)
	return p
}

// twoCol 以「顯示出來的數值」比較，四捨五入後相同的兩格會一起標 hot。
func twoCol(title string, highlightOn bool, items ...Metric) Section {
	if highlightOn {
		nums := make([]float64, len(items))
		for i, m := range items {
			nums[i] = shownValue(m.Value)
		}
		hot := highlight.Hot(nums)
		for i := range items {
			items[i].Hot = hot.Has(i)
		}
	}
	return Section{Title: title, Metrics: items}
}

func shownValue(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.Replace(s, ",", ".", 1), "%"), 64)
	if err != nil {
		return 0
	}
	return v
}

func triplet(t statsapi.Triple, labels [3]string, bars bool) []Cell {
	top := t.Leaders()
	out := make([]Cell, len(labels))
	for i, lab := range labels {
		c := Cell{Label: lab, Value: "-", Hit: top.Has(i)}
		v, ok := t.At(i)
		if ok {
			c.Value = statsapi.FmtPct(&v)
		}
		if bars {
			c.Width = strconv.FormatFloat(min(max(v, 0), 100), 'f', -1, 64)
		}
		out[i] = c
	}
	return out
}

// ============================================================
// ** 輸出 **
// ============================================================

// Fragment 寫出面板片段（#stats 的內容）。
func Fragment(w io.Writer, s *statsapi.Snapshot) error {
	return tpl.ExecuteTemplate(w, "panel.html", Build(s))
}

// FragmentBytes 與 Fragment 相同，回傳位元組（供 ETag 與 JSON 回應使用）。
func FragmentBytes(s *statsapi.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Fragment(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WindowPresets 是設定頁的快捷視窗大小。
var WindowPresets = []int{10, 15, 20, 30, 50, 100}

// PageData 是整頁模板的輸入。
type PageData struct {
	ChatID   string
	Theme    settings.Theme
	Settings settings.Settings
	PollMS   int
	Live     bool
	Presets  []int
	Grid     []wheel.Cell
	Panel    Panel
}

// Page 寫出完整頁面；面板先在伺服器端渲染一次，頁面載入即有內容。
func Page(w io.Writer, d PageData, s *statsapi.Snapshot) error {
	d.Theme = settings.ParseTheme(string(d.Theme))
	if d.Presets == nil {
		d.Presets = WindowPresets
	}
	if d.Grid == nil {
		d.Grid = wheel.Grid()
	}
	if d.PollMS <= 0 {
		d.PollMS = 1500
	}
	d.Panel = Build(s)
	return tpl.ExecuteTemplate(w, "index.html", d)
}
