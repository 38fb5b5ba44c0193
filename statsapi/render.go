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

package statsapi

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var lang language.Tag = language.Spanish

// Render 定義快照的輸出行為
type Render interface {
	Write(w io.Writer, s *Snapshot) error
}

// RenderFor 依名稱挑選輸出格式：table（預設）/ json / yaml。
func RenderFor(format string) (Render, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "table":
		return &TableRender{}, nil
	case "json":
		return &JsonRender{}, nil
	case "yaml", "yml":
		return &YAMLRender{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// Envelope 是輸出用的外層結構，附上高亮與 tag（CLI 與 /api/stats 共用）。
type Envelope struct {
	Stats      *Snapshot  `json:"stats" yaml:"stats"`
	Highlights Highlights `json:"highlights" yaml:"highlights"`
	Tag        string     `json:"tag" yaml:"tag"`
}

func Wrap(s *Snapshot) *Envelope {
	return &Envelope{Stats: s, Highlights: s.Highlights(), Tag: s.Tag()}
}

// Json渲染
type JsonRender struct{}

func (jr *JsonRender) Write(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Wrap(s))
}

// YAML渲染
type YAMLRender struct{}

func (yr *YAMLRender) Write(w io.Writer, s *Snapshot) error {
	// 最內層的一維陣列（numbers 的每一筆除外，它是 mapping）輸出成 flow style
	return forceReadableList(w, Wrap(s))
}

func forceReadableList[T any](w io.Writer, t *T) error {
	var node yaml.Node
	if err := node.Encode(t); err != nil {
		return err
	}
	styleReadableSequences(&node)

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(&node)
}

// styleReadableSequences：只含純量的 sequence 用 [..]；含 mapping 或子 sequence 的保持展開。
func styleReadableSequences(n *yaml.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.DocumentNode, yaml.MappingNode:
		for _, c := range n.Content {
			styleReadableSequences(c)
		}
	case yaml.SequenceNode:
		flat := true
		for _, c := range n.Content {
			if c != nil && c.Kind != yaml.ScalarNode {
				flat = false
			}
			styleReadableSequences(c)
		}
		if flat {
			n.Style = yaml.FlowStyle
		}
	}
}

// TableRender 終端機表格
type TableRender struct{}

func (tr *TableRender) Write(w io.Writer, s *Snapshot) error {
	_, err := io.WriteString(w, s.table())
	return err
}

// StdOut 直接印到標準輸出
func (s *Snapshot) StdOut() {
	fmt.Println(s.table())
}

// ============================================================
// ** 內部方法 **
// ============================================================

func (s *Snapshot) table() string {
	p := message.NewPrinter(lang)
	if s == nil || !s.HasData {
		return fmtTable("Estadísticas", []string{"Estado"}, map[string]string{"Estado": "No hay datos aún."})
	}

	rolls := make([]string, 0, len(s.Numbers))
	for _, r := range s.Numbers {
		rolls = append(rolls, fmt.Sprintf("%d%s", r.N, r.Mark))
	}

	var source string
	if s.UsesHistory() {
		source = p.Sprintf("Historial (K=%d) — %d tiradas", s.Meta.HistTail, len(s.Numbers))
	} else if c, ok := s.Capacity(); ok {
		source = p.Sprintf("Ventana (%d / %d)", len(s.Numbers), c)
	} else {
		source = p.Sprintf("Ventana (%d / -)", len(s.Numbers))
	}

	hl := s.Highlights()
	pc := s.Percents
	msg := map[string]string{
		"Fuente":         source,
		"Desde último 0": p.Sprintf("%d", s.SinceLastZero),
		"Tiradas":        strings.Join(rolls, " "),
		"Rojo / Negro":   FmtPct(pc.Rojo) + " / " + FmtPct(pc.Negro),
		"Par / Impar":    FmtPct(pc.Par) + " / " + FmtPct(pc.Impar),
		"1-18 / 19-36":   FmtPct(pc.Bajos) + " / " + FmtPct(pc.Altos),
		"Cero":           FmtPct(pc.Cero),
		"Docenas":        fmtTriple(pc.Docenas, hl.Docenas.Has),
		"Filas":          fmtTriple(pc.Filas, hl.Filas.Has),
	}
	keys := []string{"Fuente", "Desde último 0", "Tiradas", "Rojo / Negro", "Par / Impar", "1-18 / 19-36", "Cero", "Docenas", "Filas"}
	return fmtTable("Estadísticas", keys, msg)
}

// fmtTriple 以 * 標出高亮位置。
func fmtTriple(t Triple, hit func(int) bool) string {
	parts := make([]string, 3)
	for i := range parts {
		v, ok := t.At(i)
		s := "-"
		if ok {
			s = FmtPct(&v)
		}
		if hit(i) {
			s = "*" + s
		}
		parts[i] = s
	}
	return strings.Join(parts, "  ")
}

// FmtPct 一位小數加 %；nil 顯示 -。
func FmtPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	maxKeyLen := runewidth.StringWidth(title)
	maxValLen := 0
	for k, m := range msg {
		maxKeyLen = max(maxKeyLen, runewidth.StringWidth(k))
		maxValLen = max(maxValLen, runewidth.StringWidth(m))
	}
	maxKeyLen += 2
	maxValLen += 2

	var b strings.Builder
	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	inner := maxKeyLen + maxValLen + 1
	left := (inner - runewidth.StringWidth(title)) / 2
	right := inner - runewidth.StringWidth(title) - left

	b.WriteString("+" + strings.Repeat("-", inner) + "+\n")
	b.WriteString("|" + blank(left) + title + blank(right) + "|\n")
	b.WriteString(divider)
	for _, k := range keys {
		v := msg[k]
		b.WriteString("| " + k + blank(maxKeyLen-2-runewidth.StringWidth(k)) + " | " + v + blank(maxValLen-2-runewidth.StringWidth(v)) + " |\n")
	}
	b.WriteString(divider)
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
