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

// Package highlight 決定統計卡片中哪些位置要被標成「領先（leading）」。
//
// 三格（Triple）規則：
//   - 非有限值（NaN / ±Inf）一律視為 0。
//   - 三個值全部相同：不標示。
//   - 最大值並列：依索引由小到大取前兩個。
//   - 單一領先者：若為 100 只標領先者；其餘兩格相等也只標領先者；否則再標較大的那一格（runner-up）。
//
// 回傳的 Set 只用於一次性的渲染判斷（membership test），不保存任何狀態，可在任意 goroutine 併發呼叫。
package highlight

import "math"

// Set 是被標示的索引集合，最多兩個元素，順序不具語意。
type Set []int

// Has 回報索引 i 是否在集合內。
func (s Set) Has(i int) bool {
	for _, v := range s {
		if v == i {
			return true
		}
	}
	return false
}

// Len 回傳被標示的索引數量（0、1 或 2）。
func (s Set) Len() int { return len(s) }

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}

// Select 對三格百分比（docenas / filas）挑出要強調的索引。
//
// 長度不是 3 時回傳空集合（合法邊界，不是錯誤）。
func Select(values []float64) Set {
	if len(values) != 3 {
		return nil
	}
	v := [3]float64{finite(values[0]), finite(values[1]), finite(values[2])}
	if v[0] == v[1] && v[1] == v[2] {
		return nil
	}

	top := max(v[0], v[1], v[2])
	idxMax := make(Set, 0, 3)
	for i, x := range v {
		if x == top {
			idxMax = append(idxMax, i)
		}
	}
	if len(idxMax) > 1 {
		// 並列領先：保留索引較小的前兩個，這決定了哪張卡片被點亮
		return idxMax[:2]
	}

	imax := idxMax[0]
	if top == 100 {
		return Set{imax}
	}
	var others [2]int
	k := 0
	for i := range v {
		if i != imax {
			others[k] = i
			k++
		}
	}
	a, b := others[0], others[1]
	if v[a] == v[b] {
		return Set{imax}
	}
	if v[a] > v[b] {
		return Set{imax, a}
	}
	return Set{imax, b}
}

// Hot 用於兩欄式區塊（顏色、奇偶、大小）：所有等於最大值的位置都算「hot」，
// 但最大值不大於 0 時（沒有資料）不標示任何位置。
func Hot(values []float64) Set {
	if len(values) == 0 {
		return nil
	}
	top := math.Inf(-1)
	for _, x := range values {
		top = max(top, finite(x))
	}
	if top <= 0 {
		return nil
	}
	var out Set
	for i, x := range values {
		if finite(x) == top {
			out = append(out, i)
		}
	}
	return out
}
