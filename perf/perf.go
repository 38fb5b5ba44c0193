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

// Package perf 以 runtime/pprof 包住一段工作，寫出 cpu / heap / allocs profile。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"slices"

	"github.com/zintix-labs/roulab/errs"
)

// DefaultDir 是 profile 的輸出目錄。
const DefaultDir = "build/profiling"

// Modes 是可用的模式；空字串代表不量測。
var Modes = []string{"", "cpu", "heap", "allocs"}

// Run 依 mode 執行 exe 並寫出對應的 profile 到 dir/<mode>.pprof。
// exe 的錯誤優先回傳；profile 寫檔失敗則回傳 Fatal。
func Run(mode, dir string, exe func() error) error {
	if !slices.Contains(Modes, mode) {
		return errs.NewWarn("perf: unknown mode " + mode + " (cpu|heap|allocs)")
	}
	if mode == "" {
		return exe()
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "perf: mkdir")
	}
	path := filepath.Join(dir, mode+".pprof")

	switch mode {
	case "cpu":
		f, err := os.Create(path)
		if err != nil {
			return errs.Wrap(err, "perf: create")
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return errs.Wrap(err, "perf: start cpu profile")
		}
		defer pprof.StopCPUProfile()
		return exe()
	case "heap", "allocs":
		runErr := exe()
		// heap 快照前先 GC，讓 in-use 更貼近實際
		if mode == "heap" {
			runtime.GC()
		}
		f, err := os.Create(path)
		if err != nil {
			return errs.Wrap(err, "perf: create")
		}
		defer f.Close()
		if err := pprof.Lookup(mode).WriteTo(f, 0); err != nil {
			return errs.Wrap(err, "perf: write "+mode)
		}
		return runErr
	}
	return exe()
}
