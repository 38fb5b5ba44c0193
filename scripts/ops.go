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

// ops 是開發用的任務入口：go run ./scripts <task>
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).PrintlnFunc()
	red    = color.New(color.FgRed).PrintlnFunc()
	yellow = color.New(color.FgYellow).PrintlnFunc()
)

// 需要外部服務的測試，未設定時會被 t.Skip
var storeEnv = []string{"ROULAB_TEST_REDIS_URL", "ROULAB_TEST_DATABASE_URL"}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts [test|test-detail|test-stores|serve]")
		os.Exit(1)
	}
	var err error
	switch task := os.Args[1]; task {
	case "test":
		err = goTest(filterSummary, "./...", "-cover", "-count=1")
	case "test-detail":
		err = goTest(filterNoTestFiles, "./...", "-v", "-count=1")
	case "test-stores":
		for _, k := range storeEnv {
			if os.Getenv(k) == "" {
				yellow(k + " not set: that store's tests will be skipped")
			}
		}
		err = goTest(filterNoTestFiles, "./prefs/...", "-v", "-count=1")
	case "serve":
		// 本機開發：不連 Telegram，統計服務預設在 :8000
		err = runPassthrough("go", append([]string{"run", "./cmd/svr", "-mode", "off"}, os.Args[2:]...)...)
	default:
		yellow("Unknown task: " + task)
		os.Exit(1)
	}
	if err != nil {
		red(err.Error())
		os.Exit(1)
	}
}

// goTest 清掉 test cache 後執行 go test，輸出逐行交給 filter。
func goTest(filter func(string), args ...string) error {
	green("go test " + strings.Join(args, " "))
	if err := exec.Command("go", "clean", "-testcache").Run(); err != nil {
		yellow("go clean -testcache: " + err.Error())
	}
	cmd := exec.Command("go", append([]string{"test"}, args...)...)
	pr, pw := io.Pipe()
	cmd.Stdout, cmd.Stderr = pw, pw
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		done <- err
	}()
	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		filter(sc.Text())
	}
	if err := <-done; err != nil {
		return fmt.Errorf("tests finished with errors: %w", err)
	}
	return nil
}

// filterSummary 只留 ok / FAIL 與建置錯誤。
func filterSummary(line string) {
	switch {
	case strings.HasPrefix(line, "ok"):
		green(line)
	case strings.HasPrefix(line, "FAIL"),
		strings.Contains(line, "build failed"),
		strings.Contains(line, "setup failed"):
		red(line)
	}
}

func filterNoTestFiles(line string) {
	switch {
	case strings.Contains(line, "[no test files]"):
	case strings.HasPrefix(line, "ok"):
		green(line)
	case strings.HasPrefix(line, "FAIL"), strings.HasPrefix(line, "--- FAIL"):
		red(line)
	case strings.HasPrefix(line, "--- SKIP"):
		yellow(line)
	default:
		fmt.Println(line)
	}
}

func runPassthrough(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	return cmd.Run()
}
