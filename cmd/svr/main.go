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

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/zintix-labs/roulab/server"
	"github.com/zintix-labs/roulab/server/svrcfg"
)

// roulab 主機入口：設定來源依序為預設值、-config YAML、.env / 環境變數、命令列旗標。
func main() {
	cfg, err := svrcfg.Load(os.Args[1:], nil, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := server.Run(cfg); err != nil {
		os.Exit(1)
	}
}
