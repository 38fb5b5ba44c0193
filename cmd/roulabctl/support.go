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
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/joho/godotenv"
	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/perf"
	"github.com/zintix-labs/roulab/poller"
	"github.com/zintix-labs/roulab/server/logger"
	"github.com/zintix-labs/roulab/statsapi"
	"github.com/zintix-labs/roulab/wheel"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const usage = `usage: roulabctl [-api URL] [-chat ID] [-timeout 10s] [-pprof cpu|heap|allocs] <command> [args]

commands:
  stats [-format table|json|yaml]   show the current statistics
  roll N                            record a number (0..36)
  rollback                          undo the last number
  reset -yes                        clear the history of the chat
  replay [-progress=true] FILE      record every number found in FILE ("-" for stdin)
  watch [-interval 1.5s]            print the table whenever the statistics change
`

type config struct {
	api     string
	chat    string
	timeout time.Duration
	pprof   string
}

// run 解析參數並執行子命令，回傳 exit code。
func run(args []string, stdout, stderr io.Writer) int {
	// .env 只補沒設定的變數
	_ = godotenv.Load()

	cfg := new(config)
	fs := flag.NewFlagSet("roulabctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&cfg.api, "api", envOr("STATS_API_URL", "http://127.0.0.1:8000"), "statistics service base URL")
	fs.StringVar(&cfg.chat, "chat", envOr("ROULAB_CHAT_ID", "dev"), "chat id")
	fs.DurationVar(&cfg.timeout, "timeout", 10*time.Second, "per request timeout")
	fs.StringVar(&cfg.pprof, "pprof", "", "profile the command: cpu|heap|allocs (written to "+perf.DefaultDir+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	client, err := statsapi.New(cfg.api)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := rest[0], rest[1:]
	known := true
	err = perf.Run(cfg.pprof, perf.DefaultDir, func() error {
		return dispatch(ctx, client, cfg, cmd, cmdArgs, stdout, stderr, &known)
	})
	if !known {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "error:", err)
		if errs.Level(err) == errs.Warn {
			return 2
		}
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, client *statsapi.Client, cfg *config, cmd string, cmdArgs []string, stdout, stderr io.Writer, known *bool) error {
	var err error
	switch cmd {
	case "stats":
		err = cmdStats(ctx, client, cfg, cmdArgs, stdout, stderr)
	case "roll":
		err = cmdRoll(ctx, client, cfg, cmdArgs, stdout)
	case "rollback":
		err = cmdSimple(ctx, cfg, stdout, func(ctx context.Context) (*statsapi.Snapshot, error) {
			return client.Rollback(ctx, cfg.chat)
		})
	case "reset":
		err = cmdReset(ctx, client, cfg, cmdArgs, stdout, stderr)
	case "replay":
		err = cmdReplay(ctx, client, cfg, cmdArgs, stdout, stderr)
	case "watch":
		err = cmdWatch(ctx, client, cfg, cmdArgs, stdout, stderr)
	default:
		*known = false
	}
	return err
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (c *config) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.timeout)
}

func cmdStats(ctx context.Context, client *statsapi.Client, cfg *config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	format := fs.String("format", "table", "table|json|yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	render, err := statsapi.RenderFor(*format)
	if err != nil {
		return err
	}
	rctx, cancel := cfg.ctx(ctx)
	defer cancel()
	snap, _, _, err := client.Stats(rctx, cfg.chat, "")
	if err != nil {
		return err
	}
	return render.Write(stdout, snap)
}

func cmdRoll(ctx context.Context, client *statsapi.Client, cfg *config, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errs.NewWarn("roll needs exactly one number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errs.NewWarn("roll: " + args[0] + " is not an integer")
	}
	return cmdSimple(ctx, cfg, stdout, func(ctx context.Context) (*statsapi.Snapshot, error) {
		return client.Roll(ctx, cfg.chat, n)
	})
}

func cmdSimple(ctx context.Context, cfg *config, stdout io.Writer, fn func(context.Context) (*statsapi.Snapshot, error)) error {
	rctx, cancel := cfg.ctx(ctx)
	defer cancel()
	snap, err := fn(rctx)
	if err != nil {
		return err
	}
	return (&statsapi.TableRender{}).Write(stdout, snap)
}

func cmdReset(ctx context.Context, client *statsapi.Client, cfg *config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(stderr)
	yes := fs.Bool("yes", false, "confirm the reset")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*yes {
		return errs.NewWarn("reset clears the whole history of chat " + cfg.chat + "; rerun with -yes")
	}
	return cmdSimple(ctx, cfg, stdout, func(ctx context.Context) (*statsapi.Snapshot, error) {
		return client.Reset(ctx, cfg.chat)
	})
}

func cmdReplay(ctx context.Context, client *statsapi.Client, cfg *config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	progress := fs.Bool("progress", true, "show a progress bar")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errs.NewWarn("replay needs a file (or - for stdin)")
	}

	var in io.Reader = os.Stdin
	if name := fs.Arg(0); name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return errs.Wrap(err, "replay")
		}
		defer f.Close()
		in = f
	}
	nums, err := parseNumbers(in)
	if err != nil {
		return err
	}
	if len(nums) == 0 {
		return errs.NewWarn("replay: no numbers found")
	}

	bar := pb.StartNew(len(nums))
	if !*progress {
		bar.SetWriter(io.Discard)
	} else {
		bar.SetWriter(stderr)
	}
	var last *statsapi.Snapshot
	for i, n := range nums {
		rctx, cancel := cfg.ctx(ctx)
		snap, err := client.Roll(rctx, cfg.chat, n)
		cancel()
		if err != nil {
			bar.Finish()
			return errs.Wrap(err, fmt.Sprintf("replay stopped at #%d (n=%d)", i+1, n))
		}
		last = snap
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()

	p := message.NewPrinter(language.English)
	p.Fprintf(stdout, "replayed %d numbers in %.2fs\n", len(nums), used.Seconds())
	return (&statsapi.TableRender{}).Write(stdout, last)
}

// parseNumbers 讀取以空白、逗號、分號或換行分隔的號碼；# 之後為註解。
func parseNumbers(r io.Reader) ([]int, error) {
	var out []int
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text, _, _ := strings.Cut(sc.Text(), "#")
		fields := strings.FieldsFunc(text, func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t' || c == '[' || c == ']'
		})
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil || !wheel.Valid(n) {
				return nil, errs.Warnf("line %d: %q is not a number in %d..%d", line, f, wheel.Min, wheel.Max)
			}
			out = append(out, n)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, "read numbers")
	}
	return out, nil
}

func cmdWatch(ctx context.Context, client *statsapi.Client, cfg *config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	interval := fs.Duration("interval", poller.DefaultInterval, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w := poller.New(ctx, client, *interval, logger.New(logger.ModeSilence))
	updates, unsubscribe := w.Subscribe(cfg.chat)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintf(stdout, "[%s] chat %s  tag %s\n", time.Now().Format("15:04:05"), u.ChatID, u.Tag)
			if err := (&statsapi.TableRender{}).Write(stdout, u.Snapshot); err != nil {
				return err
			}
		}
	}
}
