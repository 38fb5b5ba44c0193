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

// Package errs 提供分級錯誤，讓最外層（HTTP 邊界、CLI）知道問題屬於哪一類。
package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級
type ErrLevel uint8

const (
	None     ErrLevel = iota
	Fatal             // 系統/不可恢復
	Warn              // 請求/參數問題
	Auth              // 身分驗證失敗（缺少或無效的 initData / secret）
	Denied            // 身分有效但無權操作該 chat
	Upstream          // 遠端統計服務回應異常
	Log               // 僅需記錄
)

var errLvMap = map[ErrLevel]string{
	None:     "",
	Fatal:    "fatal",
	Warn:     "warn",
	Auth:     "auth",
	Denied:   "denied",
	Upstream: "upstream",
	Log:      "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為呼叫端追加的上下文（例如遠端回應的 status）；Cause 串接下層錯誤。
type E struct {
	Message string
	Extra   string
	Cause   error
	ErrLv   ErrLevel
}

func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

// Public 回傳可以直接給前端看的訊息（不含分級與 cause）。
func (e *E) Public() string { return e.Message }

func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E    { return New(Fatal, msg) }
func NewWarn(msg string) *E     { return New(Warn, msg) }
func NewAuth(msg string) *E     { return New(Auth, msg) }
func NewDenied(msg string) *E   { return New(Denied, msg) }
func NewUpstream(msg string) *E { return New(Upstream, msg) }
func NewLog(msg string) *E      { return New(Log, msg) }

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

func Upstreamf(format string, a ...any) *E {
	return NewUpstream(fmt.Sprintf(format, a...))
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 以訊息包裝底層錯誤。
//
// ErrLevel 規則：
//   - cause 已經是 *E：沿用其 ErrLv。
//   - 其他錯誤（標準庫 / 三方依賴）：視為 Fatal。
//
// 可預期的情境（例如參數錯誤）請直接用 NewWarn 等建立，不要 Wrap。
func Wrap(cause error, msg string) *E {
	errLv := Fatal
	if e, ok := AsErr(cause); ok {
		errLv = e.ErrLv
	}
	r := New(errLv, msg)
	r.Cause = cause
	return r
}

// WrapAs 以指定等級包裝底層錯誤，忽略 cause 原本的等級。
func WrapAs(errLv ErrLevel, cause error, msg string) *E {
	r := New(errLv, msg)
	r.Cause = cause
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Level 回傳錯誤等級；非 *E 視為 Fatal，nil 為 None。
func Level(err error) ErrLevel {
	if err == nil {
		return None
	}
	if e, ok := AsErr(err); ok {
		return e.ErrLv
	}
	return Fatal
}
