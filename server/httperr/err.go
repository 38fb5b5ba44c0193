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

// Package httperr 是 HTTP 邊界層的錯誤映射：errs 等級 → status code → {"error": "..."}。
package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/roulab/errs"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
//   - ctx timeout / cancel → 504 / 408
//   - errs.Warn     → 400
//   - errs.Auth     → 401
//   - errs.Denied   → 403
//   - errs.Upstream → 502
//   - errs.Fatal 與其他 → 500
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}

	switch errs.Level(err) {
	case errs.Warn:
		return http.StatusBadRequest
	case errs.Auth:
		return http.StatusUnauthorized
	case errs.Denied:
		return http.StatusForbidden
	case errs.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message 是回給前端的訊息：可公開的 errs 訊息原樣回傳，5xx 的內部細節不外露。
func Message(err error) string {
	status := StatusCode(err)
	if e, ok := errs.AsErr(err); ok && (status < 500 || e.ErrLv == errs.Upstream) {
		return e.Public()
	}
	switch status {
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return "tiempo de espera agotado"
	default:
		return http.StatusText(status)
	}
}

// Errs 寫出錯誤回應。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	Write(w, StatusCode(err), Message(err))
}

// Write 以 JSON 寫出 {"error": msg}。
func Write(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Log 依 status 決定等級：5xx → error，408/429 → warn，其餘不記。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	status := StatusCode(err)
	switch {
	case status >= 500:
		log.Error(msg, slog.Int("status", status), slog.Any("err", err))
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		log.Warn(msg, slog.Int("status", status), slog.Any("err", err))
	}
}

// Handle 寫回應並記錄，handler 最常用的組合。
func Handle(w http.ResponseWriter, log *slog.Logger, msg string, err error) {
	Log(log, msg, err)
	Errs(w, err)
}
