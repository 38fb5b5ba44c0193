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

package httperr_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/roulab/errs"
	"github.com/zintix-labs/roulab/server/httperr"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errs.NewWarn("bad"), 400},
		{errs.NewAuth("who"), 401},
		{errs.NewDenied("no"), 403},
		{errs.NewUpstream("down"), 502},
		{errs.NewFatal("boom"), 500},
		{fmt.Errorf("plain"), 500},
		{errs.Wrap(errs.NewWarn("inner"), "outer"), 400},
		{fmt.Errorf("x: %w", context.DeadlineExceeded), 504},
		{context.Canceled, 408},
	}
	for _, tc := range cases {
		if got := httperr.StatusCode(tc.err); got != tc.want {
			t.Fatalf("StatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestErrsBody(t *testing.T) {
	rec := httptest.NewRecorder()
	httperr.Errs(rec, errs.NewWarn("chat_id requerido"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "chat_id requerido" {
		t.Fatalf("body: %v", body)
	}

	rec = httptest.NewRecorder()
	httperr.Errs(rec, errs.Wrap(fmt.Errorf("dial tcp 10.0.0.1: refused"), "internal detail"))
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != 500 || body["error"] != "Internal Server Error" {
		t.Fatalf("fatal errors must not leak details: %d %v", rec.Code, body)
	}

	rec = httptest.NewRecorder()
	httperr.Errs(rec, errs.NewUpstream("servicio caído"))
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != 502 || body["error"] != "servicio caído" {
		t.Fatalf("upstream message should pass through: %d %v", rec.Code, body)
	}
}
