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

package v1

import (
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"
)

func TestNumberOf(t *testing.T) {
	for in, want := range map[string]int{`{"n":0}`: 0, `{"n":36}`: 36, `{"n":" 17 "}`: 17} {
		got, err := numberOf(gjson.Get(in, "n"))
		if err != nil || got != want {
			t.Fatalf("numberOf(%s) = %d, %v", in, got, err)
		}
	}
	for _, in := range []string{`{"n":37}`, `{"n":-1}`, `{"n":2.5}`, `{"n":"x"}`, `{}`, `{"n":true}`} {
		if _, err := numberOf(gjson.Get(in, "n")); err == nil {
			t.Fatalf("numberOf(%s) should fail", in)
		}
	}
}

func TestETagMatch(t *testing.T) {
	tag := fragmentETag([]byte("<div>panel</div>"))
	if tag == fragmentETag([]byte("<div>panel2</div>")) {
		t.Fatalf("different bodies share an etag")
	}
	for inm, want := range map[string]bool{
		"":                    false,
		tag:                   true,
		"W/" + tag:            true,
		`"other", ` + tag:     true,
		"*":                   true,
		`"other"`:             false,
	} {
		r := httptest.NewRequest("GET", "/api/view", nil)
		if inm != "" {
			r.Header.Set("If-None-Match", inm)
		}
		if got := etagMatch(r, tag); got != want {
			t.Fatalf("etagMatch(%q) = %v", inm, got)
		}
	}
}
