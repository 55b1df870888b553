// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diag

import (
	"bytes"
	"testing"

	"github.com/gorse-io/cc64/internal/token"
)

func TestErrorfFormatsAndCounts(t *testing.T) {
	var buf bytes.Buffer
	s := NewSink(&buf)

	if s.HasErrors() {
		t.Fatalf("a fresh Sink should have no errors")
	}

	s.Errorf(token.Position{Filename: "foo.c", Line: 3, Column: 7}, "unexpected %s", "token")
	s.Errorf(token.Position{Filename: "foo.c", Line: 4, Column: 1}, "redeclaration of %q", "x")

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	if !s.HasErrors() {
		t.Fatalf("expected HasErrors() to be true after two diagnostics")
	}

	want := "foo.c:3:7: unexpected token\nfoo.c:4:1: redeclaration of \"x\"\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}
