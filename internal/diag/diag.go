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

// Package diag formats and counts the diagnostics the compiler emits.
package diag

import (
	"fmt"
	"io"

	"github.com/gorse-io/cc64/internal/token"
)

// Sink collects diagnostics and writes them in "path:line:col: message\n"
// form as they arrive.
type Sink struct {
	w     io.Writer
	count int
}

// NewSink returns a Sink writing to w.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Errorf formats and emits one diagnostic at pos.
func (s *Sink) Errorf(pos token.Position, format string, args ...any) {
	s.count++
	fmt.Fprintf(s.w, "%s:%d:%d: %s\n", pos.Filename, pos.Line, pos.Column, fmt.Sprintf(format, args...))
}

// Count returns the number of diagnostics emitted so far.
func (s *Sink) Count() int { return s.count }

// HasErrors reports whether any diagnostic has been emitted.
func (s *Sink) HasErrors() bool { return s.count > 0 }
