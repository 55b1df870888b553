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

package main

import (
	"github.com/gorse-io/cc64/internal/elfobj"
	"github.com/gorse-io/cc64/internal/encoder"
	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/types"
)

// putLE writes v's low width bytes of buf at off, little-endian, the
// same byte order the encoder's own immediate-writing helpers use.
func putLE(buf []byte, off int, width uint8, v int64) {
	for i := 0; i < int(width); i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
}

// genObject lowers a file-scope object Definition (already reduced to a
// flat sequence of OpStore statements by internal/parser) into a .data
// or .bss entry: an
// all-immediate, all-zero initializer becomes a reserved .bss slot
// (Tentative definitions finalized at end-of-unit do not come through
// here; finalizeTentatives places them in .bss directly);
// anything else is materialized as literal bytes in .data, with any
// Address-valued store recorded as a .data relocation against the
// addressed symbol.
func genObject(w *elfobj.Writer, def *ir.Definition) error {
	sym := def.Symbol
	size := types.SizeOf(types.Unwrap(sym.Type))
	if size == 0 {
		size = 8
	}
	buf := make([]byte, size)
	nonzero := false

	var stmts []ir.Statement
	if def.Body != nil {
		stmts = def.Body.Code
	}
	var relocs []struct {
		off int
		v   *ir.Var
	}
	for _, st := range stmts {
		if st.Op != ir.OpStore || st.Target == nil || st.A == nil {
			continue
		}
		off := st.Target.Offset
		width := uint8(1)
		if st.Target.Type != nil {
			if sz := types.SizeOf(types.Unwrap(st.Target.Type)); sz == 1 || sz == 2 || sz == 4 || sz == 8 {
				width = uint8(sz)
			} else {
				width = 8
			}
		}
		switch st.A.Kind {
		case ir.Immediate:
			if off+int(width) > len(buf) {
				continue
			}
			putLE(buf, off, width, st.A.ImmValue)
			if st.A.ImmValue != 0 {
				nonzero = true
			}
		case ir.Address:
			relocs = append(relocs, struct {
				off int
				v   *ir.Var
			}{off, st.A})
			nonzero = true
		}
	}

	binding := elfobj.BindGlobal
	if sym.Linkage == symtab.Intern {
		binding = elfobj.BindLocal
	}

	if !nonzero {
		off := w.ReserveBSS(int64(size))
		w.DefineObject(sym.Name, binding, ".bss", off, int64(size))
		return nil
	}

	off := w.AppendData(buf)
	for _, r := range relocs {
		w.AddRelocData(off+int64(r.off), r.v.Symbol.Name, encoder.R_X86_64_32S, 0)
	}
	w.DefineObject(sym.Name, binding, ".data", off, int64(size))
	return nil
}
