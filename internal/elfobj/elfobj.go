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

// Package elfobj writes a minimal ELF64 relocatable object file for
// EM_X86_64, the external collaborator the encoder package expects via
// its RelocSink interface.
package elfobj

import (
	"fmt"

	"github.com/gorse-io/cc64/internal/encoder"
)

// SymBinding mirrors the ELF64 symbol binding field.
type SymBinding int

const (
	BindLocal SymBinding = iota
	BindGlobal
)

// SymKind distinguishes a data symbol from a function symbol; undefined
// symbols (referenced but not yet defined in this translation unit) are
// tracked separately so forward references can still be relocated
// against.
type SymKind int

const (
	SymNone SymKind = iota
	SymObject
	SymFunc
)

type symbol struct {
	name    string
	binding SymBinding
	kind    SymKind
	section string // "" for undefined
	value   int64  // offset within its section
	size    int64
	defined bool
}

type relocation struct {
	offset int64
	sym    string
	kind   encoder.RelocKind
	addend int64
}

// Writer accumulates section contents, symbols, and relocations for a
// single translation unit, then serializes them as an ELF64 relocatable
// object.
type Writer struct {
	text, data, rodata, bss []byte
	bssSize                 int64

	symbols map[string]*symbol
	order   []string // symbol insertion order, for deterministic output

	relocText []relocation
	relocData []relocation
}

// New returns an empty Writer.
func New() *Writer {
	return &Writer{symbols: make(map[string]*symbol)}
}

func (w *Writer) ensureSymbol(name string) *symbol {
	if s, ok := w.symbols[name]; ok {
		return s
	}
	s := &symbol{name: name}
	w.symbols[name] = s
	w.order = append(w.order, name)
	return s
}

// DefineFunction records a function symbol whose body has already been
// appended to .text via AppendText.
func (w *Writer) DefineFunction(name string, binding SymBinding, offset, size int64) {
	s := w.ensureSymbol(name)
	s.kind = SymFunc
	s.binding = binding
	s.section = ".text"
	s.value = offset
	s.size = size
	s.defined = true
}

// DefineObject records a data or bss symbol.
func (w *Writer) DefineObject(name string, binding SymBinding, section string, offset, size int64) {
	s := w.ensureSymbol(name)
	s.kind = SymObject
	s.binding = binding
	s.section = section
	s.value = offset
	s.size = size
	s.defined = true
}

// DefineLabel records a local, untyped symbol for an intra-function
// branch target (the synthetic ".LN" labels internal/symtab mints),
// resolved at the same .text offset-tracking TextDisplacement already
// uses for forward branches.
func (w *Writer) DefineLabel(name string, offset int64) {
	s := w.ensureSymbol(name)
	s.kind = SymNone
	s.binding = BindLocal
	s.section = ".text"
	s.value = offset
	s.defined = true
}

// AppendText appends bytes to .text and returns the offset they were
// written at.
func (w *Writer) AppendText(b []byte) int64 {
	off := int64(len(w.text))
	w.text = append(w.text, b...)
	return off
}

// AppendData appends bytes to .data and returns the offset they were
// written at.
func (w *Writer) AppendData(b []byte) int64 {
	off := int64(len(w.data))
	w.data = append(w.data, b...)
	return off
}

// AppendRodata appends bytes to .rodata and returns the offset they were
// written at.
func (w *Writer) AppendRodata(b []byte) int64 {
	off := int64(len(w.rodata))
	w.rodata = append(w.rodata, b...)
	return off
}

// ReserveBSS grows .bss by n bytes and returns the offset reserved.
func (w *Writer) ReserveBSS(n int64) int64 {
	off := w.bssSize
	w.bssSize += n
	return off
}

// TextLen returns the current length of .text, the write cursor the
// encoder's relocation offsets are relative to.
func (w *Writer) TextLen() int64 { return int64(len(w.text)) }

// AddRelocText implements encoder.RelocSink: records a relocation at the
// current end of .text plus offsetInInstr against sym.
func (w *Writer) AddRelocText(sym string, kind encoder.RelocKind, offsetInInstr int, addend int64) {
	w.ensureSymbol(sym)
	w.relocText = append(w.relocText, relocation{
		offset: w.TextLen() + int64(offsetInInstr),
		sym:    sym,
		kind:   kind,
		addend: addend,
	})
}

// TextDisplacement implements encoder.RelocSink: if sym is already
// defined in .text, returns the signed distance to sym's value from the
// end of the 4-byte displacement field that starts offsetInInstr bytes
// into the instruction being encoded at the current write cursor;
// otherwise returns 0, since the true displacement will be filled in by
// relocation processing.
func (w *Writer) TextDisplacement(sym string, offsetInInstr int) int32 {
	s, ok := w.symbols[sym]
	if !ok || !s.defined || s.section != ".text" {
		return 0
	}
	from := w.TextLen() + int64(offsetInInstr) + 4 // end of the disp32 field
	return int32(s.value - from)
}

// AddRelocData records a relocation within .data at offset against sym.
func (w *Writer) AddRelocData(offset int64, sym string, kind encoder.RelocKind, addend int64) {
	w.ensureSymbol(sym)
	w.relocData = append(w.relocData, relocation{offset: offset, sym: sym, kind: kind, addend: addend})
}

var _ encoder.RelocSink = (*Writer)(nil)

func (w *Writer) validate() error {
	for _, r := range w.relocText {
		if _, ok := w.symbols[r.sym]; !ok {
			return fmt.Errorf("elfobj: relocation against unknown symbol %q", r.sym)
		}
	}
	return nil
}
