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

package elfobj

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/gorse-io/cc64/internal/encoder"
)

// ELF64 constants this writer needs (a deliberate subset of debug/elf's,
// re-declared here since this package only ever writes, never reads, an
// object file and debug/elf exposes no generic writer).
const (
	etRel     = 1
	emX8664   = 62
	evCurrent = 1

	shtNull     = 0
	shtProgbits = 1
	shtSymtab   = 2
	shtStrtab   = 3
	shtRela     = 4
	shtNobits   = 8

	shfWrite = 1 << 0
	shfAlloc = 1 << 1
	shfExec  = 1 << 2

	stbLocal  = 0
	stbGlobal = 1
	sttNotype = 0
	sttObject = 1
	sttFunc   = 2
	sttSect   = 3

	rPC32 = 2 // R_X86_64_PC32
	r32S  = 11
)

type strtab struct {
	buf    []byte
	offset map[string]uint32
}

func newStrtab() *strtab {
	return &strtab{buf: []byte{0}, offset: map[string]uint32{"": 0}}
}

func (s *strtab) add(name string) uint32 {
	if off, ok := s.offset[name]; ok {
		return off
	}
	off := uint32(len(s.buf))
	s.buf = append(s.buf, []byte(name)...)
	s.buf = append(s.buf, 0)
	s.offset[name] = off
	return off
}

type sectionHeader struct {
	name      uint32
	shType    uint32
	flags     uint64
	addr      uint64
	offset    uint64
	size      uint64
	link      uint32
	info      uint32
	addralign uint64
	entsize   uint64
}

// WriteTo serializes the accumulated sections, symbol table, and
// relocations as a complete ELF64 relocatable object file for
// EM_X86_64.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}

	shstrtab := newStrtab()
	strtabTab := newStrtab()

	// Section indices: 0 null, 1 .text, 2 .data, 3 .bss, 4 .rodata,
	// 5 .symtab, 6 .strtab, 7 .shstrtab, 8 .rela.text, 9 .rela.data
	// (the last two only if non-empty; .rela.data takes index 8 when
	// .rela.text is absent).
	const (
		secNull = iota
		secText
		secData
		secBSS
		secRodata
		secSymtab
		secStrtab
		secShstrtab
		secRelaText
		secRelaData
	)
	sectionOf := map[string]uint32{
		".text": secText, ".data": secData, ".bss": secBSS, ".rodata": secRodata,
	}

	// Symbol table: index 0 is the mandatory null entry, followed by one
	// STT_SECTION symbol per progbits section (local symbols must sort
	// before global ones in ELF's symtab), then the user symbols sorted
	// local-before-global preserving insertion order within each group.
	type symEnt struct {
		nameOff uint32
		info    byte
		shndx   uint16
		value   uint64
		size    uint64
	}
	var symEnts []symEnt
	symEnts = append(symEnts, symEnt{}) // STN_UNDEF

	for _, sec := range []string{".text", ".data", ".bss", ".rodata"} {
		symEnts = append(symEnts, symEnt{
			info:  byte(stbLocal<<4 | sttSect),
			shndx: uint16(sectionOf[sec]),
		})
	}

	symIndex := map[string]uint32{}
	numLocal := uint32(len(symEnts)) // null + section symbols, all local
	addSym := func(s *symbol, binding SymBinding) {
		var shndx uint16
		var typ byte
		switch {
		case !s.defined:
			shndx = 0 // SHN_UNDEF
			typ = sttNotype
		default:
			shndx = uint16(sectionOf[s.section])
			switch s.kind {
			case SymFunc:
				typ = sttFunc
			case SymObject:
				typ = sttObject
			default:
				typ = sttNotype
			}
		}
		bind := byte(stbLocal)
		if binding == BindGlobal {
			bind = stbGlobal
		}
		symIndex[s.name] = uint32(len(symEnts))
		symEnts = append(symEnts, symEnt{
			nameOff: strtabTab.add(s.name),
			info:    bind<<4 | typ,
			shndx:   shndx,
			value:   uint64(s.value),
			size:    uint64(s.size),
		})
	}
	for _, name := range w.order {
		s := w.symbols[name]
		if s.binding == BindLocal {
			addSym(s, BindLocal)
			numLocal++
		}
	}
	for _, name := range w.order {
		s := w.symbols[name]
		if s.binding == BindGlobal {
			addSym(s, BindGlobal)
		}
	}

	var symtabBuf bytes.Buffer
	for _, e := range symEnts {
		binary.Write(&symtabBuf, binary.LittleEndian, uint32(e.nameOff))
		symtabBuf.WriteByte(e.info)
		symtabBuf.WriteByte(0)
		binary.Write(&symtabBuf, binary.LittleEndian, e.shndx)
		binary.Write(&symtabBuf, binary.LittleEndian, e.value)
		binary.Write(&symtabBuf, binary.LittleEndian, e.size)
	}

	relaBuf := func(relocs []relocation) []byte {
		var b bytes.Buffer
		for _, r := range relocs {
			idx, ok := symIndex[r.sym]
			if !ok {
				idx = 0
			}
			typ := uint64(rPC32)
			if r.kind == encoder.R_X86_64_32S {
				typ = r32S
			}
			info := (uint64(idx) << 32) | typ
			binary.Write(&b, binary.LittleEndian, uint64(r.offset))
			binary.Write(&b, binary.LittleEndian, info)
			binary.Write(&b, binary.LittleEndian, r.addend)
		}
		return b.Bytes()
	}
	relaText := relaBuf(w.relocText)
	relaData := relaBuf(w.relocData)

	// Lay out section contents after a fixed-size ELF + section header
	// area; exact header/offset bookkeeping below.
	const ehsize = 64
	const shentsize = 64

	names := map[string]uint32{}
	for _, n := range []string{"", ".text", ".data", ".bss", ".rodata", ".symtab", ".strtab", ".shstrtab", ".rela.text", ".rela.data"} {
		names[n] = shstrtab.add(n)
	}

	numSections := uint16(8)
	if len(w.relocText) > 0 {
		numSections++
	}
	if len(w.relocData) > 0 {
		numSections++
	}

	offset := uint64(ehsize) + uint64(numSections)*shentsize
	align := func(v, a uint64) uint64 { return (v + a - 1) &^ (a - 1) }

	place := func(size uint64, a uint64) uint64 {
		offset = align(offset, a)
		off := offset
		offset += size
		return off
	}

	textOff := place(uint64(len(w.text)), 16)
	dataOff := place(uint64(len(w.data)), 16)
	rodataOff := place(uint64(len(w.rodata)), 16)
	symtabOff := place(uint64(symtabBuf.Len()), 8)
	strtabOff := place(uint64(len(strtabTab.buf)), 1)
	shstrtabOff := place(uint64(len(shstrtab.buf)), 1)
	var relaTextOff, relaDataOff uint64
	if len(w.relocText) > 0 {
		relaTextOff = place(uint64(len(relaText)), 8)
	}
	if len(w.relocData) > 0 {
		relaDataOff = place(uint64(len(relaData)), 8)
	}

	headers := []sectionHeader{
		{}, // SHN_UNDEF
		{name: names[".text"], shType: shtProgbits, flags: shfAlloc | shfExec, offset: textOff, size: uint64(len(w.text)), addralign: 16},
		{name: names[".data"], shType: shtProgbits, flags: shfAlloc | shfWrite, offset: dataOff, size: uint64(len(w.data)), addralign: 16},
		{name: names[".bss"], shType: shtNobits, flags: shfAlloc | shfWrite, offset: dataOff, size: uint64(w.bssSize), addralign: 16},
		{name: names[".rodata"], shType: shtProgbits, flags: shfAlloc, offset: rodataOff, size: uint64(len(w.rodata)), addralign: 16},
		{name: names[".symtab"], shType: shtSymtab, offset: symtabOff, size: uint64(symtabBuf.Len()), link: secStrtab, info: numLocal, entsize: 24, addralign: 8},
		{name: names[".strtab"], shType: shtStrtab, offset: strtabOff, size: uint64(len(strtabTab.buf)), addralign: 1},
		{name: names[".shstrtab"], shType: shtStrtab, offset: shstrtabOff, size: uint64(len(shstrtab.buf)), addralign: 1},
	}
	if len(w.relocText) > 0 {
		headers = append(headers, sectionHeader{
			name: names[".rela.text"], shType: shtRela, offset: relaTextOff, size: uint64(len(relaText)),
			link: secSymtab, info: secText, entsize: 24, addralign: 8,
		})
	}
	if len(w.relocData) > 0 {
		headers = append(headers, sectionHeader{
			name: names[".rela.data"], shType: shtRela, offset: relaDataOff, size: uint64(len(relaData)),
			link: secSymtab, info: secData, entsize: 24, addralign: 8,
		})
	}

	var buf bytes.Buffer

	// e_ident
	buf.Write([]byte{0x7F, 'E', 'L', 'F', 2 /* ELFCLASS64 */, 1 /* ELFDATA2LSB */, evCurrent, 0})
	buf.Write(make([]byte, 8)) // padding

	le := binary.LittleEndian
	writeU16 := func(v uint16) { binary.Write(&buf, le, v) }
	writeU32 := func(v uint32) { binary.Write(&buf, le, v) }
	writeU64 := func(v uint64) { binary.Write(&buf, le, v) }

	writeU16(etRel)
	writeU16(emX8664)
	writeU32(evCurrent)
	writeU64(0)      // e_entry
	writeU64(0)      // e_phoff
	writeU64(ehsize) // e_shoff: section headers immediately follow the ELF header
	writeU32(0)      // e_flags
	writeU16(ehsize) // e_ehsize
	writeU16(0)      // e_phentsize
	writeU16(0)      // e_phnum
	writeU16(shentsize)
	writeU16(numSections)
	writeU16(secShstrtab)

	for _, h := range headers {
		writeU32(h.name)
		writeU32(h.shType)
		writeU64(h.flags)
		writeU64(h.addr)
		writeU64(h.offset)
		writeU64(h.size)
		writeU32(h.link)
		writeU32(h.info)
		writeU64(h.addralign)
		writeU64(h.entsize)
	}

	padTo := func(target uint64) {
		if gap := int64(target) - int64(buf.Len()); gap > 0 {
			buf.Write(make([]byte, gap))
		}
	}

	padTo(textOff)
	buf.Write(w.text)
	padTo(dataOff)
	buf.Write(w.data)
	padTo(rodataOff)
	buf.Write(w.rodata)
	padTo(symtabOff)
	buf.Write(symtabBuf.Bytes())
	padTo(strtabOff)
	buf.Write(strtabTab.buf)
	padTo(shstrtabOff)
	buf.Write(shstrtab.buf)
	if len(w.relocText) > 0 {
		padTo(relaTextOff)
		buf.Write(relaText)
	}
	if len(w.relocData) > 0 {
		padTo(relaDataOff)
		buf.Write(relaData)
	}

	n, err := out.Write(buf.Bytes())
	return int64(n), err
}
