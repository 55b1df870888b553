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

package encoder

import "fmt"

// encodeMovRegReg encodes "MOV src, dst" register-to-register as the
// store-form opcode (0x88/0x89) with both operands register-direct
// (mod=11).
func encodeMovRegReg(i Instruction, _ RelocSink) ([]byte, error) {
	src, dst := i.Src.Reg, i.Dst.Reg
	opc := byte(0x88)
	if wBit(dst.W) == 1 {
		opc = 0x89
	}
	var out []byte
	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, src.R.Extended(), false, dst.R.Extended()) {
		out = append(out, rexPrefix(dst.W == 8, src.R.Extended(), false, dst.R.Extended()))
	}
	out = append(out, opc, modrm(0b11, src.R.Encoding(), dst.R.Encoding()))
	return out, nil
}

// encodeMovRegMem encodes "MOV src(reg), dst(mem)": store a register to
// memory.
func encodeMovRegMem(i Instruction, sink RelocSink) ([]byte, error) {
	src, dst := i.Src.Reg, i.Dst.Mem
	mem := encodeMemOperand(src.R.Encoding(), dst.Addr)
	var out []byte
	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, src.R.Extended(), mem.extX, mem.extB) {
		out = append(out, rexPrefix(dst.W == 8, src.R.Extended(), mem.extX, mem.extB))
	}
	opc := byte(0x88)
	if wBit(dst.W) == 1 {
		opc = 0x89
	}
	out = append(out, opc)
	prefixLen := len(out)
	out = append(out, mem.bytes...)
	addRIPReloc(sink, dst.Addr, mem, prefixLen, 0)
	return out, nil
}

// encodeMovMemReg encodes "MOV src(mem), dst(reg)": load memory into a
// register.
func encodeMovMemReg(i Instruction, sink RelocSink) ([]byte, error) {
	src, dst := i.Src.Mem, i.Dst.Reg
	mem := encodeMemOperand(dst.R.Encoding(), src.Addr)
	var out []byte
	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB) {
		out = append(out, rexPrefix(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB))
	}
	opc := byte(0x8A)
	if wBit(dst.W) == 1 {
		opc = 0x8B
	}
	out = append(out, opc)
	prefixLen := len(out)
	out = append(out, mem.bytes...)
	addRIPReloc(sink, src.Addr, mem, prefixLen, 0)
	return out, nil
}

// encodeMovImmReg encodes "MOV imm, reg". Most widths use the short form
// 0xB8+reg; a 64-bit destination with a 32-bit-range immediate instead
// uses the canonical REX.W + 0xC7 /0 + imm32 form (avoiding the 10-byte
// 0xB8 imm64 encoding when it isn't needed).
func encodeMovImmReg(i Instruction, _ RelocSink) ([]byte, error) {
	dst := i.Dst.Reg
	imm := i.Src.Imm
	if imm.Kind != ImmInt {
		return nil, fmt.Errorf("encoder: MOV imm,reg requires an integer immediate")
	}

	var out []byte
	if dst.W == 8 && fitsInt32(imm.Value) {
		out = append(out, rexPrefix(true, false, false, dst.R.Extended()))
		out = append(out, 0xC7, modrm(0b11, 0, dst.R.Encoding()))
		out = append(out, leb32(int32(imm.Value))...)
		return out, nil
	}

	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, false, false, dst.R.Extended()) {
		out = append(out, rexPrefix(dst.W == 8, false, false, dst.R.Extended()))
	}
	opc := byte(0xB0) + dst.R.Encoding()
	if dst.W != 1 {
		opc = 0xB8 + dst.R.Encoding()
	}
	out = append(out, opc)
	switch dst.W {
	case 1:
		out = append(out, byte(imm.Value))
	case 2:
		out = append(out, byte(imm.Value), byte(imm.Value>>8))
	case 4:
		out = append(out, leb32(int32(imm.Value))...)
	case 8:
		out = append(out, le64(imm.Value)...)
	}
	return out, nil
}

// encodeMovImmMem encodes "MOV imm, mem" using the C7 /0 form.
func encodeMovImmMem(i Instruction, sink RelocSink) ([]byte, error) {
	dst := i.Dst.Mem
	imm := i.Src.Imm
	if imm.Kind != ImmInt {
		return nil, fmt.Errorf("encoder: MOV imm,mem requires an integer immediate")
	}
	mem := encodeMemOperand(0, dst.Addr)
	var out []byte
	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, false, mem.extX, mem.extB) {
		out = append(out, rexPrefix(dst.W == 8, false, mem.extX, mem.extB))
	}
	opc := byte(0xC6)
	if wBit(dst.W) == 1 {
		opc = 0xC7
	}
	out = append(out, opc)
	prefixLen := len(out)
	out = append(out, mem.bytes...)
	var immBytes []byte
	switch dst.W {
	case 1:
		immBytes = []byte{byte(imm.Value)}
	case 2:
		immBytes = []byte{byte(imm.Value), byte(imm.Value >> 8)}
	default:
		immBytes = leb32(int32(imm.Value))
	}
	addRIPReloc(sink, dst.Addr, mem, prefixLen, len(immBytes))
	out = append(out, immBytes...)
	return out, nil
}

// encodeLea encodes "LEA src(mem), dst(reg)".
func encodeLea(i Instruction, sink RelocSink) ([]byte, error) {
	src, dst := i.Src.Mem, i.Dst.Reg
	mem := encodeMemOperand(dst.R.Encoding(), src.Addr)
	var out []byte
	if needsRex(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB) {
		out = append(out, rexPrefix(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB))
	}
	out = append(out, 0x8D)
	prefixLen := len(out)
	out = append(out, mem.bytes...)
	addRIPReloc(sink, src.Addr, mem, prefixLen, 0)
	return out, nil
}
