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

import (
	"bytes"
	"testing"
)

// fakeSink is a minimal RelocSink recording every relocation it's handed,
// with a fixed current text offset and an optional resolved-label table.
type fakeSink struct {
	textOffset int64
	resolved   map[string]int64
	relocs     []fakeReloc
}

type fakeReloc struct {
	sym           string
	kind          RelocKind
	offsetInInstr int
	addend        int64
}

func (s *fakeSink) AddRelocText(sym string, kind RelocKind, offsetInInstr int, addend int64) {
	s.relocs = append(s.relocs, fakeReloc{sym, kind, offsetInInstr, addend})
}

func (s *fakeSink) TextDisplacement(sym string, offsetInInstr int) int32 {
	target, ok := s.resolved[sym]
	if !ok {
		return 0
	}
	from := s.textOffset + int64(offsetInInstr) + 4
	return int32(target - from)
}

// MOV $0x01020304, %eax -> B8 04 03 02 01
func TestEncodeMovImm32ToEAX(t *testing.T) {
	i := Instruction{
		Opcode: OpMov, OpType: TypeImmReg,
		Src: Imm(0x01020304, 4),
		Dst: Reg(AX, 4),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0xB8, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// MOV $0x01020304, %rax -> 48 C7 C0 04 03 02 01
func TestEncodeMovImm32ToRAX(t *testing.T) {
	i := Instruction{
		Opcode: OpMov, OpType: TypeImmReg,
		Src: Imm(0x01020304, 8),
		Dst: Reg(AX, 8),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x48, 0xC7, 0xC0, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// A forward JMP to an unresolved label emits E9 00 00 00 00 and records
// R_X86_64_PC32 at offset 1 with addend -4.
func TestEncodeForwardJmpRelocation(t *testing.T) {
	sink := &fakeSink{textOffset: 100, resolved: map[string]int64{}}
	i := Instruction{
		Opcode: OpJmp, OpType: TypeImm,
		Src: ImmAddress("L1", 0),
	}
	got, err := Encode(i, sink)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0xE9, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
	if len(sink.relocs) != 1 {
		t.Fatalf("expected exactly one relocation, got %d", len(sink.relocs))
	}
	r := sink.relocs[0]
	if r.sym != "L1" || r.kind != R_X86_64_PC32 || r.offsetInInstr != 1 || r.addend != -4 {
		t.Fatalf("unexpected relocation %+v", r)
	}
}

func TestEncodeResolvedBackwardJmp(t *testing.T) {
	sink := &fakeSink{textOffset: 20, resolved: map[string]int64{"top": 10}}
	i := Instruction{
		Opcode: OpJmp, OpType: TypeImm,
		Src: ImmAddress("top", 0),
	}
	got, err := Encode(i, sink)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// from = 20 + 1 + 4 = 25; disp = 10 - 25 = -15
	want := []byte{0xE9, 0xF1, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeUnregisteredCombinationReturnsError(t *testing.T) {
	i := Instruction{Opcode: OpMovsd, OpType: TypeImmReg}
	if _, err := Encode(i, &fakeSink{}); err == nil {
		t.Fatalf("expected an error for an unregistered opcode/operand-type combination")
	}
}

func TestEncodeImulRegReg(t *testing.T) {
	i := Instruction{
		Opcode: OpImul, OpType: TypeRegReg,
		Src: Reg(CX, 4), Dst: Reg(AX, 4),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x0F, 0xAF, modrm(0b11, AX.Encoding(), CX.Encoding())}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeCqoSetsRexW(t *testing.T) {
	i := Instruction{Opcode: OpCqo, OpType: TypeReg, Dst: Reg(AX, 8)}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x48, 0x99}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeCdqHasNoRexPrefix(t *testing.T) {
	i := Instruction{Opcode: OpCqo, OpType: TypeReg, Dst: Reg(AX, 4)}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x99}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeIdivReg(t *testing.T) {
	i := Instruction{Opcode: OpIdiv, OpType: TypeReg, Src: Reg(CX, 8)}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x48, 0xF7, modrm(0b11, 7, CX.Encoding())}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// MOVSD %xmm0, 8(%rbp) -> F2 0F 11 45 08 (store form).
func TestEncodeMovsdStoreToFrameSlot(t *testing.T) {
	i := Instruction{
		Opcode: OpMovsd, OpType: TypeRegMem,
		Src: Reg(XMM0, 8),
		Dst: Mem(Addr{HasBase: true, Base: BP, Disp: 8}, 8),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0xF2, 0x0F, 0x11, 0x45, 0x08}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

// MOVSD 8(%rbp), %xmm1 -> F2 0F 10 4D 08 (load form).
func TestEncodeMovsdLoadFromFrameSlot(t *testing.T) {
	i := Instruction{
		Opcode: OpMovsd, OpType: TypeMemReg,
		Src: Mem(Addr{HasBase: true, Base: BP, Disp: 8}, 8),
		Dst: Reg(XMM1, 8),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0xF2, 0x0F, 0x10, 0x4D, 0x08}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}

func TestEncodeTestRegReg(t *testing.T) {
	i := Instruction{
		Opcode: OpTest, OpType: TypeRegReg,
		Src: Reg(AX, 4), Dst: Reg(AX, 4),
	}
	got, err := Encode(i, &fakeSink{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{0x85, modrm(0b11, AX.Encoding(), AX.Encoding())}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X, want % X", got, want)
	}
}
