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

// Package encoder turns an abstract x86-64 instruction record into the
// correct opcode bytes, including REX prefix, ModR/M, SIB, displacement,
// and relocation placeholders, per the System V AMD64 encoding rules.
package encoder

// Opcode is the abstract operation an Instruction performs. This is the
// core's own closed vocabulary, not a 1:1 mirror of the hardware mnemonic
// set: each Opcode maps to exactly the encodings this compiler emits.
type Opcode int

const (
	OpMov Opcode = iota
	OpLea
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpCmp
	OpTest
	OpNeg
	OpNot
	OpShl
	OpShr
	OpSar
	OpImul
	OpIdiv
	OpCqo
	OpPush
	OpPop
	OpJmp
	OpJe
	OpJne
	OpJl
	OpJle
	OpJg
	OpJge
	OpJb
	OpJbe
	OpJa
	OpJae
	OpCall
	OpLeave
	OpRet
	OpRepMovsq
	OpMovsd
	OpMovss
	OpAddsd
	OpSubsd
	OpMulsd
	OpDivsd
)

// OpType selects which encoding variant a given Opcode/operand
// combination uses.
type OpType int

const (
	TypeNone OpType = iota
	TypeReg
	TypeMem
	TypeImm
	TypeRegReg
	TypeRegMem
	TypeMemReg
	TypeImmReg
	TypeImmMem
)

// Instruction is the abstract record the encoder turns into machine code.
type Instruction struct {
	Opcode Opcode
	OpType OpType
	Src    Operand
	Dst    Operand
}

// RelocKind is an ELF64 x86-64 relocation type. Only the two kinds this
// core's encoder ever emits are represented.
type RelocKind int

const (
	R_X86_64_PC32 RelocKind = iota
	R_X86_64_32S
)

// RelocSink is the narrow interface the encoder requires of the (external,
// out of scope) ELF text emitter: record a relocation against a named
// symbol, and query the current signed displacement to a label's text
// offset.
type RelocSink interface {
	// AddRelocText registers a relocation of the given kind at
	// currentTextBase+offsetInInstr against sym, with the given addend.
	AddRelocText(sym string, kind RelocKind, offsetInInstr int, addend int64)
	// TextDisplacement returns the signed delta to sym's resolved text
	// offset from the end of the 4-byte displacement field that starts
	// offsetInInstr bytes into the instruction being encoded at the
	// current write position, or 0 if sym isn't resolved yet.
	TextDisplacement(sym string, offsetInInstr int) int32
}
