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

// Addr describes a memory operand's addressing mode: either RIP-relative
// to a symbol, or base(+index*scale)+disp.
type Addr struct {
	RIPRelative bool
	Sym         string // RIP-relative target
	SymAddend   int64

	HasBase  bool
	Base     RegIndex
	HasIndex bool
	Index    RegIndex
	Scale    uint8 // 1, 2, 4, or 8; meaningful only when HasIndex
	Disp     int32
}

// Memory is a memory operand: an addressing mode plus access width.
type Memory struct {
	Addr Addr
	W    uint8
}

// ImmKind distinguishes a plain integer immediate from a 32-bit
// symbol-relative absolute address immediate (IMM_ADDR).
type ImmKind int

const (
	ImmInt ImmKind = iota
	ImmAddr
)

// Immediate is an immediate operand: either a literal integer value, or a
// symbol+addend pair resolved to a relocated absolute address.
type Immediate struct {
	Kind   ImmKind
	Width  uint8
	Value  int64  // ImmInt
	Sym    string // ImmAddr
	Addend int64  // ImmAddr
}

// OperandKind tags which field of Operand is populated.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandMem
	OperandImm
)

// Operand is a variant over Register, Memory, and Immediate, matching the
// data model.
type Operand struct {
	Kind OperandKind
	Reg  Register
	Mem  Memory
	Imm  Immediate
}

// Reg builds a register Operand.
func Reg(r RegIndex, w uint8) Operand {
	return Operand{Kind: OperandReg, Reg: Register{R: r, W: w}}
}

// Mem builds a memory Operand.
func Mem(a Addr, w uint8) Operand {
	return Operand{Kind: OperandMem, Mem: Memory{Addr: a, W: w}}
}

// Imm builds an integer-immediate Operand.
func Imm(value int64, width uint8) Operand {
	return Operand{Kind: OperandImm, Imm: Immediate{Kind: ImmInt, Value: value, Width: width}}
}

// ImmAddress builds a symbol-address immediate Operand.
func ImmAddress(sym string, addend int64) Operand {
	return Operand{Kind: OperandImm, Imm: Immediate{Kind: ImmAddr, Sym: sym, Addend: addend, Width: 4}}
}
