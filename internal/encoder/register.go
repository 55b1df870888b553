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

// RegIndex enumerates the x86-64 registers this core's encoder knows how
// to address. Indexes are chosen so that (r-1)%8 yields the 3-bit
// ModR/M encoding and r > DI identifies the extended GPRs R8..R15, per
// the data model.
type RegIndex uint8

const (
	AX RegIndex = iota + 1
	CX
	DX
	BX
	SP
	BP
	SI
	DI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
)

var regNames = map[RegIndex]string{
	AX: "AX", CX: "CX", DX: "DX", BX: "BX", SP: "SP", BP: "BP", SI: "SI", DI: "DI",
	R8: "R8", R9: "R9", R10: "R10", R11: "R11", R12: "R12", R13: "R13", R14: "R14", R15: "R15",
	XMM0: "XMM0", XMM1: "XMM1", XMM2: "XMM2", XMM3: "XMM3",
	XMM4: "XMM4", XMM5: "XMM5", XMM6: "XMM6", XMM7: "XMM7",
}

func (r RegIndex) String() string {
	if n, ok := regNames[r]; ok {
		return n
	}
	return "?"
}

// Encoding returns the 3-bit ModR/M/SIB/opcode-embedded register field.
func (r RegIndex) Encoding() uint8 {
	return uint8((r - 1) % 8)
}

// Extended reports whether r is one of the extended GPRs R8..R15,
// requiring a REX.B/R/X bit to address.
func (r RegIndex) Extended() bool {
	return r > DI && r <= R15
}

// IsXMM reports whether r names an XMM register.
func (r RegIndex) IsXMM() bool {
	return r >= XMM0 && r <= XMM7
}

// Register is a concrete operand register: an index plus the byte width
// it's being accessed at (1, 2, 4, or 8).
type Register struct {
	R RegIndex
	W uint8
}
