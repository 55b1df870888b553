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

// aluOpcodeBase returns the "/digit" ModR/M extension and the base
// opcode byte (the store-form, r/m += reg) for a two-operand ALU op.
func aluOpcodeBase(op Opcode) (ext uint8, base byte) {
	switch op {
	case OpAdd:
		return 0, 0x00
	case OpOr:
		return 1, 0x08
	case OpAnd:
		return 4, 0x20
	case OpSub:
		return 5, 0x28
	case OpXor:
		return 6, 0x30
	case OpCmp:
		return 7, 0x38
	default:
		panic("encoder: not an ALU opcode")
	}
}

func encodeALURegReg(op Opcode) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		_, base := aluOpcodeBase(op)
		src, dst := i.Src.Reg, i.Dst.Reg
		opc := base
		if wBit(dst.W) == 1 {
			opc |= 1
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
}

func encodeALURegMem(op Opcode) encodeFunc {
	return func(i Instruction, sink RelocSink) ([]byte, error) {
		_, base := aluOpcodeBase(op)
		src, dst := i.Src.Reg, i.Dst.Mem
		mem := encodeMemOperand(src.R.Encoding(), dst.Addr)
		opc := base
		if wBit(dst.W) == 1 {
			opc |= 1
		}
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, src.R.Extended(), mem.extX, mem.extB) {
			out = append(out, rexPrefix(dst.W == 8, src.R.Extended(), mem.extX, mem.extB))
		}
		out = append(out, opc)
		prefixLen := len(out)
		out = append(out, mem.bytes...)
		addRIPReloc(sink, dst.Addr, mem, prefixLen, 0)
		return out, nil
	}
}

func encodeALUMemReg(op Opcode) encodeFunc {
	return func(i Instruction, sink RelocSink) ([]byte, error) {
		_, base := aluOpcodeBase(op)
		src, dst := i.Src.Mem, i.Dst.Reg
		mem := encodeMemOperand(dst.R.Encoding(), src.Addr)
		opc := base + 2 // load-form (reg += r/m) is two past the store-form
		if wBit(dst.W) == 1 {
			opc |= 1
		}
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB) {
			out = append(out, rexPrefix(dst.W == 8, dst.R.Extended(), mem.extX, mem.extB))
		}
		out = append(out, opc)
		prefixLen := len(out)
		out = append(out, mem.bytes...)
		addRIPReloc(sink, src.Addr, mem, prefixLen, 0)
		return out, nil
	}
}

// encodeALUImmReg encodes "<op> imm, reg" with the 0x80/0x81 /ext imm
// group form. A 64-bit destination emits REX.W + 0x81 /ext + imm32; the
// CPU sign-extends the 32-bit immediate.
func encodeALUImmReg(op Opcode) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		ext, _ := aluOpcodeBase(op)
		dst := i.Dst.Reg
		imm := i.Src.Imm
		if imm.Kind != ImmInt {
			return nil, fmt.Errorf("encoder: ALU imm,reg requires an integer immediate")
		}
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, false, false, dst.R.Extended()) {
			out = append(out, rexPrefix(dst.W == 8, false, false, dst.R.Extended()))
		}
		opc := byte(0x80)
		if wBit(dst.W) == 1 {
			opc = 0x81
		}
		out = append(out, opc, modrm(0b11, ext, dst.R.Encoding()))
		switch dst.W {
		case 1:
			out = append(out, byte(imm.Value))
		case 2:
			out = append(out, byte(imm.Value), byte(imm.Value>>8))
		default: // 4 or 8: imm32, sign-extended by the CPU for the 8-byte case
			out = append(out, leb32(int32(imm.Value))...)
		}
		return out, nil
	}
}

func encodeALUImmMem(op Opcode) encodeFunc {
	return func(i Instruction, sink RelocSink) ([]byte, error) {
		ext, _ := aluOpcodeBase(op)
		dst := i.Dst.Mem
		imm := i.Src.Imm
		if imm.Kind != ImmInt {
			return nil, fmt.Errorf("encoder: ALU imm,mem requires an integer immediate")
		}
		mem := encodeMemOperand(ext, dst.Addr)
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, false, mem.extX, mem.extB) {
			out = append(out, rexPrefix(dst.W == 8, false, mem.extX, mem.extB))
		}
		opc := byte(0x80)
		if wBit(dst.W) == 1 {
			opc = 0x81
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
}
