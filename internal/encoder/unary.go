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

// unaryExt returns the F6/F7 group ModR/M extension for NEG (/3) and
// NOT (/2).
func unaryExt(op Opcode) uint8 {
	switch op {
	case OpNot:
		return 2
	case OpNeg:
		return 3
	default:
		panic("encoder: not a unary F6/F7 opcode")
	}
}

func encodeUnaryReg(op Opcode) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		dst := i.Dst.Reg
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, false, false, dst.R.Extended()) {
			out = append(out, rexPrefix(dst.W == 8, false, false, dst.R.Extended()))
		}
		opc := byte(0xF6)
		if wBit(dst.W) == 1 {
			opc = 0xF7
		}
		out = append(out, opc, modrm(0b11, unaryExt(op), dst.R.Encoding()))
		return out, nil
	}
}

func encodeUnaryMem(op Opcode) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		dst := i.Dst.Mem
		mem := encodeMemOperand(unaryExt(op), dst.Addr)
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, false, mem.extX, mem.extB) {
			out = append(out, rexPrefix(dst.W == 8, false, mem.extX, mem.extB))
		}
		opc := byte(0xF6)
		if wBit(dst.W) == 1 {
			opc = 0xF7
		}
		out = append(out, opc)
		out = append(out, mem.bytes...)
		return out, nil
	}
}

// encodePushReg encodes "PUSH reg" using the short form 0x50+reg. PUSH
// always operates on a 64-bit GPR in 64-bit mode; no REX.W is needed, but
// REX.B is required for R8..R15.
func encodePushReg(i Instruction, _ RelocSink) ([]byte, error) {
	dst := i.Dst.Reg
	var out []byte
	if dst.R.Extended() {
		out = append(out, rexPrefix(false, false, false, true))
	}
	out = append(out, 0x50+dst.R.Encoding())
	return out, nil
}

// encodePopReg encodes "POP reg" using the short form 0x58+reg.
func encodePopReg(i Instruction, _ RelocSink) ([]byte, error) {
	dst := i.Dst.Reg
	var out []byte
	if dst.R.Extended() {
		out = append(out, rexPrefix(false, false, false, true))
	}
	out = append(out, 0x58+dst.R.Encoding())
	return out, nil
}
