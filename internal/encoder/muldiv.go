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

// encodeImulRegReg encodes the two-operand form "IMUL src, dst" as
// 0F AF /r: dst = dst * src. This is the only IMUL form this core emits;
// the one-operand AX:DX-widening form is never generated since the front
// end always has a destination register to reuse.
func encodeImulRegReg(i Instruction, _ RelocSink) ([]byte, error) {
	src, dst := i.Src.Reg, i.Dst.Reg
	if dst.W == 1 {
		return nil, fmt.Errorf("encoder: IMUL has no 8-bit two-operand form")
	}
	var out []byte
	if dst.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(dst.W == 8, dst.R.Extended(), false, src.R.Extended()) {
		out = append(out, rexPrefix(dst.W == 8, dst.R.Extended(), false, src.R.Extended()))
	}
	out = append(out, 0x0F, 0xAF, modrm(0b11, dst.R.Encoding(), src.R.Encoding()))
	return out, nil
}

// encodeIdivReg encodes "IDIV src": F7 /7, the signed AX:DX-widening
// division this core emits for both the quotient (OpDiv, read from AX
// after the instruction) and the remainder (OpMod, read from DX). The
// caller is responsible for sign-extending AX into DX (CQO/CDQ) before
// emitting this instruction; the encoder only encodes the division
// itself, per the narrow contract of each per-opcode builder.
func encodeIdivReg(i Instruction, _ RelocSink) ([]byte, error) {
	src := i.Src.Reg
	var out []byte
	if src.W == 2 {
		out = append(out, 0x66)
	}
	if needsRex(src.W == 8, false, false, src.R.Extended()) {
		out = append(out, rexPrefix(src.W == 8, false, false, src.R.Extended()))
	}
	opc := byte(0xF6)
	if wBit(src.W) == 1 {
		opc = 0xF7
	}
	out = append(out, opc, modrm(0b11, 7, src.R.Encoding()))
	return out, nil
}

// encodeCqo encodes the sign-extension of AX into DX:AX ahead of an
// IDIV, at the operand width carried by i.Dst (CDQ for 32-bit, CQO for
// 64-bit).
func encodeCqo(i Instruction, _ RelocSink) ([]byte, error) {
	w := i.Dst.Reg.W
	var out []byte
	if w == 8 {
		out = append(out, rexPrefix(true, false, false, false))
	}
	out = append(out, 0x99)
	return out, nil
}
