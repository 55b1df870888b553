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

// shiftExt returns the D2/D3 group ModR/M extension for a shift opcode.
// SHR is /5 and SAR is /7; conflating the two silently turns every
// arithmetic right shift into a logical one.
func shiftExt(op Opcode) uint8 {
	switch op {
	case OpShl:
		return 4
	case OpShr:
		return 5
	case OpSar:
		return 7
	default:
		panic("encoder: not a shift opcode")
	}
}

// encodeShiftCL encodes "<op> CL, dst" using the D2/D3 /ext form, the only
// shift-count form this core emits: the count always comes from CL. Src
// must name CX at width 1; anything else is a construction error from the
// caller, not an encoding ambiguity, so it is rejected rather than
// silently reinterpreted.
func encodeShiftCL(op Opcode) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		src, dst := i.Src.Reg, i.Dst.Reg
		if src.R != CX || src.W != 1 {
			return nil, fmt.Errorf("encoder: shift count operand must be CL, got %s/%d", src.R, src.W)
		}
		var out []byte
		if dst.W == 2 {
			out = append(out, 0x66)
		}
		if needsRex(dst.W == 8, false, false, dst.R.Extended()) {
			out = append(out, rexPrefix(dst.W == 8, false, false, dst.R.Extended()))
		}
		opc := byte(0xD2)
		if wBit(dst.W) == 1 {
			opc = 0xD3
		}
		out = append(out, opc, modrm(0b11, shiftExt(op), dst.R.Encoding()))
		return out, nil
	}
}
