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

// encodeTestRegReg encodes "TEST src, dst" (0x84/0x85 /r): computes
// dst & src and sets flags, discarding the result. Used by branch
// lowering to re-derive a condition Var's truthiness immediately before
// a Jcc.
func encodeTestRegReg(i Instruction, _ RelocSink) ([]byte, error) {
	src, dst := i.Src.Reg, i.Dst.Reg
	opc := byte(0x84)
	if wBit(dst.W) == 1 {
		opc = 0x85
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
