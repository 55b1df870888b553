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

// relocAddendCorrection accounts for the disp32 field being measured from
// its own start rather than the end of the instruction: the standard
// PC32 relocation convention folds that four-byte correction into the
// addend itself rather than the displacement value, so every recorded
// relocation here carries it.
const relocAddendCorrection = -4

// branchDisplacement computes the 32-bit PC-relative displacement field
// for a branch/call instruction: the sink's current best estimate of the
// distance to sym (0 if sym isn't resolved yet) plus addend. sink always
// also records the relocation, so a linker or later internal resolution
// pass can correct the placeholder regardless of whether it could be
// computed immediately.
func branchDisplacement(sink RelocSink, sym string, offsetInInstr int, addend int64) int32 {
	return sink.TextDisplacement(sym, offsetInInstr) + int32(addend)
}

// encodeJcc encodes the near, two-byte form of a conditional jump: 0F 8x
// + rel32.
func encodeJcc(cc byte) encodeFunc {
	return func(i Instruction, sink RelocSink) ([]byte, error) {
		imm := i.Src.Imm
		if imm.Kind != ImmAddr {
			return nil, fmt.Errorf("encoder: Jcc requires a symbol address immediate")
		}
		const offsetInInstr = 2
		disp := branchDisplacement(sink, imm.Sym, offsetInInstr, imm.Addend)
		sink.AddRelocText(imm.Sym, R_X86_64_PC32, offsetInInstr, imm.Addend+relocAddendCorrection)
		out := []byte{0x0F, cc}
		out = append(out, leb32(disp)...)
		return out, nil
	}
}

// encodeJmp encodes the near, one-byte form of an unconditional jump: E9
// + rel32.
func encodeJmp(i Instruction, sink RelocSink) ([]byte, error) {
	imm := i.Src.Imm
	if imm.Kind != ImmAddr {
		return nil, fmt.Errorf("encoder: JMP requires a symbol address immediate")
	}
	const offsetInInstr = 1
	disp := branchDisplacement(sink, imm.Sym, offsetInInstr, imm.Addend)
	sink.AddRelocText(imm.Sym, R_X86_64_PC32, offsetInInstr, imm.Addend+relocAddendCorrection)
	out := []byte{0xE9}
	out = append(out, leb32(disp)...)
	return out, nil
}

// encodeCall encodes the near, relative form of CALL: E8 + rel32.
func encodeCall(i Instruction, sink RelocSink) ([]byte, error) {
	imm := i.Src.Imm
	if imm.Kind != ImmAddr {
		return nil, fmt.Errorf("encoder: CALL requires a symbol address immediate")
	}
	const offsetInInstr = 1
	disp := branchDisplacement(sink, imm.Sym, offsetInInstr, imm.Addend)
	sink.AddRelocText(imm.Sym, R_X86_64_PC32, offsetInInstr, imm.Addend+relocAddendCorrection)
	out := []byte{0xE8}
	out = append(out, leb32(disp)...)
	return out, nil
}
