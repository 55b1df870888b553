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

// xmmEnc returns the 3-bit ModR/M/SIB register field for an XMM register,
// reusing the same (r-1)%8 scheme as the GPRs.
func xmmEnc(r RegIndex) uint8 { return r.Encoding() }

// xmmExt reports whether r is XMM8..XMM15. This core only ever allocates
// XMM0..XMM7 (the System V SSE argument/return class never needs more),
// so this is always false for operands built through this package. The
// encoders below do not call it; their REX computation uses
// RegIndex.Extended, as the GPR paths do.
func xmmExt(_ RegIndex) bool { return false }

// encodeSSEArithRegReg encodes a scalar double-precision arithmetic op
// (ADDSD/SUBSD/MULSD/DIVSD): F2 0F <op> /r, operating on XMM registers.
func encodeSSEArithRegReg(opc byte) encodeFunc {
	return func(i Instruction, _ RelocSink) ([]byte, error) {
		src, dst := i.Src.Reg, i.Dst.Reg
		var out []byte
		out = append(out, 0xF2)
		if needsRex(false, dst.R.Extended(), false, src.R.Extended()) {
			out = append(out, rexPrefix(false, dst.R.Extended(), false, src.R.Extended()))
		}
		out = append(out, 0x0F, opc, modrm(0b11, xmmEnc(dst.R), xmmEnc(src.R)))
		return out, nil
	}
}

// movsdOrSs encodes MOVSD (F2) or MOVSS (F3) for the three operand shapes
// this core needs: reg<-reg and reg<-mem use the load form (opcode 0x10),
// mem<-reg the store form (opcode 0x11).
func movsdOrSs(mandatoryPrefix byte) struct{ regReg, regMem, memReg encodeFunc } {
	regReg := func(i Instruction, _ RelocSink) ([]byte, error) {
		src, dst := i.Src.Reg, i.Dst.Reg
		var out []byte
		out = append(out, mandatoryPrefix)
		if needsRex(false, dst.R.Extended(), false, src.R.Extended()) {
			out = append(out, rexPrefix(false, dst.R.Extended(), false, src.R.Extended()))
		}
		out = append(out, 0x0F, 0x10, modrm(0b11, xmmEnc(dst.R), xmmEnc(src.R)))
		return out, nil
	}
	// regMem stores an XMM register into memory (source register,
	// destination memory, matching the OpType naming used throughout the
	// dispatch table).
	regMem := func(i Instruction, _ RelocSink) ([]byte, error) {
		src, dst := i.Src.Reg, i.Dst.Mem
		mem := encodeMemOperand(xmmEnc(src.R), dst.Addr)
		var out []byte
		out = append(out, mandatoryPrefix)
		if needsRex(false, src.R.Extended(), mem.extX, mem.extB) {
			out = append(out, rexPrefix(false, src.R.Extended(), mem.extX, mem.extB))
		}
		out = append(out, 0x0F, 0x11)
		out = append(out, mem.bytes...)
		return out, nil
	}
	// memReg loads memory into an XMM register.
	memReg := func(i Instruction, _ RelocSink) ([]byte, error) {
		src, dst := i.Src.Mem, i.Dst.Reg
		mem := encodeMemOperand(xmmEnc(dst.R), src.Addr)
		var out []byte
		out = append(out, mandatoryPrefix)
		if needsRex(false, dst.R.Extended(), mem.extX, mem.extB) {
			out = append(out, rexPrefix(false, dst.R.Extended(), mem.extX, mem.extB))
		}
		out = append(out, 0x0F, 0x10)
		out = append(out, mem.bytes...)
		return out, nil
	}
	return struct{ regReg, regMem, memReg encodeFunc }{regReg, regMem, memReg}
}

var movsdForms = movsdOrSs(0xF2)
var movssForms = movsdOrSs(0xF3)

func encodeMovsdRegReg(i Instruction, sink RelocSink) ([]byte, error) {
	return movsdForms.regReg(i, sink)
}
func encodeMovsdRegMem(i Instruction, sink RelocSink) ([]byte, error) {
	return movsdForms.regMem(i, sink)
}
func encodeMovsdMemReg(i Instruction, sink RelocSink) ([]byte, error) {
	return movsdForms.memReg(i, sink)
}

func encodeMovssRegReg(i Instruction, sink RelocSink) ([]byte, error) {
	return movssForms.regReg(i, sink)
}
func encodeMovssRegMem(i Instruction, sink RelocSink) ([]byte, error) {
	return movssForms.regMem(i, sink)
}
func encodeMovssMemReg(i Instruction, sink RelocSink) ([]byte, error) {
	return movssForms.memReg(i, sink)
}
