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

// encodeKey is the (Opcode, OpType) pair the dispatch table is keyed on.
type encodeKey struct {
	op Opcode
	ot OpType
}

// encodeFunc produces an instruction's bytes, recording relocations
// against sink. Relocation offsets passed to sink are local to the
// instruction being encoded; sink is responsible for tracking the
// absolute .text write cursor.
type encodeFunc func(i Instruction, sink RelocSink) ([]byte, error)

// table dispatches (Opcode, OpType) to the function that knows how to
// encode it. Unrecognised combinations are a returned error from Encode,
// never a silently-emitted NOP: higher layers are expected to never
// construct one, so surfacing the mismatch immediately is more useful
// than limping forward.
var table = map[encodeKey]encodeFunc{}

func register(op Opcode, ot OpType, fn encodeFunc) {
	table[encodeKey{op, ot}] = fn
}

func init() {
	aluOps := []Opcode{OpAdd, OpSub, OpAnd, OpOr, OpXor, OpCmp}
	for _, op := range aluOps {
		op := op
		register(op, TypeRegReg, encodeALURegReg(op))
		register(op, TypeRegMem, encodeALURegMem(op))
		register(op, TypeMemReg, encodeALUMemReg(op))
		register(op, TypeImmReg, encodeALUImmReg(op))
		register(op, TypeImmMem, encodeALUImmMem(op))
	}

	register(OpMov, TypeRegReg, encodeMovRegReg)
	register(OpMov, TypeRegMem, encodeMovRegMem)
	register(OpMov, TypeMemReg, encodeMovMemReg)
	register(OpMov, TypeImmReg, encodeMovImmReg)
	register(OpMov, TypeImmMem, encodeMovImmMem)

	register(OpLea, TypeRegMem, encodeLea)

	register(OpNeg, TypeReg, encodeUnaryReg(OpNeg))
	register(OpNot, TypeReg, encodeUnaryReg(OpNot))
	register(OpNeg, TypeMem, encodeUnaryMem(OpNeg))
	register(OpNot, TypeMem, encodeUnaryMem(OpNot))

	register(OpPush, TypeReg, encodePushReg)
	register(OpPop, TypeReg, encodePopReg)

	register(OpImul, TypeRegReg, encodeImulRegReg)
	register(OpIdiv, TypeReg, encodeIdivReg)
	register(OpCqo, TypeReg, encodeCqo)
	register(OpTest, TypeRegReg, encodeTestRegReg)

	shiftOps := []Opcode{OpShl, OpShr, OpSar}
	for _, op := range shiftOps {
		register(op, TypeRegReg, encodeShiftCL(op))
	}

	jumps := map[Opcode]byte{
		OpJe: 0x84, OpJne: 0x85, OpJl: 0x8C, OpJle: 0x8E,
		OpJg: 0x8F, OpJge: 0x8D, OpJb: 0x82, OpJbe: 0x86,
		OpJa: 0x87, OpJae: 0x83,
	}
	for op, cc := range jumps {
		register(op, TypeImm, encodeJcc(cc))
	}
	register(OpJmp, TypeImm, encodeJmp)
	register(OpCall, TypeImm, encodeCall)

	register(OpLeave, TypeNone, encodeLeave)
	register(OpRet, TypeNone, encodeRet)
	register(OpRepMovsq, TypeNone, encodeRepMovsq)

	sse := map[Opcode]byte{OpAddsd: 0x58, OpSubsd: 0x5C, OpMulsd: 0x59, OpDivsd: 0x5E}
	for op, opc := range sse {
		register(op, TypeRegReg, encodeSSEArithRegReg(opc))
	}
	register(OpMovsd, TypeRegReg, encodeMovsdRegReg)
	register(OpMovsd, TypeRegMem, encodeMovsdRegMem)
	register(OpMovsd, TypeMemReg, encodeMovsdMemReg)
	register(OpMovss, TypeRegReg, encodeMovssRegReg)
	register(OpMovss, TypeRegMem, encodeMovssRegMem)
	register(OpMovss, TypeMemReg, encodeMovssMemReg)
}

// Encode turns a single Instruction into its byte sequence, recording any
// relocations it requires against sink.
func Encode(i Instruction, sink RelocSink) ([]byte, error) {
	fn, ok := table[encodeKey{i.Opcode, i.OpType}]
	if !ok {
		return nil, fmt.Errorf("encoder: no encoding for opcode %d with operand type %d", i.Opcode, i.OpType)
	}
	out, err := fn(i, sink)
	if err != nil {
		return nil, err
	}
	if len(out) > 15 {
		return nil, fmt.Errorf("encoder: instruction exceeds 15 bytes (%d)", len(out))
	}
	return out, nil
}
