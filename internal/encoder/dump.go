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

import (
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"
)

var mnemonics = map[Opcode]string{
	OpMov: "mov", OpLea: "lea", OpAdd: "add", OpSub: "sub", OpAnd: "and",
	OpOr: "or", OpXor: "xor", OpCmp: "cmp", OpTest: "test", OpNeg: "neg",
	OpNot: "not", OpShl: "shl", OpShr: "shr", OpSar: "sar", OpImul: "imul",
	OpIdiv: "idiv", OpCqo: "cqo", OpPush: "push", OpPop: "pop", OpJmp: "jmp", OpJe: "je",
	OpJne: "jne", OpJl: "jl", OpJle: "jle", OpJg: "jg", OpJge: "jge",
	OpJb: "jb", OpJbe: "jbe", OpJa: "ja", OpJae: "jae", OpCall: "call",
	OpLeave: "leave", OpRet: "ret", OpRepMovsq: "rep movsq", OpMovsd: "movsd",
	OpMovss: "movss", OpAddsd: "addsd", OpSubsd: "subsd", OpMulsd: "mulsd",
	OpDivsd: "divsd",
}

func operandText(o Operand) string {
	switch o.Kind {
	case OperandReg:
		return "%" + strings.ToLower(o.Reg.R.String())
	case OperandMem:
		a := o.Mem.Addr
		if a.RIPRelative {
			return fmt.Sprintf("%s+%d(%%rip)", a.Sym, a.SymAddend)
		}
		var b strings.Builder
		if a.Disp != 0 {
			fmt.Fprintf(&b, "%d", a.Disp)
		}
		b.WriteByte('(')
		if a.HasBase {
			b.WriteByte('%')
			b.WriteString(strings.ToLower(a.Base.String()))
		}
		if a.HasIndex {
			fmt.Fprintf(&b, ",%%%s,%d", strings.ToLower(a.Index.String()), a.Scale)
		}
		b.WriteByte(')')
		return b.String()
	case OperandImm:
		if o.Imm.Kind == ImmAddr {
			return fmt.Sprintf("$%s+%d", o.Imm.Sym, o.Imm.Addend)
		}
		return fmt.Sprintf("$%d", o.Imm.Value)
	default:
		return ""
	}
}

// Dump renders a best-effort AT&T-style textual listing of an encoded
// instruction stream, piped through asmfmt for consistent column
// alignment.
func Dump(instrs []Instruction) (string, error) {
	var b strings.Builder
	for _, i := range instrs {
		mnem, ok := mnemonics[i.Opcode]
		if !ok {
			mnem = "?"
		}
		var operands []string
		if i.Src.Kind != OperandNone {
			operands = append(operands, operandText(i.Src))
		}
		if i.Dst.Kind != OperandNone {
			operands = append(operands, operandText(i.Dst))
		}
		fmt.Fprintf(&b, "\t%s %s\n", mnem, strings.Join(operands, ", "))
	}
	out, err := asmfmt.Format(strings.NewReader(b.String()))
	if err != nil {
		return b.String(), nil
	}
	return string(out), nil
}
