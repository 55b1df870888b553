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

// codegen lowers the core's CFG-IR (internal/ir) to x86-64 instructions
// via internal/abi and internal/encoder. It is the minimal but real
// subset the out-of-scope expression/statement evaluator would otherwise
// drive: integer/pointer arithmetic, assignment, calls, returns, compares
// and branches. It is deliberately a stack-machine codegen with no
// register allocator, matching the scale of "glue" this driver is meant
// to be rather than a second optimizing back end.
package main

import (
	"fmt"

	"github.com/gorse-io/cc64/internal/abi"
	"github.com/gorse-io/cc64/internal/elfobj"
	"github.com/gorse-io/cc64/internal/encoder"
	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/types"
)

// assignFrame walks params and locals and gives each a negative
// rbp-relative stack offset, packed in declaration order with each slot
// aligned to its own symbol alignment (symtab.SymbolAlignment). It
// returns the total frame size, rounded up to a 16-byte boundary as the
// System V AMD64 ABI requires at a call site.
func assignFrame(def *ir.Definition) int {
	off := 0
	place := func(s *symtab.Symbol) {
		if s.Type == nil {
			return
		}
		size := types.SizeOf(types.Unwrap(s.Type))
		align := symtab.SymbolAlignment(s.Type)
		off += size
		if rem := off % align; rem != 0 {
			off += align - rem
		}
		s.Payload.StackOffset = -off
	}
	for _, p := range def.Params {
		place(p)
	}
	for _, l := range def.Locals {
		place(l)
	}
	if rem := off % 16; rem != 0 {
		off += 16 - rem
	}
	return off
}

// widthOf returns the encoder operand width for a Var's type: defaults to
// 8 (pointer-sized) when the type is nil, as happens for synthetic
// label/condition Vars that never reach the encoder directly.
func widthOf(v *ir.Var) uint8 {
	if v == nil || v.Type == nil {
		return 8
	}
	switch w := types.SizeOf(types.Unwrap(v.Type)); w {
	case 1, 2, 4, 8:
		return uint8(w)
	default:
		return 8
	}
}

// directMem builds the memory Operand addressing a Direct Var's own
// storage: its stack slot if it is a local/parameter (ScopeDepth > 0), or
// a RIP-relative reference to its name otherwise (file-scope globals).
func directMem(sym *symtab.Symbol, extraOff int, w uint8) encoder.Operand {
	if sym.ScopeDepth > 0 {
		return encoder.Mem(encoder.Addr{HasBase: true, Base: encoder.BP, Disp: int32(sym.Payload.StackOffset + extraOff)}, w)
	}
	return encoder.Mem(encoder.Addr{RIPRelative: true, Sym: sym.Name, SymAddend: int64(extraOff)}, w)
}

// resolveOperand turns a Var into an encoder.Operand at width w, emitting
// whatever setup instructions are needed first: Direct and Immediate
// Vars need none; Address needs a LEA into ptrReg; Deref needs the
// pointer symbol's value loaded into ptrReg before it can be used as a
// memory base.
func resolveOperand(v *ir.Var, w uint8, ptrReg encoder.RegIndex) (pre []encoder.Instruction, operand encoder.Operand) {
	switch v.Kind {
	case ir.Immediate:
		return nil, encoder.Imm(v.ImmValue, w)
	case ir.Direct:
		return nil, directMem(v.Symbol, v.Offset, w)
	case ir.Address:
		pre = []encoder.Instruction{{
			Opcode: encoder.OpLea, OpType: encoder.TypeRegMem,
			Src: directMem(v.Symbol, 0, 8), Dst: encoder.Reg(ptrReg, 8),
		}}
		return pre, encoder.Reg(ptrReg, 8)
	case ir.Deref:
		pre = []encoder.Instruction{{
			Opcode: encoder.OpMov, OpType: encoder.TypeMemReg,
			Src: directMem(v.Symbol, 0, 8), Dst: encoder.Reg(ptrReg, 8),
		}}
		return pre, encoder.Mem(encoder.Addr{HasBase: true, Base: ptrReg, Disp: int32(v.Offset)}, w)
	default:
		return nil, encoder.Reg(ptrReg, w)
	}
}

// regSrcOpType picks the OpType a MOV/ALU instruction into a register
// destination needs, based on what kind of operand resolveOperand
// actually produced for its source (memory, another register, or an
// immediate): loadA/loadB resolve to any of the three depending on the
// Var's Kind, so the instruction built around them can't hard-code one.
func regSrcOpType(src encoder.Operand) encoder.OpType {
	switch src.Kind {
	case encoder.OperandImm:
		return encoder.TypeImmReg
	case encoder.OperandReg:
		return encoder.TypeRegReg
	default:
		return encoder.TypeMemReg
	}
}

// toReg builds an instruction computing dstReg = dstReg <opc> src (or,
// for OpMov, dstReg = src), picking the operand-type variant src's kind
// requires.
func toReg(opc encoder.Opcode, dstReg encoder.RegIndex, w uint8, src encoder.Operand) encoder.Instruction {
	return encoder.Instruction{Opcode: opc, OpType: regSrcOpType(src), Src: src, Dst: encoder.Reg(dstReg, w)}
}

// fromReg builds a MOV storing srcReg into dst, which is ordinarily
// memory but may itself be a register when dst came from an
// already-materialized pointer (resolveOperand's Address case).
func fromReg(dst encoder.Operand, w uint8, srcReg encoder.RegIndex) encoder.Instruction {
	ot := encoder.TypeRegMem
	if dst.Kind == encoder.OperandReg {
		ot = encoder.TypeRegReg
	}
	return encoder.Instruction{Opcode: encoder.OpMov, OpType: ot, Src: encoder.Reg(srcReg, w), Dst: dst}
}

// aluOpcode maps the IR's arithmetic/logic/compare OpType to the
// encoder's Opcode vocabulary, or ok=false for ops that need special
// handling (mul/div, shifts, unary, casts, loads/stores, calls).
func aluOpcode(op ir.OpType) (encoder.Opcode, bool) {
	switch op {
	case ir.OpAdd:
		return encoder.OpAdd, true
	case ir.OpSub:
		return encoder.OpSub, true
	case ir.OpAnd:
		return encoder.OpAnd, true
	case ir.OpOr:
		return encoder.OpOr, true
	case ir.OpXor:
		return encoder.OpXor, true
	case ir.OpEq, ir.OpNe, ir.OpLt, ir.OpLe, ir.OpGt, ir.OpGe:
		return encoder.OpCmp, true
	default:
		return 0, false
	}
}

var jccFor = map[ir.OpType]encoder.Opcode{
	ir.OpEq: encoder.OpJe, ir.OpNe: encoder.OpJne,
	ir.OpLt: encoder.OpJl, ir.OpLe: encoder.OpJle,
	ir.OpGt: encoder.OpJg, ir.OpGe: encoder.OpJge,
}

func isCompare(op ir.OpType) bool {
	_, ok := jccFor[op]
	return ok
}

// genStatement lowers one three-address Statement to a sequence of
// instructions, using AX/CX as the arithmetic scratch registers and
// R10/R11 for any pointer materialized along the way (Address/Deref
// operands), leaving AX holding the statement's result, stored to the
// target's location last.
func genStatement(st ir.Statement) ([]encoder.Instruction, error) {
	w := widthOf(st.Target)
	if st.A != nil && st.Target == nil {
		w = widthOf(st.A)
	}
	var out []encoder.Instruction
	emit := func(i encoder.Instruction) { out = append(out, i) }
	emitAll := func(is []encoder.Instruction) {
		out = append(out, is...)
	}

	loadA := func(w uint8) encoder.Operand {
		pre, op := resolveOperand(st.A, w, encoder.R10)
		emitAll(pre)
		return op
	}
	loadB := func(w uint8) encoder.Operand {
		pre, op := resolveOperand(st.B, w, encoder.R11)
		emitAll(pre)
		return op
	}

	switch st.Op {
	case ir.OpLoad, ir.OpCast:
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
	case ir.OpAddrOf:
		pre, _ := resolveOperand(&ir.Var{Kind: ir.Address, Symbol: st.A.Symbol, Offset: st.A.Offset}, 8, encoder.AX)
		emitAll(pre)
	case ir.OpStore:
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
	case ir.OpNeg, ir.OpNot:
		uop := encoder.OpNeg
		if st.Op == ir.OpNot {
			uop = encoder.OpNot
		}
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
		emit(encoder.Instruction{Opcode: uop, OpType: encoder.TypeReg, Dst: encoder.Reg(encoder.AX, w)})
	case ir.OpMul, ir.OpDiv, ir.OpMod:
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
		emit(toReg(encoder.OpMov, encoder.CX, w, loadB(w)))
		if st.Op == ir.OpMul {
			emit(encoder.Instruction{Opcode: encoder.OpImul, OpType: encoder.TypeRegReg, Src: encoder.Reg(encoder.CX, w), Dst: encoder.Reg(encoder.AX, w)})
		} else {
			emit(encoder.Instruction{Opcode: encoder.OpCqo, OpType: encoder.TypeReg, Dst: encoder.Reg(encoder.AX, w)})
			emit(encoder.Instruction{Opcode: encoder.OpIdiv, OpType: encoder.TypeReg, Src: encoder.Reg(encoder.CX, w)})
			if st.Op == ir.OpMod {
				emit(encoder.Instruction{Opcode: encoder.OpMov, OpType: encoder.TypeRegReg, Src: encoder.Reg(encoder.DX, w), Dst: encoder.Reg(encoder.AX, w)})
			}
		}
	case ir.OpShl, ir.OpShr:
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
		emit(toReg(encoder.OpMov, encoder.CX, 1, loadB(1)))
		shiftOp := encoder.OpShl
		if st.Op == ir.OpShr {
			shiftOp = encoder.OpShr
		}
		emit(encoder.Instruction{Opcode: shiftOp, OpType: encoder.TypeRegReg, Src: encoder.Reg(encoder.CX, 1), Dst: encoder.Reg(encoder.AX, w)})
	default:
		opc, ok := aluOpcode(st.Op)
		if !ok {
			return nil, fmt.Errorf("codegen: unsupported statement op %d", st.Op)
		}
		emit(toReg(encoder.OpMov, encoder.AX, w, loadA(w)))
		emit(toReg(opc, encoder.AX, w, loadB(w)))
	}

	if st.Target != nil {
		pre, dst := resolveOperand(st.Target, w, encoder.R10)
		emitAll(pre)
		emit(fromReg(dst, w, encoder.AX))
	}
	return out, nil
}

// genBlock lowers one Block's statements and terminator. A two-way
// branch always tests AX (the last comparison's flags are not carried
// across a statement boundary by this minimal codegen, so the condition
// Var's truthiness is re-tested here via TEST) and jumps to Then on
// nonzero, falling through to an explicit jump to Else otherwise.
func genBlock(w *elfobj.Writer, b *ir.Block, epilogue string) error {
	for _, st := range b.Code {
		instrs, err := genStatement(st)
		if err != nil {
			return err
		}
		if err := emitInstrs(w, instrs); err != nil {
			return err
		}
	}

	switch b.Term.Kind {
	case ir.TermReturn:
		if b.Term.RetExpr != nil {
			rw := widthOf(b.Term.RetExpr)
			pre, src := resolveOperand(b.Term.RetExpr, rw, encoder.R10)
			if err := emitInstrs(w, pre); err != nil {
				return err
			}
			if err := emitInstrs(w, []encoder.Instruction{toReg(encoder.OpMov, encoder.AX, rw, src)}); err != nil {
				return err
			}
		}
		jmp := encoder.Instruction{Opcode: encoder.OpJmp, OpType: encoder.TypeImm, Src: encoder.ImmAddress(epilogue, 0)}
		return emitInstrs(w, []encoder.Instruction{jmp})
	case ir.TermBranch:
		pre, cond := resolveOperand(b.Term.Cond, 4, encoder.R10)
		if err := emitInstrs(w, pre); err != nil {
			return err
		}
		mov := toReg(encoder.OpMov, encoder.AX, 4, cond)
		test := encoder.Instruction{Opcode: encoder.OpTest, OpType: encoder.TypeRegReg, Src: encoder.Reg(encoder.AX, 4), Dst: encoder.Reg(encoder.AX, 4)}
		jcc := encoder.Instruction{Opcode: encoder.OpJne, OpType: encoder.TypeImm, Src: encoder.ImmAddress(b.Term.Then.Label.Name, 0)}
		jmp := encoder.Instruction{Opcode: encoder.OpJmp, OpType: encoder.TypeImm, Src: encoder.ImmAddress(b.Term.Else.Label.Name, 0)}
		return emitInstrs(w, []encoder.Instruction{mov, test, jcc, jmp})
	case ir.TermFall:
		if b.Term.Next != nil {
			jmp := encoder.Instruction{Opcode: encoder.OpJmp, OpType: encoder.TypeImm, Src: encoder.ImmAddress(b.Term.Next.Label.Name, 0)}
			return emitInstrs(w, []encoder.Instruction{jmp})
		}
	}
	return nil
}

func emitInstrs(w *elfobj.Writer, instrs []encoder.Instruction) error {
	for _, ins := range instrs {
		bytes, err := encoder.Encode(ins, w)
		if err != nil {
			return err
		}
		w.AppendText(bytes)
	}
	return nil
}

// genFunction lowers one function Definition: prologue (push rbp; mov
// rsp,rbp; sub frame,rsp), parameter spill from the ABI-classified
// incoming registers to their stack slots, each block's body in order
// (recording every block's label at the text offset it's reached, so
// later blocks' backward branches and this function's own forward
// branches both resolve through internal/elfobj's TextDisplacement), and
// a shared epilogue (leave; ret) every return funnels through.
func genFunction(w *elfobj.Writer, def *ir.Definition) error {
	start := w.TextLen()
	frame := assignFrame(def)

	prologue := []encoder.Instruction{
		{Opcode: encoder.OpPush, OpType: encoder.TypeReg, Dst: encoder.Reg(encoder.BP, 8)},
		{Opcode: encoder.OpMov, OpType: encoder.TypeRegReg, Src: encoder.Reg(encoder.SP, 8), Dst: encoder.Reg(encoder.BP, 8)},
	}
	if frame > 0 {
		prologue = append(prologue, encoder.Instruction{
			Opcode: encoder.OpSub, OpType: encoder.TypeImmReg,
			Src: encoder.Imm(int64(frame), 8), Dst: encoder.Reg(encoder.SP, 8),
		})
	}
	if err := emitInstrs(w, prologue); err != nil {
		return err
	}

	cc := abi.ClassifySignature(def.Symbol.Type)
	intRegByName := map[string]encoder.RegIndex{
		"DI": encoder.DI, "SI": encoder.SI, "DX": encoder.DX,
		"CX": encoder.CX, "R8": encoder.R8, "R9": encoder.R9,
	}
	for i, p := range def.Params {
		if i >= len(cc.Args) || cc.Args[i].Memory || len(cc.Args[i].IntRegs) == 0 {
			continue
		}
		pw := widthOf(&ir.Var{Type: p.Type})
		for slot, regName := range cc.Args[i].IntRegs {
			sw := pw
			if len(cc.Args[i].IntRegs) > 1 {
				sw = 8 // multi-eightbyte aggregate: spill one full eightbyte per register
			}
			ins := encoder.Instruction{
				Opcode: encoder.OpMov, OpType: encoder.TypeRegMem,
				Src: encoder.Reg(intRegByName[regName], sw),
				Dst: encoder.Mem(encoder.Addr{HasBase: true, Base: encoder.BP, Disp: int32(p.Payload.StackOffset + slot*8)}, sw),
			}
			if err := emitInstrs(w, []encoder.Instruction{ins}); err != nil {
				return err
			}
		}
	}

	epilogue := def.Symbol.Name + ".epilogue"
	for _, b := range def.Nodes {
		if b.Label != nil {
			w.DefineLabel(b.Label.Name, w.TextLen())
		}
		if err := genBlock(w, b, epilogue); err != nil {
			return err
		}
	}

	w.DefineLabel(epilogue, w.TextLen())
	leave := encoder.Instruction{Opcode: encoder.OpLeave, OpType: encoder.TypeNone}
	ret := encoder.Instruction{Opcode: encoder.OpRet, OpType: encoder.TypeNone}
	if err := emitInstrs(w, []encoder.Instruction{leave, ret}); err != nil {
		return err
	}

	binding := elfobj.BindGlobal
	if def.Symbol.Linkage == symtab.Intern {
		binding = elfobj.BindLocal
	}
	w.DefineFunction(def.Symbol.Name, binding, start, w.TextLen()-start)
	return nil
}
