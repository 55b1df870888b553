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

package main

import (
	"testing"

	"github.com/gorse-io/cc64/internal/elfobj"
	"github.com/gorse-io/cc64/internal/encoder"
	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/types"
)

func TestAssignFrameOrdersParamsThenLocalsWithAlignment(t *testing.T) {
	reg := types.NewRegistry()
	p := &symtab.Symbol{Name: "p", Type: reg.NewInt(4, false)}
	l1 := &symtab.Symbol{Name: "l1", Type: reg.NewInt(1, false)}
	l2 := &symtab.Symbol{Name: "l2", Type: reg.NewInt(8, false)}
	def := &ir.Definition{Params: []*symtab.Symbol{p}, Locals: []*symtab.Symbol{l1, l2}}

	frame := assignFrame(def)

	if p.Payload.StackOffset != -4 {
		t.Fatalf("param offset = %d, want -4", p.Payload.StackOffset)
	}
	// l1 (1 byte) placed right after p at offset 5, then l2 (8-byte
	// aligned long) must round up to the next multiple of 8 before being
	// placed, landing at -16.
	if l1.Payload.StackOffset != -5 {
		t.Fatalf("l1 offset = %d, want -5", l1.Payload.StackOffset)
	}
	if l2.Payload.StackOffset != -16 {
		t.Fatalf("l2 offset = %d, want -16", l2.Payload.StackOffset)
	}
	if frame%16 != 0 {
		t.Fatalf("frame size %d is not 16-byte aligned", frame)
	}
}

func TestWidthOfDefaultsToPointerSizeForNilType(t *testing.T) {
	if widthOf(nil) != 8 {
		t.Fatalf("widthOf(nil) = %d, want 8", widthOf(nil))
	}
	if widthOf(&ir.Var{}) != 8 {
		t.Fatalf("widthOf(untyped Var) = %d, want 8", widthOf(&ir.Var{}))
	}
}

func TestGenStatementAddEmitsLoadAddStore(t *testing.T) {
	reg := types.NewRegistry()
	intType := reg.NewInt(4, false)
	a := &symtab.Symbol{Name: "a", Type: intType, ScopeDepth: 1, Payload: symtab.Payload{StackOffset: -4}}
	b := &symtab.Symbol{Name: "b", Type: intType, ScopeDepth: 1, Payload: symtab.Payload{StackOffset: -8}}
	tgt := &symtab.Symbol{Name: "c", Type: intType, ScopeDepth: 1, Payload: symtab.Payload{StackOffset: -12}}

	st := ir.Statement{
		Target: &ir.Var{Kind: ir.Direct, Symbol: tgt, Type: intType},
		Op:     ir.OpAdd,
		A:      &ir.Var{Kind: ir.Direct, Symbol: a, Type: intType},
		B:      &ir.Var{Kind: ir.Direct, Symbol: b, Type: intType},
	}

	instrs, err := genStatement(st)
	if err != nil {
		t.Fatalf("genStatement: %v", err)
	}
	if len(instrs) != 3 {
		t.Fatalf("expected 3 instructions (load, add, store), got %d: %+v", len(instrs), instrs)
	}
	if instrs[0].Opcode != encoder.OpMov || instrs[1].Opcode != encoder.OpAdd || instrs[2].Opcode != encoder.OpMov {
		t.Fatalf("unexpected opcode sequence: %v, %v, %v", instrs[0].Opcode, instrs[1].Opcode, instrs[2].Opcode)
	}
	if instrs[2].OpType != encoder.TypeRegMem {
		t.Fatalf("final store should target memory, got OpType %v", instrs[2].OpType)
	}
}

func TestGenStatementUnsupportedOpReturnsError(t *testing.T) {
	st := ir.Statement{Op: ir.OpCall}
	if _, err := genStatement(st); err == nil {
		t.Fatalf("expected an error for an unsupported statement op")
	}
}

func TestGenFunctionEmitsPrologueAndEpilogue(t *testing.T) {
	reg := types.NewRegistry()
	fnType := reg.NewFunction(reg.NewInt(4, false))
	sym := &symtab.Symbol{Name: "f", Type: fnType, Linkage: symtab.Extern}

	retBlock := &ir.Block{
		Term: ir.Terminator{Kind: ir.TermReturn, RetExpr: &ir.Var{Kind: ir.Immediate, ImmValue: 0, Type: reg.NewInt(4, false)}},
	}
	def := &ir.Definition{Symbol: sym, Nodes: []*ir.Block{retBlock}}

	w := elfobj.New()
	if err := genFunction(w, def); err != nil {
		t.Fatalf("genFunction: %v", err)
	}
	if w.TextLen() == 0 {
		t.Fatalf("expected genFunction to emit some bytes")
	}
}
