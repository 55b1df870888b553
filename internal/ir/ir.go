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

// Package ir defines the exported CFG-IR types produced by the
// declaration/initializer parser and consumed by the (external, out of
// scope) expression/statement evaluator and by this core's own back end.
package ir

import (
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/types"
)

// VarKind is the form a Var takes.
type VarKind int

const (
	Direct VarKind = iota
	Deref
	Address
	Immediate
)

// Var is the three-address IR value carrier.
type Var struct {
	Kind     VarKind
	Symbol   *symtab.Symbol
	Type     *types.Type
	Offset   int
	LValue   bool
	ImmValue int64
}

// OpType enumerates the three-address statement operations this core's IR
// carries: arithmetic, logic, compare, cast, load/store, call, param-push,
// deref, address-of.
type OpType int

const (
	OpAdd OpType = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpLAnd
	OpLOr
	OpLNot
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpCast
	OpLoad
	OpStore
	OpCall
	OpParam
	OpDeref
	OpAddrOf
)

// Statement is the three-address form: target = a <op> b (b is nil for
// unary ops; a and b are nil for OpParam, which just pushes target).
type Statement struct {
	Target *Var
	Op     OpType
	A      *Var
	B      *Var
}

// TermKind is the kind of terminator a Block ends with. A Block has
// exactly one of: fall-through to a single successor, a two-way branch on
// a condition Var, or a return.
type TermKind int

const (
	TermFall TermKind = iota
	TermBranch
	TermReturn
)

// Terminator ends a Block's code.
type Terminator struct {
	Kind    TermKind
	Next    *Block // TermFall
	Cond    *Var   // TermBranch
	Then    *Block // TermBranch
	Else    *Block // TermBranch
	RetExpr *Var   // TermReturn, nil for a bare `return;`
}

// Block is a basic block in a Definition's control-flow graph.
type Block struct {
	Label *symtab.Symbol
	Code  []Statement
	Term  Terminator
}

// Definition holds a completed translation-unit definition: either a
// function body or an object's initializer code.
type Definition struct {
	Symbol *symtab.Symbol
	Params []*symtab.Symbol
	Locals []*symtab.Symbol
	Nodes  []*Block
	Body   *Block // entry block
}
