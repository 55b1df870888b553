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

package parser

import (
	"io"
	"testing"

	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

// fakeStream is a slice-backed token.Stream for feeding a Parser a
// hand-built token sequence without going through internal/lexsrc.
type fakeStream struct {
	toks []token.Token
	pos  int
}

func (s *fakeStream) Peek() token.Token {
	if s.pos >= len(s.toks) {
		return token.Token{Kind: token.END}
	}
	return s.toks[s.pos]
}

func (s *fakeStream) Next() token.Token {
	t := s.Peek()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return t
}

func (s *fakeStream) Consume(k token.Kind) (token.Token, error) {
	t := s.Peek()
	if t.Kind != k {
		return t, errUnexpected(t, k)
	}
	return s.Next(), nil
}

func errUnexpected(t token.Token, k token.Kind) error {
	return &unexpectedTokenError{t, k}
}

type unexpectedTokenError struct {
	got  token.Token
	want token.Kind
}

func (e *unexpectedTokenError) Error() string {
	return "unexpected token " + e.got.String() + ", want " + e.want.String()
}

func kw(s string) token.Token    { return token.Token{Kind: token.Keyword, StringValue: s} }
func ident(s string) token.Token { return token.Token{Kind: token.Ident, StringValue: s} }
func punct(s string) token.Token { return token.Token{Kind: token.Punct, StringValue: s} }
func intLit(v int64) token.Token { return token.Token{Kind: token.IntLit, IntValue: v} }

// TestArrayInitializerCompletesDimensionAndEmitsStores parses
// "int a[] = {1,2,3};" at file scope and checks that the array dimension
// completes to 3 and that three stores land at byte offsets 0, 4, and 8.
func TestArrayInitializerCompletesDimensionAndEmitsStores(t *testing.T) {
	toks := []token.Token{
		kw("int"), ident("a"), punct("["), punct("]"), punct("="), punct("{"),
		intLit(1), punct(","), intLit(2), punct(","), intLit(3), punct("}"), punct(";"),
	}
	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := New(&fakeStream{toks: toks}, sym, reg)

	def, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	arrType := def.Symbol.Type
	u := types.Unwrap(arrType)
	if u.ShapeKind != types.Array {
		t.Fatalf("expected an array type, got %v", u.ShapeKind)
	}
	if u.Count != 3 {
		t.Fatalf("array count = %d, want 3 (completed from the initializer)", u.Count)
	}
	if types.SizeOf(u) != 12 {
		t.Fatalf("array size = %d, want 12", types.SizeOf(u))
	}

	if len(def.Body.Code) != 3 {
		t.Fatalf("expected 3 store statements, got %d", len(def.Body.Code))
	}
	wantOffsets := []int{0, 4, 8}
	wantValues := []int64{1, 2, 3}
	for i, st := range def.Body.Code {
		if st.Op != ir.OpStore {
			t.Fatalf("statement %d: op = %v, want OpStore", i, st.Op)
		}
		if st.Target.Offset != wantOffsets[i] {
			t.Fatalf("statement %d: offset = %d, want %d", i, st.Target.Offset, wantOffsets[i])
		}
		if st.A.ImmValue != wantValues[i] {
			t.Fatalf("statement %d: immediate = %d, want %d", i, st.A.ImmValue, wantValues[i])
		}
	}

	if _, err := p.Parse(); err != io.EOF {
		t.Fatalf("expected io.EOF after the only top-level declaration, got %v", err)
	}
}

// TestStructInitializerZeroFillsTrailingMembers parses a partial brace
// initializer for a struct and checks that the members left unmentioned
// get explicit zero stores.
func TestStructInitializerZeroFillsTrailingMembers(t *testing.T) {
	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := New(&fakeStream{}, sym, reg)

	structType := reg.NewStruct()
	reg.AddMember(structType, "x", reg.NewInt(4, false))
	reg.AddMember(structType, "y", reg.NewInt(4, false))
	structType = reg.TaggedCopy(structType, "point")

	s := &symtab.Symbol{Name: "p", Type: structType}
	block := &ir.Block{}
	target := ir.Var{Kind: ir.Direct, Symbol: s, Type: structType, LValue: true}

	p.ts = &fakeStream{toks: []token.Token{
		punct("{"), intLit(7), punct("}"),
	}}
	if err := p.initializer(block, target, structType, true); err != nil {
		t.Fatalf("initializer: %v", err)
	}

	if len(block.Code) != 2 {
		t.Fatalf("expected 2 stores (x=7, y=0), got %d", len(block.Code))
	}
	if block.Code[0].Target.Offset != 0 || block.Code[0].A.ImmValue != 7 {
		t.Fatalf("unexpected first store: %+v", block.Code[0])
	}
	if block.Code[1].Target.Offset != 4 || block.Code[1].A.ImmValue != 0 {
		t.Fatalf("unexpected zero-fill store: %+v", block.Code[1])
	}
}

// TestExcessArrayInitializerIsAnError parses a fixed-size array given more
// initializers than it has elements.
func TestExcessArrayInitializerIsAnError(t *testing.T) {
	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := New(&fakeStream{}, sym, reg)

	arrType := reg.NewArray(reg.NewInt(4, false), 1)
	s := &symtab.Symbol{Name: "a", Type: arrType}
	block := &ir.Block{}
	target := ir.Var{Kind: ir.Direct, Symbol: s, Type: arrType, LValue: true}

	p.ts = &fakeStream{toks: []token.Token{
		punct("{"), intLit(1), punct(","), intLit(2), punct("}"),
	}}
	if err := p.initializer(block, target, arrType, true); err == nil {
		t.Fatalf("expected an error for an over-long array initializer")
	}
}

func TestConstantExprNegation(t *testing.T) {
	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := New(&fakeStream{toks: []token.Token{punct("-"), intLit(5)}}, sym, reg)
	v, err := p.constantExpr()
	if err != nil {
		t.Fatalf("constantExpr: %v", err)
	}
	if v != -5 {
		t.Fatalf("constantExpr = %d, want -5", v)
	}
}

func TestConstantExprRejectsNonConstantIdentifier(t *testing.T) {
	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := New(&fakeStream{toks: []token.Token{ident("notaconstant")}}, sym, reg)
	if _, err := p.constantExpr(); err == nil {
		t.Fatalf("expected an error: %q is not bound to an enumerator", "notaconstant")
	}
}
