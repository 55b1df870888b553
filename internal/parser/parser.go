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

// Package parser turns a token.Stream into a sequence of ir.Definition
// values: one per function body or file-scope initializer. It owns
// declaration-specifier/declarator parsing, struct/union/enum layout, and
// initializer lowering; it hands the result off to the (external, out of
// scope) expression/statement evaluator and code generator through the IR
// types in internal/ir.
package parser

import (
	"fmt"
	"io"

	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

// Parser is a lazy, single-producer/single-consumer iterator: each call to
// Parse returns the next completed Definition, parsing only as much of the
// token stream as is needed to produce it.
type Parser struct {
	ts  token.Stream
	sym *symtab.Table
	reg *types.Registry

	typedefs    map[string]*types.Type
	enumDefined map[string]bool
	stringCount int

	currentFunc *ir.Definition
	pending     []*ir.Definition
}

// New returns a Parser reading from ts, binding identifiers into sym and
// interning types in reg. sym and reg are normally freshly constructed by
// the caller for one translation unit.
func New(ts token.Stream, sym *symtab.Table, reg *types.Registry) *Parser {
	return &Parser{
		ts:       ts,
		sym:      sym,
		reg:      reg,
		typedefs: map[string]*types.Type{},
	}
}

// Parse returns the next Definition (a function body or a file-scope
// object's initializer code), or io.EOF once the stream is exhausted.
func (p *Parser) Parse() (*ir.Definition, error) {
	for len(p.pending) == 0 {
		if p.ts.Peek().Kind == token.END {
			return nil, io.EOF
		}
		if err := p.externalDeclaration(); err != nil {
			return nil, err
		}
	}
	def := p.pending[0]
	p.pending = p.pending[1:]
	return def, nil
}

// externalDeclaration parses one top-level declaration group: a
// declaration-specifier sequence followed by one or more declarators,
// each either a function definition, an object declaration (with an
// optional initializer), or a typedef name binding.
func (p *Parser) externalDeclaration() error {
	base, sc, err := p.declarationSpecifiers()
	if err != nil {
		return err
	}

	if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == ";" {
		p.ts.Next()
		return nil
	}

	for {
		name, t, err := p.declarator(base)
		if err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("expected a declarator name at file scope")
		}

		if sc == scTypedef {
			p.typedefs[name] = t
			if _, err := p.ts.Consume(token.Punct); err != nil { // ";"
				return fmt.Errorf("expected ; after typedef: %w", err)
			}
			return nil
		}

		if types.Unwrap(t).ShapeKind == types.Function &&
			p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "{" {
			linkage := symtab.Extern
			if sc == scStatic {
				linkage = symtab.Intern
			}
			sym, err := p.sym.Add(p.sym.Ordinary, name, t, symtab.Definition, linkage)
			if err != nil {
				return err
			}
			def, err := p.functionDefinition(sym, types.Unwrap(t))
			if err != nil {
				return err
			}
			p.pending = append(p.pending, def)
			return nil
		}

		linkage := symtab.Extern
		if sc == scStatic {
			linkage = symtab.Intern
		}
		st := symtab.Declaration
		if types.Unwrap(t).ShapeKind != types.Function && sc != scExtern {
			st = symtab.Tentative
		}
		sym, err := p.sym.Add(p.sym.Ordinary, name, t, st, linkage)
		if err != nil {
			return err
		}

		if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "=" {
			if sc == scExtern {
				return fmt.Errorf("%q declared extern may not have an initializer", name)
			}
			p.ts.Next()
			sym.SymType = symtab.Definition
			block := &ir.Block{Term: ir.Terminator{Kind: ir.TermReturn}}
			target := ir.Var{Kind: ir.Direct, Symbol: sym, Type: t, LValue: true}
			if err := p.initializer(block, target, t, true); err != nil {
				return err
			}
			p.pending = append(p.pending, &ir.Definition{Symbol: sym, Body: block, Nodes: []*ir.Block{block}})
		}

		if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "," {
			p.ts.Next()
			continue
		}
		break
	}

	if _, err := p.ts.Consume(token.Punct); err != nil { // ";"
		return fmt.Errorf("expected ; after declaration: %w", err)
	}
	return nil
}
