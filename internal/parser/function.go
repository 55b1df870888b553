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
	"fmt"

	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

// currentFunction returns the innermost function Definition under
// construction, used by IR emission to attach locals and temporaries.
func (p *Parser) currentFunction() *ir.Definition { return p.currentFunc }

// functionDefinition parses a function body following a function
// declarator: `{` enters the body. A new scope is pushed, a hidden
// __func__ string symbol is introduced, each parameter becomes a
// Definition symbol in that scope, and the body is parsed into blocks.
func (p *Parser) functionDefinition(sym *symtab.Symbol, fnType *types.Type) (*ir.Definition, error) {
	def := &ir.Definition{Symbol: sym}
	prevFunc := p.currentFunc
	p.currentFunc = def
	defer func() { p.currentFunc = prevFunc }()

	p.sym.PushScope(p.sym.Ordinary)
	defer p.sym.PopScope(p.sym.Ordinary)
	p.sym.BindFunctionLocals(&def.Locals)
	defer p.sym.BindFunctionLocals(nil)

	for _, m := range fnType.Members {
		if m.Name == "" {
			return nil, fmt.Errorf("parameter without a name in a function definition")
		}
		psym, err := p.sym.Add(p.sym.Ordinary, m.Name, m.Type, symtab.Definition, symtab.NoLinkage)
		if err != nil {
			return nil, err
		}
		def.Params = append(def.Params, psym)
	}

	charT := p.reg.NewInt(1, false)
	charT.Qual |= types.Const
	funcNameType := p.reg.NewArray(charT, len(sym.Name)+1)
	funcSym, err := p.sym.Add(p.sym.Ordinary, "__func__", funcNameType, symtab.StringValue, symtab.NoLinkage)
	if err != nil {
		return nil, err
	}
	funcSym.Payload.StringValue = sym.Name

	if _, err := p.ts.Consume(token.Punct); err != nil { // "{"
		return nil, fmt.Errorf("expected { to start function body: %w", err)
	}

	entry := &ir.Block{}
	def.Body = entry
	def.Nodes = append(def.Nodes, entry)
	final, err := p.compoundStatementBody(def, entry)
	if err != nil {
		return nil, err
	}
	if final.Term.Kind == ir.TermFall && final.Term.Next == nil {
		final.Term = ir.Terminator{Kind: ir.TermReturn}
	}
	return def, nil
}

// compoundStatementBody parses statements into block (and any blocks
// `return` causes it to chain onto) until the closing `}`, returning the
// still-open tail block. Local declarations are parsed fully by this
// core; any other statement form belongs to the out-of-scope
// expression/statement evaluator, so its tokens are skipped in a
// paren/brace-balanced way up to the terminating `;` (or recursively for
// a nested compound statement), leaving a placeholder boundary where that
// collaborator would emit real IR.
func (p *Parser) compoundStatementBody(def *ir.Definition, block *ir.Block) (*ir.Block, error) {
	cur := block
	for {
		t := p.ts.Peek()
		if t.Kind == token.Punct && t.StringValue == "}" {
			p.ts.Next()
			return cur, nil
		}
		if t.Kind == token.END {
			return nil, fmt.Errorf("unexpected end of input inside function body")
		}
		if p.startsDeclaration(t) {
			if err := p.localDeclaration(def, cur); err != nil {
				return nil, err
			}
			continue
		}
		if t.Kind == token.Keyword && t.StringValue == "return" {
			p.ts.Next()
			var ret *ir.Var
			if !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == ";") {
				v, err := p.constantExpr()
				if err != nil {
					return nil, err
				}
				ret = &ir.Var{Kind: ir.Immediate, ImmValue: v, Type: types.Unwrap(def.Symbol.Type).Elem}
			}
			if _, err := p.ts.Consume(token.Punct); err != nil { // ";"
				return nil, fmt.Errorf("expected ; after return: %w", err)
			}
			cur.Term = ir.Terminator{Kind: ir.TermReturn, RetExpr: ret}
			next := &ir.Block{}
			def.Nodes = append(def.Nodes, next)
			cur = next
			continue
		}
		if t.Kind == token.Punct && t.StringValue == "{" {
			p.ts.Next()
			p.sym.PushScope(p.sym.Ordinary)
			nb, err := p.compoundStatementBody(def, cur)
			p.sym.PopScope(p.sym.Ordinary)
			if err != nil {
				return nil, err
			}
			cur = nb
			continue
		}
		if err := p.skipStatement(); err != nil {
			return nil, err
		}
	}
}

// startsDeclaration reports whether t can begin a declaration: a
// storage-class/type-specifier/qualifier keyword, a struct/union/enum
// keyword, or a previously bound typedef name.
func (p *Parser) startsDeclaration(t token.Token) bool {
	if t.Kind != token.Keyword && t.Kind != token.Ident {
		return false
	}
	switch t.StringValue {
	case "typedef", "extern", "static", "const", "volatile",
		"void", "char", "short", "int", "signed", "unsigned",
		"float", "double", "long", "struct", "union", "enum":
		return true
	}
	_, ok := p.typedefs[t.StringValue]
	return ok
}

// localDeclaration parses one block-scope declaration (possibly several
// declarators) and, for any with an initializer, emits the corresponding
// store statements into block.
func (p *Parser) localDeclaration(def *ir.Definition, block *ir.Block) error {
	base, sc, err := p.declarationSpecifiers()
	if err != nil {
		return err
	}
	for {
		name, t, err := p.declarator(base)
		if err != nil {
			return err
		}
		if sc == scTypedef {
			p.typedefs[name] = t
		} else {
			sym, err := p.sym.Add(p.sym.Ordinary, name, t, symtab.Declaration, symtab.NoLinkage)
			if err != nil {
				return err
			}
			def.Locals = append(def.Locals, sym)
			if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "=" {
				p.ts.Next()
				sym.SymType = symtab.Definition
				target := ir.Var{Kind: ir.Direct, Symbol: sym, Type: t, LValue: true}
				if err := p.initializer(block, target, t, false); err != nil {
					return err
				}
			}
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

// skipStatement consumes tokens up to and including the next top-level
// ";", tracking nested parens/brackets/braces so an inner ";" (e.g. a
// for-loop header) doesn't end the skip early. A "}" at depth 0 ends the
// skip without being consumed, so the caller's own brace handling still
// sees it.
func (p *Parser) skipStatement() error {
	depth := 0
	for {
		t := p.ts.Peek()
		if t.Kind == token.END {
			return fmt.Errorf("unexpected end of input while skipping a statement")
		}
		if t.Kind == token.Punct {
			switch t.StringValue {
			case "(", "[":
				depth++
			case ")", "]":
				depth--
			case "{":
				depth++
			case "}":
				if depth == 0 {
					return nil
				}
				depth--
			case ";":
				p.ts.Next()
				if depth == 0 {
					return nil
				}
				continue
			}
		}
		p.ts.Next()
	}
}
