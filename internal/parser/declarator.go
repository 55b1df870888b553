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

	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

// param is one entry of a parsed parameter-type-list.
type param struct {
	Name string
	Type *types.Type
}

// declarator parses pointer prefixes and a direct-declarator, returning
// the declared name and its full type built around base.
func (p *Parser) declarator(base *types.Type) (string, *types.Type, error) {
	t := base
	for p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "*" {
		p.ts.Next()
		var qual types.Qualifier
		for {
			pk := p.ts.Peek()
			if pk.StringValue == "const" {
				qual |= types.Const
				p.ts.Next()
				continue
			}
			if pk.StringValue == "volatile" {
				qual |= types.Volatile
				p.ts.Next()
				continue
			}
			break
		}
		t = p.reg.NewPointer(t)
		t.Qual = qual
	}
	return p.directDeclarator(t)
}

// directDeclarator parses the identifier-or-parenthesized core plus any
// trailing array/function suffixes. The `T (*p)(A)` case requires
// splicing: the parenthesized sub-declarator's base isn't known until the
// trailing suffixes (applied to the outer base) have been parsed, so a
// mutable placeholder type is threaded through the inner parse and patched
// in place afterward once the real outer type is known.
func (p *Parser) directDeclarator(base *types.Type) (string, *types.Type, error) {
	tok := p.ts.Peek()

	switch {
	case tok.Kind == token.Ident:
		p.ts.Next()
		name := tok.StringValue
		final, err := p.declaratorSuffixes(base)
		if err != nil {
			return "", nil, err
		}
		return name, final, nil

	case tok.Kind == token.Punct && tok.StringValue == "(":
		p.ts.Next()
		hole := &types.Type{}
		name, innerType, err := p.declarator(hole)
		if err != nil {
			return "", nil, err
		}
		if _, err := p.ts.Consume(token.Punct); err != nil {
			return "", nil, fmt.Errorf("expected ) closing parenthesized declarator: %w", err)
		}
		outer, err := p.declaratorSuffixes(base)
		if err != nil {
			return "", nil, err
		}
		*hole = *outer
		return name, innerType, nil

	default:
		// Abstract declarator: no identifier, just suffixes on base (used
		// for unnamed parameters).
		final, err := p.declaratorSuffixes(base)
		if err != nil {
			return "", nil, err
		}
		return "", final, nil
	}
}

// declaratorSuffixes parses zero or more trailing `[n]` array dimensions
// or a single `(params)` function suffix, left to right, and builds the
// corresponding type around base. Array dimensions nest so the leftmost
// bracket is the outermost array dimension.
func (p *Parser) declaratorSuffixes(base *types.Type) (*types.Type, error) {
	tok := p.ts.Peek()
	if tok.Kind == token.Punct && tok.StringValue == "[" {
		p.ts.Next()
		count := 0
		if !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "]") {
			n, err := p.constantExpr()
			if err != nil {
				return nil, err
			}
			if n <= 0 {
				return nil, fmt.Errorf("array dimension must be a positive constant expression")
			}
			count = int(n)
		}
		if _, err := p.ts.Consume(token.Punct); err != nil { // "]"
			return nil, fmt.Errorf("expected ] after array dimension: %w", err)
		}
		elem, err := p.declaratorSuffixes(base)
		if err != nil {
			return nil, err
		}
		if elem.ShapeKind == types.Array && elem.Count == 0 {
			return nil, fmt.Errorf("only the outermost array dimension may be omitted")
		}
		return p.reg.NewArray(elem, count), nil
	}
	if tok.Kind == token.Punct && tok.StringValue == "(" {
		p.ts.Next()
		fn := p.reg.NewFunction(base)
		if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == ")" {
			p.ts.Next()
			return fn, nil
		}
		for {
			if p.ts.Peek().Kind == token.DOTS {
				p.ts.Next()
				p.reg.AddMember(fn, "...", nil)
				break
			}
			specType, _, err := p.declarationSpecifiers()
			if err != nil {
				return nil, err
			}
			name, ptype, err := p.declarator(specType)
			if err != nil {
				return nil, err
			}
			p.reg.AddMember(fn, name, ptype)
			if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "," {
				p.ts.Next()
				continue
			}
			break
		}
		if _, err := p.ts.Consume(token.Punct); err != nil { // ")"
			return nil, fmt.Errorf("expected ) closing parameter list: %w", err)
		}
		return fn, nil
	}
	return base, nil
}
