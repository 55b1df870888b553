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

	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

// structOrUnionSpecifier parses the tail of "struct"/"union" (the keyword
// itself already consumed): an optional tag name, and optionally a
// brace-delimited member-declaration list. It either looks up an existing
// tag, defines a new one, or both; redefining an already-sized tag is an
// error, and an anonymous (tagless) aggregate is never bound in the tag
// namespace.
func (p *Parser) structOrUnionSpecifier(isUnion bool) (*types.Type, error) {
	var tagName string
	if p.ts.Peek().Kind == token.Ident {
		tagName = p.ts.Next().StringValue
	}

	hasBody := p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "{"

	var obj *types.Type
	if tagName != "" {
		if existing, ok := p.sym.Lookup(p.sym.Tags, tagName); ok {
			obj = existing.Type
			if hasBody && types.IsComplete(types.Unwrap(obj)) {
				return nil, fmt.Errorf("redefinition of tag %q", tagName)
			}
		}
	}
	if obj == nil {
		if isUnion {
			obj = p.reg.NewUnion()
		} else {
			obj = p.reg.NewStruct()
		}
		if tagName != "" {
			if _, err := p.sym.Add(p.sym.Tags, tagName, obj, symtab.Declaration, symtab.NoLinkage); err != nil {
				return nil, err
			}
		}
	}

	if hasBody {
		p.ts.Next() // "{"
		for !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "}") {
			memberBase, _, err := p.declarationSpecifiers()
			if err != nil {
				return nil, err
			}
			for {
				name, mtype, err := p.declarator(memberBase)
				if err != nil {
					return nil, err
				}
				if !types.IsComplete(mtype) || types.Unwrap(mtype).ShapeKind == types.Void {
					return nil, fmt.Errorf("member %q has incomplete or void type", name)
				}
				p.reg.AddMember(obj, name, mtype)
				if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "," {
					p.ts.Next()
					continue
				}
				break
			}
			if _, err := p.ts.Consume(token.Punct); err != nil { // ";"
				return nil, fmt.Errorf("expected ; after member declaration: %w", err)
			}
		}
		p.ts.Next() // "}"
	}

	if tagName == "" {
		return obj, nil
	}
	return p.reg.TaggedCopy(obj, tagName), nil
}

// enumSpecifier parses the tail of "enum" (keyword already consumed). The
// tag's type is always int; each enumerator introduces an ordinary
// identifier of symtype EnumValue with an explicit or auto-incremented
// value.
func (p *Parser) enumSpecifier() (*types.Type, error) {
	var tagName string
	if p.ts.Peek().Kind == token.Ident {
		tagName = p.ts.Next().StringValue
	}
	intType := p.reg.NewInt(4, false)

	if tagName != "" {
		if existing, ok := p.sym.Lookup(p.sym.Tags, tagName); ok {
			if !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "{") {
				return existing.Type, nil
			}
			if p.enumDefined[tagName] {
				return nil, fmt.Errorf("redefinition of enum %q", tagName)
			}
		}
	}

	if !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "{") {
		return nil, fmt.Errorf("expected enum body or a previously defined tag")
	}
	p.ts.Next() // "{"

	if tagName != "" {
		if p.enumDefined == nil {
			p.enumDefined = map[string]bool{}
		}
		p.enumDefined[tagName] = true
		if _, err := p.sym.Add(p.sym.Tags, tagName, intType, symtab.Declaration, symtab.NoLinkage); err != nil {
			return nil, err
		}
	}

	next := int64(0)
	for !(p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "}") {
		name := p.ts.Next().StringValue
		val := next
		if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "=" {
			p.ts.Next()
			n, err := p.constantExpr()
			if err != nil {
				return nil, err
			}
			val = n
		}
		next = val + 1
		sym, err := p.sym.Add(p.sym.Ordinary, name, intType, symtab.EnumValue, symtab.NoLinkage)
		if err != nil {
			return nil, err
		}
		sym.Payload.EnumValue = val
		if p.ts.Peek().Kind == token.Punct && p.ts.Peek().StringValue == "," {
			p.ts.Next()
			continue
		}
		break
	}
	p.ts.Next() // "}"
	return intType, nil
}
