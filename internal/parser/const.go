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
)

// constantExpr evaluates the narrow subset of constant expressions this
// core needs on its own (array dimensions, enumerator values, file-scope
// scalar initializers): an optional unary +/-, an integer literal, a
// character literal, or an identifier naming a previously bound
// EnumValue. Full constant-expression evaluation belongs to the
// out-of-scope expression evaluator; this core only ever needs these
// forms for the declarations it parses itself.
func (p *Parser) constantExpr() (int64, error) {
	neg := false
	for {
		t := p.ts.Peek()
		if t.Kind == token.Punct && t.StringValue == "-" {
			neg = !neg
			p.ts.Next()
			continue
		}
		if t.Kind == token.Punct && t.StringValue == "+" {
			p.ts.Next()
			continue
		}
		break
	}
	t := p.ts.Peek()
	switch t.Kind {
	case token.IntLit, token.CharLit:
		p.ts.Next()
		v := t.IntValue
		if neg {
			v = -v
		}
		return v, nil
	case token.Ident:
		p.ts.Next()
		sym, ok := p.sym.Lookup(p.sym.Ordinary, t.StringValue)
		if !ok || sym.SymType != symtab.EnumValue {
			return 0, fmt.Errorf("%q is not a constant expression this core can evaluate", t.StringValue)
		}
		v := sym.Payload.EnumValue
		if neg {
			v = -v
		}
		return v, nil
	default:
		return 0, fmt.Errorf("expected a constant expression, got %s", t)
	}
}
