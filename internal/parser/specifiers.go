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

// specBit is one bit of the declaration_specifiers accumulator.
type specBit uint16

const (
	specVoid specBit = 1 << iota
	specChar
	specShort
	specInt
	specSigned
	specUnsigned
	specFloat
	specDouble
	specLong
	specLong2 // a second "long"
)

// storageClass is the optional storage-class keyword recognised alongside
// specifiers.
type storageClass int

const (
	scNone storageClass = iota
	scTypedef
	scExtern
	scStatic
)

// basicTypeFromBits maps every recognised specifier-bit combination to a
// constructor. Unrecognised combinations are a parse error, per the
// specification.
func (p *Parser) basicTypeFromBits(bits specBit) (*types.Type, error) {
	switch bits {
	case specVoid:
		return p.reg.NewVoid(), nil
	case specChar:
		return p.reg.NewInt(1, false), nil
	case specChar | specSigned:
		return p.reg.NewInt(1, false), nil
	case specChar | specUnsigned:
		return p.reg.NewInt(1, true), nil
	case specShort, specShort | specInt, specShort | specSigned, specShort | specSigned | specInt:
		return p.reg.NewInt(2, false), nil
	case specShort | specUnsigned, specShort | specUnsigned | specInt:
		return p.reg.NewInt(2, true), nil
	case 0, specInt, specSigned, specSigned | specInt:
		return p.reg.NewInt(4, false), nil
	case specUnsigned, specUnsigned | specInt:
		return p.reg.NewInt(4, true), nil
	case specLong, specLong | specInt, specLong | specSigned, specLong | specSigned | specInt:
		return p.reg.NewInt(8, false), nil
	case specLong | specUnsigned, specLong | specUnsigned | specInt:
		return p.reg.NewInt(8, true), nil
	case specLong | specLong2, specLong | specLong2 | specInt,
		specLong | specLong2 | specSigned, specLong | specLong2 | specSigned | specInt:
		return p.reg.NewInt(8, false), nil
	case specLong | specLong2 | specUnsigned, specLong | specLong2 | specUnsigned | specInt:
		return p.reg.NewInt(8, true), nil
	case specFloat:
		return p.reg.NewReal(4), nil
	case specDouble:
		return p.reg.NewReal(8), nil
	case specLong | specDouble:
		return p.reg.NewReal(8), nil
	default:
		return nil, fmt.Errorf("unrecognized declaration specifier combination")
	}
}

// declarationSpecifiers parses the specifier/qualifier/storage-class
// sequence at the start of a declaration, returning the resolved base
// type. A leading struct/union/enum keyword or typedef name
// short-circuits the bitset path entirely.
func (p *Parser) declarationSpecifiers() (*types.Type, storageClass, error) {
	var bits specBit
	var qual types.Qualifier
	sc := scNone
	var base *types.Type

	for {
		t := p.ts.Peek()
		if t.Kind != token.Keyword && t.Kind != token.Ident {
			break
		}
		switch t.StringValue {
		case "typedef":
			sc = scTypedef
		case "extern":
			sc = scExtern
		case "static":
			sc = scStatic
		case "const":
			qual |= types.Const
		case "volatile":
			qual |= types.Volatile
		case "void":
			bits |= specVoid
		case "char":
			bits |= specChar
		case "short":
			bits |= specShort
		case "int":
			bits |= specInt
		case "signed":
			bits |= specSigned
		case "unsigned":
			bits |= specUnsigned
		case "float":
			bits |= specFloat
		case "double":
			bits |= specDouble
		case "long":
			if bits&specLong != 0 {
				bits |= specLong2
			} else {
				bits |= specLong
			}
		case "struct":
			p.ts.Next()
			t, err := p.structOrUnionSpecifier(false)
			if err != nil {
				return nil, sc, err
			}
			base = t
			continue
		case "union":
			p.ts.Next()
			t, err := p.structOrUnionSpecifier(true)
			if err != nil {
				return nil, sc, err
			}
			base = t
			continue
		case "enum":
			p.ts.Next()
			t, err := p.enumSpecifier()
			if err != nil {
				return nil, sc, err
			}
			base = t
			continue
		default:
			if base == nil && bits == 0 {
				if td, ok := p.typedefs[t.StringValue]; ok {
					base = td
					p.ts.Next()
					continue
				}
			}
			goto done
		}
		p.ts.Next()
	}
done:
	if base != nil {
		if qual != 0 {
			// Qualify a copy: the typedef or tag binding itself must keep
			// its unqualified canonical form.
			qualified := *base
			qualified.Qual |= qual
			return &qualified, sc, nil
		}
		return base, sc, nil
	}
	resolved, err := p.basicTypeFromBits(bits)
	if err != nil {
		return nil, sc, err
	}
	resolved.Qual |= qual
	return resolved, sc, nil
}
