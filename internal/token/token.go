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

// Package token defines the narrow token-stream interface the core consumes
// from the (external, out of scope) lexer/preprocessor.
package token

import "fmt"

// Kind classifies a Token.
type Kind int

const (
	Ident Kind = iota
	Keyword
	Punct
	IntLit
	FloatLit
	StringLit
	CharLit
	// DOTS is the "..." pseudo-punctuator used for variadic parameter lists.
	DOTS
	// END is the sentinel that terminates every token stream.
	END
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "identifier"
	case Keyword:
		return "keyword"
	case Punct:
		return "punctuator"
	case IntLit:
		return "integer-literal"
	case FloatLit:
		return "float-literal"
	case StringLit:
		return "string-literal"
	case CharLit:
		return "char-literal"
	case DOTS:
		return "..."
	case END:
		return "EOF"
	default:
		return "unknown"
	}
}

// Position locates a Token in the original (preprocessed) source.
type Position struct {
	Filename string
	Line     int
	Column   int
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Token is the unit the declaration parser consumes. String payloads are
// stable for the lifetime of the producing stream, matching the ownership
// note in the data model: the preprocessor owns the backing storage.
type Token struct {
	Kind        Kind
	StringValue string
	IntValue    int64
	Pos         Position
}

func (t Token) String() string {
	if t.Kind == END {
		return "<EOF>"
	}
	if t.StringValue != "" {
		return t.StringValue
	}
	return t.Kind.String()
}

// Stream is the narrow interface the parser requires of whatever produced
// the token sequence. It is satisfied by internal/lexsrc, which wraps the
// external modernc.org/cc/v4 front end.
type Stream interface {
	// Peek returns the next token without consuming it.
	Peek() Token
	// Next consumes and returns the next token.
	Next() Token
	// Consume advances past a token of the given Kind or returns an error
	// describing the mismatch.
	Consume(k Kind) (Token, error)
}
