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

// Package lexsrc adapts modernc.org/cc/v4's preprocessor and lexer into
// the narrow token.Stream the declaration/initializer parser consumes.
// This package only flattens cc/v4's token sequence for the original
// source file back into program order; it never exposes cc/v4's AST or
// type system to the rest of the compiler.
package lexsrc

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"modernc.org/cc/v4"

	"github.com/gorse-io/cc64/internal/token"
)

var keywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "int": true, "long": true, "register": true, "return": true,
	"short": true, "signed": true, "sizeof": true, "static": true, "struct": true,
	"switch": true, "typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true, "inline": true, "restrict": true, "_Bool": true,
}

// Options controls how the source is preprocessed before being tokenized.
type Options struct {
	IncludePaths []string
	Defines      map[string]string
}

// Open preprocesses and lexes path using cc/v4, targeting linux/amd64 (the
// only target this core's encoder and ELF writer support), and returns a
// token.Stream over the resulting tokens for path itself (predefined,
// builtin, and synthetic prologue tokens are discarded).
func Open(path string, opts Options) (token.Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := cc.NewConfig("linux", "amd64")
	if err != nil {
		return nil, fmt.Errorf("lexsrc: configuring front end: %w", err)
	}
	if len(opts.IncludePaths) > 0 {
		cfg.SysIncludePaths = append(opts.IncludePaths, cfg.SysIncludePaths...)
	}

	var prologue strings.Builder
	for name, val := range opts.Defines {
		if val == "" {
			fmt.Fprintf(&prologue, "#define %s\n", name)
		} else {
			fmt.Fprintf(&prologue, "#define %s %s\n", name, val)
		}
	}

	ast, err := cc.Parse(cfg, []cc.Source{
		{Name: "<predefined>", Value: cfg.Predefined},
		{Name: "<builtin>", Value: cc.Builtin},
		{Name: "<prologue>", Value: prologue.String()},
		{Name: path, Value: f},
	})
	if err != nil {
		return nil, fmt.Errorf("lexsrc: preprocessing %s: %w", path, err)
	}

	var raw []cc.Token
	walkTokens(reflect.ValueOf(ast), &raw)

	var toks []token.Token
	for _, t := range raw {
		src := t.String()
		if src == "" {
			continue
		}
		mpos := t.Position()
		if mpos.Filename != path {
			continue
		}
		pos := token.Position{Filename: mpos.Filename, Line: mpos.Line, Column: mpos.Column}
		toks = append(toks, classify(src, pos))
	}
	sort.SliceStable(toks, func(i, j int) bool {
		if toks[i].Pos.Line != toks[j].Pos.Line {
			return toks[i].Pos.Line < toks[j].Pos.Line
		}
		return toks[i].Pos.Column < toks[j].Pos.Column
	})
	toks = append(toks, token.Token{Kind: token.END, Pos: token.Position{Filename: path}})

	return &stream{toks: toks}, nil
}

var tokenType = reflect.TypeOf(cc.Token{})

// walkTokens recursively visits every exported field of the cc/v4 parse
// tree reachable from v, collecting each cc.Token it finds. cc/v4's AST is
// a plain, exported, hand-generated parse tree (no interfaces to hide
// behind), so a generic reflective walk is enough to recover the original
// token sequence without depending on cc/v4's internal grammar types.
func walkTokens(v reflect.Value, out *[]cc.Token) {
	if !v.IsValid() {
		return
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return
		}
		walkTokens(v.Elem(), out)
	case reflect.Struct:
		if v.Type() == tokenType {
			*out = append(*out, v.Interface().(cc.Token))
			return
		}
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			walkTokens(v.Field(i), out)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			walkTokens(v.Index(i), out)
		}
	}
}

// classify converts one cc/v4 source token's text into the Kind/value
// form the declaration parser expects. It works from the rendered text
// alone, rather than cc/v4's internal rune constants, so this adapter
// only depends on cc/v4's publicly documented Parse/Token.String/
// Token.Position surface.
func classify(src string, pos token.Position) token.Token {
	p := token.Position{Filename: pos.Filename, Line: pos.Line, Column: pos.Column}
	c := src[0]

	switch {
	case src == "...":
		return token.Token{Kind: token.DOTS, StringValue: src, Pos: p}
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		if keywords[src] {
			return token.Token{Kind: token.Keyword, StringValue: src, Pos: p}
		}
		return token.Token{Kind: token.Ident, StringValue: src, Pos: p}
	case c >= '0' && c <= '9':
		return classifyNumber(src, p)
	case c == '"':
		return token.Token{Kind: token.StringLit, StringValue: unescape(trimOne(src)), Pos: p}
	case c == '\'':
		body := unescape(trimOne(src))
		var v int64
		if body != "" {
			v = int64(body[0])
		}
		return token.Token{Kind: token.CharLit, StringValue: body, IntValue: v, Pos: p}
	default:
		return token.Token{Kind: token.Punct, StringValue: src, Pos: p}
	}
}

func classifyNumber(src string, p token.Position) token.Token {
	isHex := len(src) > 1 && (src[1] == 'x' || src[1] == 'X')
	isFloat := false
	for i, r := range src {
		if r == '.' {
			isFloat = true
		}
		if !isHex && (r == 'e' || r == 'E') && i > 0 {
			isFloat = true
		}
	}
	if isFloat {
		return token.Token{Kind: token.FloatLit, StringValue: src, Pos: p}
	}
	trimmed := strings.TrimRightFunc(src, func(r rune) bool {
		return r == 'u' || r == 'U' || r == 'l' || r == 'L'
	})
	v, err := strconv.ParseInt(trimmed, 0, 64)
	if err != nil {
		if uv, uerr := strconv.ParseUint(trimmed, 0, 64); uerr == nil {
			v = int64(uv)
		}
	}
	return token.Token{Kind: token.IntLit, StringValue: src, IntValue: v, Pos: p}
}

func trimOne(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// stream is a slice-backed token.Stream over a fully flattened token
// sequence.
type stream struct {
	toks []token.Token
	pos  int
}

func (s *stream) Peek() token.Token {
	if s.pos >= len(s.toks) {
		return token.Token{Kind: token.END}
	}
	return s.toks[s.pos]
}

func (s *stream) Next() token.Token {
	t := s.Peek()
	if s.pos < len(s.toks) {
		s.pos++
	}
	return t
}

func (s *stream) Consume(k token.Kind) (token.Token, error) {
	t := s.Peek()
	if t.Kind != k {
		return t, fmt.Errorf("%s: expected %s, got %s %q", t.Pos, k, t.Kind, t.StringValue)
	}
	return s.Next(), nil
}
