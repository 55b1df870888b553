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

// Package symtab implements the scoped name->symbol lookup used by the
// declaration parser: two namespaces (ordinary identifiers, tags), each a
// stack of scopes.
package symtab

import (
	"fmt"

	"github.com/gorse-io/cc64/internal/types"
)

// SymType distinguishes what kind of entity a Symbol names.
type SymType int

const (
	Declaration SymType = iota
	Tentative
	Definition
	Typedef
	EnumValue
	StringValue
	Label
)

// Linkage is the symbol's linkage class.
type Linkage int

const (
	NoLinkage Linkage = iota
	Intern
	Extern
)

// Payload carries the symtype-specific extra data a Symbol needs.
type Payload struct {
	EnumValue     int64
	StringValue   string
	StackOffset   int // set by codegen for locals
	TextOffset    int // set by codegen for functions/globals
	HasTextOffset bool
}

// Symbol is an entry in a Namespace scope.
type Symbol struct {
	Name       string
	Type       *types.Type
	SymType    SymType
	Linkage    Linkage
	ScopeDepth int
	Payload    Payload
}

type scope map[string]*Symbol

// Namespace is a stack of scopes for one of the two identifier spaces
// (ordinary identifiers, tags). current_depth is 0 at file scope.
type Namespace struct {
	scopes []scope
}

func newNamespace() *Namespace {
	return &Namespace{scopes: []scope{{}}}
}

// Depth returns 0 at file scope, 1 inside a function, and grows per
// nested block.
func (n *Namespace) Depth() int { return len(n.scopes) - 1 }

// Push opens a new, empty innermost scope.
func (n *Namespace) Push() { n.scopes = append(n.scopes, scope{}) }

// Pop discards the innermost scope. It must be paired with a prior Push.
func (n *Namespace) Pop() {
	if len(n.scopes) == 1 {
		panic("symtab: Pop without matching Push (file scope cannot be popped)")
	}
	n.scopes = n.scopes[:len(n.scopes)-1]
}

// Lookup searches from the innermost scope outward.
func (n *Namespace) Lookup(name string) (*Symbol, bool) {
	for i := len(n.scopes) - 1; i >= 0; i-- {
		if s, ok := n.scopes[i][name]; ok {
			return s, true
		}
	}
	return nil, false
}

// LookupCurrent searches only the innermost scope, used to detect
// same-scope redeclaration.
func (n *Namespace) LookupCurrent(name string) (*Symbol, bool) {
	s, ok := n.scopes[len(n.scopes)-1][name]
	return s, ok
}

// FileScopeSymbols returns every symbol bound at file scope (scope 0),
// letting the driver find any Tentative definitions still unresolved at
// end-of-unit so it can finalize them.
func (n *Namespace) FileScopeSymbols() []*Symbol {
	out := make([]*Symbol, 0, len(n.scopes[0]))
	for _, s := range n.scopes[0] {
		out = append(out, s)
	}
	return out
}

func (n *Namespace) bind(s *Symbol) {
	n.scopes[len(n.scopes)-1][s.Name] = s
}

// Table owns the two namespaces this core tracks: ordinary identifiers
// and tags.
type Table struct {
	Ordinary *Namespace
	Tags     *Namespace

	labelCount int
	tempCount  int
	tempLocals *[]*Symbol // bound to the symbol list of the current function, if any
}

// NewTable returns a Table with both namespaces open at file scope.
func NewTable() *Table {
	return &Table{Ordinary: newNamespace(), Tags: newNamespace()}
}

// PushScope opens a new scope in the given namespace. Every call must be
// matched by PopScope on every exit path.
func (t *Table) PushScope(ns *Namespace) { ns.Push() }

// PopScope closes the innermost scope in the given namespace.
func (t *Table) PopScope(ns *Namespace) { ns.Pop() }

// Lookup searches a namespace from the innermost scope outward.
func (t *Table) Lookup(ns *Namespace, name string) (*Symbol, bool) {
	return ns.Lookup(name)
}

// Add creates and binds a new Symbol. Re-declaration of a name already
// bound in the same (innermost) scope is permitted only when the new
// declaration is compatible with the existing one and neither upgrades a
// prior Definition; otherwise it is an error.
func (t *Table) Add(ns *Namespace, name string, typ *types.Type, st SymType, linkage Linkage) (*Symbol, error) {
	if existing, ok := ns.LookupCurrent(name); ok {
		if !types.Compatible(existing.Type, typ) {
			return nil, fmt.Errorf("redeclaration of %q with incompatible type", name)
		}
		if existing.SymType == Definition && st == Definition {
			return nil, fmt.Errorf("redefinition of %q", name)
		}
		// A Tentative definition at file scope may be promoted to
		// Definition by an initializer or a later declaration; any other
		// repeated compatible declaration just keeps the stronger of the
		// two symtypes.
		if existing.SymType == Tentative && (st == Definition || st == Tentative) {
			existing.SymType = st
		}
		return existing, nil
	}
	sym := &Symbol{Name: name, Type: typ, SymType: st, Linkage: linkage, ScopeDepth: ns.Depth()}
	ns.bind(sym)
	return sym, nil
}

// SymbolAlignment returns the alignment codegen should use for a symbol
// of type t: the same as the type's own alignment, except that arrays of
// at least 16 bytes are bumped to 16-byte alignment. This rule is applied
// here, at the symbol layer, rather than in the type registry, per the
// specification.
func SymbolAlignment(t *types.Type) int {
	align := types.AlignOf(t)
	if types.Unwrap(t).ShapeKind == types.Array && types.SizeOf(t) >= 16 && align < 16 {
		return 16
	}
	return align
}

// BindFunctionLocals points subsequent CreateTemp calls at the given
// function's local-symbol slice, so synthetic temporaries become locals
// of the function currently being parsed.
func (t *Table) BindFunctionLocals(locals *[]*Symbol) { t.tempLocals = locals }

// CreateLabel returns a fresh synthetic label symbol named ".LN".
func (t *Table) CreateLabel() *Symbol {
	t.labelCount++
	return &Symbol{Name: fmt.Sprintf(".L%d", t.labelCount), SymType: Label, Linkage: NoLinkage}
}

// CreateTemp returns a fresh synthetic temporary symbol named ".tN" of the
// given type, registered as a local of the current function.
func (t *Table) CreateTemp(typ *types.Type) *Symbol {
	t.tempCount++
	sym := &Symbol{Name: fmt.Sprintf(".t%d", t.tempCount), Type: typ, SymType: Declaration, Linkage: NoLinkage, ScopeDepth: t.Ordinary.Depth()}
	if t.tempLocals != nil {
		*t.tempLocals = append(*t.tempLocals, sym)
	}
	return sym
}

// FinalizeTentative converts any symbol still Tentative at the given
// scope's end into a zero-initialized Definition. The driver calls this
// at end-of-unit; zero-initialization itself is emitted by the caller
// since it requires IR emission.
func FinalizeTentative(syms []*Symbol) []*Symbol {
	var out []*Symbol
	for _, s := range syms {
		if s.SymType == Tentative {
			s.SymType = Definition
			out = append(out, s)
		}
	}
	return out
}
