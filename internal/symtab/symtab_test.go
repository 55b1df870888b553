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

package symtab

import (
	"testing"

	"github.com/gorse-io/cc64/internal/types"
)

func TestAddAndLookupAcrossScopes(t *testing.T) {
	reg := types.NewRegistry()
	tab := NewTable()

	if _, err := tab.Add(tab.Ordinary, "x", reg.NewInt(4, false), Definition, Extern); err != nil {
		t.Fatalf("Add at file scope: %v", err)
	}

	tab.PushScope(tab.Ordinary)
	if _, ok := tab.Lookup(tab.Ordinary, "x"); !ok {
		t.Fatalf("expected outer symbol visible in inner scope")
	}
	if _, err := tab.Add(tab.Ordinary, "y", reg.NewInt(4, false), Declaration, NoLinkage); err != nil {
		t.Fatalf("Add in inner scope: %v", err)
	}
	tab.PopScope(tab.Ordinary)

	if _, ok := tab.Ordinary.LookupCurrent("y"); ok {
		t.Fatalf("inner-scope symbol should not survive PopScope")
	}
}

func TestPopFileScopePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic popping file scope")
		}
	}()
	ns := newNamespace()
	ns.Pop()
}

func TestTentativePromotesToDefinition(t *testing.T) {
	reg := types.NewRegistry()
	tab := NewTable()
	intType := reg.NewInt(4, false)

	sym, err := tab.Add(tab.Ordinary, "g", intType, Tentative, Extern)
	if err != nil {
		t.Fatalf("Add Tentative: %v", err)
	}
	if sym.SymType != Tentative {
		t.Fatalf("expected Tentative, got %v", sym.SymType)
	}

	sym2, err := tab.Add(tab.Ordinary, "g", intType, Definition, Extern)
	if err != nil {
		t.Fatalf("Add Definition over Tentative: %v", err)
	}
	if sym2 != sym || sym.SymType != Definition {
		t.Fatalf("expected Tentative to be promoted in place to Definition")
	}
}

func TestRedefinitionIsAnError(t *testing.T) {
	reg := types.NewRegistry()
	tab := NewTable()
	intType := reg.NewInt(4, false)

	if _, err := tab.Add(tab.Ordinary, "g", intType, Definition, Extern); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := tab.Add(tab.Ordinary, "g", intType, Definition, Extern); err == nil {
		t.Fatalf("expected an error redefining %q", "g")
	}
}

func TestRedeclarationWithIncompatibleTypeIsAnError(t *testing.T) {
	reg := types.NewRegistry()
	tab := NewTable()

	if _, err := tab.Add(tab.Ordinary, "g", reg.NewInt(4, false), Declaration, Extern); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := tab.Add(tab.Ordinary, "g", reg.NewReal(8), Declaration, Extern); err == nil {
		t.Fatalf("expected an error for incompatible redeclaration")
	}
}

func TestSymbolAlignmentArrayThreshold(t *testing.T) {
	reg := types.NewRegistry()
	small := reg.NewArray(reg.NewInt(4, false), 2) // 8 bytes
	if got := SymbolAlignment(small); got != types.AlignOf(small) {
		t.Fatalf("small array alignment = %d, want %d", got, types.AlignOf(small))
	}

	big := reg.NewArray(reg.NewInt(4, false), 8) // 32 bytes
	if got := SymbolAlignment(big); got != 16 {
		t.Fatalf("array >= 16 bytes alignment = %d, want 16", got)
	}
}

func TestCreateLabelAndTempAreUnique(t *testing.T) {
	tab := NewTable()
	l1 := tab.CreateLabel()
	l2 := tab.CreateLabel()
	if l1.Name == l2.Name {
		t.Fatalf("labels should be unique: got %q twice", l1.Name)
	}

	reg := types.NewRegistry()
	var locals []*Symbol
	tab.BindFunctionLocals(&locals)
	temp := tab.CreateTemp(reg.NewInt(4, false))
	if len(locals) != 1 || locals[0] != temp {
		t.Fatalf("expected CreateTemp to register the temp as a function local")
	}
}

func TestFileScopeSymbolsAndFinalizeTentative(t *testing.T) {
	reg := types.NewRegistry()
	tab := NewTable()

	if _, err := tab.Add(tab.Ordinary, "a", reg.NewInt(4, false), Tentative, Extern); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if _, err := tab.Add(tab.Ordinary, "b", reg.NewInt(4, false), Definition, Extern); err != nil {
		t.Fatalf("Add b: %v", err)
	}

	syms := tab.Ordinary.FileScopeSymbols()
	if len(syms) != 2 {
		t.Fatalf("expected 2 file-scope symbols, got %d", len(syms))
	}

	finalized := FinalizeTentative(syms)
	if len(finalized) != 1 || finalized[0].Name != "a" {
		t.Fatalf("expected only the tentative symbol 'a' to be finalized, got %v", finalized)
	}
	if finalized[0].SymType != Definition {
		t.Fatalf("finalized symbol should become a Definition")
	}
}
