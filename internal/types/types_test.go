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

package types

import "testing"

// struct S { char a; int b; char c; }; size=12, offsets [0,4,8], align=4.
func TestStructLayout(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewStruct()
	reg.AddMember(s, "a", reg.NewInt(1, false))
	reg.AddMember(s, "b", reg.NewInt(4, false))
	reg.AddMember(s, "c", reg.NewInt(1, false))

	if SizeOf(s) != 12 {
		t.Fatalf("SizeOf = %d, want 12", SizeOf(s))
	}
	if AlignOf(s) != 4 {
		t.Fatalf("AlignOf = %d, want 4", AlignOf(s))
	}
	wantOffsets := []int{0, 4, 8}
	for i, m := range s.Members {
		if m.Offset != wantOffsets[i] {
			t.Errorf("member %d offset = %d, want %d", i, m.Offset, wantOffsets[i])
		}
	}
}

// union U { int i; double d; char s[5]; }; size=8, all offsets 0, align=8.
func TestUnionLayout(t *testing.T) {
	reg := NewRegistry()
	u := reg.NewUnion()
	reg.AddMember(u, "i", reg.NewInt(4, false))
	reg.AddMember(u, "d", reg.NewReal(8))
	reg.AddMember(u, "s", reg.NewArray(reg.NewInt(1, false), 5))

	if SizeOf(u) != 8 {
		t.Fatalf("SizeOf = %d, want 8", SizeOf(u))
	}
	if AlignOf(u) != 8 {
		t.Fatalf("AlignOf = %d, want 8", AlignOf(u))
	}
	for i, m := range u.Members {
		if m.Offset != 0 {
			t.Errorf("member %d offset = %d, want 0", i, m.Offset)
		}
	}
}

func TestStructSizeIsMultipleOfAlignment(t *testing.T) {
	reg := NewRegistry()
	s := reg.NewStruct()
	reg.AddMember(s, "a", reg.NewInt(1, false))
	reg.AddMember(s, "b", reg.NewReal(8))
	reg.AddMember(s, "c", reg.NewInt(2, false))

	if SizeOf(s)%AlignOf(s) != 0 {
		t.Fatalf("SizeOf(%d) not a multiple of AlignOf(%d)", SizeOf(s), AlignOf(s))
	}
	for _, m := range s.Members {
		if m.Offset%AlignOf(m.Type) != 0 {
			t.Errorf("member %q offset %d not aligned to %d", m.Name, m.Offset, AlignOf(m.Type))
		}
	}
}

func TestTaggedCopyUnwrap(t *testing.T) {
	reg := NewRegistry()
	obj := reg.NewStruct()
	reg.AddMember(obj, "x", reg.NewInt(4, false))
	tagged := reg.TaggedCopy(obj, "S")
	if Unwrap(tagged) != obj {
		t.Fatalf("Unwrap(TaggedCopy(obj)) != obj")
	}
}

func TestCompatibleReflexive(t *testing.T) {
	reg := NewRegistry()
	types := []*Type{
		reg.NewVoid(),
		reg.NewInt(4, false),
		reg.NewInt(8, true),
		reg.NewReal(8),
		reg.NewPointer(reg.NewInt(4, false)),
	}
	for _, ty := range types {
		if !Compatible(ty, ty) {
			t.Errorf("Compatible(%v, %v) = false, want true", ty.ShapeKind, ty.ShapeKind)
		}
		if !Equal(ty, ty) {
			t.Errorf("Equal not reflexive for %v", ty.ShapeKind)
		}
	}
}

func TestEqualSymmetric(t *testing.T) {
	reg := NewRegistry()
	a := reg.NewInt(4, false)
	b := reg.NewInt(4, false)
	if Equal(a, b) != Equal(b, a) {
		t.Fatalf("Equal not symmetric")
	}
}

func TestArrayIncompleteCompletion(t *testing.T) {
	reg := NewRegistry()
	elem := reg.NewInt(4, false)
	arr := reg.NewArray(elem, 0)
	if IsComplete(arr) {
		t.Fatalf("array with count 0 should be incomplete")
	}
	arr.CompleteArray(3)
	if SizeOf(arr) != 12 {
		t.Fatalf("SizeOf after completion = %d, want 12", SizeOf(arr))
	}
}

func TestFunctionVarargSentinelNotAMember(t *testing.T) {
	reg := NewRegistry()
	fn := reg.NewFunction(reg.NewInt(4, false))
	reg.AddMember(fn, "fmt", reg.NewPointer(reg.NewInt(1, false)))
	reg.AddMember(fn, "...", nil)
	if !fn.Vararg {
		t.Fatalf("expected Vararg to be set")
	}
	if len(fn.Members) != 1 {
		t.Fatalf("vararg sentinel should not be appended as a member, got %d members", len(fn.Members))
	}
}

func TestArrayParameterDecaysToPointer(t *testing.T) {
	reg := NewRegistry()
	fn := reg.NewFunction(reg.NewVoid())
	arrType := reg.NewArray(reg.NewInt(4, false), 10)
	reg.AddMember(fn, "xs", arrType)
	if fn.Members[0].Type.ShapeKind != Pointer {
		t.Fatalf("array parameter did not decay to pointer, got shape %v", fn.Members[0].Type.ShapeKind)
	}
}

func TestPromoteInteger(t *testing.T) {
	reg := NewRegistry()
	c := reg.NewInt(1, false)
	promoted := PromoteInteger(reg, c)
	if SizeOf(promoted) != 4 || promoted.ShapeKind != Signed {
		t.Fatalf("char should promote to signed int, got shape %v size %d", promoted.ShapeKind, SizeOf(promoted))
	}

	i := reg.NewInt(4, false)
	if PromoteInteger(reg, i) != i {
		t.Fatalf("int should not be promoted")
	}
}

func TestUsualArithmeticConversionWidensAndUnsignedWins(t *testing.T) {
	reg := NewRegistry()
	i := reg.NewInt(4, false)
	l := reg.NewInt(8, false)
	result := UsualArithmeticConversion(reg, i, l)
	if SizeOf(result) != 8 {
		t.Fatalf("expected the wider type to win, got size %d", SizeOf(result))
	}

	u := reg.NewInt(4, true)
	result = UsualArithmeticConversion(reg, i, u)
	if result.ShapeKind != Unsigned {
		t.Fatalf("same-width tie should favor unsigned, got %v", result.ShapeKind)
	}
}

func TestUsualArithmeticConversionRejectsFloat(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for floating-point operands")
		}
	}()
	reg := NewRegistry()
	UsualArithmeticConversion(reg, reg.NewInt(4, false), reg.NewReal(8))
}
