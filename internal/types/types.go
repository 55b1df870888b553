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

// Package types implements the core type registry: an interned type tree
// with struct/union layout, compatibility, and promotion rules.
package types

import "github.com/samber/lo"

// Shape tags the variant a Type holds.
type Shape int

const (
	Void Shape = iota
	Signed
	Unsigned
	Real
	Pointer
	Array
	Function
	Struct
	Union
	Tag
)

// Qualifier is a bitset over cv-qualifiers.
type Qualifier uint8

const (
	Const Qualifier = 1 << iota
	Volatile
)

// Member is a named field of a Struct, Union, or Function parameter list.
// Member lists are owned separately from the container Type, as in the
// source design, so that appending to one never perturbs another type
// that happens to share element types.
type Member struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is the tagged variant described by the data model. size == 0 means
// incomplete. Elem is the pointee/element/return type; Members is the
// separately-owned field list for Struct/Union/Function.
type Type struct {
	ShapeKind Shape
	Size      int // bytes; 0 == incomplete
	Qual      Qualifier

	Elem    *Type // Pointer/Array/Function(return type)/Tag(target)
	Count   int   // Array element count; 0 == incomplete outermost dimension
	Members []Member
	Vararg  bool // Function only

	TagName string // Tag only
}

// Registry interns Types for the lifetime of a compilation. It is
// append-only: entries are never mutated after AddMember finishes laying
// out a struct/union, except for completing an incomplete array or a
// forward-declared tag, matching the source's process-wide arena model.
type Registry struct {
	all []*Type
}

// NewRegistry returns an empty, ready to use Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) intern(t *Type) *Type {
	r.all = append(r.all, t)
	return t
}

// NewVoid returns a new incomplete void type.
func (r *Registry) NewVoid() *Type {
	return r.intern(&Type{ShapeKind: Void, Size: 0})
}

// NewInt returns a signed or unsigned integer type of the given width.
// width must be one of {1,2,4,8}.
func (r *Registry) NewInt(width int, unsigned bool) *Type {
	if width != 1 && width != 2 && width != 4 && width != 8 {
		panic("types: invalid integer width")
	}
	sh := Signed
	if unsigned {
		sh = Unsigned
	}
	return r.intern(&Type{ShapeKind: sh, Size: width})
}

// NewReal returns a floating-point type of the given width (4 or 8).
func (r *Registry) NewReal(width int) *Type {
	if width != 4 && width != 8 {
		panic("types: invalid real width")
	}
	return r.intern(&Type{ShapeKind: Real, Size: width})
}

// NewPointer returns a pointer to elem.
func (r *Registry) NewPointer(elem *Type) *Type {
	return r.intern(&Type{ShapeKind: Pointer, Size: 8, Elem: elem})
}

// NewArray returns an array of count elements of elem, or an incomplete
// array (count == 0) when count is not yet known.
func (r *Registry) NewArray(elem *Type, count int) *Type {
	size := 0
	if count > 0 {
		size = SizeOf(elem) * count
	}
	return r.intern(&Type{ShapeKind: Array, Size: size, Elem: elem, Count: count})
}

// NewFunction returns a function type with no parameters yet; parameters
// are appended with AddMember.
func (r *Registry) NewFunction(ret *Type) *Type {
	return r.intern(&Type{ShapeKind: Function, Elem: ret})
}

// NewStruct returns an empty, incomplete struct type; fields are appended
// with AddMember, which re-lays-out the struct after each insert.
func (r *Registry) NewStruct() *Type {
	return r.intern(&Type{ShapeKind: Struct})
}

// NewUnion returns an empty, incomplete union type.
func (r *Registry) NewUnion() *Type {
	return r.intern(&Type{ShapeKind: Union})
}

// TaggedCopy wraps obj in a Tag so cv-qualifiers can differ from the
// canonical definition without mutating it.
func (r *Registry) TaggedCopy(obj *Type, name string) *Type {
	return r.intern(&Type{ShapeKind: Tag, TagName: name, Elem: obj})
}

// Unwrap peels a Tag down to its target; any other shape is returned
// unchanged.
func Unwrap(t *Type) *Type {
	if t.ShapeKind == Tag {
		return t.Elem
	}
	return t
}

// AddMember appends a field to a Struct, Union, or Function. For Struct it
// re-runs layout: fields are walked in declaration order, each padded to
// its own alignment, and the total padded to the strongest member
// alignment. For Union, Size becomes max(Size, SizeOf(t)). For Function,
// the sentinel name "..." sets Vararg instead of appending a member; array
// parameters decay to pointer before being appended.
//
// Adding a member to an already-vararg function, or to a Tag, is a
// programmer error.
func (r *Registry) AddMember(container *Type, name string, t *Type) {
	switch container.ShapeKind {
	case Struct:
		offset := structEndOffset(container)
		align := AlignOf(t)
		if offset%align != 0 {
			offset += align - offset%align
		}
		container.Members = append(container.Members, Member{Name: name, Type: t, Offset: offset})
		strongest := lo.MaxBy(container.Members, func(a, b Member) bool {
			return AlignOf(a.Type) > AlignOf(b.Type)
		})
		strongAlign := AlignOf(strongest.Type)
		total := offset + SizeOf(t)
		if total%strongAlign != 0 {
			total += strongAlign - total%strongAlign
		}
		container.Size = total
	case Union:
		container.Members = append(container.Members, Member{Name: name, Type: t, Offset: 0})
		container.Size = lo.Reduce(container.Members, func(acc int, m Member, _ int) int {
			return max(acc, SizeOf(m.Type))
		}, 0)
	case Function:
		if container.Vararg {
			panic("types: cannot add a parameter after \"...\"")
		}
		if name == "..." {
			container.Vararg = true
			return
		}
		if t.ShapeKind == Array {
			t = r.NewPointer(t.Elem)
		}
		container.Members = append(container.Members, Member{Name: name, Type: t})
	default:
		panic("types: AddMember on a Tag or non-aggregate type")
	}
}

func structEndOffset(s *Type) int {
	if len(s.Members) == 0 {
		return 0
	}
	last := s.Members[len(s.Members)-1]
	return last.Offset + SizeOf(last.Type)
}

// CompleteArray sets the element count (and derived size) of an
// incomplete outermost array dimension, as performed by an initializer or
// a string literal.
func (t *Type) CompleteArray(count int) {
	if t.ShapeKind != Array {
		panic("types: CompleteArray on a non-array type")
	}
	t.Count = count
	t.Size = SizeOf(t.Elem) * count
}

// SizeOf returns the type's size in bytes; for a Tag it forwards to the
// tagged object.
func SizeOf(t *Type) int {
	if t.ShapeKind == Tag {
		return SizeOf(t.Elem)
	}
	return t.Size
}

// AlignOf returns the type's alignment. Alignment of a non-aggregate
// equals its size; arrays take the element's alignment; structs/unions
// take the max alignment across members (1 for an empty aggregate).
func AlignOf(t *Type) int {
	switch t.ShapeKind {
	case Tag:
		return AlignOf(t.Elem)
	case Array:
		return AlignOf(t.Elem)
	case Struct, Union:
		if len(t.Members) == 0 {
			return 1
		}
		strongest := lo.MaxBy(t.Members, func(a, b Member) bool {
			return AlignOf(a.Type) > AlignOf(b.Type)
		})
		return AlignOf(strongest.Type)
	case Void, Function:
		return 1
	default:
		return t.Size
	}
}

// IsComplete reports whether the type has a known size. A Tag is complete
// iff its target is.
func IsComplete(t *Type) bool {
	return SizeOf(t) > 0
}

// Equal reports structural equality ignoring qualifiers and parameter
// names. Two Tags are equal iff they wrap the same interned object
// (identity); for structs/unions, member count, names, types, and offsets
// must match pairwise; for functions, return type plus parameter types
// match in order.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.ShapeKind == Tag || b.ShapeKind == Tag {
		if a.ShapeKind != Tag || b.ShapeKind != Tag {
			return false
		}
		return a.Elem == b.Elem
	}
	if a.ShapeKind != b.ShapeKind {
		return false
	}
	switch a.ShapeKind {
	case Void:
		return true
	case Signed, Unsigned, Real:
		return a.Size == b.Size
	case Pointer:
		return Equal(a.Elem, b.Elem)
	case Array:
		return a.Count == b.Count && Equal(a.Elem, b.Elem)
	case Function:
		if a.Vararg != b.Vararg || len(a.Members) != len(b.Members) {
			return false
		}
		if !Equal(a.Elem, b.Elem) {
			return false
		}
		for i := range a.Members {
			if !Equal(a.Members[i].Type, b.Members[i].Type) {
				return false
			}
		}
		return true
	case Struct, Union:
		if len(a.Members) != len(b.Members) {
			return false
		}
		for i := range a.Members {
			ma, mb := a.Members[i], b.Members[i]
			if ma.Name != mb.Name || ma.Offset != mb.Offset || !Equal(ma.Type, mb.Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compatible implements the simplified C §6.2.7 compatibility rule used
// by this core: is_compatible(l, r) == type_equal(l, r).
func Compatible(l, r *Type) bool {
	return Equal(l, r)
}

// PromoteInteger applies C's integer promotion: integers narrower than
// int are widened to int (or unsigned int, preserving signedness); wider
// types and non-integers pass through unchanged.
func PromoteInteger(reg *Registry, t *Type) *Type {
	u := Unwrap(t)
	if (u.ShapeKind == Signed || u.ShapeKind == Unsigned) && u.Size < 4 {
		return reg.NewInt(4, u.ShapeKind == Unsigned)
	}
	return t
}

// UsualArithmeticConversion promotes both operands and picks the wider of
// the two, breaking ties in favor of the unsigned type.
//
// Floating-point operands are not handled here: no expression evaluator
// in this compiler produces mixed float/int operands for this function
// to resolve, so promoting to the wider floating type is out of scope.
func UsualArithmeticConversion(reg *Registry, t1, t2 *Type) *Type {
	p1, p2 := PromoteInteger(reg, t1), PromoteInteger(reg, t2)
	u1, u2 := Unwrap(p1), Unwrap(p2)
	if u1.ShapeKind == Real || u2.ShapeKind == Real {
		panic("types: UsualArithmeticConversion does not handle floating-point operands")
	}
	switch {
	case u1.Size > u2.Size:
		return p1
	case u2.Size > u1.Size:
		return p2
	case u1.ShapeKind == Unsigned:
		return p1
	case u2.ShapeKind == Unsigned:
		return p2
	default:
		return p1
	}
}
