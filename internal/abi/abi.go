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

// Package abi implements the System V AMD64 eightbyte classification
// algorithm used to decide register-vs-memory placement for parameters
// and the return value.
package abi

import (
	"github.com/samber/lo"

	"github.com/gorse-io/cc64/internal/types"
)

// Class is the per-eightbyte ABI class.
type Class int

const (
	NoClass Class = iota
	Integer
	SSE
	SSEup
	Memory
)

// integerArgRegs is the fixed order ClassifyCall walks when allocating
// integer registers to arguments.
var integerArgRegs = []string{"DI", "SI", "DX", "CX", "R8", "R9"}

const maxIntArgRegs = 6

// eightbyteCount returns ceil(size/8).
func eightbyteCount(size int) int {
	return (size + 7) / 8
}

// combine implements the pairwise class-merge rule: identical classes
// absorb; NoClass is absorbed; any Memory wins; else Integer beats SSE;
// else SSE.
func combine(a, b Class) Class {
	if a == b {
		return a
	}
	if a == NoClass {
		return b
	}
	if b == NoClass {
		return a
	}
	if a == Memory || b == Memory {
		return Memory
	}
	if a == Integer || b == Integer {
		return Integer
	}
	return SSE
}

// hasUnalignedFields reports whether any scalar field of t, recursing
// into nested aggregates, starts at an offset not a multiple of its own
// type's size.
func hasUnalignedFields(t *types.Type, base int) bool {
	u := types.Unwrap(t)
	switch u.ShapeKind {
	case types.Struct, types.Union:
		for _, m := range u.Members {
			if hasUnalignedFields(m.Type, base+m.Offset) {
				return true
			}
		}
		return false
	case types.Array:
		elemSize := types.SizeOf(u.Elem)
		if elemSize == 0 {
			return false
		}
		for i := 0; i < u.Count; i++ {
			if hasUnalignedFields(u.Elem, base+i*elemSize) {
				return true
			}
		}
		return false
	default:
		sz := types.SizeOf(u)
		if sz == 0 {
			return false
		}
		return base%sz != 0
	}
}

// classifyScalarField returns the class a scalar field (int/pointer/real)
// contributes.
func classifyScalarField(t *types.Type) Class {
	u := types.Unwrap(t)
	if u.ShapeKind == types.Real {
		return SSE
	}
	return Integer
}

// flatten walks every scalar leaf of t at the given base offset, invoking
// visit(offset, class) for each.
func flatten(t *types.Type, base int, visit func(offset int, class Class)) {
	u := types.Unwrap(t)
	switch u.ShapeKind {
	case types.Struct, types.Union:
		for _, m := range u.Members {
			flatten(m.Type, base+m.Offset, visit)
		}
	case types.Array:
		elemSize := types.SizeOf(u.Elem)
		if elemSize == 0 {
			return
		}
		for i := 0; i < u.Count; i++ {
			flatten(u.Elem, base+i*elemSize, visit)
		}
	default:
		visit(base, classifyScalarField(u))
	}
}

// Classify returns the eightbyte class sequence for a non-function,
// non-void type. Integers and pointers classify as a single [Integer].
// Aggregates larger than 4 eightbytes, or with any field at a misaligned
// offset, classify as [Memory]. Otherwise the aggregate's scalar fields
// are flattened into their containing eightbyte slots, combined pairwise,
// then merge-passed: any Memory slot collapses the whole result to
// [Memory], and a >2-eightbyte result whose first slot isn't SSE (or has
// no SSEup) also collapses to [Memory].
func Classify(t *types.Type) []Class {
	u := types.Unwrap(t)
	switch u.ShapeKind {
	case types.Signed, types.Unsigned, types.Pointer:
		return []Class{Integer}
	case types.Real:
		return []Class{SSE}
	case types.Struct, types.Union:
		size := types.SizeOf(u)
		n := eightbyteCount(size)
		if n > 4 || hasUnalignedFields(u, 0) {
			return []Class{Memory}
		}
		slots := make([]Class, n)
		flatten(u, 0, func(offset int, class Class) {
			idx := offset / 8
			slots[idx] = combine(slots[idx], class)
		})
		for _, s := range slots {
			if s == Memory {
				return []Class{Memory}
			}
		}
		if n > 2 {
			if slots[0] != SSE {
				return []Class{Memory}
			}
			for _, s := range slots[1:] {
				if s != SSEup {
					return []Class{Memory}
				}
			}
		}
		for i, s := range slots {
			if s == NoClass {
				slots[i] = SSE
			}
		}
		return slots
	default:
		return []Class{Memory}
	}
}

// SlotCount returns the number of eightbyte slots a classification
// occupies: ceil(size/8) when the first class isn't Memory, else 1.
func SlotCount(t *types.Type, classes []Class) int {
	if len(classes) > 0 && classes[0] == Memory {
		return 1
	}
	return eightbyteCount(types.SizeOf(types.Unwrap(t)))
}

// ArgPlacement records where one argument (or the return value) was
// placed: in integer registers (by name, in allocation order), or spilled
// to the stack at a byte offset within the stack-argument area.
type ArgPlacement struct {
	Type     *types.Type
	Classes  []Class
	Memory   bool
	IntRegs  []string // register names consumed, in order, when !Memory
	StackOff int      // valid only when Memory
}

// CallClassification is the result of classifying every argument (and the
// return value) of a call site or function signature.
type CallClassification struct {
	Args          []ArgPlacement
	Return        []Class
	ReturnInMem   bool
	HiddenRetReg  string // "DI" when ReturnInMem, else ""
	StackArgs     []lo.Tuple2[int, *types.Type]
	StackArgBytes int
}

// ClassifyCall runs Classify on each argument and the return type,
// reserves the first integer register for a hidden return pointer when
// the return is Memory-classed, and walks the argument list left to
// right allocating integer registers from integerArgRegs. Arguments are
// never split across registers and the stack: if the remaining integer
// register budget can't hold an argument's full eightbyte count, that
// argument is downgraded to Memory (passed on the stack) in its
// entirety. Floating-point registers are not tracked by this variant.
func ClassifyCall(args []*types.Type, ret *types.Type) CallClassification {
	var cc CallClassification
	nextReg := 0
	if ret != nil && types.Unwrap(ret).ShapeKind != types.Void {
		cc.Return = Classify(ret)
		if cc.Return[0] == Memory {
			cc.ReturnInMem = true
			cc.HiddenRetReg = integerArgRegs[0]
			nextReg = 1
		}
	}

	stackOffset := 0
	for _, argType := range args {
		classes := Classify(argType)
		n := SlotCount(argType, classes)
		placement := ArgPlacement{Type: argType, Classes: classes}
		if classes[0] != Memory && nextReg+n <= maxIntArgRegs {
			placement.IntRegs = append(placement.IntRegs, integerArgRegs[nextReg:nextReg+n]...)
			nextReg += n
		} else {
			placement.Memory = true
			placement.StackOff = stackOffset
			stackOffset += types.SizeOf(types.Unwrap(argType))
			cc.StackArgs = append(cc.StackArgs, lo.Tuple2[int, *types.Type]{A: placement.StackOff, B: argType})
			// A Memory-classed argument still advances the register cursor
			// by its single slot; later scalar arguments do not back-fill
			// the skipped register.
			if classes[0] == Memory && nextReg < maxIntArgRegs {
				nextReg++
			}
		}
		cc.Args = append(cc.Args, placement)
	}
	cc.StackArgBytes = stackOffset
	return cc
}

// ClassifySignature assembles the parameter-type array of a function type
// and delegates to ClassifyCall.
func ClassifySignature(fn *types.Type) CallClassification {
	u := types.Unwrap(fn)
	if u.ShapeKind != types.Function {
		panic("abi: ClassifySignature requires a Function type")
	}
	args := make([]*types.Type, len(u.Members))
	for i, m := range u.Members {
		args[i] = m.Type
	}
	return ClassifyCall(args, u.Elem)
}
