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

package encoder

// rexPrefix builds the REX byte. w reflects 64-bit operand width, r
// extends the ModR/M reg field, x extends the SIB index field, and b
// extends r/m, the SIB base field, or an opcode-embedded register.
func rexPrefix(w, r, x, b bool) byte {
	var rex byte = 0x40
	if w {
		rex |= 1 << 3
	}
	if r {
		rex |= 1 << 2
	}
	if x {
		rex |= 1 << 1
	}
	if b {
		rex |= 1
	}
	return rex
}

// needsRex reports whether any of the REX component bits are set: REX is
// emitted whenever any operand is 64-bit wide, accesses an extended
// register, or an indirect operand uses an extended base/index.
func needsRex(w, r, x, b bool) bool {
	return w || r || x || b
}

// wBit returns the operand-size bit used to select between an opcode's
// byte form and its default (32/64-bit) form: 0 for an 8-bit width, 1
// otherwise. A 16-bit width additionally requires the legacy 0x66 prefix.
func wBit(width uint8) byte {
	if width&1 != 0 {
		return 0
	}
	return 1
}

func modrm(mod, reg, rm uint8) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

func sibByte(scale, index, base uint8) byte {
	return (scale << 6) | ((index & 7) << 3) | (base & 7)
}

// scaleCode maps a SIB scale factor to its 2-bit encoding.
func scaleCode(scale uint8) uint8 {
	switch scale {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	case 8:
		return 3
	default:
		panic("encoder: invalid SIB scale")
	}
}

func leb32(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func le64(v int64) []byte {
	return []byte{
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		byte(v >> 32), byte(v >> 40), byte(v >> 48), byte(v >> 56),
	}
}

func fitsInt8(v int32) bool { return v >= -128 && v <= 127 }
func fitsInt32(v int64) bool {
	return v >= -2147483648 && v <= 2147483647
}
