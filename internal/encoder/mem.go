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

// memEncoding is the ModR/M(+SIB+disp) tail for a memory operand, plus
// whether encoding it required the REX.X / REX.B extension bits.
type memEncoding struct {
	bytes      []byte
	extX, extB bool
	// ripPlaceholderOffset, when >= 0, is the index within bytes of the
	// 4-byte zero displacement placeholder that a RIP-relative operand
	// still needs relocated.
	ripPlaceholderOffset int
}

// encodeMemOperand builds the ModR/M byte (with reg field `reg`) plus any
// SIB and displacement bytes for a in. RIP-relative addressing uses
// mod=00, rm=0b101 and a 4-byte zero placeholder; non-RIP operands with
// zero displacement use mod=00 (except when the base register would be
// confused with RIP-relative or a bare disp32, which forces mod=01 disp8
// 0), 8-bit signed displacement uses mod=01, and anything else uses
// mod=10 with a 4-byte little-endian displacement.
func encodeMemOperand(reg uint8, a Addr) memEncoding {
	if a.RIPRelative {
		out := []byte{modrm(0b00, reg, 0b101)}
		placeholder := len(out)
		out = append(out, leb32(0)...)
		return memEncoding{bytes: out, ripPlaceholderOffset: placeholder}
	}

	var mod uint8
	var dispBytes []byte
	switch {
	case a.Disp == 0 && !(a.HasBase && a.Base.Encoding() == 5 && !a.HasIndex):
		mod = 0b00
	case fitsInt8(a.Disp):
		mod = 0b01
		dispBytes = []byte{byte(a.Disp)}
	default:
		mod = 0b10
		dispBytes = leb32(a.Disp)
	}
	// base encoding 5 (BP/R13) with mod=00 and no SIB would collide with
	// the RIP-relative encoding; force an explicit disp8 0 instead.
	if mod == 0b00 && a.HasBase && a.Base.Encoding() == 5 {
		mod = 0b01
		dispBytes = []byte{0}
	}

	useSIB := a.HasIndex || (a.HasBase && a.Base.Encoding() == 4)
	var rm uint8
	var out []byte
	if useSIB {
		rm = 0b100
		out = append(out, modrm(mod, reg, rm))
		var indexEnc uint8 = 0b100 // no index
		scale := uint8(0)
		if a.HasIndex {
			indexEnc = a.Index.Encoding()
			scale = scaleCode(a.Scale)
		}
		baseEnc := uint8(0b101)
		if a.HasBase {
			baseEnc = a.Base.Encoding()
		} else {
			// no base: mod forced to 00 with a disp32.
			mod = 0b00
			out[0] = modrm(mod, reg, rm)
			dispBytes = leb32(a.Disp)
		}
		out = append(out, sibByte(scale, indexEnc, baseEnc))
	} else {
		rm = a.Base.Encoding()
		out = append(out, modrm(mod, reg, rm))
	}
	out = append(out, dispBytes...)

	return memEncoding{
		bytes:                out,
		extX:                 a.HasIndex && a.Index.Extended(),
		extB:                 (a.HasBase && a.Base.Extended()),
		ripPlaceholderOffset: -1,
	}
}

// addRIPReloc records the PC32 relocation a RIP-relative memory operand's
// displacement placeholder needs, if a is RIP-relative at all.
// instrPrefixLen is the number of bytes already appended to the
// instruction before mem.bytes, so the placeholder's offset within the
// instruction is instrPrefixLen+mem.ripPlaceholderOffset. trailingBytes is
// however many more bytes (an immediate operand, typically) still follow
// mem.bytes before the instruction ends: x86 RIP-relative addressing is
// relative to the address of the byte *after* the whole instruction, not
// just after the displacement, so the addend is -(4+trailingBytes) plus
// whatever addend the operand itself carries.
func addRIPReloc(sink RelocSink, a Addr, mem memEncoding, instrPrefixLen, trailingBytes int) {
	if !a.RIPRelative || a.Sym == "" || mem.ripPlaceholderOffset < 0 {
		return
	}
	sink.AddRelocText(a.Sym, R_X86_64_PC32, instrPrefixLen+mem.ripPlaceholderOffset, a.SymAddend-int64(4+trailingBytes))
}
