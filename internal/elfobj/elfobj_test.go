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

package elfobj

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/gorse-io/cc64/internal/encoder"
)

func TestWriteToProducesParseableObject(t *testing.T) {
	w := New()
	w.AppendText([]byte{0xB8, 0x04, 0x03, 0x02, 0x01, 0xC3}) // mov $0x01020304,%eax; ret
	w.DefineFunction("main", BindGlobal, 0, 6)
	off := w.ReserveBSS(4)
	w.DefineObject("counter", BindLocal, ".bss", off, 4)

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("the written object did not parse as ELF64: %v", err)
	}
	defer f.Close()

	if f.Type != elf.ET_REL {
		t.Fatalf("e_type = %v, want ET_REL", f.Type)
	}
	if f.Machine != elf.EM_X86_64 {
		t.Fatalf("e_machine = %v, want EM_X86_64", f.Machine)
	}

	syms, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	var foundMain, foundCounter bool
	for _, s := range syms {
		switch s.Name {
		case "main":
			foundMain = true
			if elf.ST_BIND(s.Info) != elf.STB_GLOBAL {
				t.Errorf("main should be a global symbol")
			}
		case "counter":
			foundCounter = true
			if elf.ST_BIND(s.Info) != elf.STB_LOCAL {
				t.Errorf("counter should be a local symbol")
			}
		}
	}
	if !foundMain || !foundCounter {
		t.Fatalf("expected both main and counter in the symbol table, got %v", syms)
	}
}

func TestWriteToEmitsRelocationSections(t *testing.T) {
	w := New()
	w.AppendText([]byte{0xE9, 0x00, 0x00, 0x00, 0x00})
	w.AddRelocText("target", encoder.R_X86_64_PC32, 1, -4)
	w.DefineLabel("target", 5)
	w.DefineFunction("f", BindLocal, 0, 5)

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	f, err := elf.NewFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer f.Close()

	sec := f.Section(".rela.text")
	if sec == nil {
		t.Fatalf("expected a .rela.text section")
	}
	data, err := sec.Data()
	if err != nil {
		t.Fatalf("reading .rela.text: %v", err)
	}
	rels := make([]elf.Rela64, len(data)/binary.Size(elf.Rela64{}))
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, rels); err != nil {
		t.Fatalf("decoding .rela.text: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 relocation, got %d", len(rels))
	}
	if rels[0].Addend != -4 {
		t.Fatalf("relocation addend = %d, want -4", rels[0].Addend)
	}
}

func TestValidateRejectsUnknownRelocationSymbol(t *testing.T) {
	w := New()
	w.relocText = append(w.relocText, relocation{offset: 0, sym: "ghost", kind: encoder.R_X86_64_PC32})
	if err := w.validate(); err == nil {
		t.Fatalf("expected validate to reject a relocation against an unregistered symbol")
	}
}

func TestTextDisplacementUnresolvedSymbolIsZero(t *testing.T) {
	w := New()
	if got := w.TextDisplacement("nowhere", 1); got != 0 {
		t.Fatalf("TextDisplacement for an undefined symbol = %d, want 0", got)
	}
}

func TestTextDisplacementResolvedBackwardLabel(t *testing.T) {
	w := New()
	w.AppendText(make([]byte, 10))
	w.DefineLabel("top", 3)
	w.AppendText(make([]byte, 20))
	// from = 30 + 1 + 4 = 35; want 3 - 35 = -32
	if got := w.TextDisplacement("top", 1); got != -32 {
		t.Fatalf("TextDisplacement = %d, want -32", got)
	}
}
