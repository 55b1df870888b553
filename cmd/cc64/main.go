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

// Command cc64 compiles one preprocessed C source file to a relocatable
// x86-64 ELF object, driving the pipeline: internal/lexsrc (token
// stream) -> internal/parser (CFG-IR definitions) -> internal/abi
// (parameter classification) -> this command's own minimal codegen
// (internal/ir -> internal/encoder) -> internal/elfobj (object file).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gorse-io/cc64/internal/diag"
	"github.com/gorse-io/cc64/internal/elfobj"
	"github.com/gorse-io/cc64/internal/encoder"
	"github.com/gorse-io/cc64/internal/ir"
	"github.com/gorse-io/cc64/internal/lexsrc"
	"github.com/gorse-io/cc64/internal/parser"
	"github.com/gorse-io/cc64/internal/symtab"
	"github.com/gorse-io/cc64/internal/token"
	"github.com/gorse-io/cc64/internal/types"
)

var (
	verbose  bool
	dumpAsm  bool
	outPath  string
	includes []string
	defines  []string
)

var command = &cobra.Command{
	Use:   "cc64 <source.c>",
	Short: "compile a preprocessed C source file to an x86-64 ELF64 object",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := compile(args[0]); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	command.Flags().StringVarP(&outPath, "output", "o", "", "output object file path (default: source with .o extension)")
	command.Flags().StringSliceVarP(&includes, "include-path", "I", nil, "additional include directory (repeatable)")
	command.Flags().StringSliceVarP(&defines, "define", "D", nil, "command-line macro definition NAME=VALUE (repeatable)")
	command.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace compilation stages to stderr")
	command.Flags().BoolVar(&dumpAsm, "dump-asm", false, "print a textual listing of the instructions lowered from function-body statements to stderr")
}

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseDefines(raw []string) map[string]string {
	out := make(map[string]string, len(raw))
	for _, d := range raw {
		if name, value, ok := strings.Cut(d, "="); ok {
			out[name] = value
		} else {
			out[d] = "1"
		}
	}
	return out
}

func trace(format string, args ...any) {
	if verbose {
		_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// compile runs the full pipeline for one source file and writes the
// resulting object to outPath (or path with its extension swapped to
// .o), returning a non-nil error on any fatal diagnostic.
func compile(path string) error {
	sink := diag.NewSink(os.Stderr)

	out := outPath
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".o"
	}

	trace("cc64: lexing %s", path)
	ts, err := lexsrc.Open(path, lexsrc.Options{IncludePaths: includes, Defines: parseDefines(defines)})
	if err != nil {
		sink.Errorf(token.Position{Filename: path}, "%v", err)
		return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
	}

	reg := types.NewRegistry()
	sym := symtab.NewTable()
	p := parser.New(ts, sym, reg)

	w := elfobj.New()
	var instrTotal []encoder.Instruction

	trace("cc64: parsing and generating code")
	for {
		def, err := p.Parse()
		if err == io.EOF {
			break
		}
		if err != nil {
			sink.Errorf(token.Position{Filename: path}, "%v", err)
			return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
		}

		if isFunction(def) {
			trace("cc64: %s: function %s", path, def.Symbol.Name)
			if err := genFunction(w, def); err != nil {
				sink.Errorf(token.Position{Filename: path}, "%v", err)
				return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
			}
			if dumpAsm {
				instrTotal = append(instrTotal, collectTextAsm(def)...)
			}
		} else {
			trace("cc64: %s: object %s", path, def.Symbol.Name)
			if err := genObject(w, def); err != nil {
				sink.Errorf(token.Position{Filename: path}, "%v", err)
				return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
			}
		}
	}

	finalizeTentatives(w, sym)

	if dumpAsm && len(instrTotal) > 0 {
		listing, err := encoder.Dump(instrTotal)
		if err == nil {
			_, _ = fmt.Fprint(os.Stderr, listing)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		sink.Errorf(token.Position{Filename: path}, "%v", err)
		return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
	}
	defer f.Close()

	if _, err := w.WriteTo(f); err != nil {
		sink.Errorf(token.Position{Filename: path}, "%v", err)
		return fmt.Errorf("cc64: %d diagnostic(s)", sink.Count())
	}

	trace("cc64: wrote %s", out)
	return nil
}

func isFunction(def *ir.Definition) bool {
	return def.Symbol != nil && def.Symbol.Type != nil && types.Unwrap(def.Symbol.Type).ShapeKind == types.Function
}

// finalizeTentatives promotes any file-scope symbol still Tentative once
// the whole translation unit has been parsed to a zero-initialized
// Definition, placing it in .bss.
func finalizeTentatives(w *elfobj.Writer, sym *symtab.Table) {
	for _, s := range symtab.FinalizeTentative(sym.Ordinary.FileScopeSymbols()) {
		size := types.SizeOf(types.Unwrap(s.Type))
		binding := elfobj.BindGlobal
		if s.Linkage == symtab.Intern {
			binding = elfobj.BindLocal
		}
		off := w.ReserveBSS(int64(size))
		w.DefineObject(s.Name, binding, ".bss", off, int64(size))
	}
}

// collectTextAsm re-derives, for the --dump-asm textual listing, the
// Instructions codegen lowered from def's block statements. The prologue,
// parameter spills, block terminators and epilogue that genFunction also
// emits are not included. genFunction already encoded the statements once
// against w; re-running genStatement here is side-effect free (it only
// builds Instruction values) and avoids threading a second return value
// through every codegen call for what is a debug-only path.
func collectTextAsm(def *ir.Definition) []encoder.Instruction {
	var out []encoder.Instruction
	for _, b := range def.Nodes {
		for _, st := range b.Code {
			if instrs, err := genStatement(st); err == nil {
				out = append(out, instrs...)
			}
		}
	}
	return out
}
