// Package reducer implements the fixed-point reduction driver: shallow SSA
// renaming, generic-call inlining, full loop unrolling, and constant
// propagation, interleaved and repeated until a function stabilises.
package reducer

import (
	"log"

	"github.com/google/uuid"

	"sentra/internal/embed"
	"sentra/internal/typed"
)

// ReduceProgram runs the whole driver over program's entry function. It
// fails fast with GenericsInMain if main declares generics, otherwise it
// registers the flat embed registry into the entry module and returns a
// program containing exactly that module, the reduced main, and the
// embeds.
func ReduceProgram(program *typed.Program, opts Options) (*typed.Program, error) {
	opts = opts.withDefaults()
	runID := uuid.New().String()

	mainModule := program.MainModule()
	mainSym, ok := mainModule.Resolve("main")
	if !ok {
		return nil, incompatible("main/main", "undeclared")
	}
	if mainSym.IsFlat() {
		return nil, incompatible("main/main", "flat embed")
	}
	main := mainSym.Here

	if len(main.Generics) > 0 {
		opts.logf("run %s: rejected, main declares generics %v", runID, main.Generics)
		return nil, genericsInMain()
	}

	embed.RegisterAll(mainModule, program.Main, opts.FieldModulusBits)

	opts.logf("run %s: reducing %s/main", runID, program.Main)
	reduced, err := Reduce(*main, typed.GenericsAssignment{}, program, opts)
	if err != nil {
		if opts.Verbose {
			log.Printf("reducer: run %s failed: %v", runID, err)
		}
		return nil, err
	}
	opts.logf("run %s: done, %d statements", runID, len(reduced.Statements))

	out := typed.NewProgram(program.Main)
	outModule := out.MainModule()
	embed.RegisterAll(outModule, program.Main, opts.FieldModulusBits)
	outModule.Functions["main"] = typed.HereSymbol(&reduced)
	return out, nil
}
