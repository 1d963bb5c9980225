// Command mmach runs, single-steps, and assembles programs for the
// eight model machines.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cmc-python/modelmachine/asm"
	"github.com/cmc-python/modelmachine/debug"
	"github.com/cmc-python/modelmachine/loader"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/numio"
)

const usage = `usage:
  mmach run [-enter] FILE
  mmach debug [-enter] FILE
  mmach asm IN OUT
`

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is main's testable body: it returns the process exit code rather
// than calling os.Exit directly. 0 on normal halt, 1 on an error halt,
// 2 on a loader or parse failure.
func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "run":
		return runCommand(args[1:])
	case "debug":
		return debugCommand(args[1:])
	case "asm":
		return asmCommand(args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}

func runCommand(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	enter := fs.Bool("enter", false, "force reading input from stdin instead of any inline .enter values")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	p, err := loadProgram(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}
	if *enter {
		vals, err := readExternalEnter(os.Stdin, len(p.Inputs))
		if err != nil {
			fmt.Fprintln(os.Stderr, "mmach:", err)
			return 2
		}
		p.ExternalEnter = vals
	}

	img, err := loader.Build(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}

	out, err := loader.Run(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 1
	}

	w := numio.NewWriter(os.Stdout)
	for _, v := range out {
		if err := w.Write(v.Signed()); err != nil {
			fmt.Fprintln(os.Stderr, "mmach:", err)
			return 1
		}
	}
	return 0
}

func debugCommand(args []string) int {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	enter := fs.Bool("enter", false, "force reading input from stdin instead of any inline .enter values")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	p, err := loadProgram(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}
	if *enter {
		vals, err := readExternalEnter(os.Stdin, len(p.Inputs))
		if err != nil {
			fmt.Fprintln(os.Stderr, "mmach:", err)
			return 2
		}
		p.ExternalEnter = vals
	}

	img, err := loader.Build(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}

	dbg := debug.New(img.Engine)
	reason, err := dbg.RunUntilHaltOrBreakpoint()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "stopped: %s after %d cycles\n", reason, dbg.Cycles())
	if reason != debug.StopHalted {
		return 1
	}

	out, err := loader.Outputs(img)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 1
	}
	w := numio.NewWriter(os.Stdout)
	for _, v := range out {
		if err := w.Write(v.Signed()); err != nil {
			fmt.Fprintln(os.Stderr, "mmach:", err)
			return 1
		}
	}
	return 0
}

func asmCommand(args []string) int {
	fs := flag.NewFlagSet("asm", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil || fs.NArg() != 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	in, closeIn, err := openInput(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}
	if closeIn {
		defer in.Close()
	}

	p, err := asm.New().Assemble(in)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}

	out, closeOut, err := createOutput(fs.Arg(1))
	if err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}
	if closeOut {
		defer out.Close()
	}

	if err := writeSource(out, *p); err != nil {
		fmt.Fprintln(os.Stderr, "mmach:", err)
		return 2
	}
	return 0
}

// loadProgram reads FILE as a .mmach source file and parses it into a
// loader.Program.
func loadProgram(path string) (loader.Program, error) {
	f, closeF, err := openInput(path)
	if err != nil {
		return loader.Program{}, err
	}
	if closeF {
		defer f.Close()
	}
	return loader.ParseSource(f)
}

// readExternalEnter reads count numeric literals, one per line, to feed
// the loader's external-enter path.
func readExternalEnter(r *os.File, count int) ([]int64, error) {
	nr := numio.NewReader(r)
	vals := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		v, err := nr.Next()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// writeSource renders an assembled Program back out as .mmach source
// text, so asm's output can be fed straight into run/debug.
func writeSource(w *os.File, p loader.Program) error {
	if _, err := fmt.Fprintf(w, ".cpu %s\n", p.MachineID); err != nil {
		return err
	}
	for _, b := range p.Inputs {
		if _, err := fmt.Fprintf(w, ".input 0x%x %s\n", b.Address, b.Help); err != nil {
			return err
		}
	}
	for _, b := range p.Outputs {
		if _, err := fmt.Fprintf(w, ".output 0x%x %s\n", b.Address, b.Help); err != nil {
			return err
		}
	}
	cellBytes := int(machine.Registry[p.MachineID].CellBits / 8)
	for _, span := range p.Spans {
		if _, err := fmt.Fprintf(w, ".code 0x%x\n", span.Address); err != nil {
			return err
		}
		for i := 0; i+cellBytes <= len(span.Bytes); i += cellBytes {
			if _, err := fmt.Fprintf(w, "%x\n", span.Bytes[i:i+cellBytes]); err != nil {
				return err
			}
		}
	}
	return nil
}

// openInput opens path for reading, treating "-" as stdin; the bool
// result says whether the caller owns the file and must close it.
func openInput(path string) (*os.File, bool, error) {
	if path == "-" {
		return os.Stdin, false, nil
	}
	f, err := os.Open(path)
	return f, true, err
}

// createOutput creates path for writing, treating "-" as stdout; the
// bool result says whether the caller owns the file and must close it.
func createOutput(path string) (*os.File, bool, error) {
	if path == "-" {
		return os.Stdout, false, nil
	}
	f, err := os.Create(path)
	return f, true, err
}
