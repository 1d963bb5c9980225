// Package asm implements the two-pass symbolic assembler for mm-m, the
// only model machine with a textual instruction mnemonic syntax: labels,
// `.config`/`.code`/`.word`/`.dump` directives, and `label(reg)`
// displacement addressing. It produces the same (spans, output bindings)
// shape the loader's hex source format produces, so both feed
// loader.Program identically.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/loader"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/word"
)

// ErrSyntax reports a source location alongside the underlying cause,
// following the teacher assembler's ErrSyntax wrapper.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (e *ErrSyntax) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.LineNo, e.Line, e.Err)
}

func (e *ErrSyntax) Unwrap() error { return e.Err }

var (
	ErrMnemonicUnknown  = fmt.Errorf(xlate.From("unknown mnemonic"))
	ErrLabelUnknown     = fmt.Errorf(xlate.From("unknown label"))
	ErrLabelDuplicate   = fmt.Errorf(xlate.From("duplicate label"))
	ErrOperandMismatch  = fmt.Errorf(xlate.From("operand/format mismatch"))
	ErrRegisterInvalid  = fmt.Errorf(xlate.From("invalid register name"))
	ErrExpressionSyntax = fmt.Errorf(xlate.From("invalid expression"))
)

const machineID = "mm-m"

// statement is one assembled line: either bytes that occupy addr..addr+len
// in the final image, or (for .word) a constant expression resolved once
// all labels are known.
type statement struct {
	lineNo   int
	line     string
	addr     uint32
	length   uint32
	mnemonic string // empty for a raw .word statement
	def      isa.InstructionDef
	r        string   // register operand, empty if none
	target   string   // label or bare numeric expression for the address field
	mod      string   // register inside label(reg), empty if none
	words    []string // .word operand expressions, one per statement
}

// Assembler is a single-pass-construction, two-pass-resolution assembler
// for mm-m source text.
type Assembler struct {
	table    isa.Table
	cfg      machine.Config
	labels   map[string]uint32
	stmts    []statement
	dump     []loader.Binding
	dumpRefs []dumpRef

	loadAddr uint32
}

// New builds an Assembler for the register-with-modification machine.
func New() *Assembler {
	return &Assembler{
		table:    isa.Registry[machineID],
		cfg:      machine.Registry[machineID],
		labels:   map[string]uint32{},
		loadAddr: 0,
	}
}

// instrLen is the encoded length, in cells, of a mm-m instruction: the
// opcode byte plus its operand fields packed tight (not padded per
// field), rounded up to a whole number of cells — the same rule
// engine.Step's fetch uses to decode it.
func (a *Assembler) instrLen(def isa.InstructionDef) uint32 {
	cell := uint32(a.cfg.CellBits)
	total := uint32(8)
	for _, kind := range def.Operands {
		if kind == isa.OperandRegister {
			total += uint32(a.cfg.RegisterIndexBits)
		} else {
			total += uint32(a.cfg.AddressBits)
		}
	}
	return (total + cell - 1) / cell
}

// Assemble parses mm-m source text and returns a ready-to-load Program.
func (a *Assembler) Assemble(input io.Reader) (*loader.Program, error) {
	if err := a.firstPass(input); err != nil {
		return nil, err
	}
	spans, err := a.secondPass()
	if err != nil {
		return nil, err
	}
	return &loader.Program{
		MachineID: machineID,
		Spans:     spans,
		Outputs:   a.dump,
	}, nil
}

// firstPass scans every line, assigning addresses to labels and
// statements as it goes; it does not yet resolve label references.
func (a *Assembler) firstPass(input io.Reader) error {
	scanner := bufio.NewScanner(input)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}
		if err := a.parseLine(line, lineNo); err != nil {
			return &ErrSyntax{LineNo: lineNo, Line: raw, Err: err}
		}
	}
	return scanner.Err()
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func (a *Assembler) parseLine(line string, lineNo int) error {
	if label, rest, ok := strings.Cut(line, ":"); ok && !strings.ContainsAny(label, " \t(") {
		label = strings.TrimSpace(label)
		if _, dup := a.labels[label]; dup {
			return fmt.Errorf("%w: %s", ErrLabelDuplicate, label)
		}
		a.labels[label] = a.loadAddr
		line = strings.TrimSpace(rest)
		if line == "" {
			return nil
		}
	}

	fields := strings.Fields(line)
	directive := fields[0]

	switch directive {
	case ".config":
		if len(fields) != 2 {
			return fmt.Errorf("%w: .config wants one address", ErrOperandMismatch)
		}
		n, err := strconv.ParseUint(fields[1], 0, 32)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrOperandMismatch, err)
		}
		a.loadAddr = uint32(n)
		return nil

	case ".code":
		a.loadAddr = 0
		return nil

	case ".word":
		rest := strings.TrimSpace(strings.TrimPrefix(line, directive))
		words := splitCommaArgs(rest)
		for _, w := range words {
			a.stmts = append(a.stmts, statement{
				lineNo: lineNo, line: line, addr: a.loadAddr, length: uint32(a.cfg.WordBits) / uint32(a.cfg.CellBits),
				words: []string{w},
			})
			a.loadAddr += uint32(a.cfg.WordBits) / uint32(a.cfg.CellBits)
		}
		return nil

	case ".dump":
		rest := strings.TrimSpace(strings.TrimPrefix(line, directive))
		for _, item := range splitCommaArgs(rest) {
			name := item
			size := uint32(1)
			if i := strings.IndexByte(item, '('); i >= 0 && strings.HasSuffix(item, ")") {
				name = item[:i]
				n, err := strconv.ParseUint(item[i+1:len(item)-1], 10, 32)
				if err != nil {
					return fmt.Errorf("%w: %v", ErrOperandMismatch, err)
				}
				size = uint32(n)
			}
			a.dump = append(a.dump, loader.Binding{Address: 0, Help: name})
			for i := uint32(1); i < size; i++ {
				a.dump = append(a.dump, loader.Binding{Address: 0, Help: fmt.Sprintf("%s+%d", name, i)})
			}
			// the real address is resolved in the second pass; stash the
			// label + count in Help-adjacent bookkeeping via dumpRefs.
			a.dumpRefs = append(a.dumpRefs, dumpRef{label: name, size: size, at: len(a.dump) - int(size)})
		}
		return nil
	}

	def, ok := a.lookupMnemonic(directive)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMnemonicUnknown, directive)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, directive))
	stmt := statement{lineNo: lineNo, line: line, addr: a.loadAddr, mnemonic: directive, def: def}

	if len(def.Operands) > 0 {
		args := splitCommaArgs(rest)
		if err := a.bindOperands(def, args, &stmt); err != nil {
			return err
		}
	}

	stmt.length = a.instrLen(def)
	a.stmts = append(a.stmts, stmt)
	a.loadAddr += stmt.length
	return nil
}

// dumpRef records where in a.dump a .dump item's addresses still need
// filling in once every label is known.
type dumpRef struct {
	label string
	size  uint32
	at    int
}

func splitCommaArgs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lookupMnemonic finds the mm-m InstructionDef whose Mnemonic matches.
func (a *Assembler) lookupMnemonic(name string) (isa.InstructionDef, bool) {
	for _, def := range a.table {
		if def.Mnemonic == name {
			return def, true
		}
	}
	return isa.InstructionDef{}, false
}

// bindOperands matches source operand tokens against one of mm-m's three
// surface shapes, even though every non-halt instruction decodes to the
// same three wire fields (R, M, ADDR) per isa.Register/RegisterModified:
//   - load/store/addr: `R, ADDR(M)` — a destination register and an
//     address expression that optionally carries its modifier register
//     in the `label(reg)` form; M defaults to R0 (no displacement).
//   - rmove/rcomp/arithmetic: `R, M` — two plain registers; the address
//     field goes unused by these semantics and is left zero.
//   - jump and the ten conditional jumps: `ADDR(M)` — one address
//     expression; R goes unused by these semantics and is left zero.
func (a *Assembler) bindOperands(def isa.InstructionDef, args []string, stmt *statement) error {
	switch {
	case def.Semantics == isa.SemLoad || def.Semantics == isa.SemStore || def.Semantics == isa.SemAddr:
		if len(args) != 2 {
			return fmt.Errorf("%w: %s wants a register and an address operand", ErrOperandMismatch, def.Mnemonic)
		}
		stmt.r = args[0]
		stmt.target, stmt.mod = splitDisplacement(args[1])

	case def.Semantics == isa.SemMove || def.Semantics == isa.SemComp || def.Semantics.IsArithmetic():
		if len(args) != 2 {
			return fmt.Errorf("%w: %s wants two registers", ErrOperandMismatch, def.Mnemonic)
		}
		stmt.r = args[0]
		stmt.mod = args[1]
		stmt.target = "0"

	case def.Semantics.IsCondJump() || def.Semantics == isa.SemJump:
		if len(args) != 1 {
			return fmt.Errorf("%w: %s wants one address operand", ErrOperandMismatch, def.Mnemonic)
		}
		stmt.r = machine.GeneralRegisterName(0)
		stmt.target, stmt.mod = splitDisplacement(args[0])

	default:
		return fmt.Errorf("%w: %s has no known operand shape", ErrOperandMismatch, def.Mnemonic)
	}
	return nil
}

// splitDisplacement splits a `label(reg)` address expression into its
// bare address expression and modifier register, defaulting the
// modifier to R0 (no displacement) when the `(reg)` suffix is absent.
func splitDisplacement(arg string) (target, mod string) {
	if i := strings.IndexByte(arg, '('); i >= 0 && strings.HasSuffix(arg, ")") {
		return arg[:i], arg[i+1 : len(arg)-1]
	}
	return arg, machine.GeneralRegisterName(0)
}

var regIndex = func() map[string]int {
	m := map[string]int{}
	for i := 0; i < 16; i++ {
		m[machine.GeneralRegisterName(i)] = i
	}
	return m
}()

func (a *Assembler) registerIndex(name string) (int, error) {
	idx, ok := regIndex[strings.ToUpper(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRegisterInvalid, name)
	}
	return idx, nil
}

// secondPass resolves every label reference and emits one Span per
// statement, plus fills in the addresses .dump recorded only by label
// name during the first pass.
func (a *Assembler) secondPass() ([]loader.Span, error) {
	spans := make([]loader.Span, 0, len(a.stmts))
	for _, stmt := range a.stmts {
		bytes, err := a.emit(stmt)
		if err != nil {
			return nil, &ErrSyntax{LineNo: stmt.lineNo, Line: stmt.line, Err: err}
		}
		spans = append(spans, loader.Span{Address: stmt.addr, Bytes: bytes})
	}

	for _, ref := range a.dumpRefs {
		addr, ok := a.labels[ref.label]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLabelUnknown, ref.label)
		}
		step := uint32(a.cfg.WordBits) / uint32(a.cfg.CellBits)
		for i := uint32(0); i < ref.size; i++ {
			a.dump[ref.at+int(i)].Address = addr + i*step
		}
	}

	return spans, nil
}

// emit encodes one statement's bytes: a .word literal as a single
// operand-width word, or an instruction as its opcode byte followed by R
// and M nibbles and the address field, tightly bit-packed into
// stmt.length cells (not padded per field) exactly as engine.Step
// expects to unpack them.
func (a *Assembler) emit(stmt statement) ([]byte, error) {
	if stmt.mnemonic == "" {
		v, err := a.evalExpr(stmt.words[0])
		if err != nil {
			return nil, err
		}
		return word.FromSigned(a.cfg.WordBits, v).ToBytesBE(), nil
	}

	if len(stmt.def.Operands) == 0 {
		return a.packCells(stmt.length, uint64(stmt.def.Opcode), 8), nil
	}

	r, err := a.registerIndex(stmt.r)
	if err != nil {
		return nil, err
	}
	m, err := a.registerIndex(stmt.mod)
	if err != nil {
		return nil, err
	}
	addr, err := a.resolveAddress(stmt.target)
	if err != nil {
		return nil, err
	}

	value := uint64(stmt.def.Opcode)
	value = value<<a.cfg.RegisterIndexBits | uint64(r)
	value = value<<a.cfg.RegisterIndexBits | uint64(m)
	value = value<<a.cfg.AddressBits | uint64(addr)
	bits := 8 + 2*a.cfg.RegisterIndexBits + a.cfg.AddressBits

	return a.packCells(stmt.length, value, bits), nil
}

// packCells left-justifies a bits-wide value into length cells of
// a.cfg.CellBits each — the low (length*CellBits - bits) bits are
// trailing padding — and serialises the result big-endian.
func (a *Assembler) packCells(length uint32, value uint64, bits uint) []byte {
	total := uint(length) * uint(a.cfg.CellBits)
	value <<= total - bits
	return word.New(total, value).ToBytesBE()
}

// resolveAddress resolves a target token that is either a known label or
// a constant expression.
func (a *Assembler) resolveAddress(target string) (uint32, error) {
	if addr, ok := a.labels[target]; ok {
		return addr, nil
	}
	v, err := a.evalExpr(target)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrLabelUnknown, target)
	}
	return uint32(v), nil
}

// evalExpr resolves a constant-folding expression (a bare number, a
// label, or an arithmetic combination of either) via an embedded
// Starlark evaluation, exactly as the teacher's parenEval folds $(...)
// expressions — except every known label is predefined as a Starlark
// int so `label+1` resolves without special-casing label arithmetic.
func (a *Assembler) evalExpr(expr string) (int64, error) {
	thread := &starlark.Thread{}
	predeclared := starlark.StringDict{}
	for label, addr := range a.labels {
		predeclared[label] = starlark.MakeInt(int(addr))
	}
	opts := syntax.FileOptions{}
	prog := "rc = " + expr + "\n"
	globals, err := starlark.ExecFileOptions(&opts, thread, "expr", prog, predeclared)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExpressionSyntax, err)
	}
	rc, ok := globals["rc"]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrExpressionSyntax, expr)
	}
	i, ok := rc.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrExpressionSyntax, expr)
	}
	v, ok := i.Int64()
	if !ok {
		return 0, fmt.Errorf("%w: %s overflows", ErrExpressionSyntax, expr)
	}
	return v, nil
}
