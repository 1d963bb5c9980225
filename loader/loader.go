// Package loader builds a running machine image from parsed program
// text: it lays out code/data spans in RAM, binds input/output addresses
// (or stack slots, for the address-less stack machine) to numeric values, and runs
// the engine to completion, emitting outputs only after a normal halt.
package loader

import (
	"fmt"
	"sort"

	"github.com/cmc-python/modelmachine/engine"
	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/mem"
	"github.com/cmc-python/modelmachine/word"
)

// ErrOverlappingSpans is returned when two spans claim the same cell.
var ErrOverlappingSpans = fmt.Errorf(xlate.From("overlapping spans"))

// Span is one contiguous run of initialised cells, most significant byte
// of each word first.
type Span struct {
	Address uint32
	Bytes   []byte
}

// Binding names one input or output location: a memory address on every
// machine except mm-0. On mm-0 Address is not used: inputs are pushed in
// declaration order and outputs are read from the top stack slots.
type Binding struct {
	Address uint32
	Help    string
}

// Program is everything the loader needs to build and run one machine
// instance.
type Program struct {
	MachineID string
	Spans     []Span
	Inputs    []Binding
	Outputs   []Binding
	// Enter holds inline input values supplied by the source's own
	// .enter directive; ExternalEnter, when non-nil, overrides them
	// (the CLI's -enter flag forces reading the external stream even
	// when .enter values are present), per the original's load_program
	// zip_longest precedence.
	Enter         []int64
	ExternalEnter []int64
}

// Image is a built, not-yet-run machine instance.
type Image struct {
	Config  machine.Config
	Engine  *engine.Engine
	Outputs []Binding
}

// filledIntervals tracks which cells a span has already claimed: each
// claim is checked against the sorted list of previously claimed ranges
// and rejected on overlap. Spans are loaded once up front rather than
// cell-by-cell during execution, so unlike the original's per-cell fill
// tracker this only needs to detect overlap, not merge adjacent runs.
type filledIntervals struct {
	starts, ends []uint32 // each [starts[i], ends[i]) is a claimed range, sorted and disjoint
}

func (f *filledIntervals) claim(start, end uint32) error {
	i := sort.Search(len(f.starts), func(i int) bool { return f.ends[i] > start })
	if i < len(f.starts) && f.starts[i] < end {
		return fmt.Errorf("%w: [0x%x,0x%x) overlaps [0x%x,0x%x)", ErrOverlappingSpans, start, end, f.starts[i], f.ends[i])
	}
	f.starts = append(f.starts, 0)
	f.ends = append(f.ends, 0)
	copy(f.starts[i+1:], f.starts[i:])
	copy(f.ends[i+1:], f.ends[i:])
	f.starts[i], f.ends[i] = start, end
	return nil
}

// Build lays out a Program into a fresh RAM + register file and returns
// a ready-to-run Image. Overlapping spans are an error.
func Build(p Program) (*Image, error) {
	cfg, ok := machine.Registry[p.MachineID]
	if !ok {
		return nil, fmt.Errorf("loader: unknown machine %q", p.MachineID)
	}
	table, ok := isa.Registry[p.MachineID]
	if !ok {
		return nil, fmt.Errorf("loader: no opcode table for %q", p.MachineID)
	}

	ram := mem.NewRAM(cfg.CellBits, cfg.AddressBits, cfg.DefaultProtected)
	cellBytes := uint32(cfg.CellBits / 8)

	var intervals filledIntervals
	for _, span := range p.Spans {
		if uint32(len(span.Bytes))%cellBytes != 0 {
			return nil, fmt.Errorf("loader: span at 0x%x is not a whole number of cells", span.Address)
		}
		nCells := uint32(len(span.Bytes)) / cellBytes
		end := span.Address + nCells
		if err := intervals.claim(span.Address, end); err != nil {
			return nil, err
		}
		for i := uint32(0); i < nCells; i++ {
			chunk := span.Bytes[i*cellBytes : (i+1)*cellBytes]
			if err := ram.Store(span.Address+i, word.FromBytesBE(chunk)); err != nil {
				return nil, err
			}
		}
	}

	registers := newRegisterFile(cfg)

	if cfg.Addressing == machine.AddressingStack {
		top := uint32(1) << cfg.AddressBits
		if err := registers.Set(machine.RegSP, word.New(cfg.AddressBits, uint64(top))); err != nil {
			return nil, err
		}
	}

	eng := engine.New(cfg, table, ram, registers)

	if err := bindInputs(eng, cfg, p); err != nil {
		return nil, err
	}

	return &Image{
		Config:  cfg,
		Engine:  eng,
		Outputs: p.Outputs,
	}, nil
}

func newRegisterFile(cfg machine.Config) *mem.Registers {
	names := []string{machine.RegS, machine.RegRES, machine.RegR1, machine.RegR2, machine.RegFLAGS}
	regs := mem.NewRegisters(cfg.WordBits, names)
	regs.WithWidth(machine.RegPC, cfg.AddressBits)
	regs.WithWidth(machine.RegADDR, cfg.AddressBits)
	regs.WithWidth(machine.RegSP, cfg.AddressBits)
	for i := 0; i < cfg.GeneralRegisters; i++ {
		regs.WithWidth(machine.GeneralRegisterName(i), cfg.WordBits)
	}
	regs.MarkHaltSticky(machine.RegFLAGS)
	return regs
}

// bindInputs applies the inline-vs-external precedence: values from
// p.Enter are used first, position by position against p.Inputs; once
// exhausted (or when p.ExternalEnter is supplied, which forces reading
// only the external stream), remaining input bindings read from
// p.ExternalEnter in order. mm-0 has no addressable memory to store an
// input at, so each binding instead pushes its value onto the stack, in
// declaration order.
func bindInputs(eng *engine.Engine, cfg machine.Config, p Program) error {
	enter := p.Enter
	if p.ExternalEnter != nil {
		enter = nil
	}
	external := p.ExternalEnter

	extIdx := 0
	for i, b := range p.Inputs {
		var v int64
		switch {
		case i < len(enter):
			v = enter[i]
		case extIdx < len(external):
			v = external[extIdx]
			extIdx++
		default:
			return fmt.Errorf(xlate.From("no input value supplied for %s"), b.Help)
		}
		w := word.FromSigned(cfg.WordBits, v)
		if cfg.AddressLess {
			if err := eng.PushValue(w); err != nil {
				return err
			}
			continue
		}
		if err := eng.RAM.Store(b.Address, w); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the image to completion and returns the output values in
// Outputs order. It never returns output from an abnormal halt.
func Run(img *Image) ([]word.Word, error) {
	if err := img.Engine.Run(); err != nil {
		return nil, err
	}
	return Outputs(img)
}

// Outputs reads img's declared output bindings from the already-halted
// engine, in declaration order. On the address-less stack machine
// (mm-0), which has no addressable memory, the outputs are instead the
// top len(Outputs) stack slots, read and then reversed so the bottom-
// most (first-declared) value comes first.
func Outputs(img *Image) ([]word.Word, error) {
	out := make([]word.Word, 0, len(img.Outputs))
	if img.Config.AddressLess {
		for i := range img.Outputs {
			v, err := img.Engine.StackTop(uint32(i))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
		return out, nil
	}
	for _, b := range img.Outputs {
		v, err := img.Engine.RAM.Fetch(b.Address, img.Config.WordBits)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
