// Package debug exposes the single-step hook surface an external UI
// drives an engine.Engine through: step, run-to-halt-or-breakpoint,
// state inspection and breakpoints, mirroring the shape of the
// teacher's Emulator.Tick/LineNo/Code inspection methods generalised
// from one fixed program to any of the eight model machines.
package debug

import (
	"errors"

	"github.com/cmc-python/modelmachine/engine"
	"github.com/cmc-python/modelmachine/internal"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/word"
)

// StopReason discriminates why a Step or RunUntilHaltOrBreakpoint call
// returned.
type StopReason int

const (
	// StopRunning means the instruction executed without halting or
	// landing on a breakpoint; the caller may step again.
	StopRunning StopReason = iota
	// StopHalted means the guest program halted normally.
	StopHalted
	// StopBreakpoint means execution paused at a set breakpoint address.
	StopBreakpoint
	// StopStepLimit means the engine's step budget was exhausted.
	StopStepLimit
	// StopError means Step returned an error; the caller should inspect it.
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopRunning:
		return "running"
	case StopHalted:
		return "halted"
	case StopBreakpoint:
		return "breakpoint"
	case StopStepLimit:
		return "step limit"
	default:
		return "error"
	}
}

// MemSpan names one range of memory a State snapshot should include.
type MemSpan struct {
	Address uint32
	Bits    uint
}

// State is a point-in-time snapshot of an engine's visible state.
type State struct {
	PC        uint32
	Cycles    int
	Halted    bool
	Registers map[string]word.Word
	Memory    map[uint32]word.Word
}

// Debugger wraps an Engine with breakpoints and a stop-reason contract.
type Debugger struct {
	Engine      *engine.Engine
	breakpoints map[uint32]bool
}

// New wraps e for stepped, breakpoint-aware execution.
func New(e *engine.Engine) *Debugger {
	return &Debugger{Engine: e, breakpoints: map[uint32]bool{}}
}

// SetBreakpoint arms a stop at address (the PC value before that
// instruction's fetch).
func (d *Debugger) SetBreakpoint(address uint32) {
	d.breakpoints[address] = true
}

// ClearBreakpoint disarms a previously set breakpoint; a no-op if none
// was set at address.
func (d *Debugger) ClearBreakpoint(address uint32) {
	delete(d.breakpoints, address)
}

// Breakpoints reports every currently armed breakpoint address.
func (d *Debugger) Breakpoints() []uint32 {
	out := make([]uint32, 0, len(d.breakpoints))
	for addr := range d.breakpoints {
		out = append(out, addr)
	}
	return out
}

// Step executes exactly one instruction and reports why it stopped:
// StopHalted if that instruction was the halt, StopBreakpoint if the
// resulting PC lands on an armed breakpoint, StopError on failure, and
// StopRunning otherwise.
func (d *Debugger) Step() (StopReason, error) {
	halted, err := d.Engine.Step()
	if err != nil {
		return StopError, err
	}
	if halted {
		return StopHalted, nil
	}
	pc, _ := d.Engine.Registers.Get(machine.RegPC)
	if d.breakpoints[uint32(pc.Unsigned())] {
		return StopBreakpoint, nil
	}
	return StopRunning, nil
}

// RunUntilHaltOrBreakpoint steps repeatedly until halt, an armed
// breakpoint, an error, or the engine's step budget is exhausted.
func (d *Debugger) RunUntilHaltOrBreakpoint() (StopReason, error) {
	for {
		reason, err := d.Step()
		if err != nil {
			if errors.Is(err, engine.ErrStepLimitExceeded) {
				return StopStepLimit, nil
			}
			return StopError, err
		}
		if reason != StopRunning {
			return reason, nil
		}
	}
}

// Cycles reports how many instructions the wrapped engine has executed.
func (d *Debugger) Cycles() int { return d.Engine.Steps() }

// ReadState snapshots the named standard registers, every general
// register the machine's Config declares, and the requested memory
// spans.
func (d *Debugger) ReadState(spans []MemSpan) State {
	cfg := d.Engine.Config
	standard := func(yield func(string) bool) {
		for _, n := range []string{machine.RegS, machine.RegRES, machine.RegR1, machine.RegR2,
			machine.RegPC, machine.RegADDR, machine.RegSP, machine.RegFLAGS} {
			if !yield(n) {
				return
			}
		}
	}
	general := func(yield func(string) bool) {
		for i := 0; i < cfg.GeneralRegisters; i++ {
			if !yield(machine.GeneralRegisterName(i)) {
				return
			}
		}
	}

	regs := make(map[string]word.Word)
	for name := range internal.IterSeqConcat[string](standard, general) {
		if v, err := d.Engine.Registers.Get(name); err == nil {
			regs[name] = v
		}
	}

	mem := make(map[uint32]word.Word, len(spans))
	for _, s := range spans {
		if v, err := d.Engine.RAM.Fetch(s.Address, s.Bits); err == nil {
			mem[s.Address] = v
		}
	}

	pc, _ := d.Engine.Registers.Get(machine.RegPC)
	return State{
		PC:        uint32(pc.Unsigned()),
		Cycles:    d.Engine.Steps(),
		Halted:    d.Engine.Halted(),
		Registers: regs,
		Memory:    mem,
	}
}
