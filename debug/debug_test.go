package debug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmc-python/modelmachine/debug"
	"github.com/cmc-python/modelmachine/engine"
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/mem"
	"github.com/cmc-python/modelmachine/word"
)

func newEngine(t *testing.T, id string) *engine.Engine {
	t.Helper()
	cfg := machine.Registry[id]
	ram := mem.NewRAM(cfg.CellBits, cfg.AddressBits, cfg.DefaultProtected)
	names := []string{machine.RegS, machine.RegRES, machine.RegR1, machine.RegR2, machine.RegFLAGS}
	regs := mem.NewRegisters(cfg.WordBits, names)
	regs.WithWidth(machine.RegPC, cfg.AddressBits)
	regs.WithWidth(machine.RegADDR, cfg.AddressBits)
	regs.WithWidth(machine.RegSP, cfg.AddressBits)
	for i := 0; i < cfg.GeneralRegisters; i++ {
		regs.WithWidth(machine.GeneralRegisterName(i), cfg.WordBits)
	}
	regs.MarkHaltSticky(machine.RegFLAGS)
	return engine.New(cfg, isa.Registry[id], ram, regs)
}

func writeData(t *testing.T, e *engine.Engine, address uint32, value uint64) {
	t.Helper()
	require.NoError(t, e.RAM.Store(address, word.New(e.RAM.CellBits(), value)))
}

// instrWord packs an opcode byte and its operand fields (most significant
// field first) left-justified into one cellBits-wide cell, the bit
// layout engine.Step decodes.
func instrWord(cellBits uint, opcode byte, widths []uint, values []uint64) word.Word {
	v := uint64(opcode)
	used := uint(8)
	for i, w := range widths {
		v = v<<w | (values[i] & (uint64(1)<<w - 1))
		used += w
	}
	v <<= cellBits - used
	return word.New(cellBits, v)
}

func writeInstr(t *testing.T, e *engine.Engine, address uint32, opcode byte, widths []uint, values []uint64) {
	t.Helper()
	require.NoError(t, e.RAM.Store(address, instrWord(e.RAM.CellBits(), opcode, widths, values)))
}

// addProgram lays out a mm-3 add-then-halt program: 0x10=2, 0x11=3, sum at
// 0x12, code at cells 0-1 (add, halt).
func addProgram(t *testing.T, e *engine.Engine) {
	writeData(t, e, 0x10, 2)
	writeData(t, e, 0x11, 3)
	writeInstr(t, e, 0, isa.OpAdd, []uint{16, 16, 16}, []uint64{0x10, 0x11, 0x12})
	writeInstr(t, e, 1, isa.OpHalt, nil, nil)
}

func TestStepReportsRunningThenHalted(t *testing.T) {
	e := newEngine(t, "mm-3")
	addProgram(t, e)
	d := debug.New(e)

	reason, err := d.Step()
	require.NoError(t, err)
	assert.Equal(t, debug.StopRunning, reason)
	assert.Equal(t, 1, d.Cycles())

	reason, err = d.Step()
	require.NoError(t, err)
	assert.Equal(t, debug.StopHalted, reason)
}

func TestRunUntilHaltOrBreakpointStopsAtBreakpoint(t *testing.T) {
	e := newEngine(t, "mm-3")
	addProgram(t, e)
	d := debug.New(e)
	d.SetBreakpoint(1) // address of the halt opcode

	reason, err := d.RunUntilHaltOrBreakpoint()
	require.NoError(t, err)
	assert.Equal(t, debug.StopBreakpoint, reason)
	assert.False(t, e.Halted())
}

func TestRunUntilHaltOrBreakpointRunsToHalt(t *testing.T) {
	e := newEngine(t, "mm-3")
	addProgram(t, e)
	d := debug.New(e)

	reason, err := d.RunUntilHaltOrBreakpoint()
	require.NoError(t, err)
	assert.Equal(t, debug.StopHalted, reason)
}

func TestRunUntilHaltOrBreakpointStepLimit(t *testing.T) {
	e := newEngine(t, "mm-3")
	e.StepLimit = 3
	writeInstr(t, e, 0, isa.OpJump, []uint{16, 16, 16}, []uint64{0, 0, 0})
	d := debug.New(e)

	reason, err := d.RunUntilHaltOrBreakpoint()
	require.NoError(t, err)
	assert.Equal(t, debug.StopStepLimit, reason)
}

func TestReadStateSnapshotsRegistersAndMemory(t *testing.T) {
	e := newEngine(t, "mm-3")
	addProgram(t, e)
	d := debug.New(e)

	require.NoError(t, e.Run())

	st := d.ReadState([]debug.MemSpan{{Address: 0x12, Bits: 56}})
	assert.True(t, st.Halted)
	assert.Equal(t, 2, st.Cycles)
	require.Contains(t, st.Memory, uint32(0x12))
	assert.Equal(t, uint64(5), st.Memory[0x12].Unsigned())
}

func TestBreakpointsListAndClear(t *testing.T) {
	e := newEngine(t, "mm-3")
	d := debug.New(e)
	d.SetBreakpoint(4)
	d.SetBreakpoint(8)
	assert.ElementsMatch(t, []uint32{4, 8}, d.Breakpoints())

	d.ClearBreakpoint(4)
	assert.ElementsMatch(t, []uint32{8}, d.Breakpoints())
}
