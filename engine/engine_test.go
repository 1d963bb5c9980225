package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// writeData stores a full-cell-width value at address, e.g. an operand
// for an arithmetic instruction (mm-3/mm-2/mm-1/mm-0 have WordBits ==
// CellBits, so one data value occupies exactly one cell).
func writeData(t *testing.T, e *engine.Engine, address uint32, value uint64) {
	t.Helper()
	require.NoError(t, e.RAM.Store(address, word.New(e.RAM.CellBits(), value)))
}

// instrWord packs an opcode byte and its operand fields (most significant
// field first, matching isa.InstructionDef.Operands order) left-justified
// into one cellBits-wide cell, the same bit layout engine.Step decodes.
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

// writeInstr stores one single-cell instruction at address.
func writeInstr(t *testing.T, e *engine.Engine, address uint32, opcode byte, widths []uint, values []uint64) {
	t.Helper()
	require.NoError(t, e.RAM.Store(address, instrWord(e.RAM.CellBits(), opcode, widths, values)))
}

func TestMM3AddHalts(t *testing.T) {
	e := newEngine(t, "mm-3")
	// layout: operands at 0x10 (=2), 0x11 (=3), result at 0x12; code at 0.
	writeData(t, e, 0x10, 2)
	writeData(t, e, 0x11, 3)
	addrW := []uint{16, 16, 16}
	writeInstr(t, e, 0, isa.OpAdd, addrW, []uint64{0x10, 0x11, 0x12})
	writeInstr(t, e, 1, isa.OpHalt, nil, nil)

	require.NoError(t, e.Run())
	assert.True(t, e.Halted())
	result, err := e.RAM.Fetch(0x12, 56)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result.Unsigned())
}

func TestMM1LoadAddStoreHalt(t *testing.T) {
	e := newEngine(t, "mm-1")
	writeData(t, e, 0x20, 7)
	writeData(t, e, 0x21, 8)
	writeData(t, e, 0x22, 0)

	writeInstr(t, e, 0, isa.OpLoad, []uint{16}, []uint64{0x20})
	writeInstr(t, e, 1, isa.OpAdd, []uint{16}, []uint64{0x21})
	writeInstr(t, e, 2, isa.OpStore, []uint{16}, []uint64{0x22})
	writeInstr(t, e, 3, isa.OpHalt, nil, nil)

	require.NoError(t, e.Run())
	result, err := e.RAM.Fetch(0x22, 24)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), result.Unsigned())
}

func TestMM3DivisionByZeroHalts(t *testing.T) {
	e := newEngine(t, "mm-3")
	writeData(t, e, 0x10, 5)
	writeData(t, e, 0x11, 0)
	writeInstr(t, e, 0, isa.OpSDiv, []uint{16, 16, 16}, []uint64{0x10, 0x11, 0x12})

	err := e.Run()
	assert.Error(t, err)
}

func TestStepLimitExceeded(t *testing.T) {
	e := newEngine(t, "mm-3")
	e.StepLimit = 2
	writeInstr(t, e, 0, isa.OpJump, []uint{16, 16, 16}, []uint64{0, 0, 0})

	err := e.Run()
	assert.ErrorIs(t, err, engine.ErrStepLimitExceeded)
}

func TestMM0AddressLessPushArithmeticHalt(t *testing.T) {
	e := newEngine(t, "mm-0")
	top := uint32(1) << e.Config.AddressBits
	require.NoError(t, e.Registers.Set(machine.RegSP, word.New(e.Config.AddressBits, uint64(top))))

	writeInstr(t, e, 0, isa.OpZeroPush, []uint{8}, []uint64{7})
	writeInstr(t, e, 1, isa.OpZeroPush, []uint{8}, []uint64{0xFE}) // -2, sign-extended
	writeInstr(t, e, 2, isa.OpAdd, nil, nil)
	writeInstr(t, e, 3, isa.OpHalt, nil, nil)

	require.NoError(t, e.Run())
	assert.True(t, e.Halted())
	v, err := e.StackTop(0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Signed())
}
