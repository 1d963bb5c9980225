package mem_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmc-python/modelmachine/mem"
	"github.com/cmc-python/modelmachine/word"
)

func TestRAMStoreFetchRoundTrip(t *testing.T) {
	ram := mem.NewRAM(8, 8, true)
	w := word.New(16, 0xBEEF)
	require.NoError(t, ram.Store(0x10, w))
	got, err := ram.Fetch(0x10, 16)
	require.NoError(t, err)
	assert.True(t, w.Eq(got))
}

func TestRAMProtectedUninitialisedRead(t *testing.T) {
	ram := mem.NewRAM(8, 8, true)
	_, err := ram.Fetch(0, 8)
	assert.ErrorIs(t, err, mem.ErrUninitialisedRead)
}

func TestRAMPermissiveUninitialisedReadReturnsZero(t *testing.T) {
	ram := mem.NewRAM(8, 8, false)
	got, err := ram.Fetch(0, 8)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestRAMAddressWraparound(t *testing.T) {
	ram := mem.NewRAM(8, 4, true) // 16 cells
	w := word.New(8, 0x42)
	require.NoError(t, ram.Store(16, w)) // wraps to 0
	got, err := ram.Fetch(0, 8)
	require.NoError(t, err)
	assert.True(t, w.Eq(got))
}

func TestRAMAccessCount(t *testing.T) {
	ram := mem.NewRAM(8, 8, true)
	require.NoError(t, ram.Store(0, word.New(16, 0xAB)))
	before := ram.AccessCount
	_, err := ram.Fetch(0, 16)
	require.NoError(t, err)
	assert.Equal(t, before+2, ram.AccessCount)
}

func TestRegistersGetSetWidthChecked(t *testing.T) {
	regs := mem.NewRegisters(16, []string{"R0", "R1"})
	require.NoError(t, regs.Set("R0", word.New(16, 7)))
	v, err := regs.Get("R0")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v.Unsigned())

	err = regs.Set("R0", word.New(8, 7))
	assert.ErrorIs(t, err, mem.ErrRegisterWidth)
}

func TestRegistersUnknownName(t *testing.T) {
	regs := mem.NewRegisters(16, []string{"R0"})
	_, err := regs.Get("NOPE")
	assert.ErrorIs(t, err, mem.ErrUnknownRegister)
}

func TestRegistersHaltSticky(t *testing.T) {
	regs := mem.NewRegisters(8, []string{"FLAGS"})
	regs.MarkHaltSticky("FLAGS")
	regs.Halt()
	err := regs.Set("FLAGS", word.New(8, 1))
	assert.ErrorIs(t, err, mem.ErrHaltLatched)
}

func TestPortIndirection(t *testing.T) {
	ram := mem.NewRAM(8, 8, true)
	p := ram.Port(4, 8)
	require.NoError(t, p.Write(word.New(8, 9)))
	v, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v.Unsigned())

	regs := mem.NewRegisters(8, []string{"R0"})
	rp := regs.Port("R0")
	require.NoError(t, rp.Write(word.New(8, 3)))
	v2, err := rp.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v2.Unsigned())
}
