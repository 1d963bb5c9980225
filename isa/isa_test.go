package isa_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmc-python/modelmachine/isa"
)

func TestRegistryHasAllEightMachines(t *testing.T) {
	for _, id := range []string{"mm-3", "mm-2", "mm-1", "mm-v", "mm-s", "mm-0", "mm-r", "mm-m"} {
		_, ok := isa.Registry[id]
		assert.True(t, ok, id)
	}
}

func TestHaltPresentEverywhere(t *testing.T) {
	for id, table := range isa.Registry {
		def, err := table.Lookup(isa.OpHalt)
		require.NoError(t, err, id)
		assert.Equal(t, isa.SemHalt, def.Semantics, id)
	}
}

func TestUnknownOpcode(t *testing.T) {
	_, err := isa.Registry["mm-3"].Lookup(0x77)
	assert.ErrorIs(t, err, isa.ErrUnknownOpcode)
}

func TestThreeAddressOperandShape(t *testing.T) {
	def, err := isa.Registry["mm-3"].Lookup(isa.OpAdd)
	require.NoError(t, err)
	assert.Len(t, def.Operands, 3)
}

func TestRegisterModifiedHasAddr(t *testing.T) {
	def, err := isa.Registry["mm-m"].Lookup(isa.OpAddr)
	require.NoError(t, err)
	assert.Equal(t, isa.SemAddr, def.Semantics)
}

func TestCondJumpClassification(t *testing.T) {
	assert.True(t, isa.SemJEq.IsCondJump())
	assert.False(t, isa.SemJump.IsCondJump())
	assert.False(t, isa.SemHalt.IsCondJump())
}
