package loader_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmc-python/modelmachine/loader"
)

// mm-3's cell is 56 bits (14 hex digits): an opcode byte followed by three
// 16-bit address fields, so "01" + addr + addr + addr and "99" padded with
// zeros to a whole cell.
const addSource = `
; mm-3 add: result := 0x20 + 0x24
.cpu mm-3
.output 0x28
.code
01002000240028
99000000000000
.code 0x20
0000000000000a
.code 0x24
0000000000000b
`

func TestParseSourceAddProgram(t *testing.T) {
	p, err := loader.ParseSource(strings.NewReader(addSource))
	require.NoError(t, err)
	assert.Equal(t, "mm-3", p.MachineID)
	require.Len(t, p.Outputs, 1)
	assert.Equal(t, uint32(0x28), p.Outputs[0].Address)
	require.Len(t, p.Spans, 4)
	assert.Equal(t, uint32(0), p.Spans[0].Address)
}

func TestParseSourceWithInputsAndEnter(t *testing.T) {
	src := `
.cpu mm-3
.input 0x10 first operand
.input 0x11 second operand
.output 0x12
.enter 2, 3
.code
99000000000000
`
	p, err := loader.ParseSource(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, p.Inputs, 2)
	assert.Equal(t, "first operand", p.Inputs[0].Help)
	assert.Equal(t, "second operand", p.Inputs[1].Help)
	assert.Equal(t, []int64{2, 3}, p.Enter)
}

func TestParseSourceMultipleAddressesOneLine(t *testing.T) {
	src := `
.cpu mm-3
.output 0x10, 0x11, 0x12 totals
.code
99000000000000
`
	p, err := loader.ParseSource(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, p.Outputs, 3)
	for _, b := range p.Outputs {
		assert.Equal(t, "totals", b.Help)
	}
}

func TestParseSourceMissingCPU(t *testing.T) {
	_, err := loader.ParseSource(strings.NewReader(".code\n99\n"))
	assert.Error(t, err)
}

func TestParseSourceUnknownMachine(t *testing.T) {
	_, err := loader.ParseSource(strings.NewReader(".cpu bogus\n"))
	assert.Error(t, err)
}

func TestParseSourceIncompleteWord(t *testing.T) {
	src := ".cpu mm-3\n.code\n1200001\n"
	_, err := loader.ParseSource(strings.NewReader(src))
	assert.Error(t, err)
}

func TestParseSourceDataOutsideCode(t *testing.T) {
	src := ".cpu mm-3\n99\n"
	_, err := loader.ParseSource(strings.NewReader(src))
	assert.Error(t, err)
}

func TestParseSourceRunsToHalt(t *testing.T) {
	p, err := loader.ParseSource(strings.NewReader(addSource))
	require.NoError(t, err)
	img, err := loader.Build(p)
	require.NoError(t, err)
	out, err := loader.Run(img)
	require.NoError(t, err)
	require.Len(t, out, 1)
}
