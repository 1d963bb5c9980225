// Package machine declares the fixed configuration of each of the eight
// model machines: word widths, addressing style and register set. engine
// reads a Config to know how to decode and execute against a given
// isa.Table.
package machine

// AddressingStyle says how an instruction's non-immediate operands name
// a location.
type AddressingStyle int

const (
	// AddressingMemory operands are plain memory addresses.
	AddressingMemory AddressingStyle = iota
	// AddressingRegister operands are register-index fields plus one
	// memory address (mm-r, mm-m).
	AddressingRegister
	// AddressingStack operands act on an implicit stack top (mm-s, mm-0).
	AddressingStack
)

// Config is the literal, unchanging description of one model machine.
type Config struct {
	ID string

	// WordBits is the width of an ALU operand / memory word.
	WordBits uint
	// AddressBits is the width of a memory address and of the PC/SP.
	AddressBits uint
	// CellBits is the width of one addressable RAM cell.
	CellBits uint
	// RegisterIndexBits is the width of a register-index operand field;
	// zero on machines with no general register file.
	RegisterIndexBits uint
	// GeneralRegisters is the number of indexable general registers on
	// register machines (mm-r, mm-m); zero elsewhere.
	GeneralRegisters int
	// RelativeBits is the width of mm-0's push/pop/jump immediate field;
	// zero on every other machine, where OperandImmediate (if ever used)
	// falls back to WordBits.
	RelativeBits uint

	Addressing AddressingStyle
	// AddressLess marks mm-0: the one stack machine with no addressable
	// memory to speak of, so push/pop/jump diverge from mm-s's RAM-backed
	// versions despite sharing AddressingStack.
	AddressLess bool
	// Modified is set on mm-m alone: the addr operand's M register, when
	// non-zero, is added to the address field to form the effective
	// address.
	Modified bool

	// DefaultProtected is the uninitialised-read policy new RAM gets
	// unless the loader overrides it.
	DefaultProtected bool
}

// Registry maps every machine id to its Config.
//
// WordBits/CellBits follow the original's per-machine ControlUnit.IR_BITS
// (the ALU operand width, also RandomAccessMemory.word_bits when the two
// coincide) and ControlUnit.WORD_BITS (the RAM cell width actually wired
// into RandomAccessMemory by cpu.py's `Cpu.__init__`). On the three- and
// two-address, one-address and address-less-stack machines the two are
// the same value, because their whole instruction word is also their
// memory cell. mm-v and mm-s decode a multi-byte instruction out of
// 8-bit memory cells, so IR_BITS (decode/ALU width) and WORD_BITS (cell
// width) diverge. mm-r/mm-m's general registers are IR_BITS (32) wide but
// their RAM is cellBits-16 (WORD_BITS, which equals ADDRESS_BITS in that
// file) wide, i.e. a 2-byte cell.
var Registry = map[string]Config{
	"mm-3": {
		ID: "mm-3", WordBits: 56, AddressBits: 16, CellBits: 56,
		Addressing: AddressingMemory, DefaultProtected: true,
	},
	"mm-2": {
		ID: "mm-2", WordBits: 40, AddressBits: 16, CellBits: 40,
		Addressing: AddressingMemory, DefaultProtected: true,
	},
	"mm-v": {
		ID: "mm-v", WordBits: 40, AddressBits: 16, CellBits: 8,
		Addressing: AddressingMemory, DefaultProtected: true,
	},
	"mm-1": {
		ID: "mm-1", WordBits: 24, AddressBits: 16, CellBits: 24,
		Addressing: AddressingMemory, DefaultProtected: true,
	},
	"mm-s": {
		ID: "mm-s", WordBits: 24, AddressBits: 16, CellBits: 8,
		Addressing: AddressingStack, DefaultProtected: true,
	},
	"mm-0": {
		ID: "mm-0", WordBits: 16, AddressBits: 16, CellBits: 16, RelativeBits: 8,
		Addressing: AddressingStack, AddressLess: true, DefaultProtected: true,
	},
	"mm-r": {
		ID: "mm-r", WordBits: 32, AddressBits: 16, CellBits: 16,
		RegisterIndexBits: 4, GeneralRegisters: 16,
		Addressing: AddressingRegister, DefaultProtected: true,
	},
	"mm-m": {
		ID: "mm-m", WordBits: 32, AddressBits: 16, CellBits: 16,
		RegisterIndexBits: 4, GeneralRegisters: 16,
		Addressing: AddressingRegister, Modified: true, DefaultProtected: true,
	},
}

// StandardRegisters are the names every machine's register file carries
// beyond its general registers: S and RES back the ALU, PC/ADDR/SP are
// control-unit bookkeeping, FLAGS is the condition register.
const (
	RegS     = "S"
	RegRES   = "RES"
	RegR1    = "R1"
	RegR2    = "R2"
	RegPC    = "PC"
	RegADDR  = "ADDR"
	RegSP    = "SP"
	RegFLAGS = "FLAGS"
)

// GeneralRegisterName returns the conventional name of register n of a
// register machine's general file, e.g. "R0".."RF".
func GeneralRegisterName(n int) string {
	const hex = "0123456789ABCDEF"
	if n < 16 {
		return "R" + string(hex[n])
	}
	return "R" + string(rune('0'+n))
}
