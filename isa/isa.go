// Package isa declares, for each of the eight model machines, the table
// mapping an opcode byte to its mnemonic, operand layout and semantics.
// The engine decodes an instruction's opcode byte, looks up the table
// entry, and dispatches on Semantics; the mm-m assembler looks entries up
// by mnemonic.
package isa

import "fmt"

// OperandKind says how one operand field of an instruction is encoded.
type OperandKind int

const (
	// OperandAddress is an address-bits-wide memory address.
	OperandAddress OperandKind = iota
	// OperandRegister is a register-index field (mm-r, mm-m).
	OperandRegister
	// OperandImmediate is a constant embedded in the instruction (mm-0's
	// push, pop and jumps), Config.RelativeBits wide.
	OperandImmediate
)

// Semantics names the operation a control unit performs once operands are
// loaded; it is the dispatch key shared by every machine's engine loop.
//
//go:generate go tool stringer -linecomment -type=Semantics
type Semantics int

const (
	SemHalt    Semantics = iota // halt
	SemMove                     // move
	SemLoad                     // load
	SemStore                    // store
	SemComp                     // comp
	SemSwap                     // swap
	SemPush                     // push
	SemPop                      // pop
	SemDup                      // dup
	SemAdd                      // add
	SemSub                      // sub
	SemSMul                     // smul
	SemUMul                     // umul
	SemSDiv                     // sdiv
	SemUDiv                     // udiv
	SemAddr                     // addr
	SemJump                     // jump
	SemJEq                      // jeq
	SemJNEq                     // jneq
	SemSJL                      // sjl
	SemSJGE                     // sjgeq
	SemSJLE                     // sjleq
	SemSJG                      // sjg
	SemUJL                      // ujl
	SemUJGE                     // ujgeq
	SemUJLE                     // ujleq
	SemUJG                      // ujg
)

// IsCondJump reports whether sem is one of the ten conditional jumps.
func (sem Semantics) IsCondJump() bool {
	return sem >= SemJEq && sem <= SemUJG
}

// IsArithmetic reports whether sem is one of the six binary ALU ops.
func (sem Semantics) IsArithmetic() bool {
	return sem >= SemAdd && sem <= SemUDiv
}

// InstructionDef is one row of a machine's opcode table.
type InstructionDef struct {
	Opcode    byte
	Mnemonic  string
	Semantics Semantics
	// Operands lists, in encoding order from the most significant field
	// after the opcode byte downward, the kind of each operand.
	Operands []OperandKind
}

// Table is a machine's full opcode -> instruction mapping.
type Table map[byte]InstructionDef

// ErrUnknownOpcode is returned by Lookup for a byte with no table entry.
var ErrUnknownOpcode = fmt.Errorf("unknown opcode")

// Lookup finds the instruction definition for an opcode byte.
func (t Table) Lookup(opcode byte) (InstructionDef, error) {
	def, ok := t[opcode]
	if !ok {
		return InstructionDef{}, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, opcode)
	}
	return def, nil
}

// Common opcode values shared across every machine, grounded on the
// original implementation's CommonOpcode enum.
const (
	OpMove  byte = 0x00
	OpLoad  byte = 0x00
	OpAdd   byte = 0x01
	OpSub   byte = 0x02
	OpSMul  byte = 0x03
	OpSDiv  byte = 0x04
	OpComp  byte = 0x05
	OpStore byte = 0x10
	OpAddr  byte = 0x11
	OpUMul  byte = 0x13
	OpUDiv  byte = 0x14
	OpJump  byte = 0x80
	OpJEq   byte = 0x81
	OpJNEq  byte = 0x82
	OpSJL   byte = 0x83
	OpSJGE  byte = 0x84
	OpSJLE  byte = 0x85
	OpSJG   byte = 0x86
	OpUJL   byte = 0x93
	OpUJGE  byte = 0x94
	OpUJLE  byte = 0x95
	OpUJG   byte = 0x96
	OpHalt  byte = 0x99

	// Stack-machine-only opcodes.
	OpPush byte = 0x5A
	OpPop  byte = 0x5B
	OpDup  byte = 0x5C
	OpSwap byte = 0x5D

	// OpZeroPush is mm-0's push, distinct from mm-s's OpPush: mm-0 has no
	// addressable memory, so its opcode table is its own rather than a
	// second name for the same encoding.
	OpZeroPush byte = 0x40

	// mm-r/mm-m register-operand opcodes.
	OpRMove byte = 0x20
	OpRAdd  byte = 0x21
	OpRSub  byte = 0x22
	OpRSMul byte = 0x23
	OpRSDiv byte = 0x24
	OpRComp byte = 0x25
	OpRUMul byte = 0x33
	OpRUDiv byte = 0x34
)

var condJumps = []struct {
	op  byte
	sem Semantics
	mn  string
}{
	{OpJump, SemJump, "jump"},
	{OpJEq, SemJEq, "jeq"},
	{OpJNEq, SemJNEq, "jneq"},
	{OpSJL, SemSJL, "sjl"},
	{OpSJGE, SemSJGE, "sjgeq"},
	{OpSJLE, SemSJLE, "sjleq"},
	{OpSJG, SemSJG, "sjg"},
	{OpUJL, SemUJL, "ujl"},
	{OpUJGE, SemUJGE, "ujgeq"},
	{OpUJLE, SemUJLE, "ujleq"},
	{OpUJG, SemUJG, "ujg"},
}

func addJumps(t Table, operands []OperandKind) {
	for _, j := range condJumps {
		t[j.op] = InstructionDef{Opcode: j.op, Mnemonic: j.mn, Semantics: j.sem, Operands: operands}
	}
}

// ThreeAddress builds the mm-3 table: every instruction carries three
// address operands (A1, A2, A3); semantics decides which fields matter.
func ThreeAddress() Table {
	t := Table{}
	three := []OperandKind{OperandAddress, OperandAddress, OperandAddress}
	t[OpMove] = InstructionDef{Opcode: OpMove, Mnemonic: "move", Semantics: SemMove, Operands: three}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpAdd, SemAdd, "add"}, {OpSub, SemSub, "sub"}, {OpSMul, SemSMul, "smul"},
		{OpSDiv, SemSDiv, "sdiv"}, {OpUMul, SemUMul, "umul"}, {OpUDiv, SemUDiv, "udiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem, Operands: three}
	}
	addJumps(t, three)
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// TwoAddress builds the mm-2 table: move/comp/arithmetic all carry two
// address operands (A1 = destination-and-first-source, ADDR = second
// operand); jumps carry one address operand (their target) padded to the
// same two-field width with a zeroed first field.
func TwoAddress() Table {
	t := Table{}
	two := []OperandKind{OperandAddress, OperandAddress}
	t[OpMove] = InstructionDef{Opcode: OpMove, Mnemonic: "move", Semantics: SemMove, Operands: two}
	t[OpComp] = InstructionDef{Opcode: OpComp, Mnemonic: "comp", Semantics: SemComp, Operands: two}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpAdd, SemAdd, "add"}, {OpSub, SemSub, "sub"}, {OpSMul, SemSMul, "smul"},
		{OpSDiv, SemSDiv, "sdiv"}, {OpUMul, SemUMul, "umul"}, {OpUDiv, SemUDiv, "udiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem, Operands: two}
	}
	addJumps(t, two)
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// OneAddress builds the mm-1 table: every instruction but halt and swap
// carries a single address operand, operating against the implicit
// accumulator.
func OneAddress() Table {
	t := Table{}
	one := []OperandKind{OperandAddress}
	t[OpLoad] = InstructionDef{Opcode: OpLoad, Mnemonic: "load", Semantics: SemLoad, Operands: one}
	t[OpStore] = InstructionDef{Opcode: OpStore, Mnemonic: "store", Semantics: SemStore, Operands: one}
	t[OpComp] = InstructionDef{Opcode: OpComp, Mnemonic: "comp", Semantics: SemComp, Operands: one}
	t[OpSwap] = InstructionDef{Opcode: OpSwap, Mnemonic: "swap", Semantics: SemSwap}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpAdd, SemAdd, "add"}, {OpSub, SemSub, "sub"}, {OpSMul, SemSMul, "smul"},
		{OpSDiv, SemSDiv, "sdiv"}, {OpUMul, SemUMul, "umul"}, {OpUDiv, SemUDiv, "udiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem, Operands: one}
	}
	addJumps(t, one)
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// VariableLength builds the mm-v table: arithmetic/load/store/comp carry
// one address operand, jumps carry one address operand, move carries two
// — the instruction's own length in memory cells therefore varies by
// opcode even though every operand field here is address-width.
func VariableLength() Table {
	t := OneAddress()
	two := []OperandKind{OperandAddress, OperandAddress}
	t[OpMove] = InstructionDef{Opcode: OpMove, Mnemonic: "move", Semantics: SemMove, Operands: two}
	return t
}

// Stack builds the mm-s table: arithmetic, comp, dup and swap read and
// write the stack top with zero encoded operands; push and pop carry one
// memory address to read from or write to, and jumps carry one absolute
// target address.
func Stack() Table {
	t := Table{}
	t[OpPush] = InstructionDef{Opcode: OpPush, Mnemonic: "push", Semantics: SemPush, Operands: []OperandKind{OperandAddress}}
	t[OpPop] = InstructionDef{Opcode: OpPop, Mnemonic: "pop", Semantics: SemPop, Operands: []OperandKind{OperandAddress}}
	t[OpDup] = InstructionDef{Opcode: OpDup, Mnemonic: "dup", Semantics: SemDup}
	t[OpSwap] = InstructionDef{Opcode: OpSwap, Mnemonic: "swap", Semantics: SemSwap}
	t[OpComp] = InstructionDef{Opcode: OpComp, Mnemonic: "comp", Semantics: SemComp}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpAdd, SemAdd, "add"}, {OpSub, SemSub, "sub"}, {OpSMul, SemSMul, "smul"},
		{OpSDiv, SemSDiv, "sdiv"}, {OpUMul, SemUMul, "umul"}, {OpUDiv, SemUDiv, "udiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem}
	}
	addJumps(t, []OperandKind{OperandAddress})
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// Zero builds the mm-0 table: the address-less stack machine. push, pop
// and every jump carry a single immediate field (sign-extended for push
// and jump targets, a bare magnitude for pop) instead of an address:
// mm-0 has no addressable memory to name, only a relative displacement
// or an adjustment amount. pop/dup/swap share mm-s's opcode bytes; push
// does not (mm-s's push reads an address operand, mm-0's reads an
// immediate one, so the wire encodings cannot be unified under one byte).
func Zero() Table {
	t := Table{}
	imm := []OperandKind{OperandImmediate}
	t[OpZeroPush] = InstructionDef{Opcode: OpZeroPush, Mnemonic: "push", Semantics: SemPush, Operands: imm}
	t[OpPop] = InstructionDef{Opcode: OpPop, Mnemonic: "pop", Semantics: SemPop, Operands: imm}
	t[OpDup] = InstructionDef{Opcode: OpDup, Mnemonic: "dup", Semantics: SemDup}
	t[OpSwap] = InstructionDef{Opcode: OpSwap, Mnemonic: "swap", Semantics: SemSwap}
	t[OpComp] = InstructionDef{Opcode: OpComp, Mnemonic: "comp", Semantics: SemComp}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpAdd, SemAdd, "add"}, {OpSub, SemSub, "sub"}, {OpSMul, SemSMul, "smul"},
		{OpSDiv, SemSDiv, "sdiv"}, {OpUMul, SemUMul, "umul"}, {OpUDiv, SemUDiv, "udiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem}
	}
	addJumps(t, imm)
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// Register builds the mm-r table: every instruction but halt carries two
// register fields (R, M) and one address operand.
func Register() Table {
	t := Table{}
	reg := []OperandKind{OperandRegister, OperandRegister, OperandAddress}
	t[OpLoad] = InstructionDef{Opcode: OpLoad, Mnemonic: "load", Semantics: SemLoad, Operands: reg}
	t[OpStore] = InstructionDef{Opcode: OpStore, Mnemonic: "store", Semantics: SemStore, Operands: reg}
	t[OpRMove] = InstructionDef{Opcode: OpRMove, Mnemonic: "rmove", Semantics: SemMove, Operands: reg}
	t[OpRComp] = InstructionDef{Opcode: OpRComp, Mnemonic: "rcomp", Semantics: SemComp, Operands: reg}
	for _, e := range []struct {
		op  byte
		sem Semantics
		mn  string
	}{
		{OpRAdd, SemAdd, "radd"}, {OpRSub, SemSub, "rsub"}, {OpRSMul, SemSMul, "rsmul"},
		{OpRSDiv, SemSDiv, "rsdiv"}, {OpRUMul, SemUMul, "rumul"}, {OpRUDiv, SemUDiv, "rudiv"},
	} {
		t[e.op] = InstructionDef{Opcode: e.op, Mnemonic: e.mn, Semantics: e.sem, Operands: reg}
	}
	addJumps(t, reg)
	t[OpHalt] = InstructionDef{Opcode: OpHalt, Mnemonic: "halt", Semantics: SemHalt}
	return t
}

// RegisterModified builds the mm-m table: mm-r plus the addr opcode,
// which loads register R with the modified effective address itself.
func RegisterModified() Table {
	t := Register()
	reg := []OperandKind{OperandRegister, OperandRegister, OperandAddress}
	t[OpAddr] = InstructionDef{Opcode: OpAddr, Mnemonic: "addr", Semantics: SemAddr, Operands: reg}
	return t
}

// Registry maps every machine id to its opcode table constructor result.
var Registry = map[string]Table{
	"mm-3": ThreeAddress(),
	"mm-2": TwoAddress(),
	"mm-1": OneAddress(),
	"mm-v": VariableLength(),
	"mm-s": Stack(),
	"mm-0": Zero(),
	"mm-r": Register(),
	"mm-m": RegisterModified(),
}
