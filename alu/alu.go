// Package alu implements the stateless arithmetic/logic unit shared by
// every model machine: it reads two named operand registers, writes a
// result (and sometimes a remainder) register, and updates a flags
// register. It never touches RAM.
package alu

import (
	"fmt"

	"github.com/cmc-python/modelmachine/mem"
	"github.com/cmc-python/modelmachine/word"
)

// Flags are the condition bits the ALU leaves behind after every
// operation, packed into the flags register by Bits.
type Flags uint8

const (
	FlagCarry    Flags = 1 << iota // unsigned carry/borrow out
	FlagOverflow                   // signed overflow
	FlagSign                       // result's sign bit
	FlagZero                       // result is all-zero
	FlagHalt                       // machine has executed halt
)

// Bits packs the flags into the low 5 bits of an operand-width word.
func (f Flags) Bits(operandBits uint) word.Word {
	return word.New(operandBits, uint64(f))
}

// FlagsFrom unpacks the low 5 bits of a flags register back into Flags.
func FlagsFrom(w word.Word) Flags {
	return Flags(w.Unsigned() & 0x1f)
}

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Registers names the four registers every ALU operation touches: S and
// RES are the summator/residual written by binary ops, R1 and R2 are the
// operands read by them. PC/ADDR/FLAGS are named separately since jump
// and halt touch only those.
type Registers struct {
	S, RES, R1, R2, PC, ADDR, FLAGS string
}

// ErrDivisionByZero is returned by SDivMod/UDivMod with the operands that
// triggered it already folded into the message. It is the same sentinel
// as word.ErrDivisionByZero, so errors.Is matches either name.
var ErrDivisionByZero = word.ErrDivisionByZero

// ALU operates in place on a register file, never retaining its own
// state between calls.
type ALU struct {
	Registers   *mem.Registers
	Names       Registers
	OperandBits uint
}

// New builds an ALU bound to a register file and a given operand width.
func New(registers *mem.Registers, names Registers, operandBits uint) *ALU {
	return &ALU{Registers: registers, Names: names, OperandBits: operandBits}
}

func (a *ALU) operands() (r1, r2 word.Word) {
	r1, err1 := a.Registers.Get(a.Names.R1)
	r2, err2 := a.Registers.Get(a.Names.R2)
	if err1 != nil || err2 != nil {
		panic(fmt.Sprintf("alu: operand registers not configured: %v, %v", err1, err2))
	}
	return
}

func (a *ALU) setFlags(signedOverflow, unsignedOverflow bool, s word.Word) {
	var f Flags
	if s.IsZero() {
		f |= FlagZero
	}
	if s.IsNegative() {
		f |= FlagSign
	}
	if signedOverflow {
		f |= FlagOverflow
	}
	if unsignedOverflow {
		f |= FlagCarry
	}
	_ = a.Registers.Set(a.Names.FLAGS, f.Bits(a.OperandBits))
}

// Add sets S := R1 + R2 and updates flags from both signed and unsigned
// overflow of the addition.
func (a *ALU) Add() {
	r1, r2 := a.operands()
	s, signedOverflow := r1.Add(r2)
	unsignedOverflow := s.CmpUnsigned(r1) < 0 // sum wrapped below an operand: carry out
	_ = a.Registers.Set(a.Names.S, s)
	a.setFlags(signedOverflow, unsignedOverflow, s)
}

// Sub sets S := R1 - R2 and updates flags; the carry flag here records
// unsigned borrow, i.e. R1 < R2 unsigned.
func (a *ALU) Sub() {
	r1, r2 := a.operands()
	s, signedOverflow := r1.Sub(r2)
	unsignedOverflow := r1.CmpUnsigned(r2) < 0
	_ = a.Registers.Set(a.Names.S, s)
	a.setFlags(signedOverflow, unsignedOverflow, s)
}

// UMul sets S := R1 * R2 truncated unsigned, flagging carry (never
// overflow) on truncation — only the unsigned flavour of the product is
// checked, matching the original's per-operation flag flavour.
func (a *ALU) UMul() {
	r1, r2 := a.operands()
	s, overflow := r1.UMul(r2)
	_ = a.Registers.Set(a.Names.S, s)
	a.setFlags(false, overflow, s)
}

// SMul sets S := R1 * R2 truncated signed, flagging overflow (never
// carry) on truncation.
func (a *ALU) SMul() {
	r1, r2 := a.operands()
	s, overflow := r1.SMul(r2)
	_ = a.Registers.Set(a.Names.S, s)
	a.setFlags(overflow, false, s)
}

// SDivMod sets S := R1 div R2, RES := R1 mod R2 (truncated toward zero,
// signed).
func (a *ALU) SDivMod() error {
	r1, r2 := a.operands()
	q, rem, err := r1.SDivMod(r2)
	if err != nil {
		return fmt.Errorf("%w: %d / %d", err, r1.Signed(), r2.Signed())
	}
	_ = a.Registers.Set(a.Names.S, q)
	_ = a.Registers.Set(a.Names.RES, rem)
	a.setFlags(false, false, q)
	return nil
}

// UDivMod sets S := R1 div R2, RES := R1 mod R2 (unsigned).
func (a *ALU) UDivMod() error {
	r1, r2 := a.operands()
	q, rem, err := r1.UDivMod(r2)
	if err != nil {
		return fmt.Errorf("%w: %d / %d", err, r1.Unsigned(), r2.Unsigned())
	}
	_ = a.Registers.Set(a.Names.S, q)
	_ = a.Registers.Set(a.Names.RES, rem)
	a.setFlags(false, false, q)
	return nil
}

// Swap exchanges S and RES, per Open Questions (a)/(c) of this unit's
// governing contract.
func (a *ALU) Swap() {
	s, _ := a.Registers.Get(a.Names.S)
	res, _ := a.Registers.Get(a.Names.RES)
	_ = a.Registers.Set(a.Names.S, res)
	_ = a.Registers.Set(a.Names.RES, s)
}

// Jump sets PC := ADDR unconditionally.
func (a *ALU) Jump() {
	addr, _ := a.Registers.Get(a.Names.ADDR)
	_ = a.Registers.Set(a.Names.PC, addr)
}

// Relation is a comparison predicate a conditional jump tests against
// the flags register left by the preceding sub/comp.
type Relation int

const (
	RelEqual Relation = iota
	RelNotEqual
	RelLess
	RelLessOrEqual
	RelGreater
	RelGreaterOrEqual
)

// Satisfies reports whether the flags register currently satisfies rel,
// comparing signed or unsigned depending on signed.
func (a *ALU) Satisfies(signed bool, rel Relation) bool {
	flagsWord, _ := a.Registers.Get(a.Names.FLAGS)
	f := FlagsFrom(flagsWord)
	zero := f.has(FlagZero)

	var less bool
	if signed {
		less = f.has(FlagSign) != f.has(FlagOverflow)
	} else {
		less = f.has(FlagCarry)
	}
	greater := !zero && !less

	switch rel {
	case RelEqual:
		return zero
	case RelNotEqual:
		return !zero
	case RelLess:
		return less
	case RelLessOrEqual:
		return less || zero
	case RelGreater:
		return greater
	case RelGreaterOrEqual:
		return greater || zero
	default:
		return false
	}
}

// CondJump jumps when the flags register satisfies rel.
func (a *ALU) CondJump(signed bool, rel Relation) {
	if a.Satisfies(signed, rel) {
		a.Jump()
	}
}

// Halt raises the halt flag; callers are expected to also mark the
// flags register halt-sticky so the engine can detect it on readback.
func (a *ALU) Halt() {
	_ = a.Registers.Set(a.Names.FLAGS, FlagHalt.Bits(a.OperandBits))
	a.Registers.Halt()
}
