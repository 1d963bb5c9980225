package engine

import (
	"github.com/cmc-python/modelmachine/alu"
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/word"
)

// executeMemory runs one instruction on a memory-addressed machine
// (mm-3, mm-2, mm-1, mm-v). Source operands are consumed left to right
// into R1 then R2. With three address operands the third is the
// destination (arithmetic, move); with two, the first is both the first
// source and the destination, and move copies the second address into
// the first. A jump's target is always the last operand. One-address
// machines operate against the implicit accumulator S for every source
// or destination a second operand would otherwise name.
func (e *Engine) executeMemory(def isa.InstructionDef, dec decoded) error {
	addrs := dec.addresses

	switch def.Semantics {
	case isa.SemHalt:
		e.ALU.Halt()
		return nil

	case isa.SemMove:
		dst, src := addrs[0], addrs[len(addrs)-1]
		if len(addrs) == 3 {
			src = addrs[0]
			dst = addrs[2]
		}
		v, err := e.RAM.Fetch(src, e.Config.WordBits)
		if err != nil {
			return err
		}
		return e.RAM.Store(dst, v)

	case isa.SemLoad:
		v, err := e.RAM.Fetch(addrs[0], e.Config.WordBits)
		if err != nil {
			return err
		}
		return e.Registers.Set(machine.RegS, v)

	case isa.SemStore:
		v, _ := e.Registers.Get(machine.RegS)
		return e.RAM.Store(addrs[0], v)

	case isa.SemSwap:
		e.ALU.Swap()
		return nil

	case isa.SemComp:
		if err := e.loadOperands(addrs, false); err != nil {
			return err
		}
		e.ALU.Sub()
		return nil

	default:
		if def.Semantics.IsArithmetic() {
			if err := e.loadOperands(addrs, false); err != nil {
				return err
			}
			if err := e.runArithmetic(def.Semantics); err != nil {
				return err
			}
			dst := addrs[len(addrs)-1]
			if len(addrs) == 2 {
				dst = addrs[0]
			}
			if len(addrs) == 1 {
				// One-address machine: result stays in the accumulator.
				return nil
			}
			s, _ := e.Registers.Get(machine.RegS)
			return e.RAM.Store(dst, s)
		}

		if def.Semantics.IsCondJump() {
			target := addrs[len(addrs)-1]
			if len(addrs) == 3 {
				if err := e.loadOperands(addrs[:2], true); err != nil {
					return err
				}
				e.ALU.Sub()
			}
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(target)))
			e.condJump(def.Semantics)
			return nil
		}

		if def.Semantics == isa.SemJump {
			target := addrs[len(addrs)-1]
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(target)))
			e.ALU.Jump()
			return nil
		}

		return nil
	}
}

// loadOperands fetches R1 (and R2, for two-source instructions) either
// from the two given addresses, or — on a one-address machine where
// addrs has a single element — from the accumulator S and that address.
func (e *Engine) loadOperands(addrs []uint32, fromJump bool) error {
	if len(addrs) == 1 {
		s, _ := e.Registers.Get(machine.RegS)
		if err := e.Registers.Set(machine.RegR1, s); err != nil {
			return err
		}
		v, err := e.RAM.Fetch(addrs[0], e.Config.WordBits)
		if err != nil {
			return err
		}
		return e.Registers.Set(machine.RegR2, v)
	}

	a, err := e.RAM.Fetch(addrs[0], e.Config.WordBits)
	if err != nil {
		return err
	}
	b, err := e.RAM.Fetch(addrs[1], e.Config.WordBits)
	if err != nil {
		return err
	}
	if err := e.Registers.Set(machine.RegR1, a); err != nil {
		return err
	}
	return e.Registers.Set(machine.RegR2, b)
}

// runArithmetic dispatches a binary ALU op by semantics tag.
func (e *Engine) runArithmetic(sem isa.Semantics) error {
	switch sem {
	case isa.SemAdd:
		e.ALU.Add()
	case isa.SemSub:
		e.ALU.Sub()
	case isa.SemSMul:
		e.ALU.SMul()
	case isa.SemUMul:
		e.ALU.UMul()
	case isa.SemSDiv:
		return e.ALU.SDivMod()
	case isa.SemUDiv:
		return e.ALU.UDivMod()
	}
	return nil
}

// condJump evaluates a conditional-jump semantics tag against the flags
// register already set by the preceding comparison.
func (e *Engine) condJump(sem isa.Semantics) {
	switch sem {
	case isa.SemJEq:
		e.ALU.CondJump(true, alu.RelEqual)
	case isa.SemJNEq:
		e.ALU.CondJump(true, alu.RelNotEqual)
	case isa.SemSJL:
		e.ALU.CondJump(true, alu.RelLess)
	case isa.SemSJGE:
		e.ALU.CondJump(true, alu.RelGreaterOrEqual)
	case isa.SemSJLE:
		e.ALU.CondJump(true, alu.RelLessOrEqual)
	case isa.SemSJG:
		e.ALU.CondJump(true, alu.RelGreater)
	case isa.SemUJL:
		e.ALU.CondJump(false, alu.RelLess)
	case isa.SemUJGE:
		e.ALU.CondJump(false, alu.RelGreaterOrEqual)
	case isa.SemUJLE:
		e.ALU.CondJump(false, alu.RelLessOrEqual)
	case isa.SemUJG:
		e.ALU.CondJump(false, alu.RelGreater)
	}
}
