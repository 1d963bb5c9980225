package engine

import (
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/word"
)

// effectiveAddress applies mm-m's address-modification rule: the raw
// address plus the content of the M register, unless M names register
// zero (which always reads as an unmodified address).
func (e *Engine) effectiveAddress(raw uint32, m int) uint32 {
	if !e.Config.Modified || m == 0 {
		return raw
	}
	mv, _ := e.Registers.Get(machine.GeneralRegisterName(m))
	return raw + uint32(mv.Unsigned())
}

// executeRegister runs one instruction on mm-r or mm-m: operands decode
// as [R, M, address].
func (e *Engine) executeRegister(def isa.InstructionDef, dec decoded) error {
	// halt carries no operand fields, so it is dispatched before decoding them.
	if def.Semantics == isa.SemHalt {
		e.ALU.Halt()
		return nil
	}

	r, m := dec.registers[0], dec.registers[1]
	addr := e.effectiveAddress(dec.addresses[0], m)
	rName := machine.GeneralRegisterName(r)

	switch def.Semantics {
	case isa.SemAddr:
		return e.Registers.Set(rName, word.New(e.Config.WordBits, uint64(addr)))

	case isa.SemLoad:
		v, err := e.RAM.Fetch(addr, e.Config.WordBits)
		if err != nil {
			return err
		}
		return e.Registers.Set(rName, v)

	case isa.SemStore:
		v, err := e.Registers.Get(rName)
		if err != nil {
			return err
		}
		return e.RAM.Store(addr, v)

	case isa.SemMove:
		mv, err := e.Registers.Get(machine.GeneralRegisterName(m))
		if err != nil {
			return err
		}
		return e.Registers.Set(rName, mv)

	case isa.SemComp:
		if err := e.loadRegisterOperands(r, m); err != nil {
			return err
		}
		e.ALU.Sub()
		return nil

	default:
		if def.Semantics.IsArithmetic() {
			if err := e.loadRegisterOperands(r, m); err != nil {
				return err
			}
			if err := e.runArithmetic(def.Semantics); err != nil {
				return err
			}
			s, _ := e.Registers.Get(machine.RegS)
			return e.Registers.Set(rName, s)
		}

		if def.Semantics.IsCondJump() {
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(addr)))
			e.condJump(def.Semantics)
			return nil
		}

		if def.Semantics == isa.SemJump {
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(addr)))
			e.ALU.Jump()
			return nil
		}

		return nil
	}
}

func (e *Engine) loadRegisterOperands(r, m int) error {
	rv, err := e.Registers.Get(machine.GeneralRegisterName(r))
	if err != nil {
		return err
	}
	mv, err := e.Registers.Get(machine.GeneralRegisterName(m))
	if err != nil {
		return err
	}
	if err := e.Registers.Set(machine.RegR1, rv); err != nil {
		return err
	}
	return e.Registers.Set(machine.RegR2, mv)
}
