package engine

import (
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/word"
)

// slotCells is the number of RAM cells one stack slot occupies: one full
// operand word.
func (e *Engine) slotCells() uint32 {
	return uint32(e.Config.WordBits / e.RAM.CellBits())
}

// sp returns the current stack pointer as a raw address. The SP register
// is AddressBits wide, so the empty-stack value 2^AddressBits is held as
// 0 and read back here as 2^AddressBits.
func (e *Engine) sp() uint32 {
	v, _ := e.Registers.Get(machine.RegSP)
	if v.IsZero() {
		return uint32(1) << e.Config.AddressBits
	}
	return uint32(v.Unsigned())
}

// setSP stores addr into SP. Address 0 is reserved for the empty-stack
// value, so a push that would move SP down to 0 is a stack overflow.
func (e *Engine) setSP(addr uint32) error {
	if addr == 0 {
		return ErrStackOverflow
	}
	return e.Registers.Set(machine.RegSP, word.New(e.Config.AddressBits, uint64(addr)))
}

// push allocates one slot (SP moves toward lower addresses) and stores v
// at the new top.
func (e *Engine) push(v word.Word) error {
	if e.sp() < e.slotCells() {
		return ErrStackOverflow
	}
	newSP := e.sp() - e.slotCells()
	if err := e.setSP(newSP); err != nil {
		return err
	}
	return e.RAM.Store(newSP, v)
}

// pop reads the top slot and frees it (SP moves toward higher addresses).
func (e *Engine) pop() (word.Word, error) {
	full := uint32(1) << e.Config.AddressBits
	if e.sp()+e.slotCells() > full {
		return word.Word{}, ErrStackUnderflow
	}
	v, err := e.RAM.Fetch(e.sp(), e.Config.WordBits)
	if err != nil {
		return word.Word{}, err
	}
	return v, e.setSP(e.sp() + e.slotCells())
}

// peek reads the nth slot from the top (0 = top) without moving SP.
func (e *Engine) peek(n uint32) (word.Word, error) {
	return e.RAM.Fetch(e.sp()+n*e.slotCells(), e.Config.WordBits)
}

// executeStack runs one instruction on mm-s: push/pop name a RAM address
// to read from or write back to, and jumps carry an absolute target.
func (e *Engine) executeStack(def isa.InstructionDef, dec decoded) error {
	switch def.Semantics {
	case isa.SemHalt:
		e.ALU.Halt()
		return nil

	case isa.SemPush:
		v, err := e.RAM.Fetch(dec.addresses[0], e.Config.WordBits)
		if err != nil {
			return err
		}
		return e.push(v)

	case isa.SemPop:
		v, err := e.pop()
		if err != nil {
			return err
		}
		return e.RAM.Store(dec.addresses[0], v)

	case isa.SemDup, isa.SemSwap:
		return e.dupSwap(def)

	case isa.SemComp:
		return e.stackALU(def)

	default:
		if def.Semantics.IsArithmetic() {
			return e.stackALU(def)
		}

		if def.Semantics.IsCondJump() {
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(dec.addresses[0])))
			e.condJump(def.Semantics)
			return nil
		}

		if def.Semantics == isa.SemJump {
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(dec.addresses[0])))
			e.ALU.Jump()
			return nil
		}

		return nil
	}
}

// executeZeroStack runs one instruction on mm-0, the address-less stack
// machine: push carries a sign-extended immediate rather than reading
// RAM, pop only adjusts SP (there is no address to write back to), and
// every jump target is PC-relative rather than absolute, per
// control_unit_0.py's _decode/_execute.
func (e *Engine) executeZeroStack(def isa.InstructionDef, dec decoded) error {
	switch def.Semantics {
	case isa.SemHalt:
		e.ALU.Halt()
		return nil

	case isa.SemPush:
		signed := word.New(e.Config.RelativeBits, uint64(dec.addresses[0])).Signed()
		return e.push(word.FromSigned(e.Config.WordBits, signed))

	case isa.SemPop:
		return e.popAmount(dec.addresses[0])

	case isa.SemDup, isa.SemSwap:
		return e.dupSwap(def)

	case isa.SemComp:
		return e.stackALU(def)

	default:
		if def.Semantics.IsArithmetic() {
			return e.stackALU(def)
		}

		if def.Semantics.IsCondJump() || def.Semantics == isa.SemJump {
			target := e.relativeTarget(dec.addresses[0])
			_ = e.Registers.Set(machine.RegADDR, word.New(e.Config.AddressBits, uint64(target)))
			if def.Semantics == isa.SemJump {
				e.ALU.Jump()
			} else {
				e.condJump(def.Semantics)
			}
			return nil
		}

		return nil
	}
}

// dupSwap runs dup/swap, identical on mm-s and mm-0: both only ever touch
// the stack top via SP-relative RAM slots, never a named address.
func (e *Engine) dupSwap(def isa.InstructionDef) error {
	switch def.Semantics {
	case isa.SemDup:
		v, err := e.peek(0)
		if err != nil {
			return err
		}
		return e.push(v)

	case isa.SemSwap:
		a, err := e.peek(0)
		if err != nil {
			return err
		}
		b, err := e.peek(1)
		if err != nil {
			return err
		}
		if err := e.RAM.Store(e.sp(), b); err != nil {
			return err
		}
		return e.RAM.Store(e.sp()+e.slotCells(), a)
	}
	return nil
}

// stackALU runs comp and the six arithmetic ops, identical on mm-s and
// mm-0: both read R1/R2 from the top two slots and write the result (or
// quotient/remainder pair) back onto the stack.
func (e *Engine) stackALU(def isa.InstructionDef) error {
	if err := e.loadStackOperands(); err != nil {
		return err
	}

	if def.Semantics == isa.SemComp {
		e.ALU.Sub()
		_, err := e.popN(2)
		return err
	}

	if def.Semantics == isa.SemSDiv || def.Semantics == isa.SemUDiv {
		if err := e.runArithmetic(def.Semantics); err != nil {
			return err
		}
		s, _ := e.Registers.Get(machine.RegS)
		res, _ := e.Registers.Get(machine.RegRES)
		if err := e.RAM.Store(e.sp()+e.slotCells(), s); err != nil {
			return err
		}
		return e.RAM.Store(e.sp(), res)
	}

	if err := e.runArithmetic(def.Semantics); err != nil {
		return err
	}
	s, _ := e.Registers.Get(machine.RegS)
	// One slot (R2's) is freed by the op; the result overwrites R1's old
	// slot, which is exactly where SP now points after freeing R2's, so
	// no further push/pop is needed.
	if _, err := e.popN(1); err != nil {
		return err
	}
	return e.RAM.Store(e.sp(), s)
}

// popAmount implements mm-0's pop: SP moves by n slots and nothing is
// written back, since there is no address to write to.
func (e *Engine) popAmount(n uint32) error {
	full := uint32(1) << e.Config.AddressBits
	delta := n * e.slotCells()
	if e.sp()+delta > full {
		return ErrStackUnderflow
	}
	return e.setSP(e.sp() + delta)
}

// relativeTarget resolves mm-0's jump displacement field against the
// already-advanced PC, mirroring control_unit_0.py's
// `PC + signed(A1) - Cell(1)`.
func (e *Engine) relativeTarget(raw uint32) uint32 {
	pc, _ := e.Registers.Get(machine.RegPC)
	offset := word.New(e.Config.RelativeBits, uint64(raw)).Signed()
	target := int64(pc.Unsigned()) + offset - 1
	mask := int64(1)<<e.Config.AddressBits - 1
	return uint32(target & mask)
}

// PushValue pushes v onto the stack directly, exposed for the loader's
// mm-0 input bindings, which have no RAM address to store a value at.
func (e *Engine) PushValue(v word.Word) error { return e.push(v) }

// StackTop reads the nth slot from the top (0 = most recently pushed)
// without moving SP, exposed for the loader's mm-0 output bindings.
func (e *Engine) StackTop(n uint32) (word.Word, error) { return e.peek(n) }

// loadStackOperands loads R1 from the second-from-top slot and R2 from
// the top slot, matching the original's operand order for sub (so that
// e.g. `push a; push b; sub` computes a-b).
func (e *Engine) loadStackOperands() error {
	r1, err := e.peek(1)
	if err != nil {
		return err
	}
	r2, err := e.peek(0)
	if err != nil {
		return err
	}
	if err := e.Registers.Set(machine.RegR1, r1); err != nil {
		return err
	}
	return e.Registers.Set(machine.RegR2, r2)
}

// popN pops n top slots and returns the last one popped (the caller has
// usually already captured what it needs via peek).
func (e *Engine) popN(n uint32) (word.Word, error) {
	var last word.Word
	for i := uint32(0); i < n; i++ {
		v, err := e.pop()
		if err != nil {
			return word.Word{}, err
		}
		last = v
	}
	return last, nil
}
