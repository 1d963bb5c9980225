// Package engine implements the single, parameterised fetch-decode-
// execute loop shared by every model machine. One Engine binds a
// machine.Config and an isa.Table to a RAM and register file and steps
// them instruction by instruction.
package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cmc-python/modelmachine/alu"
	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/isa"
	"github.com/cmc-python/modelmachine/machine"
	"github.com/cmc-python/modelmachine/mem"
	"github.com/cmc-python/modelmachine/word"
)

// Error taxonomy. Every error the engine can return during Step wraps
// one of these sentinels so callers can discriminate with errors.Is.
var (
	ErrInvalidOpcode     = fmt.Errorf(xlate.From("invalid opcode"))
	ErrIllegalRegister   = fmt.Errorf(xlate.From("illegal register index"))
	ErrStackUnderflow    = fmt.Errorf(xlate.From("stack underflow"))
	ErrStackOverflow     = fmt.Errorf(xlate.From("stack overflow"))
	ErrStepLimitExceeded = fmt.Errorf(xlate.From("step limit exceeded"))
)

// Log is the package-level structured logger every Engine writes step
// traces and fatal-halt notices through.
var Log = logrus.New()

// DefaultStepLimit bounds runaway guest programs; Run returns
// ErrStepLimitExceeded once it is reached without a halt.
const DefaultStepLimit = 1_000_000

// Engine is the fetch-decode-execute loop bound to one machine instance.
type Engine struct {
	Config    machine.Config
	Table     isa.Table
	RAM       *mem.RAM
	Registers *mem.Registers
	ALU       *alu.ALU

	StepLimit int
	steps     int
}

// New builds an Engine, wiring a fresh ALU over the given registers
// using the machine's standard S/RES/R1/R2/PC/ADDR/FLAGS names.
func New(cfg machine.Config, table isa.Table, ram *mem.RAM, registers *mem.Registers) *Engine {
	names := alu.Registers{
		S: machine.RegS, RES: machine.RegRES, R1: machine.RegR1, R2: machine.RegR2,
		PC: machine.RegPC, ADDR: machine.RegADDR, FLAGS: machine.RegFLAGS,
	}
	return &Engine{
		Config:    cfg,
		Table:     table,
		RAM:       ram,
		Registers: registers,
		ALU:       alu.New(registers, names, cfg.WordBits),
		StepLimit: DefaultStepLimit,
	}
}

// Steps reports how many instructions this engine has executed.
func (e *Engine) Steps() int { return e.steps }

// Halted reports whether the register file has latched the halt flag.
func (e *Engine) Halted() bool { return e.Registers.Halted() }

// operandWidth returns the field width, in bits, of one decoded operand
// kind for this machine.
func (e *Engine) operandWidth(kind isa.OperandKind) uint {
	switch kind {
	case isa.OperandRegister:
		return e.Config.RegisterIndexBits
	case isa.OperandImmediate:
		if e.Config.RelativeBits != 0 {
			return e.Config.RelativeBits
		}
		return e.Config.WordBits
	default:
		return e.Config.AddressBits
	}
}

// decoded holds the operand values fetched for one instruction, indexed
// in encoding order.
type decoded struct {
	addresses []uint32
	registers []int
}

// Step executes exactly one instruction: fetch opcode, decode operands,
// dispatch on semantics, advance PC. It returns halted=true once the
// halt opcode has executed, after which further Step calls return
// immediately with halted=true and a nil error.
func (e *Engine) Step() (halted bool, err error) {
	if e.Registers.Halted() {
		return true, nil
	}
	if e.steps >= e.StepLimit {
		return false, ErrStepLimitExceeded
	}
	e.steps++

	pc, _ := e.Registers.Get(machine.RegPC)
	cellBits := e.RAM.CellBits()
	first, err := e.RAM.Fetch(uint32(pc.Unsigned()), cellBits)
	if err != nil {
		return false, err
	}
	opcode := byte(first.Unsigned() >> (cellBits - 8))

	def, err := e.Table.Lookup(opcode)
	if err != nil {
		return false, fmt.Errorf("%w at pc=0x%x", ErrInvalidOpcode, pc.Unsigned())
	}

	// An instruction is its opcode byte plus however many bits its
	// operand fields need, rounded up to a whole number of cells — the
	// same fetch-then-extend rule the original's ControlUnit._fetch
	// applies, generalised to any cell width instead of a fixed byte.
	widths := make([]uint, len(def.Operands))
	operandBits := uint(0)
	for i, kind := range def.Operands {
		widths[i] = e.operandWidth(kind)
		operandBits += widths[i]
	}
	totalBits := 8 + operandBits
	cellsNeeded := (totalBits + cellBits - 1) / cellBits
	if cellsNeeded == 0 {
		cellsNeeded = 1
	}

	packed := first.Unsigned()
	if cellsNeeded > 1 {
		extraBits := (cellsNeeded - 1) * cellBits
		extra, err := e.RAM.Fetch(uint32(pc.Unsigned())+1, extraBits)
		if err != nil {
			return false, err
		}
		packed = packed<<extraBits | extra.Unsigned()
	}
	packed >>= cellsNeeded*cellBits - totalBits // drop trailing padding bits
	operandsValue := packed & (uint64(1)<<operandBits - 1)

	dec := decoded{}
	remaining := operandBits
	for i, kind := range def.Operands {
		w := widths[i]
		remaining -= w
		v := (operandsValue >> remaining) & (uint64(1)<<w - 1)
		switch kind {
		case isa.OperandRegister:
			idx := int(v)
			if e.Config.GeneralRegisters > 0 && idx >= e.Config.GeneralRegisters {
				return false, fmt.Errorf("%w: %d", ErrIllegalRegister, idx)
			}
			dec.registers = append(dec.registers, idx)
		default:
			dec.addresses = append(dec.addresses, uint32(v))
		}
	}

	_ = e.Registers.Set(machine.RegPC, word.New(e.Config.AddressBits, uint64(pc.Unsigned())+uint64(cellsNeeded)))

	Log.WithFields(logrus.Fields{"pc": pc.Unsigned(), "opcode": def.Mnemonic}).Trace("step")

	if err := e.execute(def, dec); err != nil {
		return false, err
	}

	if e.Registers.Halted() {
		Log.WithField("steps", e.steps).Info(xlate.From("machine halted"))
		return true, nil
	}
	return false, nil
}

// Run steps until halt, an error, or the step limit.
func (e *Engine) Run() error {
	for {
		halted, err := e.Step()
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}

func (e *Engine) execute(def isa.InstructionDef, dec decoded) error {
	switch e.Config.Addressing {
	case machine.AddressingMemory:
		return e.executeMemory(def, dec)
	case machine.AddressingRegister:
		return e.executeRegister(def, dec)
	case machine.AddressingStack:
		if e.Config.AddressLess {
			return e.executeZeroStack(def, dec)
		}
		return e.executeStack(def, dec)
	default:
		return fmt.Errorf("engine: unknown addressing style")
	}
}
