package mem

import (
	"fmt"

	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/word"
)

// ErrUnknownRegister is returned when a name is not present in a register
// file.
var ErrUnknownRegister = fmt.Errorf(xlate.From("unknown register"))

// ErrRegisterWidth is returned when a value's width does not match the
// register it is being written into.
var ErrRegisterWidth = fmt.Errorf(xlate.From("register width mismatch"))

// ErrHaltLatched is returned by Set when writing to a register the file
// has marked sticky after a halt.
var ErrHaltLatched = fmt.Errorf(xlate.From("register file halted"))

// Registers is a named file of fixed-width words, the register-addressed
// counterpart to RAM. Every register in a file shares the file's word
// width except where a machine config overrides it per name.
type Registers struct {
	bits    uint
	values  map[string]word.Word
	widths  map[string]uint
	halted  bool
	// haltNames are the registers latched read-only once Halt is called;
	// empty means no register is protected this way.
	haltNames map[string]bool
}

// NewRegisters builds an empty file where every register defaults to
// defaultBits wide unless given an explicit width via WithWidth.
func NewRegisters(defaultBits uint, names []string) *Registers {
	r := &Registers{
		bits:      defaultBits,
		values:    make(map[string]word.Word, len(names)),
		widths:    make(map[string]uint, len(names)),
		haltNames: make(map[string]bool),
	}
	for _, n := range names {
		r.widths[n] = defaultBits
		r.values[n] = word.New(defaultBits, 0)
	}
	return r
}

// WithWidth overrides a single register's width, re-zeroing it.
func (r *Registers) WithWidth(name string, bits uint) *Registers {
	r.widths[name] = bits
	r.values[name] = word.New(bits, 0)
	return r
}

// MarkHaltSticky records a register (conventionally the flags or mode
// register) that Halt() should freeze.
func (r *Registers) MarkHaltSticky(name string) *Registers {
	r.haltNames[name] = true
	return r
}

// Names reports every register in the file.
func (r *Registers) Names() []string {
	names := make([]string, 0, len(r.values))
	for n := range r.values {
		names = append(names, n)
	}
	return names
}

// Width returns the declared width of a register, or 0 if unknown.
func (r *Registers) Width(name string) uint {
	return r.widths[name]
}

// Get reads a register's current value.
func (r *Registers) Get(name string) (word.Word, error) {
	v, ok := r.values[name]
	if !ok {
		return word.Word{}, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	return v, nil
}

// Set writes a register's value, checking width against the register's
// declared width.
func (r *Registers) Set(name string, v word.Word) error {
	want, ok := r.widths[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegister, name)
	}
	if r.halted && r.haltNames[name] {
		return fmt.Errorf("%w: %s", ErrHaltLatched, name)
	}
	if v.Bits() != want {
		return fmt.Errorf("%w: %s wants %d bits, got %d", ErrRegisterWidth, name, want, v.Bits())
	}
	r.values[name] = v
	return nil
}

// Halt freezes every register named via MarkHaltSticky against further
// writes until Reset.
func (r *Registers) Halt() { r.halted = true }

// Halted reports whether Halt has been called.
func (r *Registers) Halted() bool { return r.halted }

// Reset clears the halt latch and zeroes every register.
func (r *Registers) Reset() {
	r.halted = false
	for n, bits := range r.widths {
		r.values[n] = word.New(bits, 0)
	}
}

type registerPort struct {
	regs *Registers
	name string
}

func (p registerPort) Read() (word.Word, error) { return p.regs.Get(p.name) }
func (p registerPort) Write(v word.Word) error  { return p.regs.Set(p.name, v) }

// Port returns a Port bound to a fixed register name.
func (r *Registers) Port(name string) Port {
	return registerPort{regs: r, name: name}
}
