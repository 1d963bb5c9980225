// Package mem implements the two memory variants a model machine needs: a
// byte-addressable RAM and a named register file. Both are exposed through
// a single Port contract so the ALU and control unit never need to know
// which one they are touching.
package mem

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cmc-python/modelmachine/internal/xlate"
	"github.com/cmc-python/modelmachine/word"
)

// ErrUninitialisedRead is returned by a protected RAM's Fetch when any
// touched cell was never written.
var ErrUninitialisedRead = fmt.Errorf(xlate.From("uninitialised read"))

// ErrMisalignedWidth is returned when a requested width is not a positive
// multiple of the cell size.
var ErrMisalignedWidth = fmt.Errorf(xlate.From("width is not a multiple of cell size"))

// MaxCellBits is the widest cell size any model machine declares (mm-3's
// 7-byte word), matching the original's instruction-width ceiling.
const MaxCellBits = 56

// RAM is word-addressable memory parameterised by cell size and address
// space, wrapping modulo 2^addressBits on every effective address. Every
// model machine's cell size is a whole number of bytes (1, 2, 3, 5 or 7),
// so cells are stored back to back rather than bit-packed.
type RAM struct {
	cellBits    uint
	cellBytes   uint
	addressBits uint
	protected   bool

	cells  []byte
	filled []bool
	// AccessCount tracks the number of cells touched by guest fetch/store,
	// exposed for debugger inspection.
	AccessCount int
}

// NewRAM constructs RAM sized 2^addressBits cells, each cellBits wide.
// cellBits must be a positive multiple of 8 not exceeding MaxCellBits.
func NewRAM(cellBits, addressBits uint, protected bool) *RAM {
	if cellBits == 0 || cellBits%8 != 0 || cellBits > MaxCellBits {
		panic(fmt.Sprintf("mem: unsupported cell size %d bits", cellBits))
	}
	cellBytes := cellBits / 8
	size := 1 << addressBits
	return &RAM{
		cellBits:    cellBits,
		cellBytes:   cellBytes,
		addressBits: addressBits,
		protected:   protected,
		cells:       make([]byte, size*int(cellBytes)),
		filled:      make([]bool, size),
	}
}

// CellBits returns the configured cell width.
func (r *RAM) CellBits() uint { return r.cellBits }

// AddressBits returns the configured address-space width.
func (r *RAM) AddressBits() uint { return r.addressBits }

// Size returns the number of addressable cells.
func (r *RAM) Size() int { return len(r.filled) }

func (r *RAM) wrap(addr uint32) uint32 {
	return addr & uint32((1<<r.addressBits)-1)
}

// Fetch reads bits/cellBits consecutive cells starting at address, most
// significant byte first, wrapping modulo 2^addressBits on every cell
// computed. bits must be a positive multiple of cellBits.
func (r *RAM) Fetch(address uint32, bits uint) (word.Word, error) {
	if bits == 0 || bits%r.cellBits != 0 {
		return word.Word{}, ErrMisalignedWidth
	}
	n := bits / r.cellBits
	raw := make([]byte, 0, n*r.cellBytes)
	for i := uint(0); i < n; i++ {
		a := r.wrap(address + uint32(i))
		if !r.filled[a] {
			if r.protected {
				return word.Word{}, fmt.Errorf("%w: address 0x%x", ErrUninitialisedRead, a)
			}
			logrus.WithField("address", fmt.Sprintf("0x%x", a)).
				Warn(xlate.From("read memory by address, it is dirty memory, clean it first"))
		}
		start := int(a) * int(r.cellBytes)
		raw = append(raw, r.cells[start:start+int(r.cellBytes)]...)
		r.AccessCount++
	}
	return word.FromBytesBE(raw), nil
}

// Store writes word.Bits()/cellBits consecutive cells starting at address,
// most significant byte first, marking each cell initialised.
func (r *RAM) Store(address uint32, w word.Word) error {
	if w.Bits() == 0 || w.Bits()%r.cellBits != 0 {
		return ErrMisalignedWidth
	}
	raw := w.ToBytesBE()
	n := w.Bits() / r.cellBits
	for i := uint(0); i < n; i++ {
		a := r.wrap(address + uint32(i))
		start := int(a) * int(r.cellBytes)
		copy(r.cells[start:start+int(r.cellBytes)], raw[i*r.cellBytes:(i+1)*r.cellBytes])
		r.filled[a] = true
		r.AccessCount++
	}
	return nil
}

// IsFilled reports whether the cell at address has ever been written.
func (r *RAM) IsFilled(address uint32) bool {
	return r.filled[r.wrap(address)]
}

// Port is the observational trait shared by RAM (at a fixed address) and
// the register file (at a fixed name), letting the ALU and control unit
// read/write a location without knowing its backing store.
type Port interface {
	Read() (word.Word, error)
	Write(word.Word) error
}

type ramPort struct {
	ram     *RAM
	address uint32
	bits    uint
}

func (p ramPort) Read() (word.Word, error) { return p.ram.Fetch(p.address, p.bits) }
func (p ramPort) Write(w word.Word) error  { return p.ram.Store(p.address, w) }

// Port returns a Port bound to a fixed address and width of this RAM.
func (r *RAM) Port(address uint32, bits uint) Port {
	return ramPort{ram: r, address: address, bits: bits}
}
