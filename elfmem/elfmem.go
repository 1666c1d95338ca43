// Package elfmem reconstructs the page-level memory layout of a loaded ELF
// module from the raw bytes of a target's address space. It needs no
// OS-provided memory map: given any pointer into a module it finds the ELF
// header bytes, walks the program header table and rebuilds the same
// page-granular (address, size, permission) layout the loader produced,
// including the no-access gaps between segments.
//
// All state is carried by an explicit Context; nothing in this package is
// process-global. Reads are performed through the Memory collaborator and
// never write to the target.
package elfmem

import "encoding/binary"

// Memory supplies raw bytes from the inspected target.
type Memory interface {
	// GetMemory reads exactly n bytes at addr. A short or failed read is an
	// error; implementations must not zero-fill.
	GetMemory(n uint, addr uint64) ([]byte, error)
	// GetMemoryPartial reads up to n bytes at addr, returning the readable
	// prefix. Used only for the ELF magic probe.
	GetMemoryPartial(n uint, addr uint64) ([]byte, error)
}

// Range is one entry of the host's address-range table.
type Range struct {
	Start   uint64
	End     uint64
	Objfile string
}

// Contains reports whether addr falls inside the range.
func (r *Range) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

// RangeTable is the ordered, non-overlapping range table the host already
// maintains (e.g. from /proc/pid/maps). It is consulted, never mutated.
type RangeTable interface {
	// Find returns the range containing addr, or nil.
	Find(addr uint64) *Range
	// Ranges returns all ranges in table order.
	Ranges() []*Range
}

// Context carries everything one reconstruction needs. Callers rebuild it on
// architecture or module-load events instead of mutating shared state.
type Context struct {
	Mem    Memory
	Ranges RangeTable

	// NoRangeTable marks targets with no usable range table (qemu-user
	// stubs). Locating then falls back to a single-page magic probe.
	NoRangeTable bool

	// LinuxABI gates the missing-header diagnostic: only Linux guarantees
	// an ELF header at the module base.
	LinuxABI bool

	// Order is the target's byte order; nil means little-endian.
	Order binary.ByteOrder

	// Diag receives the one soft diagnostic this package emits. May be nil.
	Diag func(format string, a ...any)
}

func (ctx *Context) order() binary.ByteOrder {
	if ctx.Order != nil {
		return ctx.Order
	}
	return binary.LittleEndian
}

func (ctx *Context) diag(format string, a ...any) {
	if ctx.Diag != nil {
		ctx.Diag(format, a...)
	}
}

// BufferMemory serves reads from an in-memory byte buffer holding a module
// image, addressed as if the buffer started at Base. Reads beyond the buffer
// fail rather than zero-fill.
type BufferMemory struct {
	Base uint64
	Data []byte
}

func (b *BufferMemory) GetMemory(n uint, addr uint64) ([]byte, error) {
	mem, err := b.GetMemoryPartial(n, addr)
	if err != nil {
		return nil, err
	}
	if uint(len(mem)) != n {
		return nil, &ReadError{Addr: addr + uint64(len(mem)), Want: n, Got: uint(len(mem))}
	}
	return mem, nil
}

func (b *BufferMemory) GetMemoryPartial(n uint, addr uint64) ([]byte, error) {
	if addr < b.Base || addr > b.Base+uint64(len(b.Data)) {
		return nil, &ReadError{Addr: addr, Want: n}
	}
	off := addr - b.Base
	end := off + uint64(n)
	if end > uint64(len(b.Data)) {
		end = uint64(len(b.Data))
	}
	out := make([]byte, end-off)
	copy(out, b.Data[off:end])
	return out, nil
}
