package elfmem

import (
	"debug/elf"
	"fmt"
)

// PageSize is the page granularity of the reconstructed map.
const PageSize = 0x1000

// PageAlign rounds addr down to a page boundary.
func PageAlign(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// PageOffset returns addr's offset inside its page.
func PageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}

// PageSizeAlign rounds size up to a whole number of pages.
func PageSizeAlign(size uint64) uint64 {
	return PageAlign(size + PageSize - 1)
}

// Page is one span of the reconstructed map: a page-aligned virtual address,
// a size that is a positive multiple of PageSize, the segment permission
// flags, the backing file offset and the owning image. Pages are mutable
// while the builder merges and gap-fills; callers treat the returned
// sequence as immutable.
type Page struct {
	Vaddr   uint64
	Memsz   uint64
	Flags   elf.ProgFlag
	Offset  uint64
	Objfile string
}

// End returns the first address past the page span.
func (p *Page) End() uint64 {
	return p.Vaddr + p.Memsz
}

// Contains reports whether addr falls inside the span.
func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Vaddr && addr < p.End()
}

func (p *Page) Read() bool    { return p.Flags&elf.PF_R != 0 }
func (p *Page) Write() bool   { return p.Flags&elf.PF_W != 0 }
func (p *Page) Execute() bool { return p.Flags&elf.PF_X != 0 }

// Perm renders the flags in /proc/pid/maps style.
func (p *Page) Perm() string {
	perm := []byte("---")
	if p.Read() {
		perm[0] = 'r'
	}
	if p.Write() {
		perm[1] = 'w'
	}
	if p.Execute() {
		perm[2] = 'x'
	}
	return string(perm)
}

func (p *Page) String() string {
	return fmt.Sprintf("%x-%x %s %x %s", p.Vaddr, p.End(), p.Perm(), p.Offset, p.Objfile)
}
