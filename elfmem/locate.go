package elfmem

import (
	"bytes"
	"debug/elf"
	"iter"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// probeMagic checks for the ELF magic at addr. Partial reads are tolerated
// here and nowhere else; an unreadable address simply means "no magic".
func (ctx *Context) probeMagic(addr uint64) bool {
	data, err := ctx.Mem.GetMemoryPartial(uint(len(elfMagic)), addr)
	if err != nil {
		return false
	}
	return bytes.Equal(data, elfMagic)
}

// LocateHeader finds and decodes the ELF header of the module that pointer
// points into. A (0, nil, nil) return means no header was found; errors are
// reserved for failed reads of bytes that should have been readable.
func (ctx *Context) LocateHeader(pointer uint64) (elf.Class, *Ehdr, error) {
	var base uint64
	found := false

	if ctx.NoRangeTable {
		// No usable map: the header is only discoverable if the module
		// starts on the enclosing page boundary.
		start := PageAlign(pointer)
		if !ctx.probeMagic(start) {
			return elf.ELFCLASSNONE, nil, nil
		}
		base = start
		found = true
	} else {
		r := ctx.Ranges.Find(pointer)
		if r == nil {
			// Unmapped address, nothing to locate.
			return elf.ELFCLASSNONE, nil, nil
		}
		if ctx.probeMagic(r.Start) {
			base = r.Start
			found = true
		} else {
			// The image start and the code segment may land in different
			// adjacent ranges; retry at the first range backed by the same
			// objfile, in table order.
			for _, v := range ctx.Ranges.Ranges() {
				if v.Objfile == r.Objfile {
					if ctx.probeMagic(v.Start) {
						base = v.Start
						found = true
					}
					break
				}
			}
		}
	}

	if !found {
		// Non-Linux ABIs may legitimately have no ELF header in memory.
		if ctx.LinuxABI {
			ctx.diag("could not find ELF base for 0x%016x", pointer)
		}
		return elf.ELFCLASSNONE, nil, nil
	}

	// EI_CLASS selects the structure width for the full decode.
	cls, err := ctx.Mem.GetMemory(1, base+4)
	if err != nil {
		return elf.ELFCLASSNONE, nil, err
	}
	ts, err := typesFor(elf.Class(cls[0]))
	if err != nil {
		return elf.ELFCLASSNONE, nil, err
	}
	ehdr, err := ctx.readEhdr(ts, base)
	if err != nil {
		return elf.ELFCLASSNONE, nil, err
	}
	return ts.class, ehdr, nil
}

// ProgramHeaders returns the module's program headers in file order as a
// lazy sequence. Each range-over re-derives the table position from the
// header, so the sequence is restartable. A nil header, an empty table or an
// unreadable entry ends the sequence early; none of these is an error.
func (ctx *Context) ProgramHeaders(ehdr *Ehdr) iter.Seq[*Phdr] {
	return func(yield func(*Phdr) bool) {
		if ehdr == nil || ehdr.Phnum == 0 {
			return
		}
		ts, err := typesFor(ehdr.Class)
		if err != nil {
			return
		}
		first := ehdr.Addr + ehdr.Phoff
		for i := uint64(0); i < uint64(ehdr.Phnum); i++ {
			phdr, err := ctx.readPhdr(ts, first+i*uint64(ehdr.Phentsize))
			if err != nil {
				return
			}
			if !yield(phdr) {
				return
			}
		}
	}
}
