package elfmem

import (
	"debug/elf"
	"sort"
)

// BuildPageMap reconstructs the sorted page map of the module that pointer
// points into, tagging every page with objfile. The result is empty when no
// header can be located; a failed read of located header bytes is an error.
func (ctx *Context) BuildPageMap(pointer uint64, objfile string) ([]*Page, error) {
	_, ehdr, err := ctx.LocateHeader(pointer)
	if err != nil {
		return nil, err
	}
	return ctx.PagesFromHeader(ehdr, objfile), nil
}

// PagesFromHeader runs the reconstruction for an already-located header.
// Callers memoizing page maps key on (objfile, ehdr.Addr) and reuse this to
// skip the locate step.
func (ctx *Context) PagesFromHeader(ehdr *Ehdr, objfile string) []*Page {
	if ehdr == nil {
		return nil
	}
	base := ehdr.Addr

	// Expand every memory-occupying program header into single pages.
	// Entries are processed in file order so that later entries which
	// change permissions (e.g. PT_GNU_RELRO) override their small subset
	// of the address space.
	var pages []*Page
	for phdr := range ctx.ProgramHeaders(ehdr) {
		if phdr.Memsz == 0 {
			continue
		}

		memsz := phdr.Memsz + PageOffset(phdr.Vaddr)
		memsz = PageSizeAlign(memsz)
		vaddr := PageAlign(phdr.Vaddr)
		offset := PageAlign(phdr.Off)

		for addr := vaddr; addr < vaddr+memsz; addr += PageSize {
			if page := pageAt(pages, addr); page != nil {
				// Never drop the execute flag from a page that has it.
				// Loaders widen rather than narrow access when segments
				// overlap, e.g. a read-only region loaded into .text.
				flags := phdr.Flags
				if page.Flags&elf.PF_X != 0 {
					flags |= elf.PF_X
				}
				page.Flags = flags
			} else {
				pages = append(pages, &Page{
					Vaddr:  addr,
					Memsz:  PageSize,
					Flags:  phdr.Flags,
					Offset: offset + (addr - vaddr),
				})
			}
		}
	}

	if len(pages) == 0 {
		return nil
	}

	// Relocatable images get the discovered base added exactly once, after
	// all program headers are in. Non-relocatable images keep their
	// absolute vaddrs whatever base was found.
	if ehdr.Type == elf.ET_DYN {
		for _, page := range pages {
			page.Vaddr += base
		}
	}

	sortPages(pages)

	// Merge contiguous pages whose write permission matches. Only the
	// write bit takes part in the condition.
	merged := pages[:1]
	prev := pages[0]
	for _, page := range pages[1:] {
		if prev.Flags&elf.PF_W == page.Flags&elf.PF_W && prev.End() == page.Vaddr {
			prev.Memsz += page.Memsz
		} else {
			merged = append(merged, page)
			prev = page
		}
	}

	// Fill address gaps with no-access pages, the way the linker leaves
	// '---p' padding between segments. A gap page inherits the offset of
	// the page that follows it.
	var gaps []*Page
	for i := 0; i < len(merged)-1; i++ {
		a, b := merged[i], merged[i+1]
		if a.End() != b.Vaddr {
			gaps = append(gaps, &Page{
				Vaddr:  a.End(),
				Memsz:  b.Vaddr - a.End(),
				Offset: b.Offset,
			})
		}
	}
	merged = append(merged, gaps...)
	sortPages(merged)

	for _, page := range merged {
		page.Objfile = objfile
	}
	return merged
}

// pageAt scans the working set for the page spanning addr. The set stays
// small (tens of pages), a linear scan beats maintaining an index.
func pageAt(pages []*Page, addr uint64) *Page {
	for _, p := range pages {
		if p.Contains(addr) {
			return p
		}
	}
	return nil
}

func sortPages(pages []*Page) {
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Vaddr < pages[j].Vaddr
	})
}
