package elfmem

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// readEhdr decodes one ELF file header of the descriptor's class at addr.
// Pure decoding: exactly ehdrSize bytes are read and no field semantics are
// interpreted here.
func (ctx *Context) readEhdr(ts *typeSet, addr uint64) (*Ehdr, error) {
	raw, err := ctx.Mem.GetMemory(ts.ehdrSize, addr)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	switch ts.class {
	case elf.ELFCLASS32:
		var h elf.Header32
		if err := binary.Read(r, ctx.order(), &h); err != nil {
			return nil, err
		}
		return &Ehdr{
			Addr:      addr,
			Class:     ts.class,
			Type:      elf.Type(h.Type),
			Entry:     uint64(h.Entry),
			Phoff:     uint64(h.Phoff),
			Phentsize: h.Phentsize,
			Phnum:     h.Phnum,
		}, nil
	default:
		var h elf.Header64
		if err := binary.Read(r, ctx.order(), &h); err != nil {
			return nil, err
		}
		return &Ehdr{
			Addr:      addr,
			Class:     ts.class,
			Type:      elf.Type(h.Type),
			Entry:     h.Entry,
			Phoff:     h.Phoff,
			Phentsize: h.Phentsize,
			Phnum:     h.Phnum,
		}, nil
	}
}

// readPhdr decodes one program header of the descriptor's class at addr.
func (ctx *Context) readPhdr(ts *typeSet, addr uint64) (*Phdr, error) {
	raw, err := ctx.Mem.GetMemory(ts.phdrSize, addr)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	switch ts.class {
	case elf.ELFCLASS32:
		var p elf.Prog32
		if err := binary.Read(r, ctx.order(), &p); err != nil {
			return nil, err
		}
		return &Phdr{
			Addr:   addr,
			Class:  ts.class,
			Type:   elf.ProgType(p.Type),
			Flags:  elf.ProgFlag(p.Flags),
			Vaddr:  uint64(p.Vaddr),
			Off:    uint64(p.Off),
			Filesz: uint64(p.Filesz),
			Memsz:  uint64(p.Memsz),
		}, nil
	default:
		var p elf.Prog64
		if err := binary.Read(r, ctx.order(), &p); err != nil {
			return nil, err
		}
		return &Phdr{
			Addr:   addr,
			Class:  ts.class,
			Type:   elf.ProgType(p.Type),
			Flags:  elf.ProgFlag(p.Flags),
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
		}, nil
	}
}
