package elfmem

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// typeSet describes the fixed-layout structures of one ELF class. A Context
// resolves the set from the EI_CLASS byte it probes, so nothing here depends
// on the host's pointer size.
type typeSet struct {
	class    elf.Class
	ehdrSize uint
	phdrSize uint
}

var (
	elf32Types = &typeSet{
		class:    elf.ELFCLASS32,
		ehdrSize: uint(binary.Size(elf.Header32{})),
		phdrSize: uint(binary.Size(elf.Prog32{})),
	}
	elf64Types = &typeSet{
		class:    elf.ELFCLASS64,
		ehdrSize: uint(binary.Size(elf.Header64{})),
		phdrSize: uint(binary.Size(elf.Prog64{})),
	}
)

func typesFor(class elf.Class) (*typeSet, error) {
	switch class {
	case elf.ELFCLASS32:
		return elf32Types, nil
	case elf.ELFCLASS64:
		return elf64Types, nil
	}
	return nil, fmt.Errorf("unsupported ELF class %v", class)
}

// Ehdr is a width-independent view of an ELF file header read from target
// memory. Addr and Class are provenance: where the bytes came from and which
// structure layout decoded them. Never mutated after the read.
type Ehdr struct {
	Addr      uint64
	Class     elf.Class
	Type      elf.Type
	Entry     uint64
	Phoff     uint64
	Phentsize uint16
	Phnum     uint16
}

// Phdr is a width-independent view of one program header. Addr and Class
// are provenance, as in Ehdr; Class also keys the structure descriptor used
// to step through the table.
type Phdr struct {
	Addr   uint64
	Class  elf.Class
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Vaddr  uint64
	Off    uint64
	Filesz uint64
	Memsz  uint64
}

// ReadError reports that the target could not supply the requested bytes.
type ReadError struct {
	Addr uint64
	Want uint
	Got  uint
}

func (e *ReadError) Error() string {
	if e.Got > 0 {
		return fmt.Sprintf("short read at 0x%016x: %d of %d bytes", e.Addr, e.Got, e.Want)
	}
	return fmt.Sprintf("cannot read %d bytes at 0x%016x", e.Want, e.Addr)
}
