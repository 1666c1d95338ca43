package elfmem

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// testRanges is a linear-scan range table over hand-built ranges.
type testRanges struct {
	ranges []*Range
}

func (t *testRanges) Find(addr uint64) *Range {
	for _, r := range t.ranges {
		if r.Contains(addr) {
			return r
		}
	}
	return nil
}

func (t *testRanges) Ranges() []*Range { return t.ranges }

type seg struct {
	typ    elf.ProgType
	flags  elf.ProgFlag
	vaddr  uint64
	off    uint64
	filesz uint64
	memsz  uint64
}

// buildImage64 assembles the bytes of a 64-bit ELF header followed directly
// by its program header table.
func buildImage64(t *testing.T, typ elf.Type, segs []seg) []byte {
	t.Helper()

	var buf bytes.Buffer
	hdr := elf.Header64{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), 1},
		Type:      uint16(typ),
		Machine:   uint16(elf.EM_X86_64),
		Version:   1,
		Entry:     0x1040,
		Phoff:     uint64(binary.Size(elf.Header64{})),
		Ehsize:    uint16(binary.Size(elf.Header64{})),
		Phentsize: uint16(binary.Size(elf.Prog64{})),
		Phnum:     uint16(len(segs)),
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))

	for _, s := range segs {
		pt := s.typ
		if pt == elf.PT_NULL {
			pt = elf.PT_LOAD
		}
		p := elf.Prog64{
			Type:   uint32(pt),
			Flags:  uint32(s.flags),
			Off:    s.off,
			Vaddr:  s.vaddr,
			Paddr:  s.vaddr,
			Filesz: s.filesz,
			Memsz:  s.memsz,
			Align:  PageSize,
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &p))
	}
	return buf.Bytes()
}

func buildImage32(t *testing.T, typ elf.Type, segs []seg) []byte {
	t.Helper()

	var buf bytes.Buffer
	hdr := elf.Header32{
		Ident:     [16]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), 1},
		Type:      uint16(typ),
		Machine:   uint16(elf.EM_386),
		Version:   1,
		Entry:     0x1040,
		Phoff:     uint32(binary.Size(elf.Header32{})),
		Ehsize:    uint16(binary.Size(elf.Header32{})),
		Phentsize: uint16(binary.Size(elf.Prog32{})),
		Phnum:     uint16(len(segs)),
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))

	for _, s := range segs {
		pt := s.typ
		if pt == elf.PT_NULL {
			pt = elf.PT_LOAD
		}
		p := elf.Prog32{
			Type:   uint32(pt),
			Off:    uint32(s.off),
			Vaddr:  uint32(s.vaddr),
			Paddr:  uint32(s.vaddr),
			Filesz: uint32(s.filesz),
			Memsz:  uint32(s.memsz),
			Flags:  uint32(s.flags),
			Align:  PageSize,
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &p))
	}
	return buf.Bytes()
}

// imageContext maps img at base and exposes it through a one-range table.
func imageContext(base uint64, img []byte, objfile string) *Context {
	end := base + PageSizeAlign(uint64(len(img)))
	return &Context{
		Mem: &BufferMemory{Base: base, Data: img},
		Ranges: &testRanges{ranges: []*Range{
			{Start: base, End: end, Objfile: objfile},
		}},
	}
}

// requireSortedNonOverlapping checks the output invariant: strictly
// increasing page addresses with no overlap and no zero-size page.
func requireSortedNonOverlapping(t *testing.T, pages []*Page) {
	t.Helper()
	for i, p := range pages {
		require.NotZero(t, p.Memsz)
		require.Zero(t, p.Memsz%PageSize)
		require.Zero(t, PageOffset(p.Vaddr))
		if i > 0 {
			require.LessOrEqual(t, pages[i-1].End(), p.Vaddr)
		}
	}
}
