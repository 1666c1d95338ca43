package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"elfMap/elfmem"

	"github.com/stretchr/testify/require"
)

// bufTarget serves an in-memory image with no range table, like a qemu-user
// stub would.
type bufTarget struct {
	mem elfmem.BufferMemory
}

func (b *bufTarget) GetMemory(n uint, addr uint64) ([]byte, error) {
	return b.mem.GetMemory(n, addr)
}

func (b *bufTarget) GetMemoryPartial(n uint, addr uint64) ([]byte, error) {
	return b.mem.GetMemoryPartial(n, addr)
}

func (b *bufTarget) RangeTable() elfmem.RangeTable { return nil }
func (b *bufTarget) Description() string           { return "buf" }
func (b *bufTarget) IsLinux() bool                 { return false }
func (b *bufTarget) Close() error                  { return nil }

func headerBytes(t *testing.T, class elf.Class) []byte {
	t.Helper()
	var buf bytes.Buffer
	ident := [16]byte{0x7f, 'E', 'L', 'F', byte(class), byte(elf.ELFDATA2LSB), 1}
	if class == elf.ELFCLASS32 {
		hdr := elf.Header32{
			Ident:   ident,
			Type:    uint16(elf.ET_EXEC),
			Version: 1,
			Ehsize:  uint16(binary.Size(elf.Header32{})),
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	} else {
		hdr := elf.Header64{
			Ident:   ident,
			Type:    uint16(elf.ET_EXEC),
			Version: 1,
			Ehsize:  uint16(binary.Size(elf.Header64{})),
		}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &hdr))
	}
	return buf.Bytes()
}

func TestDecodeMode(t *testing.T) {
	base := uint64(0x10000)

	s := NewSession(&bufTarget{mem: elfmem.BufferMemory{Base: base, Data: headerBytes(t, elf.ELFCLASS32)}})
	require.Equal(t, 32, s.decodeMode(s.context(), base+0x20))

	s = NewSession(&bufTarget{mem: elfmem.BufferMemory{Base: base, Data: headerBytes(t, elf.ELFCLASS64)}})
	require.Equal(t, 64, s.decodeMode(s.context(), base+0x20))

	// No image behind the address: decode with the widest mode.
	s = NewSession(&bufTarget{mem: elfmem.BufferMemory{Base: base, Data: make([]byte, 0x100)}})
	require.Equal(t, 64, s.decodeMode(s.context(), base+0x20))
}
