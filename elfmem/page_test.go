package elfmem

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageAlign(t *testing.T) {
	cases := []struct {
		addr    uint64
		aligned uint64
		offset  uint64
	}{
		{0x0, 0x0, 0x0},
		{0x1, 0x0, 0x1},
		{0xfff, 0x0, 0xfff},
		{0x1000, 0x1000, 0x0},
		{0x1a2b, 0x1000, 0xa2b},
		{0x7ffff75e7123, 0x7ffff75e7000, 0x123},
	}
	for _, c := range cases {
		require.Equal(t, c.aligned, PageAlign(c.addr))
		require.Equal(t, c.offset, PageOffset(c.addr))
	}
}

func TestPageSizeAlign(t *testing.T) {
	cases := []struct {
		size    uint64
		aligned uint64
	}{
		{0x0, 0x0},
		{0x1, 0x1000},
		{0x1000, 0x1000},
		{0x1001, 0x2000},
		{0x10000, 0x10000},
	}
	for _, c := range cases {
		require.Equal(t, c.aligned, PageSizeAlign(c.size))
	}
}

func TestPagePerm(t *testing.T) {
	cases := []struct {
		flags elf.ProgFlag
		perm  string
	}{
		{0, "---"},
		{elf.PF_R, "r--"},
		{elf.PF_R | elf.PF_X, "r-x"},
		{elf.PF_R | elf.PF_W, "rw-"},
		{elf.PF_R | elf.PF_W | elf.PF_X, "rwx"},
		{elf.PF_W, "-w-"},
	}
	for _, c := range cases {
		p := &Page{Flags: c.flags}
		require.Equal(t, c.perm, p.Perm())
	}
}

func TestPageSpan(t *testing.T) {
	p := &Page{Vaddr: 0x1000, Memsz: 0x2000}
	require.Equal(t, uint64(0x3000), p.End())
	require.True(t, p.Contains(0x1000))
	require.True(t, p.Contains(0x2fff))
	require.False(t, p.Contains(0xfff))
	require.False(t, p.Contains(0x3000))
}
