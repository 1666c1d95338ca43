package main

import (
	"elfMap/elfmem"

	"golang.org/x/sys/unix"
)

func (dbger *TypeDbg) GetMemory(n uint, addr uint64) ([]byte, error) {
	return onThread(dbger.pt, func() ([]byte, error) {
		mem := make([]byte, n)
		count, err := unix.PtracePeekData(dbger.pid, uintptr(addr), mem)
		if err != nil {
			return nil, err
		}
		if uint(count) != n {
			return nil, &elfmem.ReadError{Addr: addr + uint64(count), Want: n, Got: uint(count)}
		}
		return mem, nil
	})
}

// GetMemoryPartial returns the readable prefix at addr. PtracePeekData stops
// at the first unmapped word; whatever came before it is still useful for
// the ELF magic probe.
func (dbger *TypeDbg) GetMemoryPartial(n uint, addr uint64) ([]byte, error) {
	return onThread(dbger.pt, func() ([]byte, error) {
		mem := make([]byte, n)
		count, err := unix.PtracePeekData(dbger.pid, uintptr(addr), mem)
		if count > 0 {
			return mem[:count], nil
		}
		if err != nil {
			return nil, err
		}
		return mem[:0], nil
	})
}
