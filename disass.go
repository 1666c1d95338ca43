package main

import (
	"golang.org/x/arch/x86/x86asm"
)

func (s *TypeSession) disass(addr uint64, sz uint, mode int) error {
	code, err := s.target.GetMemory(sz, addr)
	if err != nil {
		return err
	}

	for len(code) > 0 {
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			Printf("0x%016x: (bad)\n", addr)
			code = code[1:]
			addr++
			continue
		}
		Printf("0x%016x: %s\n", addr, x86asm.GNUSyntax(inst, addr, nil))
		code = code[inst.Len:]
		addr += uint64(inst.Len)
	}

	return nil
}
