package main

import "elfMap/elfmem"

// Target is one attached inspection target: a stopped ptrace inferior or a
// remote qemu-user gdb stub.
type Target interface {
	elfmem.Memory
	// RangeTable returns the target's address-range table, nil when the
	// target cannot expose one (qemu-user).
	RangeTable() elfmem.RangeTable
	Description() string
	IsLinux() bool
	Close() error
}
