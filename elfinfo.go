package main

import (
	"debug/elf"
	"fmt"
)

// File-based counterpart of the in-memory reconstruction: segment and
// section metadata parsed from the on-disk object, with virtual addresses
// optionally rebased to the load address. Used by the seg/sec commands; the
// elfmap command never touches the file.

type SegmentInfo struct {
	elf.ProgHeader
	// End of memory and file backing.
	VaddrMemEnd  uint64
	VaddrFileEnd uint64
}

type SectionInfo struct {
	elf.SectionHeader
	AddrEnd uint64
}

type ElfInfo struct {
	Path     string
	Class    elf.Class
	Type     elf.Type
	Entry    uint64
	Segments []SegmentInfo
	Sections []SectionInfo
}

// IsPIC reports whether the object is relocatable at load time.
func (info *ElfInfo) IsPIC() bool {
	return info.Type == elf.ET_DYN
}

func GetElfInfo(path string) (*ElfInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info := &ElfInfo{
		Path:  path,
		Class: f.Class,
		Type:  f.Type,
		Entry: f.Entry,
	}
	for _, prog := range f.Progs {
		info.Segments = append(info.Segments, SegmentInfo{
			ProgHeader:   prog.ProgHeader,
			VaddrMemEnd:  prog.Vaddr + prog.Memsz,
			VaddrFileEnd: prog.Vaddr + prog.Filesz,
		})
	}
	for _, sec := range f.Sections {
		info.Sections = append(info.Sections, SectionInfo{
			SectionHeader: sec.SectionHeader,
			AddrEnd:       sec.Addr + sec.Size,
		})
	}
	return info, nil
}

// GetElfInfoRebased parses path and rebases every virtual address to vaddr.
// A vaddr supplied for a non-PIC object is silently ignored: such images
// load at their linked addresses no matter what the caller believes the
// base is.
func GetElfInfoRebased(path string, vaddr uint64) (*ElfInfo, error) {
	info, err := GetElfInfo(path)
	if err != nil {
		return nil, err
	}

	var load uint64
	if info.IsPIC() {
		load = vaddr
	}

	info.Entry += load
	for i := range info.Segments {
		info.Segments[i].Vaddr += load
		info.Segments[i].VaddrMemEnd += load
		info.Segments[i].VaddrFileEnd += load
	}
	for i := range info.Sections {
		info.Sections[i].Addr += load
		info.Sections[i].AddrEnd += load
	}
	return info, nil
}

// ContainingSegments returns the file-backed loadable segments whose memory
// extent covers vaddr, with addresses rebased to loadAddr.
func ContainingSegments(path string, loadAddr, vaddr uint64) ([]SegmentInfo, error) {
	info, err := GetElfInfoRebased(path, loadAddr)
	if err != nil {
		return nil, err
	}

	var segments []SegmentInfo
	for _, seg := range info.Segments {
		// Skip non-LOAD segments with no file backing (typically STACK).
		if seg.Type != elf.PT_LOAD && seg.Filesz == 0 {
			continue
		}
		if vaddr < seg.Vaddr || vaddr >= seg.VaddrMemEnd {
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// ContainingSections returns the allocated sections covering vaddr, with
// addresses rebased to loadAddr.
func ContainingSections(path string, loadAddr, vaddr uint64) ([]SectionInfo, error) {
	info, err := GetElfInfoRebased(path, loadAddr)
	if err != nil {
		return nil, err
	}

	var sections []SectionInfo
	for _, sec := range info.Sections {
		if sec.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		if vaddr < sec.Addr || vaddr >= sec.AddrEnd {
			continue
		}
		sections = append(sections, sec)
	}
	return sections, nil
}
