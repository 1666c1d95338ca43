package main

import (
	"debug/elf"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"elfMap/elfmem"

	"github.com/manifoldco/promptui"
)

// TypeSession drives one attached target: commands, the reconstruction
// context and the boundary page-map cache.
type TypeSession struct {
	target Target
	cache  *mapCache
}

func NewSession(target Target) *TypeSession {
	return &TypeSession{
		target: target,
		cache:  newMapCache(),
	}
}

// context rebuilds the reconstruction context from the target's current
// state. Rebuilt per command so module loads and unloads are picked up.
func (s *TypeSession) context() *elfmem.Context {
	if dbger, ok := s.target.(*TypeDbg); ok {
		if err := dbger.loadMaps(); err != nil {
			LogError("failed to reload maps: %v", err)
		}
	}
	ranges := s.target.RangeTable()
	return &elfmem.Context{
		Mem:          s.target,
		Ranges:       ranges,
		NoRangeTable: ranges == nil,
		LinuxABI:     s.target.IsLinux(),
		Diag:         LogError,
	}
}

type cmdHandler struct {
	regex *regexp.Regexp
	fn    func(*TypeSession, interface{}) error
}

const numPat = `0[xX][0-9a-fA-F]+|0[0-7]+|[1-9][0-9]*|0`

var compiledCmds = []cmdHandler{
	{regexp.MustCompile(`^\s*(elfmap|ELFMAP)(?:\s+(` + numPat + `))?\s*$`), (*TypeSession).cmdElfmap},
	{regexp.MustCompile(`^\s*(vmmap|VMMAP)(?:\s+(\S+))?\s*$`), (*TypeSession).cmdVmmap},
	{regexp.MustCompile(`^\s*(ehdr|EHDR)\s+(` + numPat + `)\s*$`), (*TypeSession).cmdEhdr},
	{regexp.MustCompile(`^\s*(phdrs|PHDRS)\s+(` + numPat + `)\s*$`), (*TypeSession).cmdPhdrs},
	{regexp.MustCompile(`^\s*(seg|SEG)\s+(` + numPat + `)\s*$`), (*TypeSession).cmdSegments},
	{regexp.MustCompile(`^\s*(sec|SEC)\s+(` + numPat + `)\s*$`), (*TypeSession).cmdSections},
	{regexp.MustCompile(`^\s*(db|xxd)\s+(` + numPat + `)(?:\s+(` + numPat + `))?\s*$`), (*TypeSession).cmdDumpByte},
	{regexp.MustCompile(`^\s*(disass)\s+(` + numPat + `)(?:\s+(` + numPat + `))?\s*$`), (*TypeSession).cmdDisass},
	{regexp.MustCompile(`^\s*(p|print|P|PRINT)\s+(` + numPat + `)\s*$`), (*TypeSession).cmdPrint},
	{regexp.MustCompile(`^\s*(!)(.+)$`), (*TypeSession).cmdCmd},
}

func (s *TypeSession) cmdExec(req string) error {
	for _, handler := range compiledCmds {
		if m := handler.regex.FindStringSubmatch(req); m != nil {
			return handler.fn(s, m)
		}
	}
	return errors.New("unknown command")
}

func (s *TypeSession) cmdElfmap(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}

	ctx := s.context()

	var pointer uint64
	var err error
	if args[2] != "" {
		pointer, err = strconv.ParseUint(args[2], 0, 64)
		if err != nil {
			return err
		}
	} else {
		pointer, err = s.chooseModule(ctx)
		if err != nil {
			return err
		}
	}

	objfile := ""
	if ctx.Ranges != nil {
		if r := ctx.Ranges.Find(pointer); r != nil {
			objfile = r.Objfile
		}
	}

	pages, err := s.cache.pages(ctx, pointer, objfile)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no ELF header found for 0x%x", pointer)
	}

	hLine("elfmap")
	fmt.Println("[start]              [end]              | [size]     | [offset]    | [rwx]  [objfile]")
	for _, pg := range pages {
		color := perm2color(pg.Flags)
		fmt.Printf("%s0x%016x ~ 0x%016x | 0x%08x | +0x%08x | %s : %s%s\n",
			color, pg.Vaddr, pg.End(), pg.Memsz, pg.Offset, pg.Perm(), pg.Objfile, ColorReset)
	}
	return nil
}

// chooseModule lets the user pick a file-backed module when elfmap is run
// without an address; the module's first mapped address becomes the pointer.
func (s *TypeSession) chooseModule(ctx *elfmem.Context) (uint64, error) {
	if ctx.Ranges == nil {
		return 0, errors.New("no range table on this target, supply an address")
	}

	var items []string
	var bases []uint64
	seen := make(map[string]bool)
	for _, r := range ctx.Ranges.Ranges() {
		if r.Objfile == "" || !strings.HasPrefix(r.Objfile, "/") || seen[r.Objfile] {
			continue
		}
		seen[r.Objfile] = true
		items = append(items, fmt.Sprintf("%s @ 0x%x", r.Objfile, r.Start))
		bases = append(bases, r.Start)
	}
	if len(items) == 0 {
		return 0, errors.New("no file-backed modules mapped")
	}

	prompt := promptui.Select{
		Label: "module",
		Items: items,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return bases[idx], nil
}

func (s *TypeSession) cmdVmmap(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}

	dbger, ok := s.target.(*TypeDbg)
	if !ok {
		return errors.New("no kernel memory map on this target (use elfmap)")
	}
	if err := dbger.loadMaps(); err != nil {
		return err
	}

	filter := strings.TrimSpace(args[2])
	hLine("vmmap")
	fmt.Println("[start]              [end]              | [size]     | [offset]    | [rwx]  [path]")
	for _, p := range dbger.maps {
		if filter != "" && !strings.Contains(p.path, filter) {
			continue
		}
		perm := []byte("---")
		if p.r {
			perm[0] = 'r'
		}
		if p.w {
			perm[1] = 'w'
		}
		if p.x {
			perm[2] = 'x'
		}
		fmt.Printf("%s0x%016x ~ 0x%016x | 0x%08x | +0x%08x | %s : %s%s\n",
			flags2color(p.r, p.w, p.x), p.start, p.end, p.end-p.start, p.offset, perm, p.path, ColorReset)
	}
	return nil
}

func (s *TypeSession) cmdEhdr(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	pointer, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}

	cls, ehdr, err := s.context().LocateHeader(pointer)
	if err != nil {
		return err
	}
	if ehdr == nil {
		return fmt.Errorf("no ELF header found for 0x%x", pointer)
	}

	Printf("base     : 0x%016x\n", ehdr.Addr)
	Printf("class    : %s\n", cls.String())
	Printf("type     : %s\n", ehdr.Type.String())
	Printf("entry    : 0x%016x\n", ehdr.Entry)
	Printf("phoff    : 0x%x\n", ehdr.Phoff)
	Printf("phentsize: %d\n", int(ehdr.Phentsize))
	Printf("phnum    : %d\n", int(ehdr.Phnum))
	return nil
}

func (s *TypeSession) cmdPhdrs(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	pointer, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}

	ctx := s.context()
	_, ehdr, err := ctx.LocateHeader(pointer)
	if err != nil {
		return err
	}
	if ehdr == nil {
		return fmt.Errorf("no ELF header found for 0x%x", pointer)
	}

	hLine("phdrs")
	fmt.Println("[type]               [rwx] | [vaddr]            | [offset]   | [filesz]   | [memsz]")
	for phdr := range ctx.ProgramHeaders(ehdr) {
		fmt.Printf("%-20s  %s  | %s0x%016x%s | 0x%08x | 0x%08x | 0x%08x\n",
			phdr.Type.String(), progPerm(phdr.Flags),
			perm2color(phdr.Flags), phdr.Vaddr, ColorReset,
			phdr.Off, phdr.Filesz, phdr.Memsz)
	}
	return nil
}

func progPerm(flags elf.ProgFlag) string {
	perm := []byte("---")
	if flags&elf.PF_R != 0 {
		perm[0] = 'r'
	}
	if flags&elf.PF_W != 0 {
		perm[1] = 'w'
	}
	if flags&elf.PF_X != 0 {
		perm[2] = 'x'
	}
	return string(perm)
}

// moduleFile resolves the objfile path and lowest mapped address of the
// module containing addr.
func (s *TypeSession) moduleFile(addr uint64) (string, uint64, error) {
	ranges := s.target.RangeTable()
	if ranges == nil {
		return "", 0, errors.New("no range table on this target")
	}
	r := ranges.Find(addr)
	if r == nil || r.Objfile == "" {
		return "", 0, fmt.Errorf("0x%x is not inside a file-backed mapping", addr)
	}
	for _, v := range ranges.Ranges() {
		if v.Objfile == r.Objfile {
			return r.Objfile, v.Start, nil
		}
	}
	return r.Objfile, r.Start, nil
}

func (s *TypeSession) cmdSegments(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}

	s.context() // refresh the range table
	path, base, err := s.moduleFile(addr)
	if err != nil {
		return err
	}
	segments, err := ContainingSegments(path, base, addr)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("no segment of %s covers 0x%x", path, addr)
	}

	for _, seg := range segments {
		fmt.Printf("%-20s  %s  | %s0x%016x%s ~ 0x%016x | +0x%08x\n",
			seg.Type.String(), progPerm(seg.Flags),
			perm2color(seg.Flags), seg.Vaddr, ColorReset, seg.VaddrMemEnd, seg.Off)
	}
	return nil
}

func (s *TypeSession) cmdSections(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}

	s.context()
	path, base, err := s.moduleFile(addr)
	if err != nil {
		return err
	}
	sections, err := ContainingSections(path, base, addr)
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		return fmt.Errorf("no section of %s covers 0x%x", path, addr)
	}

	for _, sec := range sections {
		fmt.Printf("%-20s 0x%016x ~ 0x%016x\n", sec.Name, sec.Addr, sec.AddrEnd)
	}
	return nil
}

func (s *TypeSession) cmdDumpByte(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}

	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	var n uint64 = 64
	if args[3] != "" {
		n, err = strconv.ParseUint(args[3], 0, 64)
		if err != nil {
			return err
		}
	}

	data, err := s.target.GetMemory(uint(n), addr)
	if err != nil {
		return err
	}

	for i := 0; i < len(data); i += 16 {
		fmt.Printf("%016x: ", addr+uint64(i))

		for j := 0; j < 16; j++ {
			if i+j < len(data) {
				fmt.Printf("%02x ", data[i+j])
			} else {
				fmt.Printf("   ")
			}
		}

		fmt.Printf(" |")
		for j := 0; j < 16 && i+j < len(data); j++ {
			b := data[i+j]
			if b >= 32 && b <= 126 {
				fmt.Printf("%c", b)
			} else {
				fmt.Printf(".")
			}
		}
		fmt.Printf("|\n")
	}
	return nil
}

func (s *TypeSession) cmdDisass(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	addr, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	var sz uint64 = 32
	if args[3] != "" {
		sz, err = strconv.ParseUint(args[3], 0, 64)
		if err != nil {
			return err
		}
	}

	ctx := s.context()
	return s.disass(addr, uint(sz), s.decodeMode(ctx, addr))
}

// decodeMode picks the disassembler bit width from the class of the module
// containing addr. Addresses with no locatable image behind them decode as
// 64-bit.
func (s *TypeSession) decodeMode(ctx *elfmem.Context, addr uint64) int {
	probe := *ctx
	probe.Diag = nil
	if cls, _, err := probe.LocateHeader(addr); err == nil && cls == elf.ELFCLASS32 {
		return 32
	}
	return 64
}

func (s *TypeSession) cmdPrint(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}
	val, err := strconv.ParseUint(args[2], 0, 64)
	if err != nil {
		return err
	}
	fmt.Printf("HEX: %s0x%x%s DEC: %s%d%s OCT: %s%o%s BIN: %s%b%s\n",
		ColorCyan, val, ColorReset, ColorCyan, val, ColorReset,
		ColorCyan, val, ColorReset, ColorCyan, val, ColorReset)
	return nil
}

func (s *TypeSession) cmdCmd(a interface{}) error {
	args, ok := a.([]string)
	if !ok {
		return errors.New("invalid arguments")
	}

	handle := exec.Command("/bin/sh", "-c", args[2])
	output, err := handle.CombinedOutput()
	fmt.Println(string(output))
	return err
}
