package main

import (
	"debug/elf"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorWhite  = "\033[37m"
	ColorBold   = "\033[1m"
)

const (
	ColorReadWriteExecutable = ColorYellow
	ColorReadExecutable      = ColorRed
	ColorReadWrite           = ColorCyan
	ColorExecutable          = ColorPurple
	ColorRead                = ColorBlue
	ColorWrite               = ColorGreen
	ColorDefault             = ColorReset
)

func LogError(msg string, a ...interface{}) {
	fmt.Printf("%s[ERROR]%s %s\n", ColorRed, ColorReset, fmt.Sprintf(msg, a...))
}

func Printf(msg string, a ...interface{}) {
	msg = strings.ReplaceAll(msg, "%d", "\033[36m%d\033[0m")
	msg = strings.ReplaceAll(msg, "0x%016x", "\033[36m0x%016x\033[0m")
	msg = strings.ReplaceAll(msg, "%016x", "\033[36m%016x\033[0m")
	msg = strings.ReplaceAll(msg, "%x", "\033[36m%x\033[0m")
	msg = strings.ReplaceAll(msg, "%s", "\033[32m%s\033[0m")

	fmt.Printf(msg, a...)
}

func hLine(msg string) {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil && w > len(msg)+2 {
			fmt.Printf("%s", strings.Repeat("-", (w-len(msg)-2)/2)+"["+msg+"]"+strings.Repeat("-", (w-len(msg)-2)/2)+"\n")
			return
		}
	}
	fmt.Printf("%s", "["+msg+"]\n")
}

func flags2color(r, w, x bool) string {
	switch {
	case r && w && x:
		return ColorReadWriteExecutable
	case r && w:
		return ColorReadWrite
	case r && x:
		return ColorReadExecutable
	case x:
		return ColorExecutable
	case r:
		return ColorRead
	case w:
		return ColorWrite
	}
	return ColorDefault
}

func perm2color(flags elf.ProgFlag) string {
	return flags2color(flags&elf.PF_R != 0, flags&elf.PF_W != 0, flags&elf.PF_X != 0)
}
