package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"elfMap/qemu"
)

func main() {
	pid := flag.Int("p", 0, "process id to attach")
	stub := flag.String("q", "", "qemu-user gdb stub address (host:port)")
	oneShot := flag.String("m", "", "print the page map for this address and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if (*pid == 0 && *stub == "") || (*pid != 0 && *stub != "") {
		fmt.Fprintf(os.Stderr, "Invalid arguments: need exactly one of -p or -q\n")
		flag.Usage()
		os.Exit(1)
	}

	var target Target
	var err error
	if *pid != 0 {
		target, err = Attach(*pid)
	} else {
		target, err = connectStub(*stub)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer target.Close()

	session := NewSession(target)

	if *oneShot != "" {
		if _, err := strconv.ParseUint(*oneShot, 0, 64); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid address %q\n", *oneShot)
			os.Exit(1)
		}
		if err := session.cmdExec("elfmap " + *oneShot); err != nil {
			LogError("%s", err.Error())
			os.Exit(1)
		}
		return
	}

	session.Interactive()
}

func connectStub(addr string) (Target, error) {
	host, portStr, ok := strings.Cut(addr, ":")
	if !ok {
		return nil, fmt.Errorf("invalid stub address %q, want host:port", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid stub port %q", portStr)
	}
	return qemu.Connect(host, port)
}
