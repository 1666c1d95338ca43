package main

import (
	"fmt"
	"io"

	"github.com/chzyer/readline"
)

func (s *TypeSession) Interactive() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "[elfMap]$ ",
		HistoryFile:       "/tmp/elfmap_history.txt",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		FuncFilterInputRune: func(r rune) (rune, bool) {
			switch r {
			case readline.CharCtrlZ:
				return r, false
			}
			return r, true
		},
	})
	if err != nil {
		panic(err)
	}
	defer rl.Close()

	rl.SetPrompt(fmt.Sprintf("[%selfMap%s:%s%s%s]$ ", ColorCyan, ColorReset, ColorCyan, s.target.Description(), ColorReset))

	prev := ""
	for {
		req, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			continue
		}

		if req == "" {
			if prev == "" {
				continue
			}
			req = prev
		}

		if req == "q" || req == "exit" || req == "quit" {
			break
		}
		prev = req

		if err := s.cmdExec(req); err != nil {
			LogError("%s", err.Error())
		}
	}
}
