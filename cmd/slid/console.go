package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dop251/goja"
)

// runConsole reads script lines from stdin against the demo engine.
// The `slid` object carries the whole surface; `help` lists it.
func runConsole(iniPath, presetDir string, level *slog.LevelVar, log *slog.Logger) error {
	e, err := newEngine(iniPath, presetDir, level, log)
	if err != nil {
		return err
	}

	fmt.Println(`slid console; try slid.createNetwork("Home", 0x01000100) or "help"`)
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			break
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return in.Err()
		case "help":
			for name := range e.surface.Functions() {
				fmt.Printf("  slid.%s\n", name)
			}
			continue
		}
		v, err := e.surface.Run(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			fmt.Println(v.Export())
		}
	}
	return in.Err()
}
