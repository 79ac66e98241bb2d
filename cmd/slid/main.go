// slid exercises the distribution engine outside the game host: a
// simulated world to sort, a script console, cosave inspection, and a
// live state feed for debugging.

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: slid <command> [flags]

commands:
  sim       run a scripted day in a demo world and save a cosave slot
  console   interactive script console over the demo world
  dump      list cosave slots and records in a store
  watch     serve live engine state over a websocket
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	var (
		fs      = flag.NewFlagSet(os.Args[1], flag.ExitOnError)
		iniPath = fs.String("ini", "SLID.ini", "settings file")
		dbPath  = fs.String("db", "slid-cosave.db", "cosave store")
		preDir  = fs.String("presets", "", "preset directory to load")
		addr    = fs.String("addr", "localhost:8358", "watch listen address")
		slot    = fs.String("slot", "demo", "cosave slot name")
		verbose = fs.Bool("v", false, "debug logging")
	)
	fs.Parse(os.Args[2:])

	level := new(slog.LevelVar)
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	var err error
	switch os.Args[1] {
	case "sim":
		err = runSim(*iniPath, *dbPath, *preDir, *slot, level, log)
	case "console":
		err = runConsole(*iniPath, *preDir, level, log)
	case "dump":
		err = runDump(*dbPath, *slot, log)
	case "watch":
		err = runWatch(*iniPath, *addr, level, log)
	default:
		usage()
	}
	if err != nil {
		log.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
