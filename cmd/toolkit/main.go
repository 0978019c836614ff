package main

import (
	"fmt"
	"os"
)

var commands = map[string]func([]string) error{
	"migrate":   runMigrate,
	"clean":     runClean,
	"test-data": runTestData,
	"version":   runVersion,
	"history":   runHistory,
	"start":     runStart,
}

func usage() {
	fmt.Fprint(os.Stderr, `toolkit - SQL schema migrations

Usage:
  toolkit <command> [options]

Commands:
  migrate    Apply pending versioned and changed repeatable migrations
  clean      Drop every object of the current schema
  test-data  Run the configured test data scripts
  version    Print the latest applied migration version
  history    List the migration history table
  start      Run the start actions enabled in the config file

Run 'toolkit <command> -h' for command-specific help.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "-h" || cmd == "--help" || cmd == "help" {
		usage()
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err := fn(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
