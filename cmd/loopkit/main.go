package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "explore":
		if err := exploreCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "apply":
		if err := apply(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "codegen":
		if err := codegenCmd(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "drive":
		if err := drive(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "report":
		if err := report(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("loopkit version 0.1.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`loopkit - loop-schedule transformation explorer

Usage: loopkit <command> [options]

Commands:
  explore   Randomly explore legal schedule transformations of a C source
  apply     Apply one transformation to a source and print the result
  codegen   Regenerate the loop nests of a source from its schedule trees
  drive     Drive an external schedule-transforming child process
  report    Print a timing table from recorded exploration steps
  help      Show this help
  version   Show version

Run 'loopkit <command> -h' for command options.`)
}

// logger builds the CLI logger; LOOPKIT_LOG selects the level.
func logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if s := os.Getenv("LOOPKIT_LOG"); s != "" {
		if l, err := zerolog.ParseLevel(s); err == nil {
			level = l
		}
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
