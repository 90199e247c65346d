package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = runStatus(os.Args[2:])
	case "select":
		err = runSelect(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "stop":
		err = runStop(os.Args[2:])
	case "restore":
		err = runRestore(os.Args[2:])
	case "search":
		err = runSearch(os.Args[2:])
	case "transform":
		err = runTransform(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "doctor":
		err = runDoctor(os.Args[2:])
	case "version":
		fmt.Println("geopin " + version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `geopin - pin your reported location to a point on the map

Usage:
  geopin status               Show the current session
  geopin select [flags]       Stage a point without starting
  geopin start [flags]        Start spoofing (staged point or -lat/-lon)
  geopin stop                 Stop spoofing, keep the staged point
  geopin restore              Stop spoofing and clear the staged point
  geopin search [flags] TEXT  Look up a place by name
  geopin transform [flags]    Convert a coordinate between map spaces
  geopin history [flags]      List, delete, clear, or export history
  geopin watch [flags]        Stream live session and history changes
  geopin doctor               Check daemon, helper, and extras
  geopin version              Show version

Run 'geopin <command> --help' for flags. The daemon address comes from
-addr or the GEOPIN_ADDR environment variable.
`)
}
