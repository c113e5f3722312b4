package main

import (
	"fmt"
	"os"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "build":
		err = runBuild(os.Args[2:])
	case "import":
		err = runImport(os.Args[2:])
	case "approve":
		err = runApprove(os.Args[2:])
	case "version":
		fmt.Printf("pubfront %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`pubfront - A blog front end built with Go, Echo, and templ

Usage:
  pubfront <command> [flags]

Commands:
  serve               Prerender every post and serve the site
  build               Prerender every post and exit; fails if any page fails
  import <file>       Load an NDJSON content export into the local database
  approve <id>        Approve a comment in the local database
  version             Print the pubfront version
  help                Show this help message

Flags:
  -c, --config path   Config file (default ./pubfront.yml)

Configuration is read from pubfront.yml, .env and the environment.
Set SANITY_PROJECT_ID to use the hosted content store; leave it empty to
use the local SQLite database at DATABASE_PATH.

Examples:
  pubfront import export.ndjson
  SESSION_SECRET=... pubfront serve --addr :8080`)
}
