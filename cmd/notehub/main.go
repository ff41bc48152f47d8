package main

import (
	"os"

	"notehub/cmd/notehub/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
