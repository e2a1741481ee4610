package main

import (
	"os"

	"github.com/scbrown/terse/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
