package main

import (
	"os"

	"github.com/hugo-lorenzo-mato/council/cmd/council/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
