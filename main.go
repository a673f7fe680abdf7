package main

import (
	"fmt"
	"os"

	cmd "github.com/docaihq/docai/cmd/docai"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
