package main

import (
	"fmt"
	"os"

	"github.com/azad25/admin-ai-sub003/cmd/credctl/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
