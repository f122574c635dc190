package main

import (
	"fmt"
	"os"

	"github.com/anonto42/nano-midea/socialsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
