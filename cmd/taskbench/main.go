package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	cli := NewCLI(os.Stdout, os.Stderr)
	if err := cli.RootCommand().Execute(); err != nil {
		if !errors.Is(err, errTasksFailed) {
			fmt.Fprintln(os.Stderr, formatError(err.Error()))
		}
		os.Exit(1)
	}
}
