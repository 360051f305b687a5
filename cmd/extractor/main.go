package main

import (
	"fmt"
	"os"
)

func main() {
	if err := RootCommand(&cliContext{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
