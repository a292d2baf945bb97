package main

import (
	"fmt"
	"os"
)

func main() {
	root, c := newRootCmd()
	err := root.Execute()
	if closeErr := c.Close(); closeErr != nil {
		fmt.Fprintln(os.Stderr, "close store:", closeErr)
	}
	if err != nil {
		os.Exit(1)
	}
}
