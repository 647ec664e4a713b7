package main

import (
	"fmt"
	"os"
)

func main() {
	err := NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
