package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(serve).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vlmd:", err)
		os.Exit(1)
	}
}
