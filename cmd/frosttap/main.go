// Command frosttap generates threshold key sets and spends from their
// Taproot addresses with a FROST signing ceremony.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
