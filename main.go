// Package main is the entry point for smbtrace, an offline SMB2 dissector
// for tcpdump transcripts.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/smbtrace/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
