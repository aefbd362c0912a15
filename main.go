package main

import (
	"fmt"
	"os"

	"github.com/consentforge/consentforge/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
