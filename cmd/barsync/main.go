package main

import (
	"fmt"
	"os"

	"github.com/Isna13/BarManagerPro-sub003/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
