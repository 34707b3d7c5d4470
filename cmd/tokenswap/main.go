// Command tokenswap runs the OLD to NEW token swap service and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tokenswap/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
