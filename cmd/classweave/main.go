// Command classweave rewrites compiled class files in place after a build.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/classweave/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
