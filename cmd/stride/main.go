// Command stride runs time-boxed fitness challenges and their leaderboards.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/stride/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "stride: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
