// Command oink is a piggy bank for workouts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/oink/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "oink:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
