// Command telimart keeps IWO Number records shared with their team.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/telimart/telimart/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
