// Command toolguard decides whether AI agent tool calls may run.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Dicklesworthstone/toolguard/internal/cli"
	"github.com/Dicklesworthstone/toolguard/internal/utils"
)

func main() {
	utils.SetDefaultLogger(utils.InitDefaultLogger())

	if err := cli.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
