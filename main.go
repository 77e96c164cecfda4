// main is the entry point for the covtrail CLI.
package main

import (
	"fmt"
	"os"

	"github.com/covtrail/covtrail/cmd"
	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/internal/runstore"
)

func main() {
	cmd.SetRunManager(runstore.Manager)

	err := cmd.Execute()
	cmd.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "❌", contract.WrapError(err))
		os.Exit(contract.ExitCode(err))
	}
}
