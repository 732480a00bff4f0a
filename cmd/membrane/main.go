// Command membrane checks whitelist policies, runs membrane scenarios and
// reads the audit log.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/membrane/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()

	// Commands report their own ExitErrors; anything else (flag parsing,
	// unknown commands) is printed here.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}
