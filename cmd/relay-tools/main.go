// relay-tools bundles the Relay release and debugging utilities.
package main

import (
	"os"

	"github.com/no-instructions/relay-tools/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
