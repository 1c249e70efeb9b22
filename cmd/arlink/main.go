// Command arlink resolves native static libraries and builds static archives.
package main

import (
	"os"

	"github.com/wippyai/arlink/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
