// The main package for the pagewatch executable.
package main

import (
	"os"

	"github.com/JakeFAU/page-watcher/cmd"
)

// main defers all execution to the Cobra CLI and exits with its status.
func main() {
	os.Exit(cmd.Execute())
}
