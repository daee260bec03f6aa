// Command mesisim runs the MESI snooping-bus cache-coherence simulator
// against a set of per-core trace files, grounded in the CLI idiom of
// sarchlab-akita's cmd/root.go.
package main

import (
	"os"

	"github.com/example/mesisim/cmd/mesisim/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
