// Command ovc is the Ontology Version Control command-line tool.
package main

import (
	"os"

	"github.com/kilupskalvis/ovc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
