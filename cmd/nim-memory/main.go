// Command nim-memory runs the memory-backed chat assistant.
package main

import (
	"os"

	"github.com/becomeliminal/nim-memory/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
