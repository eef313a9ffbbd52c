package main

import (
	"os"

	"github.com/aidev-cli/aidev/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
