package main

import (
	"os"

	"github.com/thereayou/voxnote/cmd/voxnote/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
