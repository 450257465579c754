package main

import (
	"os"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/commands"
	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
