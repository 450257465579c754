package commands

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/internal/backend"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List backend modes and their resolutions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ui.Table([]string{"Mode", "Base size", "Image size", "Crop", "Backends"}, modeRows())
	},
}

func init() {
	rootCmd.AddCommand(modesCmd)
}

func modeRows() [][]string {
	var names []string
	for _, k := range backend.Kinds() {
		names = append(names, string(k))
	}
	kinds := strings.Join(names, ", ")

	var rows [][]string
	for _, m := range backend.Modes() {
		name := m.Name
		if name == backend.DefaultMode {
			name += " (default)"
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(m.BaseSize),
			strconv.Itoa(m.ImageSize),
			strconv.FormatBool(m.Crop),
			kinds,
		})
	}
	return rows
}
