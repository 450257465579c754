package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "ocr-pipeline",
	Short: "Batch OCR for scanned PDFs and images",
	Long: `ocr-pipeline rasterizes every document of a batch directory, reads each page
with the selected OCR engine, cleans the output and writes a markdown file and a
re-rendered PDF per document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
