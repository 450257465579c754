package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/internal/config"
	"github.com/spherical/ocr-pipeline/internal/observability"
)

// loadConfig loads the config file named by --config and the environment.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger builds the run logger. Logs share stderr with the progress
// bar, so console runs stay at warn unless --verbose is given.
func newLogger(cfg *config.Config) *observability.Logger {
	level := cfg.Log.Level
	switch {
	case verbose:
		level = "debug"
	case cfg.Log.Format == "console" && level == "info":
		level = "warn"
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       level,
		Format:      cfg.Log.Format,
		Output:      ui.Err,
		ServiceName: "ocr-pipeline",
		NoColor:     noColor,
	})
}

// stringFlag copies a string flag into dst when it was set on the command line.
func stringFlag(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		*dst = v
	}
}
