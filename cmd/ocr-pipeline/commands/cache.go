package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-pipeline/cmd/ocr-pipeline/ui"
	"github.com/spherical/ocr-pipeline/internal/backend"
	"github.com/spherical/ocr-pipeline/internal/domain"
	"github.com/spherical/ocr-pipeline/pkg/extractor"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached page text",
	Long: `Clear removes cached page text from the configured cache. With --backend and
--mode only the entries of that engine are removed.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

func init() {
	cacheClearCmd.Flags().StringP("backend", "b", "", "only clear entries of this backend")
	cacheClearCmd.Flags().StringP("mode", "m", "", "mode of --backend (default large)")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := engineName(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := extractor.OpenCache(ctx, cfg)
	if err != nil {
		return err
	}
	if c == nil {
		return domain.ConfigurationError("no cache configured (cache.driver is none)", nil)
	}
	defer c.Close()

	if err := extractor.ClearCache(ctx, c, engine); err != nil {
		return err
	}

	if engine == "" {
		ui.Success("cleared %s cache", cfg.Cache.Driver)
	} else {
		ui.Success("cleared %s entries from %s cache", engine, cfg.Cache.Driver)
	}
	return nil
}

// engineName returns the cache namespace for --backend and --mode, or ""
// for all engines.
func engineName(cmd *cobra.Command) (string, error) {
	kindName, _ := cmd.Flags().GetString("backend")
	modeName, _ := cmd.Flags().GetString("mode")
	if kindName == "" {
		if modeName != "" {
			return "", domain.ConfigurationError("--mode requires --backend", nil)
		}
		return "", nil
	}

	kind, err := backend.ParseKind(kindName)
	if err != nil {
		return "", err
	}
	mode, err := backend.LookupMode(modeName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", kind, mode.Name), nil
}
