package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/camloop/internal/imagefetch"
)

var probeTarget int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch one snapshot from a camera",
	Long: `Fetches a single snapshot with the configured credential and timeout and
reports its content type and size. Use it to check addresses and
credentials before serving.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().IntVarP(&probeTarget, "target", "t", 1, "camera number as listed by 'camloop targets'")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if probeTarget < 1 || probeTarget > len(cfg.Targets) {
		return fmt.Errorf("target must be between 1 and %d, got %d", len(cfg.Targets), probeTarget)
	}
	target := cfg.Target(probeTarget - 1)

	resolver := imagefetch.NewHTTPResolver(imagefetch.Options{})
	start := time.Now()
	img, err := resolver.Fetch(commandContext(cmd), target.Address, cfg.Credential, cfg.Timing.FetchTimeout())
	if err != nil {
		return fmt.Errorf("probe %q: %w", target.Label, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d %s: %s, %d bytes in %s\n",
		probeTarget, target.Label, img.ContentType, len(img.Data), time.Since(start).Round(time.Millisecond))
	return nil
}
