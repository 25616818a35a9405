package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List configured cameras",
	Long: `Prints the configured cameras in order. The number in the first column
is what the user says to open a camera ("open camera 2").`,
	Args: cobra.NoArgs,
	RunE: runTargets,
}

func init() {
	rootCmd.AddCommand(targetsCmd)
}

func runTargets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tLABEL\tADDRESS")
	for i, t := range cfg.Targets {
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, t.Label, t.Address)
	}
	return w.Flush()
}
