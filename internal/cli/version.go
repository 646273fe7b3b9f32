package cli

import (
	"fmt"
	"runtime"

	"github.com/abdul-hamid-achik/av-pairtree/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if printer.IsJSON() {
			return printer.JSON(map[string]string{
				"version":    version.Version,
				"commit":     version.Commit,
				"build_date": version.BuildDate,
				"go":         runtime.Version(),
			})
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "avpt "+version.Full())
		return err
	},
}
