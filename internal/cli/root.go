// Package cli implements the avpt command.
package cli

import (
	"github.com/abdul-hamid-achik/av-pairtree/internal/output"
	"github.com/abdul-hamid-achik/av-pairtree/internal/version"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
	quietMode  bool
	noColor    bool
	printer    *output.Printer
)

var rootCmd = &cobra.Command{
	Use:   "avpt",
	Short: "av-pairtree - audio/video manifest ingestion into Pairtree storage",
	Long: `avpt converts the audio and video listed in CSV manifests into web
derivatives, stores them in Pairtree layout, uploads audio waveforms and
writes each manifest back out with access and waveform URLs.

Get started:
  avpt serve                      # Watch CSV_DIR for manifests
  avpt process soul.csv           # Process one manifest now
  avpt jobs                       # List jobs in flight on a running server`,
	Version: version.Full(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		printer = output.New(
			output.WithJSON(jsonOutput),
			output.WithQuiet(quietMode),
			output.WithNoColor(noColor),
			output.WithOutput(cmd.OutOrStdout()),
			output.WithErrOutput(cmd.ErrOrStderr()),
		)
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables take precedence)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON (for scripting)")
	rootCmd.PersistentFlags().BoolVar(&quietMode, "quiet", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.SetVersionTemplate("avpt version {{.Version}}\n")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(versionCmd)
}
