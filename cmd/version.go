package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sitekit/internal/version"
)

var (
	versionShort  bool
	versionOutput *OutputFlags
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version, commit, build time, Go version and platform.

Examples:
  sitekit version
  sitekit version --short
  sitekit version --output json`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show the version number only")
	versionOutput = AddOutputFlags(versionCmd, FormatTable)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := version.Get()
	if versionShort {
		fmt.Fprintln(cmd.OutOrStdout(), info.Version)
		return nil
	}
	return versionOutput.Write(cmd.OutOrStdout(), info, func(w io.Writer) error {
		fmt.Fprintln(w, info.String())
		if !info.BuildTime.IsZero() {
			fmt.Fprintf(w, "Built: %s\n", info.BuildTime.UTC().Format(time.RFC3339))
		}
		if info.Release {
			fmt.Fprintln(w, "Build type: release")
		} else {
			fmt.Fprintln(w, "Build type: development")
		}
		return nil
	})
}
