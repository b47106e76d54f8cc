package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/visionnode/internal/capture"
	"github.com/smazurov/visionnode/internal/version"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			var features []string
			if capture.VideoSupported {
				features = append(features, "gocv")
			}
			info := version.Get(features...)
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:   %s\n  built:    %s\n  go:       %s\n  platform: %s\n",
				info.GitCommit, info.BuildDate, info.GoVersion, info.Platform)
			if len(info.Features) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "  features: %v\n", info.Features)
			}
		},
	}
}
