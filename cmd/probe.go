package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/visionnode/internal/cameras/store"
	"github.com/smazurov/visionnode/internal/capture"
	"github.com/smazurov/visionnode/internal/logging"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var configFile string
	var output string

	cmd := &cobra.Command{
		Use:   "probe [camera-id]",
		Short: "Test a camera connection",
		Long: `Opens the camera, reads a single frame and closes it again. ` +
			`With --output the frame is saved as an image, the format following the file extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			cameraStore := store.NewTOML(configFile)
			if err := cameraStore.Load(); err != nil {
				return err
			}
			src, err := cameraStore.Get(args[0])
			if err != nil {
				return err
			}

			opener := capture.NewOpener(capture.OpenerOptions{Logger: logging.GetLogger("capture")})
			img, err := capture.Probe(context.Background(), opener, src)
			if err != nil {
				return err
			}

			b := img.Bounds()
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s source OK, frame %dx%d\n", src.ID, src.Kind, b.Dx(), b.Dy())

			if output != "" {
				if err := capture.SaveSnapshot(img, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "cameras.toml", "Path to cameras configuration file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Save the probed frame to this file")
	cmd.SilenceUsage = true

	return cmd
}
