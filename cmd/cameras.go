package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/visionnode/internal/cameras"
	"github.com/smazurov/visionnode/internal/cameras/store"
)

// CreateCamerasCmd creates the cameras command for editing cameras.toml.
func CreateCamerasCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "cameras",
		Short: "Manage camera definitions",
		Long: `Lists, adds and removes cameras in cameras.toml. ` +
			`A running server reloads the file automatically; running streams pick up changes on restart.`,
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "cameras.toml", "Path to cameras configuration file")

	load := func() (cameras.Store, error) {
		s := store.NewTOML(configFile)
		if err := s.Load(); err != nil {
			return nil, err
		}
		return s, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured cameras",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := load()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tSOURCE\tFPS\tZONE\tMODULES")
			for _, c := range s.List() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					c.ID, c.DisplayName(), c.Kind, describeSource(c), c.FrameRate, c.Zone, strings.Join(c.Modules, ","))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(createCameraAddCmd(load))

	cmd.AddCommand(&cobra.Command{
		Use:   "remove [camera-id]",
		Short: "Remove a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}
			if err := s.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	})

	return cmd
}

func createCameraAddCmd(load func() (cameras.Store, error)) *cobra.Command {
	var src cameras.CameraSource
	var kind string

	cmd := &cobra.Command{
		Use:   "add [camera-id]",
		Short: "Add or replace a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}
			src.ID = args[0]
			src.Kind = cameras.SourceKind(kind)
			if err := s.Put(src); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", src.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&kind, "kind", string(cameras.KindTest), "Source kind (webcam, ip, file, http, test)")
	f.StringVar(&src.Name, "name", "", "Display name")
	f.IntVar(&src.DeviceIndex, "device", 0, "Capture device index for webcam sources")
	f.StringVar(&src.URL, "url", "", "Stream or snapshot URL for ip and http sources")
	f.StringVar(&src.Path, "path", "", "File or directory for file sources")
	f.StringVar(&src.Credentials.Username, "username", "", "Camera username")
	f.StringVar(&src.Credentials.Password, "password", "", "Camera password")
	f.IntVar(&src.FrameRate, "fps", 0, "Target frame rate")
	f.StringVar(&src.Resolution, "resolution", "", "Target resolution as WIDTHxHEIGHT")
	f.StringVar(&src.Zone, "zone", "", "Occupancy zone")
	f.StringSliceVar(&src.Modules, "modules", nil, "Module topics that also receive this camera's events")
	f.BoolVar(&src.Preprocess.Resize, "resize", false, "Resize frames to the resolution")
	f.BoolVar(&src.Preprocess.Grayscale, "grayscale", false, "Convert frames to grayscale")
	f.BoolVar(&src.Preprocess.Blur, "blur", false, "Blur frames")
	return cmd
}

func describeSource(c cameras.CameraSource) string {
	switch c.Kind {
	case cameras.KindWebcam:
		return fmt.Sprintf("device %d", c.DeviceIndex)
	case cameras.KindIP, cameras.KindHTTP:
		return c.URL
	case cameras.KindFile:
		return c.Path
	default:
		return "-"
	}
}
