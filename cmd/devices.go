package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// findDevices is replaced in tests.
var findDevices = v4l2.FindDevices

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long:  `Scans /sys/class/video4linux and prints every node that can capture video, with its stable /dev/v4l/by-id identifier.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := findDevices()
			if err != nil {
				return fmt.Errorf("failed to list devices: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(found)
			}

			if len(found) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PATH\tNAME\tSTREAMING\tID")
			for _, d := range found {
				fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", d.DevicePath, d.DeviceName, d.Streaming, d.DeviceID)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
