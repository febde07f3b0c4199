package cmd

import (
	"fmt"

	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/spf13/cobra"
)

// CreateSizesCmd creates the sizes command.
func CreateSizesCmd() *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "sizes [device]",
		Short: "Show formats and frame sizes of a device",
		Long: `Opens the device, prints its capability and negotiated format, then enumerates pixel formats ` +
			`and YUYV frame sizes. The index column is what --capture-frame-size and PUT /api/frame-size expect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.initLogging()

			dev, err := flags.open(devicePath(args))
			if err != nil {
				return err
			}
			defer dev.Close()

			out := cmd.OutOrStdout()
			c := dev.Capability()
			fmt.Fprintf(out, "Device:  %s\n", dev.Path())
			fmt.Fprintf(out, "Driver:  %s\n", c.Driver)
			fmt.Fprintf(out, "Card:    %s\n", c.Card)
			fmt.Fprintf(out, "Bus:     %s\n", c.BusInfo)
			fmt.Fprintf(out, "Current: %dx%d %s, %d bytes\n",
				dev.Width(), dev.Height(), v4l2.FormatFourCC(dev.Format().PixelFormat), dev.FrameBytes())

			fmt.Fprintln(out, "\nFormats:")
			for f, err := range dev.Formats() {
				if err != nil {
					return err
				}
				marker := " "
				if f.PixelFormat == v4l2.PixFmtYUYV {
					marker = "*"
				}
				fmt.Fprintf(out, "  %s %s  %s\n", marker, v4l2.FormatFourCC(f.PixelFormat), f.FormatName)
			}

			sizes, err := dev.ListFrameSizes()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nFrame sizes (YUYV):")
			for i, r := range sizes {
				fmt.Fprintf(out, "  %2d  %dx%d\n", i, r.Width, r.Height)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
