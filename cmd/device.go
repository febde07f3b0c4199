package cmd

import (
	"time"

	"github.com/smazurov/yuvcam/internal/logging"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2"
	"github.com/smazurov/yuvcam/pkg/linuxav/v4l2/simdriver"
	"github.com/spf13/cobra"
)

// deviceFlags are shared by the subcommands that open a device.
type deviceFlags struct {
	buffers  int
	simulate bool
	logJSON  bool
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.buffers, "buffers", v4l2.DefaultBufferCount, "Number of user pointer buffers")
	cmd.Flags().BoolVar(&f.simulate, "simulate", false, "Use the in-memory simulated device instead of hardware")
	cmd.Flags().BoolVar(&f.logJSON, "log-json", false, "Log in JSON")
}

// initLogging sets up minimal logging for one-shot commands. Progress goes
// to the log, results to stdout.
func (f *deviceFlags) initLogging() {
	cfg := logging.Config{Level: "warn", Format: "text"}
	if f.logJSON {
		cfg.Format = "json"
	}
	logging.Initialize(cfg)
}

func (f *deviceFlags) open(path string) (*v4l2.Device, error) {
	opts := []v4l2.Option{
		v4l2.WithBufferCount(f.buffers),
		v4l2.WithLogger(logging.GetLogger("v4l2")),
	}
	if f.simulate {
		sim := simdriver.DefaultConfig()
		sim.FrameInterval = 10 * time.Millisecond
		opts = append(opts, v4l2.WithDriver(simdriver.New(sim)))
	}
	return v4l2.Open(path, opts...)
}

func devicePath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "/dev/video0"
}
