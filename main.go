package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/yuvcam/cmd"
	"github.com/smazurov/yuvcam/internal/api"
	"github.com/smazurov/yuvcam/internal/capture"
	"github.com/smazurov/yuvcam/internal/config"
	"github.com/smazurov/yuvcam/internal/events"
	"github.com/smazurov/yuvcam/internal/logging"
	"github.com/smazurov/yuvcam/internal/metrics/exporters"
	"github.com/smazurov/yuvcam/internal/systemd"
	"github.com/smazurov/yuvcam/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Capture settings
	CaptureDevice        string `help:"V4L2 capture device" default:"/dev/video0" toml:"capture.device" env:"CAPTURE_DEVICE"`
	CaptureBuffers       int    `help:"Number of user-pointer buffers" default:"4" toml:"capture.buffers" env:"CAPTURE_BUFFERS"`
	CaptureFrameSize     int    `help:"Frame size index to select at start, -1 keeps the active size" default:"-1" toml:"capture.frame_size" env:"CAPTURE_FRAME_SIZE"`
	CaptureGrayscale     bool   `help:"Render luma only" default:"false" toml:"capture.grayscale" env:"CAPTURE_GRAYSCALE"`
	CaptureWaitTimeoutMs int    `help:"Frame wait timeout in milliseconds" default:"200" toml:"capture.wait_timeout_ms" env:"CAPTURE_WAIT_TIMEOUT_MS"`
	CaptureSimulate      bool   `help:"Use the built-in color bar generator instead of a device" default:"false" toml:"capture.simulate" env:"CAPTURE_SIMULATE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`
	ObsSSEEnabled        bool `help:"Enable frame stats events" default:"true" toml:"obs.sse_enabled" env:"OBS_SSE_ENABLED"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCapture string `help:"Capture logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingV4L2    string `help:"V4L2 logging level" default:"info" toml:"logging.v4l2" env:"LOGGING_V4L2"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		loadErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"capture": opts.LoggingCapture,
				"v4l2":    opts.LoggingV4L2,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")
		if loadErr != nil {
			logger.Warn("Failed to load config", "error", loadErr)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryEvent(entry))
		})

		captureService := capture.NewService(capture.Config{
			DevicePath:  opts.CaptureDevice,
			Buffers:     opts.CaptureBuffers,
			FrameSize:   opts.CaptureFrameSize,
			Grayscale:   opts.CaptureGrayscale,
			WaitTimeout: time.Duration(opts.CaptureWaitTimeoutMs) * time.Millisecond,
			Simulate:    opts.CaptureSimulate,
		}, eventBus, logging.GetLogger("capture"))

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Capture:      captureService,
			EventBus:     eventBus,
		}
		if opts.ObsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var statsExporter *exporters.SSEExporter
		if opts.ObsSSEEnabled {
			statsExporter = exporters.NewSSEExporter(eventBus)
		}

		watcher := config.NewConfigWatcher(opts.Config, config.LoadReloadable, logging.GetLogger("config"),
			config.WithErrorHandler[config.Reloadable](func(err error) {
				logger.Warn("Ignoring invalid config change", "error", err)
			}))
		frameSize := config.NewFrameSizeApplier(opts.CaptureFrameSize, captureService.SetFrameSize)
		watcher.OnReload(func(r config.Reloadable) {
			logging.SetLevels(r.Logging)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := frameSize.Apply(ctx, r.FrameSize); err != nil {
				logger.Warn("Failed to apply frame size from config", "index", r.FrameSize, "error", err)
			}
			cancel()
			eventBus.Publish(events.ConfigReloadedEvent{
				Path:      opts.Config,
				FrameSize: r.FrameSize,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
		})

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))
		notifier.Follow(eventBus)

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			logger.Info("Starting yuvcam", "version", version.Short(), "device", opts.CaptureDevice)

			// The API stays up without a device so it can report why.
			if startErr := captureService.Start(ctx); startErr != nil {
				logger.Error("Failed to start capture", "device", opts.CaptureDevice, "error", startErr)
			}

			if statsExporter != nil {
				statsExporter.Start(ctx)
			}

			if _, statErr := os.Stat(opts.Config); statErr == nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch config file", "path", opts.Config, "error", startErr)
				}
			}

			notifier.Ready()
			notifier.StartWatchdog(ctx)

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			if statsExporter != nil {
				statsExporter.Stop()
			}
			if stopErr := captureService.Stop(); stopErr != nil {
				logger.Warn("Error stopping capture", "error", stopErr)
			}
			notifier.Stop()
			cancel()
		})
	})

	cli.Root().Use = "yuvcam"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateDevicesCmd())
	cli.Root().AddCommand(cmd.CreateSizesCmd())
	cli.Root().AddCommand(cmd.CreateSnapshotCmd())

	// Run the CLI
	cli.Run()
}

