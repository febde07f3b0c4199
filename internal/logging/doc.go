// Package logging provides structured logging with per-module log levels.
//
// Every module gets its own *slog.Logger from GetLogger, tagged with a
// "module" attribute and gated by its own slog.LevelVar, so levels can be
// changed at runtime with SetLevels when the config file is reloaded.
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"capture": "debug",
//			"api":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("capture")
//	logger.Info("Frame size changed", "width", 320, "height", 240)
//
// Records go to stdout when it is connected, to the systemd journal when
// journald is reachable, and always to an in-memory ring buffer that backs
// the /api/logs endpoint:
//
//	journalctl -t yuvcam -f
//	journalctl -t yuvcam MODULE=capture
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	capture = "debug"
//	v4l2 = "warn"
package logging
