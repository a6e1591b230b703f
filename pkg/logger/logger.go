// Package logger is the node-wide logging facade. It keeps the same
// Debug/Info/Error surface the rest of the codebase calls, backed by a
// single structured logrus.Logger so components can attach fields
// (event_id, peer_ip, component) instead of hand-formatting strings.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// base is the shared logger instance. Package-level so every component
// gets the same output/level configuration without threading a logger
// through every constructor.
var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return l
}

// SetOutput redirects all logging to a specific writer.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Silent disables all logging.
func Silent() {
	base.SetOutput(io.Discard)
}

// SetLevelInfo raises the minimum level to Info, quieting the per-peer
// debug noise (relay/keepalive/scan failures) for normal (non --debug) runs.
func SetLevelInfo() {
	base.SetLevel(logrus.InfoLevel)
}

// ToFile redirects logging to a file, appending across restarts.
func ToFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	SetOutput(file)
	return nil
}

// Fields is a shorthand for structured log attributes.
type Fields = logrus.Fields

// Debug logs at debug level, used for per-peer transient network failures
// that are never escalated (relay, keepalive, scan, sync push).
func Debug(format string, v ...any) {
	base.Debugf(format, v...)
}

// Info logs at info level: component lifecycle, peer discovery, new events.
func Info(format string, v ...any) {
	base.Infof(format, v...)
}

// Warn logs at warn level: malformed input that was dropped.
func Warn(format string, v ...any) {
	base.Warnf(format, v...)
}

// Error logs at error level: resource failures (bind, subnet enumeration).
func Error(format string, v ...any) {
	base.Errorf(format, v...)
}

// WithFields returns an entry carrying structured context, for call sites
// that want to attach event_id/peer_ip/component rather than format them.
func WithFields(fields Fields) *logrus.Entry {
	return base.WithFields(fields)
}
