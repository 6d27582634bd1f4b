package logger

import (
	"go.uber.org/zap"
)

// Log is the process-wide logger. It discards everything until Init or
// InitDebug is called, so packages can log from tests without setup.
var Log = zap.NewNop()

// Init installs a production (JSON, info level) logger.
func Init() {
	l, err := zap.NewProduction()
	if err != nil {
		return
	}
	Log = l
}

// InitDebug installs a development logger with debug level and console output.
func InitDebug() {
	l, err := zap.NewDevelopment()
	if err != nil {
		return
	}
	Log = l
}

// Sync flushes buffered entries. Errors from syncing stdout/stderr are ignored.
func Sync() {
	_ = Log.Sync()
}
