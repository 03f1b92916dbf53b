// Package logger holds the process-wide zap logger shared by the API
// server and the refresh daemon.
package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the global logger for the given environment. Production
// gets a JSON encoder; everything else gets the console encoder.
// Subsequent calls are no-ops.
func Init(env string) {
	once.Do(func() {
		var base *zap.Logger
		var err error

		switch env {
		case "production":
			base, err = zap.NewProduction()
		default:
			base, err = zap.NewDevelopment()
		}

		if err != nil {
			// Never fail startup over logging.
			base = zap.NewNop()
		}

		sugar = base.Sugar()
	})
}

// Get returns the global sugared logger, initializing a development
// logger if Init was never called.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Sync flushes buffered entries. Deferred in main before exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
