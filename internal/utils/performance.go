package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowOperationThreshold flags operations that crawl, which for directory
// scans usually means the data directory sits on a network drive.
const slowOperationThreshold = 10 * time.Second

// OperationTimer returns a func that logs the time elapsed since the call.
//
// Usage:
//
//	func (s *Service) Scan() error {
//	    defer utils.OperationTimer("registry_scan", s.log)()
//	    ...
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		event := log.Debug()
		if duration > slowOperationThreshold {
			event = log.Warn()
		}

		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")
	}
}
