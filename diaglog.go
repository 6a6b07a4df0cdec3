package mcp

import "log"

// DiagLogger is the library's internal diagnostic sink — distinct from
// the wire-level `logging` module (see logging.go), which sends
// notifications/message to the remote peer. DiagLogger never touches the
// wire; it exists so a host application can observe handler panics and
// malformed or invalid progress notifications. Progress notifications
// for a token with no open stream are dropped without a log line.
//
// The default implementation stays on the standard library's log
// package. A host that wants structured output plugs in its own logger
// (zap, logr, …) by implementing this one-method interface, the same
// dependency-inversion shape this package uses for Transport.
type DiagLogger interface {
	Printf(format string, args ...any)
}

// stdDiagLogger adapts the standard library's *log.Logger to DiagLogger.
type stdDiagLogger struct {
	l *log.Logger
}

func (s stdDiagLogger) Printf(format string, args ...any) {
	s.l.Printf(format, args...)
}

// defaultDiagLogger writes to the standard library's default logger.
func defaultDiagLogger() DiagLogger {
	return stdDiagLogger{l: log.Default()}
}

// nopDiagLogger discards everything. Used by tests that want a quiet peer.
type nopDiagLogger struct{}

func (nopDiagLogger) Printf(string, ...any) {}
