package mcp

import (
	"context"
	"reflect"
	"sync"
)

// LogLevel mirrors RFC 5424 syslog severities, as used by logging/setLevel
// and notifications/message.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelOrder = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// LoggingModule implements logging/setLevel and emits
// notifications/message for log entries at or above the client's
// requested minimum level.
type LoggingModule struct {
	peer *Peer

	mu       sync.RWMutex
	minLevel LogLevel
}

func newLoggingModule(peer *Peer) *LoggingModule {
	m := &LoggingModule{peer: peer, minLevel: LogLevelWarning}
	peer.RegisterRequestHandler("logging/setLevel", m.handleSetLevel)
	return m
}

func (m *LoggingModule) install(result *InitializeResult) {
	result.Capabilities.Logging = &struct{}{}
}

func (m *LoggingModule) handleSetLevel(ctx context.Context, req Request) (Response, error) {
	var params struct {
		Level LogLevel `json:"level"`
	}
	if err := wireJSON.Unmarshal(req.Params, &params); err != nil {
		return Response{}, NewArgumentError("invalid logging/setLevel params", err)
	}
	if _, ok := logLevelOrder[params.Level]; !ok {
		return Response{}, NewArgumentError("unknown log level: "+string(params.Level), nil)
	}
	m.mu.Lock()
	m.minLevel = params.Level
	m.mu.Unlock()
	return Response{Result: []byte("{}")}, nil
}

// Log emits a notifications/message entry at level if it meets the
// client's current minimum. data may be a plain JSON-marshalable value,
// or a func() (any, bool) lazy producer invoked only once the level
// check passes, so callers can avoid formatting an expensive payload
// that nobody will see. logger names the originating component.
func (m *LoggingModule) Log(level LogLevel, logger string, data any) error {
	m.mu.RLock()
	threshold := m.minLevel
	m.mu.RUnlock()

	if logLevelOrder[level] < logLevelOrder[threshold] {
		return nil
	}
	if !m.peer.Ready() {
		return nil
	}

	payload, err := resolveLogData(data)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}

	return m.peer.SendNotification(context.Background(), "notifications/message", struct {
		Level  LogLevel `json:"level"`
		Logger string   `json:"logger,omitempty"`
		Data   any      `json:"data"`
	}{Level: level, Logger: logger, Data: payload})
}

// resolveLogData accepts either a plain value or a func() (any, bool)
// lazy producer. The producer's bool return lets a caller suppress
// emission entirely (e.g. "nothing changed since last tick").
func resolveLogData(data any) (any, error) {
	fn, ok := data.(func() (any, bool))
	if ok {
		value, emit := fn()
		if !emit {
			return nil, nil
		}
		return value, nil
	}

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Func {
		return nil, NewArgumentError("log data func must have signature func() (any, bool)", nil)
	}
	return data, nil
}
