// Package observability carries the pipeline's logging seam. Stage components
// log through the process-wide Logger so binaries decide the backend; the
// default discards everything, which keeps the decision functions silent in
// tests.
package observability

// Logger is the structured logging contract stage components write against.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one structured key/value attached to a log line.
type Field struct {
	Key   string
	Value any
}

var active Logger = nopLogger{}

// SetLogger installs the process-wide logger. A nil argument restores the
// discarding default.
func SetLogger(logger Logger) {
	if logger == nil {
		active = nopLogger{}
		return
	}
	active = logger
}

// Log returns the currently installed logger.
func Log() Logger {
	return active
}

// nopLogger drops every record.
type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}
