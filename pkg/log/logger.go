package log

// Logger is a capture sink. Log is called from transport goroutines while a
// call is in flight, so implementations must be safe for concurrent use and
// return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. The zero value is ready to use.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// OrNoop substitutes NoopLogger for a nil sink so callers never nil-check.
func OrNoop(l Logger) Logger {
	if l != nil {
		return l
	}
	return NoopLogger{}
}

var (
	_ Logger = NoopLogger{}
	_ Logger = (*MultiLogger)(nil)
	_ Logger = (*FileLogger)(nil)
)
