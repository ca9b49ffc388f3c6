package log

// MultiLogger hands each event to every sink in order.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger combines sinks, ignoring nil entries.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	kept := make([]Logger, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		kept = append(kept, s)
	}
	return &MultiLogger{sinks: kept}
}

func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}
