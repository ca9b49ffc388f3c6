package commands

import (
	"fmt"
	"io"

	"github.com/softap-protocol/softap-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	ConnID    string
	CallID    string
	DeviceID  string
	Transport string
	Command   string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Filter converts the flag values to a log filter. Empty values match
// everything.
func (opts FilterOptions) Filter() (log.Filter, error) {
	view, err := NewViewFilter(opts.Layer, opts.Direction, opts.Category, opts.Command)
	if err != nil {
		return log.Filter{}, err
	}
	filter := view.logFilter()
	filter.ConnectionID = opts.ConnID
	filter.CallID = opts.CallID
	filter.DeviceID = opts.DeviceID
	filter.Transport = opts.Transport

	if filter.TimeStart, err = optional(opts.TimeStart, parseTimestamp); err != nil {
		return log.Filter{}, fmt.Errorf("time-start: %w", err)
	}
	if filter.TimeEnd, err = optional(opts.TimeEnd, parseTimestamp); err != nil {
		return log.Filter{}, fmt.Errorf("time-end: %w", err)
	}
	return filter, nil
}

// RunFilter filters the log file and writes matching events to a new file.
// The number of events written is reported on w.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	logger, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	err = forEach(path, filter, func(event log.Event) error {
		logger.Log(event)
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", logger.Count(), opts.Output)
	return nil
}
