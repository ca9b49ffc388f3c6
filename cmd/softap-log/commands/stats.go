package commands

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	EventsByTransport map[string]int
	Connections       map[string]*ConnectionStats
	Commands          map[string]*CommandStats
	ErrorsByKind      map[string]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Transport string
	DeviceID  string
}

// CommandStats holds request/response statistics for one command name.
type CommandStats struct {
	Requests  int
	Responses int
	NonZero   int
	Total     time.Duration
	Max       time.Duration
}

// Average returns the mean response time.
func (c *CommandStats) Average() time.Duration {
	if c.Responses == 0 {
		return 0
	}
	return c.Total / time.Duration(c.Responses)
}

// Collect reads the log file and aggregates its events.
func Collect(path string) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		EventsByTransport: make(map[string]int),
		Connections:       make(map[string]*ConnectionStats),
		Commands:          make(map[string]*CommandStats),
		ErrorsByKind:      make(map[string]int),
	}

	err := forEach(path, log.Filter{}, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++
	if event.Transport != "" {
		s.EventsByTransport[event.Transport]++
	}

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.ConnectionID != "" {
		conn, ok := s.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Transport: event.Transport,
			}
			s.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.DeviceID != "" && conn.DeviceID == "" {
			conn.DeviceID = event.DeviceID
		}
	}

	if msg := event.Message; msg != nil && msg.Command != "" {
		cmd, ok := s.Commands[msg.Command]
		if !ok {
			cmd = &CommandStats{}
			s.Commands[msg.Command] = cmd
		}
		switch msg.Type {
		case log.MessageTypeRequest:
			cmd.Requests++
		case log.MessageTypeResponse:
			cmd.Responses++
			if msg.ResultCode != nil && *msg.ResultCode != 0 {
				cmd.NonZero++
			}
			if msg.Duration != nil {
				cmd.Total += *msg.Duration
				cmd.Max = max(cmd.Max, *msg.Duration)
			}
		}
	}

	if event.Error != nil {
		s.Errors++
		kind := event.Error.Kind
		if kind == "" {
			kind = "unknown"
		}
		s.ErrorsByKind[kind]++
	}
}

// RunStats prints a summary of the capture at path.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	stats.Print(w)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// countSection prints "title:" followed by one aligned "name: n" line per
// non-zero entry. Nothing is printed when every count is zero.
func countSection[K comparable](tw *tabwriter.Writer, title string, counts map[K]int, keys []K, name func(K) string) {
	printed := false
	for _, k := range keys {
		n := counts[k]
		if n == 0 {
			continue
		}
		if !printed {
			fmt.Fprintf(tw, "\n%s:\n", title)
			printed = true
		}
		fmt.Fprintf(tw, "  %s:\t%d\n", name(k), n)
	}
}

func enumKeys[K fmt.Stringer](values ...K) []K { return values }

// Print writes the summary in the softap-log stats layout.
func (s *Stats) Print(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "SoftAP capture statistics")
	if s.TotalEvents > 0 {
		span := s.TimeRange.End.Sub(s.TimeRange.Start).Round(time.Millisecond)
		fmt.Fprintf(tw, "\nFirst event:\t%s\n", s.TimeRange.Start.UTC().Format(time.RFC3339Nano))
		fmt.Fprintf(tw, "Last event:\t%s\n", s.TimeRange.End.UTC().Format(time.RFC3339Nano))
		fmt.Fprintf(tw, "Span:\t%s\n", span)
	}
	fmt.Fprintf(tw, "\nTotal Events: %d\n", s.TotalEvents)

	countSection(tw, "By layer", s.EventsByLayer,
		enumKeys(log.LayerTransport, log.LayerWire, log.LayerSession), log.Layer.String)
	countSection(tw, "By category", s.EventsByCategory,
		enumKeys(log.CategoryMessage, log.CategoryState, log.CategoryError), log.Category.String)
	countSection(tw, "By direction", s.EventsByDirection,
		enumKeys(log.DirectionOut, log.DirectionIn), log.Direction.String)
	countSection(tw, "By transport", s.EventsByTransport,
		sortedKeys(s.EventsByTransport), func(t string) string { return t })

	if len(s.Commands) > 0 {
		fmt.Fprintln(tw, "\nCommands:\tsent\tanswered\trejected\tavg\tmax")
		for _, name := range sortedKeys(s.Commands) {
			c := s.Commands[name]
			avg, peak := "-", "-"
			if c.Responses > 0 {
				avg, peak = formatDuration(c.Average()), formatDuration(c.Max)
			}
			fmt.Fprintf(tw, "  %s\t%d\t%d\t%d rejected\t%s\t%s\n", name, c.Requests, c.Responses, c.NonZero, avg, peak)
		}
	}

	ids := sortedKeys(s.Connections)
	sort.SliceStable(ids, func(i, j int) bool {
		return s.Connections[ids[i]].FirstSeen.Before(s.Connections[ids[j]].FirstSeen)
	})
	fmt.Fprintf(tw, "\nConnections: %d\n", len(ids))
	for _, id := range ids {
		c := s.Connections[id]
		fmt.Fprintf(tw, "  %s\t%s\t%d events\t%s\n",
			shortenID(id), c.Transport, c.Events, c.LastSeen.Sub(c.FirstSeen).Round(time.Millisecond))
		if c.DeviceID != "" {
			fmt.Fprintf(tw, "  \tDevice: %s\n", c.DeviceID)
		}
	}

	if s.Errors > 0 {
		countSection(tw, fmt.Sprintf("Errors (%d)", s.Errors), s.ErrorsByKind,
			sortedKeys(s.ErrorsByKind), func(k string) string { return k })
	}
}
