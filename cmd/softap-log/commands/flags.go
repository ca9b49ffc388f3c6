package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/softap-protocol/softap-go/pkg/log"
)

type enum interface {
	~uint8
	String() string
}

// parseEnum matches s case-insensitively against the names of values.
func parseEnum[T enum](kind, s string, values ...T) (T, error) {
	names := make([]string, len(values))
	for i, v := range values {
		if strings.EqualFold(v.String(), s) {
			return v, nil
		}
		names[i] = strings.ToLower(v.String())
	}
	return 0, fmt.Errorf("invalid %s %q (want %s)", kind, s, strings.Join(names, ", "))
}

// ParseLayerFlag accepts transport, wire or session.
func ParseLayerFlag(s string) (log.Layer, error) {
	return parseEnum("layer", s, log.LayerTransport, log.LayerWire, log.LayerSession)
}

// ParseDirectionFlag accepts in or out.
func ParseDirectionFlag(s string) (log.Direction, error) {
	return parseEnum("direction", s, log.DirectionIn, log.DirectionOut)
}

// ParseCategoryFlag accepts message, state or error.
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseEnum("category", s, log.CategoryMessage, log.CategoryState, log.CategoryError)
}

// optional runs parse unless s is empty, in which case the result is nil.
func optional[T any](s string, parse func(string) (T, error)) (*T, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC 3339)", s)
	}
	return t, nil
}

// NewViewFilter builds a ViewFilter from flag values. Empty values match
// everything.
func NewViewFilter(layer, direction, category, command string) (ViewFilter, error) {
	f := ViewFilter{Command: command}
	var err error
	if f.Layer, err = optional(layer, ParseLayerFlag); err != nil {
		return ViewFilter{}, err
	}
	if f.Direction, err = optional(direction, ParseDirectionFlag); err != nil {
		return ViewFilter{}, err
	}
	if f.Category, err = optional(category, ParseCategoryFlag); err != nil {
		return ViewFilter{}, err
	}
	return f, nil
}
