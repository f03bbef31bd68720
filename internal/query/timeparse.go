package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// msThreshold: numeric values above this are epoch milliseconds. The 10^10
// cutoff is part of the query contract and must not change.
const msThreshold = 10_000_000_000

// isoLayouts are tried in order for non-numeric inputs. Layouts without a
// zone are interpreted in the caller's location.
var isoLayouts = []struct {
	layout  string
	hasZone bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02 15:04", false},
	{"2006-01-02", false},
}

// ToEpoch resolves a query time value to epoch seconds. Accepted forms:
// epoch seconds, epoch milliseconds (> 10^10), and ISO-8601 with or without
// a zone offset.
func ToEpoch(value string, loc *time.Location) (float64, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, fmt.Errorf("empty time value")
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n > msThreshold {
			return n / 1000, nil
		}
		return n, nil
	}

	for _, l := range isoLayouts {
		var (
			t   time.Time
			err error
		)
		if l.hasZone {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return float64(t.UnixNano()) / float64(time.Second), nil
		}
	}

	return 0, fmt.Errorf("unparseable time value %q", value)
}
