package query

import (
	"encoding/json"
	"sort"
)

// ValueCount is one aggregate entry. It marshals as a [value, count] pair to
// keep the wire shape the conversational front-end already consumes.
type ValueCount struct {
	Value string
	Count int
}

func (v ValueCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{v.Value, v.Count})
}

func (v *ValueCount) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &v.Value); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &v.Count)
}

// counter tallies values while remembering first-encounter order, so that
// equal counts rank in the order the values appeared.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(value string) {
	if value == "" {
		return
	}
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value]++
}

// top returns up to n entries by descending count, ties broken by
// first-encounter order.
func (c *counter) top(n int) []ValueCount {
	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]ValueCount, len(ranked))
	for i, value := range ranked {
		out[i] = ValueCount{Value: value, Count: c.counts[value]}
	}
	return out
}
