// Package query answers range+filter searches over the index. The engine is
// read-only and stateless; any number of searches may run concurrently.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/exalmatuz/bw-reports-agent/internal/config"
	"github.com/exalmatuz/bw-reports-agent/internal/index"
	"github.com/exalmatuz/bw-reports-agent/internal/model"
	"github.com/exalmatuz/bw-reports-agent/internal/storage"
)

const DefaultLimit = 50

// ErrBadRequest marks caller mistakes (missing or unparseable time range) so
// the transport can answer 400 instead of 500.
var ErrBadRequest = errors.New("bad request")

type Engine struct {
	store storage.Store
	tz    *time.Location
	log   zerolog.Logger
}

func NewEngine(store storage.Store, tz *time.Location, log zerolog.Logger) *Engine {
	return &Engine{store: store, tz: tz, log: log}
}

// Params is one search request. Empty filter fields impose no constraint.
type Params struct {
	Prefix string
	Start  string
	End    string

	ServerName   string
	IP           string
	SecurityMode string
	Status       string
	Reason       string
	Country      string
	Method       string

	URLContains string
	UAContains  string

	Order string // newest|oldest, default newest
	Limit int
}

// Result mirrors the search response wire shape.
type Result struct {
	Count      int            `json:"count"`
	TopIPs     []ValueCount   `json:"top_ips"`
	TopURLs    []ValueCount   `json:"top_urls"`
	TopReasons []ValueCount   `json:"top_reasons"`
	Results    []model.Report `json:"results"`
}

// filterPairs returns the (kind, value) filters the request supplied, in the
// fixed order the index kinds are declared. Intersection is commutative so
// the order only matters for determinism.
func (p *Params) filterPairs() [][2]string {
	supplied := map[string]string{
		"ip":      p.IP,
		"server":  p.ServerName,
		"mode":    p.SecurityMode,
		"status":  p.Status,
		"reason":  p.Reason,
		"country": p.Country,
		"method":  p.Method,
	}

	var pairs [][2]string
	for _, attr := range model.AttributeFields {
		if val := supplied[attr.Kind]; val != "" {
			pairs = append(pairs, [2]string{attr.Kind, val})
		}
	}
	return pairs
}

// Search runs the full pipeline: time-range lookup, attribute-set
// intersection, order-preserving truncation, hydration, substring filters,
// annotation, and top-N aggregation over the final result set.
//
// Substring filters run after the limit cut, so Count can undershoot the
// true match count inside the window. The conversational front-end depends
// on this response shape; see DESIGN.md before changing it.
func (e *Engine) Search(ctx context.Context, p Params) (*Result, error) {
	if p.Start == "" || p.End == "" {
		return nil, fmt.Errorf("%w: start and end are required", ErrBadRequest)
	}

	startTS, err := ToEpoch(p.Start, e.tz)
	if err != nil {
		return nil, fmt.Errorf("%w: start: %v", ErrBadRequest, err)
	}
	endTS, err := ToEpoch(p.End, e.tz)
	if err != nil {
		return nil, fmt.Errorf("%w: end: %v", ErrBadRequest, err)
	}

	prefix := p.Prefix
	if prefix == "" {
		prefix = config.DefaultPrefix
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	// Ascending by score; ids stays the authoritative ordering for the
	// rest of the pipeline.
	ids, err := e.store.RangeByScore(ctx, index.TimeKey(prefix), startTS, endTS)
	if err != nil {
		return nil, err
	}
	if p.Order != "oldest" {
		reverse(ids)
	}

	candidates := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		candidates[id] = struct{}{}
	}

	for _, pair := range p.filterPairs() {
		if len(candidates) == 0 {
			break
		}
		members, err := e.store.SetMembers(ctx, index.AttrKey(prefix, pair[0], pair[1]))
		if err != nil {
			return nil, err
		}
		candidates = intersect(candidates, members)
	}

	// Re-derive the ordered id list from ids, not from the set, so the
	// time order survives the intersections.
	ordered := make([]string, 0, limit)
	for _, id := range ids {
		if _, ok := candidates[id]; !ok {
			continue
		}
		ordered = append(ordered, id)
		if len(ordered) == limit {
			break
		}
	}

	results := make([]model.Report, 0, len(ordered))
	for _, id := range ordered {
		raw, found, err := e.store.Get(ctx, index.RecordKey(prefix, id))
		if err != nil {
			return nil, err
		}
		if !found {
			// Expired between index lookup and fetch; expected
			// under retention.
			continue
		}

		var rec model.Report
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}

		if p.URLContains != "" && !strings.Contains(rec.URL, p.URLContains) {
			continue
		}
		if p.UAContains != "" && !strings.Contains(strings.ToLower(rec.UserAgent), strings.ToLower(p.UAContains)) {
			continue
		}

		rec.DateHuman = epochToHuman(rec.Date, e.tz)
		results = append(results, rec)
	}

	topIPs := newCounter()
	topURLs := newCounter()
	topReasons := newCounter()
	for i := range results {
		topIPs.add(results[i].IP)
		topURLs.add(results[i].URL)
		topReasons.add(results[i].Reason)
	}

	return &Result{
		Count:      len(results),
		TopIPs:     topIPs.top(10),
		TopURLs:    topURLs.top(10),
		TopReasons: topReasons.top(10),
		Results:    results,
	}, nil
}

func epochToHuman(epoch float64, tz *time.Location) string {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).In(tz).Format(time.RFC3339)
}

func reverse(ids []string) {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func intersect(candidates map[string]struct{}, members []string) map[string]struct{} {
	out := make(map[string]struct{}, len(candidates))
	for _, m := range members {
		if _, ok := candidates[m]; ok {
			out[m] = struct{}{}
		}
	}
	return out
}
