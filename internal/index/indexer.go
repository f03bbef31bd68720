// Package index turns the raw append-only event list into the searchable
// index: forward record store, time-ordered sorted set, per-attribute id
// sets, and dedupe markers. It runs as a batch job, not a server.
package index

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"

	"github.com/exalmatuz/bw-reports-agent/internal/model"
	"github.com/exalmatuz/bw-reports-agent/internal/storage"
)

const DefaultBatchSize = 500

type Indexer struct {
	store  storage.Store
	log    zerolog.Logger
	parser fastjson.Parser
}

func NewIndexer(store storage.Store, log zerolog.Logger) *Indexer {
	return &Indexer{store: store, log: log}
}

// Options configures a single ingest run.
type Options struct {
	// Source is the raw list the WAF appends event JSON to.
	Source string

	// Prefix namespaces every index key.
	Prefix string

	// Retention bounds how long indexed data lives. Zero disables expiry.
	Retention time.Duration

	// BatchSize caps how many source entries are held in memory at once.
	BatchSize int
}

// Report summarizes one ingest run. Malformed, MissingID and MissingDate are
// soft failures: counted, skipped, never fatal.
type Report struct {
	New          int   `json:"new"`
	Malformed    int   `json:"malformed"`
	MissingID    int   `json:"missing_id"`
	MissingDate  int   `json:"missing_date"`
	Pruned       int64 `json:"pruned"`
	IndexedTotal int64 `json:"indexed_total"`
}

// candidate is one admitted source entry, fully extracted during the
// admission pass. Extraction happens up front because the shared fastjson
// parser invalidates its value on the next Parse.
type candidate struct {
	id      string
	raw     []byte
	date    float64
	hasDate bool
	attrs   []model.AttributeField
	vals    []string // parallel to attrs
}

// Run ingests the source list in bounded batches. Each batch makes two
// grouped writes: one test-and-set pass over dedupe markers, then one commit
// pass indexing only the newly marked records. Re-running over the same
// source is idempotent. Storage errors abort the run.
func (ix *Indexer) Run(ctx context.Context, opts Options) (Report, error) {
	var rep Report

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	total, err := ix.store.ListLength(ctx, opts.Source)
	if err != nil {
		return rep, err
	}

	ix.log.Info().
		Str("source", opts.Source).
		Str("prefix", opts.Prefix).
		Int64("total", total).
		Dur("retention", opts.Retention).
		Msg("indexer starting")

	for start := int64(0); start < total; start += int64(opts.BatchSize) {
		stop := start + int64(opts.BatchSize) - 1
		if stop > total-1 {
			stop = total - 1
		}

		items, err := ix.store.ListRange(ctx, opts.Source, start, stop)
		if err != nil {
			return rep, err
		}
		if len(items) == 0 {
			break
		}

		if err := ix.ingestBatch(ctx, opts, items, &rep); err != nil {
			return rep, err
		}
	}

	if opts.Retention > 0 {
		horizon := float64(time.Now().Add(-opts.Retention).Unix())
		pruned, err := ix.store.RemoveByScoreBelow(ctx, TimeKey(opts.Prefix), horizon)
		if err != nil {
			return rep, err
		}
		rep.Pruned = pruned
	}

	rep.IndexedTotal, err = ix.store.SortedSetCard(ctx, TimeKey(opts.Prefix))
	if err != nil {
		return rep, err
	}

	ix.log.Info().
		Int("new", rep.New).
		Int("malformed", rep.Malformed).
		Int("missing_id", rep.MissingID).
		Int("missing_date", rep.MissingDate).
		Int64("pruned", rep.Pruned).
		Int64("indexed_total", rep.IndexedTotal).
		Msg("indexer done")

	return rep, nil
}

func (ix *Indexer) ingestBatch(ctx context.Context, opts Options, items [][]byte, rep *Report) error {
	// Admission pass: parse, extract, then one grouped test-and-set over
	// the batch's dedupe markers.
	candidates := make([]candidate, 0, len(items))
	seenKeys := make([]string, 0, len(items))

	for _, raw := range items {
		c, ok := ix.admit(raw, rep)
		if !ok {
			continue
		}
		candidates = append(candidates, c)
		seenKeys = append(seenKeys, SeenKey(opts.Prefix, c.id))
	}

	if len(candidates) == 0 {
		return nil
	}

	isNew, err := ix.store.MarkSeen(ctx, seenKeys, opts.Retention)
	if err != nil {
		return err
	}

	// Commit pass: index only the newly marked records. A new record
	// without a usable date keeps its marker and is never retried.
	entries := make([]storage.CommitEntry, 0, len(candidates))
	for i, c := range candidates {
		if !isNew[i] {
			continue
		}
		if !c.hasDate {
			rep.MissingDate++
			continue
		}

		entry := storage.CommitEntry{
			RecordKey: RecordKey(opts.Prefix, c.id),
			Raw:       c.raw,
			TimeKey:   TimeKey(opts.Prefix),
			Member:    c.id,
			Score:     c.date,
		}
		for j, attr := range c.attrs {
			entry.SetKeys = append(entry.SetKeys, AttrKey(opts.Prefix, attr.Kind, c.vals[j]))
		}
		entries = append(entries, entry)
		rep.New++
	}

	return ix.store.CommitRecords(ctx, entries, opts.Retention)
}

// admit parses one raw entry and extracts everything the commit pass needs.
// The raw bytes are stored verbatim so unknown fields survive.
func (ix *Indexer) admit(raw []byte, rep *Report) (candidate, bool) {
	v, err := ix.parser.ParseBytes(raw)
	if err != nil {
		rep.Malformed++
		return candidate{}, false
	}

	id := string(v.GetStringBytes("id"))
	if id == "" {
		rep.MissingID++
		return candidate{}, false
	}

	c := candidate{id: id, raw: raw}
	c.date, c.hasDate = numericField(v, "date")

	for _, attr := range model.AttributeFields {
		val := scalarField(v, attr.Field)
		if val == "" {
			continue
		}
		c.attrs = append(c.attrs, attr)
		c.vals = append(c.vals, val)
	}

	return c, true
}

// numericField reads an epoch value that may arrive as a JSON number or a
// numeric string.
func numericField(v *fastjson.Value, field string) (float64, bool) {
	fv := v.Get(field)
	if fv == nil {
		return 0, false
	}
	switch fv.Type() {
	case fastjson.TypeNumber:
		f, err := fv.Float64()
		return f, err == nil
	case fastjson.TypeString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(fv.GetStringBytes())), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// scalarField renders a string or number field as the string the attribute
// index keys on. Other JSON types are not indexable.
func scalarField(v *fastjson.Value, field string) string {
	fv := v.Get(field)
	if fv == nil {
		return ""
	}
	switch fv.Type() {
	case fastjson.TypeString:
		return string(fv.GetStringBytes())
	case fastjson.TypeNumber:
		if i, err := fv.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		f, _ := fv.Float64()
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return ""
	}
}
