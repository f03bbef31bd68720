package index

import (
	"context"
	"strings"
)

// Repair reconciles orphaned dedupe markers: ids whose marker was set but
// whose forward record never landed (a run killed between the admission and
// commit passes) or has since expired ahead of the marker. Each orphan's
// marker is deleted and its id dropped from the time index, so the next
// normal run re-ingests it if it is still in the source. Returns how many
// markers were repaired.
func (ix *Indexer) Repair(ctx context.Context, prefix string) (int, error) {
	markerPrefix := SeenKey(prefix, "")

	keys, err := ix.store.ScanKeys(ctx, markerPrefix+"*")
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, key := range keys {
		id := strings.TrimPrefix(key, markerPrefix)
		if id == "" {
			continue
		}

		present, err := ix.store.Exists(ctx, RecordKey(prefix, id))
		if err != nil {
			return repaired, err
		}
		if present {
			continue
		}

		if err := ix.store.Delete(ctx, key); err != nil {
			return repaired, err
		}
		if err := ix.store.RemoveSortedMembers(ctx, TimeKey(prefix), id); err != nil {
			return repaired, err
		}

		ix.log.Debug().Str("id", id).Msg("orphaned marker repaired")
		repaired++
	}

	return repaired, nil
}
