package mapping

import (
	"sort"

	schema "datamap-cloud/internal/schema/domain"
)

// Canonicalize removes duplicate identity pairs and orders the rows by the
// position of their source column. The result replaces the input set.
//
// On a collision a later row replaces the kept one only when it is a
// suggestion with strictly higher confidence; the winner keeps the slot of
// the first-seen row.
func Canonicalize(set Set, columns schema.Columns) Set {
	return Set{rows: orderRows(dedupeRows(set.rows), columns)}
}

func dedupeRows(rows []Row) []Row {
	kept := make([]Row, 0, len(rows))
	index := make(map[IdentityPair]int, len(rows))
	for _, row := range rows {
		if !row.Complete() {
			kept = append(kept, row)
			continue
		}
		key := row.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(kept)
			kept = append(kept, row)
			continue
		}
		if row.Provenance == ProvenanceSuggested && row.Confidence.Above(kept[i].Confidence) {
			kept[i] = row
		}
	}
	return kept
}

// orderRows stable-sorts complete rows with a known column position and
// places everything else after them in insertion order.
func orderRows(rows []Row, columns schema.Columns) []Row {
	if len(columns) == 0 {
		return rows
	}
	type positioned struct {
		row      Row
		position int
	}
	var (
		ranked []positioned
		rest   []Row
	)
	for _, row := range rows {
		if !row.Complete() {
			rest = append(rest, row)
			continue
		}
		position, ok := columns.PositionOf(row.SourceColumn)
		if !ok {
			rest = append(rest, row)
			continue
		}
		ranked = append(ranked, positioned{row: row, position: position})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].position < ranked[j].position
	})
	result := make([]Row, 0, len(rows))
	for _, item := range ranked {
		result = append(result, item.row)
	}
	return append(result, rest...)
}
