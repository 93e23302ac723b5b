package mapping

import (
	schema "datamap-cloud/internal/schema/domain"
)

// DefaultThreshold is the minimum confidence for automatic merges.
const DefaultThreshold = 0.7

// MergeOptions controls suggestion filtering.
type MergeOptions struct {
	// Threshold is the minimum confidence a suggestion needs.
	Threshold float64
	// Unfiltered skips the threshold; used by "accept all".
	Unfiltered bool
}

// Merge adds the suggestions not yet present in set as suggested rows and
// returns the canonical result along with the rows that were added. When
// nothing qualifies the input set is returned as is.
func Merge(set Set, suggestions []Suggestion, columns schema.Columns, opts MergeOptions) (Set, []Row) {
	existing := set.Keys()
	best := make(map[IdentityPair]Suggestion)
	var order []IdentityPair
	for _, s := range suggestions {
		if !opts.Unfiltered && s.Confidence < opts.Threshold {
			continue
		}
		key := s.Key()
		if key.SourceColumn == "" || key.TargetField == "" {
			continue
		}
		if _, ok := existing[key]; ok {
			continue
		}
		current, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = s
			continue
		}
		if s.Confidence > current.Confidence {
			best[key] = s
		}
	}
	if len(order) == 0 {
		return set, nil
	}

	added := make([]Row, 0, len(order))
	for _, key := range order {
		added = append(added, NewSuggestedRow(best[key]))
	}
	return Canonicalize(set.Append(added...), columns), added
}
