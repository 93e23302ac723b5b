package mapping

// Set is an ordered collection of rows. Values are immutable; every
// operation returns a new Set.
type Set struct {
	rows []Row
}

// NewSet builds a set from rows without canonicalizing it.
func NewSet(rows ...Row) Set {
	return Set{rows: append([]Row(nil), rows...)}
}

// Rows returns a copy of the rows in order.
func (s Set) Rows() []Row {
	return append([]Row(nil), s.rows...)
}

// Len returns the number of rows.
func (s Set) Len() int {
	return len(s.rows)
}

// Row finds a row by id.
func (s Set) Row(id string) (Row, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.rows[i], true
	}
	return Row{}, false
}

// CompleteRows returns the complete rows in order.
func (s Set) CompleteRows() []Row {
	var result []Row
	for _, row := range s.rows {
		if row.Complete() {
			result = append(result, row)
		}
	}
	return result
}

// Keys returns the identity pairs of the complete rows.
func (s Set) Keys() map[IdentityPair]struct{} {
	keys := make(map[IdentityPair]struct{}, len(s.rows))
	for _, row := range s.rows {
		if row.Complete() {
			keys[row.Key()] = struct{}{}
		}
	}
	return keys
}

// Has reports whether a complete row carries the pair.
func (s Set) Has(pair IdentityPair) bool {
	for _, row := range s.rows {
		if row.Complete() && row.Key() == pair {
			return true
		}
	}
	return false
}

// Append returns a set with rows added at the end.
func (s Set) Append(rows ...Row) Set {
	next := make([]Row, 0, len(s.rows)+len(rows))
	next = append(next, s.rows...)
	next = append(next, rows...)
	return Set{rows: next}
}

// Replace returns a set with the row of the same id replaced.
func (s Set) Replace(row Row) (Set, error) {
	i := s.indexOf(row.ID)
	if i < 0 {
		return s, ErrUnknownRow
	}
	next := s.Rows()
	next[i] = row
	return Set{rows: next}, nil
}

// Remove returns a set without the row.
func (s Set) Remove(id string) (Set, error) {
	i := s.indexOf(id)
	if i < 0 {
		return s, ErrUnknownRow
	}
	next := make([]Row, 0, len(s.rows)-1)
	next = append(next, s.rows[:i]...)
	next = append(next, s.rows[i+1:]...)
	return Set{rows: next}, nil
}

func (s Set) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, row := range s.rows {
		if row.ID == id {
			return i
		}
	}
	return -1
}
