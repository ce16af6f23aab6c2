package memorystore

import "context"

// MemoryCursor tracks independent read positions into the session and
// long-term streams, so a caller can resume a combined retrieval exactly
// where it left off.
type MemoryCursor struct {
	LongTerm int64 `json:"long_term"`
	Session  int64 `json:"session"`
}

// Retrieve combines a session store and a long-term store: it drains
// session records first up to limit, then fills any remaining capacity
// from long-term, returning the records, the advanced cursor, and the
// total content byte count (§4.13).
func Retrieve(ctx context.Context, session, longTerm *Store, cursor MemoryCursor, limit int) ([]Record, MemoryCursor, int, error) {
	next := cursor
	var combined []Record
	bytes := 0

	if session != nil && limit > 0 {
		sessionRecords, sessionNext, err := session.Incremental(ctx, cursor.Session, limit)
		if err != nil {
			return nil, cursor, 0, err
		}
		combined = append(combined, sessionRecords...)
		next.Session = sessionNext
		limit -= len(sessionRecords)
	}

	if longTerm != nil && limit > 0 {
		longTermRecords, longTermNext, err := longTerm.Incremental(ctx, cursor.LongTerm, limit)
		if err != nil {
			return nil, cursor, 0, err
		}
		combined = append(combined, longTermRecords...)
		next.LongTerm = longTermNext
	}

	for _, r := range combined {
		bytes += len(r.Content)
	}
	return combined, next, bytes, nil
}
