package dedup

import (
	"encoding/gob"
	"io"
	"time"
)

// decodeSnapshot/encodeSnapshot use encoding/gob, matching the teacher's
// stateTracker on-disk format, kept as a separate file so the Gate's
// in-memory logic stays free of serialization detail.
func decodeSnapshot(r io.Reader) (map[string]time.Time, error) {
	var m map[string]time.Time
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeSnapshot(w io.Writer, m map[string]time.Time) error {
	return gob.NewEncoder(w).Encode(m)
}
