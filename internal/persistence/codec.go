package persistence

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// EncodeEvent serializes a history event using encoding/gob. It is the
// payload format of the SQLite and Redis stores.
func EncodeEvent(ev api.RawEvent) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&ev); err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	return buf.Bytes(), nil
}

// DecodeEvent is the inverse of EncodeEvent.
func DecodeEvent(data []byte) (api.RawEvent, error) {
	var ev api.RawEvent
	if len(data) == 0 {
		return ev, fmt.Errorf("decode event: empty payload")
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
