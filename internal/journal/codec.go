package journal

import (
	"bytes"
	"encoding/gob"
)

// EncodeValues serializes a result list using encoding/gob. Basic Go types
// are handled out of the box; values of custom types must be registered by
// the caller with gob.Register before the run terminates.
func EncodeValues(values []any) ([]byte, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(values); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValues is the inverse of EncodeValues.
func DecodeValues(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var values []any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}
