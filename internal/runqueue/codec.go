package runqueue

import (
	"bytes"
	"encoding/gob"
)

// EncodeArgs gob-encodes a start request's argument list. Basic Go types are
// handled out of the box; arguments of custom types must be registered by
// the caller with gob.Register before enqueueing.
func EncodeArgs(args []any) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeArgs is the inverse of EncodeArgs.
func DecodeArgs(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var args []any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&args); err != nil {
		return nil, err
	}
	return args, nil
}
