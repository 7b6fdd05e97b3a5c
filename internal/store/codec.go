package store

import (
	"bytes"
	"encoding/gob"
)

// EncodeValue serializes an arbitrary Go value using encoding/gob, for
// backends that persist run input/result/element payloads as opaque bytes.
// Callers must ensure concrete types reachable from v are gob-registered
// when v's static type is an interface.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	iv := v
	if err := gob.NewEncoder(&buf).Encode(&iv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeValue deserializes a value encoded by EncodeValue.
func DecodeValue[T any](data []byte) (T, error) {
	var zero T
	if len(data) == 0 {
		return zero, nil
	}

	var iv any
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&iv); err != nil {
		return zero, err
	}

	if v, ok := iv.(T); ok {
		return v, nil
	}
	return zero, nil
}
