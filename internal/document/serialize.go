package document

import (
	"encoding/json"
	"fmt"
)

// SerializationErrorKey marks a value that could not be encoded.
const SerializationErrorKey = "_serializationError"

// SafeMarshal encodes v, reporting cyclic or unsupported values as an error instead of failing
// the caller. Panics raised by custom marshalers are converted to errors too.
func SafeMarshal(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("marshal panicked: %v", r)
		}
	}()
	return json.Marshal(v)
}

// MarshalOrMarker returns the encoding of v, or a {"_serializationError": "..."} object.
func MarshalOrMarker(v any) (json.RawMessage, error) {
	data, err := SafeMarshal(v)
	if err == nil {
		return data, nil
	}
	marker, merr := json.Marshal(map[string]string{SerializationErrorKey: err.Error()})
	if merr != nil {
		return json.RawMessage(`{"` + SerializationErrorKey + `":"unencodable"}`), err
	}
	return marker, err
}
