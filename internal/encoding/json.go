// Package encoding wraps the json codec with typed helpers and consistent errors.
package encoding

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var (
	ErrDecodeJSON = errors.New("failed to decode JSON")
	ErrEncodeJSON = errors.New("failed to encode JSON")
)

// UnmarshalJSON decodes a single json value of type T from the reader.
func UnmarshalJSON[T any](reader io.Reader) (T, error) {
	var value T
	if err := json.NewDecoder(reader).Decode(&value); err != nil {
		return value, errors.Join(err, ErrDecodeJSON)
	}

	return value, nil
}

// UnmarshalString is a convenience wrapper for values held in string form, such as settings rows.
func UnmarshalString[T any](value string) (T, error) {
	return UnmarshalJSON[T](bytes.NewBufferString(value))
}

// MarshalString encodes the value into its compact json string form.
func MarshalString(value any) (string, error) {
	body, err := json.Marshal(value)
	if err != nil {
		return "", errors.Join(err, ErrEncodeJSON)
	}

	return string(body), nil
}
