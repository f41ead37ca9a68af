package codec

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errEmbeddedNewline = errors.New("encoded record contains a newline")

// JSON encodes records with encoding/json. Marshal output never contains a
// raw newline: strings escape it and json.RawMessage values are compacted.
type JSON[T any] struct{}

func NewJSON[T any]() *JSON[T] {
	return &JSON[T]{}
}

func (c *JSON[T]) Encode(record T) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return nil, errEmbeddedNewline
	}
	return data, nil
}

func (c *JSON[T]) Decode(line []byte) (T, error) {
	var record T
	err := json.Unmarshal(line, &record)
	return record, err
}

func (c *JSON[T]) Name() string {
	return FormatJSON
}
