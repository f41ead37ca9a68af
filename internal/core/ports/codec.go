package ports

// Codec converts records to and from a single line of text.
// Encode must never emit a raw newline byte.
type Codec[T any] interface {
	// Encode serializes the record without a trailing newline.
	Encode(record T) ([]byte, error)

	// Decode parses one line, without its trailing newline, back into a record.
	Decode(line []byte) (T, error)

	// Name identifies the format, e.g. "json".
	Name() string
}
