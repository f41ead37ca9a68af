package codec

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// protoJSON encodes generated protobuf messages using the canonical JSON
// mapping on a single line.
type protoJSON[T any] struct {
	messageType protoreflect.MessageType
	marshal     protojson.MarshalOptions
	unmarshal   protojson.UnmarshalOptions
}

func newProtoJSON[T any](messageType protoreflect.MessageType) *protoJSON[T] {
	return &protoJSON[T]{
		messageType: messageType,
		marshal:     protojson.MarshalOptions{Multiline: false},
		unmarshal:   protojson.UnmarshalOptions{DiscardUnknown: true},
	}
}

func (c *protoJSON[T]) Encode(record T) ([]byte, error) {
	msg, ok := any(record).(proto.Message)
	if !ok {
		return nil, fmt.Errorf("record %T is not a proto.Message", record)
	}

	data, err := c.marshal.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return nil, errEmbeddedNewline
	}
	return data, nil
}

func (c *protoJSON[T]) Decode(line []byte) (T, error) {
	var zero T

	msg := c.messageType.New().Interface()
	if err := c.unmarshal.Unmarshal(line, msg); err != nil {
		return zero, err
	}

	record, ok := any(msg).(T)
	if !ok {
		return zero, fmt.Errorf("decoded %T does not match record type %T", msg, zero)
	}
	return record, nil
}

func (c *protoJSON[T]) Name() string {
	return FormatProtoJSON
}
