// Package codec turns queue records into single text lines and back.
package codec

import (
	"fmt"

	"github.com/iamNilotpal/dataqueue/internal/core/ports"
	"google.golang.org/protobuf/proto"
)

const (
	FormatJSON      = "json"
	FormatProtoJSON = "protojson"
)

// New returns the codec for the named format. The protojson format
// requires T to be a generated protobuf message pointer.
func New[T any](format string) (ports.Codec[T], error) {
	switch format {
	case "", FormatJSON:
		return NewJSON[T](), nil
	case FormatProtoJSON:
		var zero T
		msg, ok := any(zero).(proto.Message)
		if !ok {
			return nil, fmt.Errorf("format %q requires a proto.Message record type, got %T", format, zero)
		}
		return newProtoJSON[T](msg.ProtoReflect().Type()), nil
	default:
		return nil, fmt.Errorf("unsupported record format %q", format)
	}
}
