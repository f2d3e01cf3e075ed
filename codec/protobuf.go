package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes proto messages. Values that are not proto.Message are
// rejected, and so are messages whose wire form is empty (all fields at their
// defaults): the store would read zero bytes as a delete.
type Protobuf struct{}

func (Protobuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: %T is not a proto.Message", v)
	}
	b, err := proto.Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("codec: %T encodes to zero bytes", v)
	}
	return b, nil
}

// Unmarshal accepts either a message (*pb.T) or a pointer to a message
// pointer (**pb.T, allocated when nil).
func (Protobuf) Unmarshal(b []byte, dst any) error {
	switch d := dst.(type) {
	case proto.Message:
		return proto.Unmarshal(b, d)
	default:
		m, err := allocMessage(dst)
		if err != nil {
			return err
		}
		return proto.Unmarshal(b, m)
	}
}
