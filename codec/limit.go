package codec

import "fmt"

// Limit wraps another serializer to enforce a maximum allowed payload size
// at decode time. Marshal is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: protect against oversized/malicious inputs coming from a
// shared cache.
type Limit struct {
	Inner     Serializer
	MaxDecode int
}

func (l Limit) Marshal(v any) ([]byte, error) { return l.Inner.Marshal(v) }

func (l Limit) Unmarshal(b []byte, dst any) error {
	if l.MaxDecode > 0 && len(b) > l.MaxDecode {
		return fmt.Errorf("codec: payload too large: %d > %d", len(b), l.MaxDecode)
	}
	return l.Inner.Unmarshal(b, dst)
}
