package codec

import (
	"encoding"
	"fmt"
	"strconv"
)

// Bytes passes []byte and string values through untouched. Decoding targets
// *[]byte or *string.
type Bytes struct{}

func (Bytes) Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("codec: Bytes cannot marshal %T", v)
	}
}

func (Bytes) Unmarshal(b []byte, dst any) error {
	switch d := dst.(type) {
	case *[]byte:
		*d = append((*d)[:0], b...)
	case *string:
		*d = string(b)
	case *any:
		*d = append([]byte(nil), b...)
	default:
		return fmt.Errorf("codec: Bytes cannot unmarshal into %T", dst)
	}
	return nil
}

// Key renders key elements as UTF-8 text: strings and bytes as-is, integers
// and floats in base 10, Stringers and TextMarshalers via their text form,
// anything else via fmt. It is the default key serializer.
type Key struct{}

func (Key) Marshal(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("codec: nil key")
	case []byte:
		return x, nil
	case string:
		return []byte(x), nil
	case int:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int32:
		return strconv.AppendInt(nil, int64(x), 10), nil
	case int64:
		return strconv.AppendInt(nil, x, 10), nil
	case uint:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(x), 10), nil
	case uint64:
		return strconv.AppendUint(nil, x, 10), nil
	case float64:
		return strconv.AppendFloat(nil, x, 'g', -1, 64), nil
	case bool:
		return strconv.AppendBool(nil, x), nil
	case fmt.Stringer:
		return []byte(x.String()), nil
	case encoding.TextMarshaler:
		return x.MarshalText()
	default:
		return []byte(fmt.Sprint(v)), nil
	}
}

func (Key) Unmarshal(b []byte, dst any) error { return Bytes{}.Unmarshal(b, dst) }
