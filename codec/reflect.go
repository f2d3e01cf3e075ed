package codec

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
)

// allocMessage handles dst of shape **T where *T implements proto.Message.
func allocMessage(dst any) (proto.Message, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return nil, fmt.Errorf("codec: cannot decode protobuf into %T", dst)
	}
	elem := rv.Elem()
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: %s is not a proto.Message", elem.Type())
	}
	return m, nil
}
