package sqlcommon

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// SanitizeValue normalizes a value for use as a statement parameter:
// primitives, byte slices and timestamps pass through; maps, slices and
// structs are serialized to JSON text so document-shaped fields round-trip
// through JSON/TEXT columns.
func SanitizeValue(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil, bool, string, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return v, nil
	}

	switch reflect.TypeOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("serialize %T parameter: %w", value, err)
		}
		return string(encoded), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", value)
	}
}
