package store

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
)

// LoadJSON decodes the value under key into v. It reports false when the
// key is missing, unreadable, or corrupted; corruption is logged and v is
// left untouched so callers fall back to their defaults. The bad value is
// replaced by the caller's next successful SaveJSON. v must be a non-nil
// pointer; it is only assigned once the whole value decodes.
func LoadJSON(c Cache, key string, v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		log.Printf("cache: loading %s into non-pointer %T", key, v)
		return false
	}

	raw, ok, err := c.Get(key)
	if err != nil {
		log.Printf("cache: reading %s: %v", key, err)
		return false
	}
	if !ok || raw == "" {
		return false
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal([]byte(raw), fresh.Interface()); err != nil {
		log.Printf("cache: discarding corrupted %s: %v", key, err)
		return false
	}
	rv.Elem().Set(fresh.Elem())
	return true
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(c Cache, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return c.Set(key, string(data))
}

// LoadBool reads a boolean flag, returning def when unset or corrupted.
func LoadBool(c Cache, key string, def bool) bool {
	var v bool
	if !LoadJSON(c, key, &v) {
		return def
	}
	return v
}
